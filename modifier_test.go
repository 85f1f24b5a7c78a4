package fieldz

import (
	"context"
	"errors"
	"testing"
)

func TestModifier(t *testing.T) {
	ctx := context.Background()
	upper := NewPipeline("upper", ToUpperCase())

	t.Run("Applies on matching intent", func(t *testing.T) {
		m := Many(upper)
		out := m.Call(ctx, NewContext(String("a"), WithIntent(IntentMany)))
		if out.Err() != nil || !Equal(out.Value(), String("A")) {
			t.Errorf("expected A, got %s (%v)", out.Value(), out.Err())
		}
		if m.Metrics().Counter(ModifierAppliedTotal).Value() != 1 {
			t.Error("expected applied counter to be 1")
		}
	})

	t.Run("Skips other intents", func(t *testing.T) {
		m := NestedMany(upper)
		in := NewContext(String("a"), WithIntent(IntentMany))
		out := m.Call(ctx, in)
		if out.Err() != nil || !Equal(out.Value(), String("a")) {
			t.Errorf("expected a unchanged, got %s (%v)", out.Value(), out.Err())
		}
		if m.Metrics().Counter(ModifierSkippedTotal).Value() != 1 {
			t.Error("expected skipped counter to be 1")
		}
	})

	t.Run("Failures travel on the context", func(t *testing.T) {
		m := Many(upper)
		in := NewContext(Int(1), WithIntent(IntentMany))
		out := m.Call(ctx, in)
		if !IsFatal(out.Err()) {
			t.Fatalf("expected fatal error on context, got %v", out.Err())
		}
		if !Equal(out.Value(), Int(1)) {
			t.Error("failed modifier should keep the input value")
		}
		var fe *Error
		if errors.As(out.Err(), &fe) && fe.Trace[0] != "many" {
			t.Errorf("expected modifier name first in trace, got %v", fe.Trace)
		}
	})

	t.Run("Success clears an earlier error", func(t *testing.T) {
		m := Many(upper)
		in := NewContext(String("a"), WithIntent(IntentMany)).withErr(errors.New("old"))
		if out := m.Call(ctx, in); out.Err() != nil {
			t.Errorf("expected no error, got %v", out.Err())
		}
	})

	t.Run("As item", func(t *testing.T) {
		p := NewPipeline("outer", Trim(), Many(upper).AsItem())
		got, err := p.Process(ctx, NewContext(String(" b "), WithIntent(IntentMany)))
		if err != nil || !Equal(got, String("B")) {
			t.Errorf("expected B, got %s (%v)", got, err)
		}

		bare := NewPipeline("bare", Many(upper).AsItem())
		_, err = bare.Process(ctx, NewContext(Int(1), WithIntent(IntentMany)))
		if !IsFatal(err) {
			t.Errorf("expected fatal error from item, got %v", err)
		}

		if got := p.Names()[1]; got != "many(.many)" {
			t.Errorf("unexpected identity %s", got)
		}
	})
}
