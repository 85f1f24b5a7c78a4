package fieldz

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSelf(t *testing.T) {
	t.Run("Bound object", func(t *testing.T) {
		obj := &testObject{name: "user"}
		out, err := Self().Call(context.Background(), NewContext(Null(), WithObject(obj)))
		if err != nil {
			t.Fatal(err)
		}
		if o, ok := out.Value().AsObject(); !ok || o.ModelName() != "user" {
			t.Errorf("expected user object, got %s", out.Value())
		}
	})

	t.Run("No object", func(t *testing.T) {
		_, err := run(t, Self(), Null())
		if !IsFatal(err) || !errors.Is(err, ErrNoObject) {
			t.Errorf("expected ErrNoObject, got %v", err)
		}
	})
}

func TestRawQuery(t *testing.T) {
	echo := ConnectorFunc(func(_ context.Context, q Value) (Value, error) {
		return Array(q), nil
	})

	t.Run("Explicit connector", func(t *testing.T) {
		got, err := run(t, RawQuery(echo), String("SELECT 1"))
		if err != nil || !Equal(got, Array(String("SELECT 1"))) {
			t.Errorf("unexpected result %s (%v)", got, err)
		}
	})

	t.Run("App connector", func(t *testing.T) {
		app := NewApp(WithConnector(echo))
		out, err := RawQuery(nil).Call(context.Background(), NewContext(String("q"), WithApp(app)))
		if err != nil || !Equal(out.Value(), Array(String("q"))) {
			t.Errorf("unexpected result %s (%v)", out.Value(), err)
		}
	})

	t.Run("No connector", func(t *testing.T) {
		_, err := run(t, RawQuery(nil), String("q"))
		if !IsFatal(err) || !errors.Is(err, ErrNoConnector) {
			t.Errorf("expected ErrNoConnector, got %v", err)
		}
	})

	t.Run("Connector errors are returned unchanged", func(t *testing.T) {
		cause := errors.New("connection reset")
		failing := ConnectorFunc(func(context.Context, Value) (Value, error) {
			return Null(), cause
		})
		_, err := run(t, RawQuery(failing), String("q"))
		if err != cause {
			t.Errorf("expected the connector error itself, got %v", err)
		}
		if !IsFatal(err) {
			t.Error("connector errors should classify as fatal")
		}
	})

	t.Run("Context reaches the connector", func(t *testing.T) {
		type key struct{}
		var seen any
		spy := ConnectorFunc(func(ctx context.Context, q Value) (Value, error) {
			seen = ctx.Value(key{})
			return q, nil
		})
		ctx := context.WithValue(context.Background(), key{}, "tenant-7")
		if _, err := RawQuery(spy).Call(ctx, NewContext(Null())); err != nil {
			t.Fatal(err)
		}
		if seen != "tenant-7" {
			t.Errorf("expected request context, got %v", seen)
		}
	})
}

func TestPrint(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	app := NewApp(WithLogger(zap.New(core)))
	in := NewContext(Int(3), WithApp(app), WithPath(Path("qty")), WithIntent(IntentMany))

	out, err := Print(String("checkpoint")).Call(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if !Equal(out.Value(), Int(3)) {
		t.Errorf("print must not change the value, got %s", out.Value())
	}

	entries := logs.FilterMessage("print").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["value"] != "3" || fields["path"] != "qty" || fields["intent"] != "many" || fields["label"] != "checkpoint" {
		t.Errorf("unexpected fields %v", fields)
	}

	t.Run("Without an app", func(t *testing.T) {
		if _, err := run(t, Print(Null()), Int(1)); err != nil {
			t.Errorf("unexpected error %v", err)
		}
	})

	t.Run("Label must be a string", func(t *testing.T) {
		_, err := Print(Int(1)).Call(context.Background(), in)
		if !IsFatal(err) {
			t.Errorf("expected fatal error, got %v", err)
		}
	})
}
