package fieldztest

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/zoobzio/fieldz"
)

func TestMockItem(t *testing.T) {
	ctx := context.Background()

	t.Run("Passes through by default", func(t *testing.T) {
		mock := NewMockItem(t, "mock")
		out, err := mock.Call(ctx, fieldz.NewContext(fieldz.Int(1)))
		if err != nil || !fieldz.Equal(out.Value(), fieldz.Int(1)) {
			t.Errorf("expected 1, got %s (%v)", out.Value(), err)
		}
		AssertCalled(t, mock, 1)
		AssertCalledWith(t, mock, fieldz.Int(1))
	})

	t.Run("Configured return", func(t *testing.T) {
		mock := NewMockItem(t, "mock").WithReturn(fieldz.String("x"), nil)
		out, _ := mock.Call(ctx, fieldz.NewContext(fieldz.Null()))
		if !fieldz.Equal(out.Value(), fieldz.String("x")) {
			t.Errorf("expected x, got %s", out.Value())
		}
	})

	t.Run("Configured error", func(t *testing.T) {
		want := errors.New("boom")
		mock := NewMockItem(t, "mock").WithError(want)
		if _, err := mock.Call(ctx, fieldz.NewContext(fieldz.Null())); err != want {
			t.Errorf("expected configured error, got %v", err)
		}
	})

	t.Run("Delay honors cancellation", func(t *testing.T) {
		mock := NewMockItem(t, "mock").WithDelay(time.Second)
		canceled, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := mock.Call(canceled, fieldz.NewContext(fieldz.Null())); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("Panic", func(t *testing.T) {
		mock := NewMockItem(t, "mock").WithPanic("oops")
		defer func() {
			if recover() == nil {
				t.Error("expected panic")
			}
		}()
		mock.Call(ctx, fieldz.NewContext(fieldz.Null())) //nolint:errcheck
	})

	t.Run("Reset", func(t *testing.T) {
		mock := NewMockItem(t, "mock")
		mock.Call(ctx, fieldz.NewContext(fieldz.Null())) //nolint:errcheck
		mock.Reset()
		AssertNotCalled(t, mock)
		if len(mock.Calls()) != 0 {
			t.Error("expected history to be cleared")
		}
	})
}

func TestChaosItem(t *testing.T) {
	t.Run("Always fails", func(t *testing.T) {
		chaos := NewChaosItem("chaos", fieldz.Trim(), ChaosConfig{FailureRate: 1, Seed: 1})
		p := fieldz.NewPipeline("p", chaos)
		_, err := p.Process(context.Background(), fieldz.NewContext(fieldz.String(" a ")))
		if !errors.Is(err, ErrChaos) || !fieldz.IsFatal(err) {
			t.Errorf("expected fatal chaos error, got %v", err)
		}
		if chaos.Stats().FailedCalls != 1 {
			t.Errorf("expected 1 failed call, got %+v", chaos.Stats())
		}
	})

	t.Run("Panics are contained by the pipeline", func(t *testing.T) {
		chaos := NewChaosItem("chaos", fieldz.Trim(), ChaosConfig{PanicRate: 1, Seed: 1})
		p := fieldz.NewPipeline("p", chaos)
		_, err := p.Process(context.Background(), fieldz.NewContext(fieldz.String("a")))
		if !fieldz.IsFatal(err) {
			t.Errorf("expected fatal error, got %v", err)
		}
		if chaos.Stats().PanicCalls != 1 {
			t.Errorf("expected 1 panic, got %+v", chaos.Stats())
		}
	})

	t.Run("Never fails", func(t *testing.T) {
		chaos := NewChaosItem("chaos", fieldz.Trim(), ChaosConfig{Seed: 1})
		ParallelTest(t, 10, func(int) {
			if _, err := chaos.Call(context.Background(), fieldz.NewContext(fieldz.String("a"))); err != nil {
				t.Errorf("unexpected error %v", err)
			}
		})
		if chaos.Stats().TotalCalls != 10 {
			t.Errorf("expected 10 calls, got %d", chaos.Stats().TotalCalls)
		}
	})
}

func TestNewObservedApp(t *testing.T) {
	app, logs := NewObservedApp(zapcore.InfoLevel)
	p := fieldz.NewPipeline("p", fieldz.Print(fieldz.Null()))
	if _, err := p.Process(context.Background(), fieldz.NewContext(fieldz.Int(1), fieldz.WithApp(app))); err != nil {
		t.Fatal(err)
	}
	if logs.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", logs.Len())
	}
}
