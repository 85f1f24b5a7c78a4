package fieldz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorClass(t *testing.T) {
	t.Run("Internal", func(t *testing.T) {
		err := InternalServerError(Path("a"), "boom %d", 1)
		if !IsFatal(err) || IsValidation(err) || IsPermission(err) {
			t.Errorf("unexpected classification for %v", err)
		}
	})

	t.Run("Validation", func(t *testing.T) {
		err := ValidationError(Path("a"), "too short")
		if IsFatal(err) || !IsValidation(err) {
			t.Errorf("unexpected classification for %v", err)
		}
	})

	t.Run("Permission", func(t *testing.T) {
		err := PermissionError(nil)
		if IsFatal(err) || !IsPermission(err) {
			t.Errorf("unexpected classification for %v", err)
		}
	})

	t.Run("Foreign errors are fatal", func(t *testing.T) {
		if Classify(errors.New("driver down")) != ClassInternal {
			t.Error("expected foreign errors to be internal")
		}
	})

	t.Run("Nil is not fatal", func(t *testing.T) {
		if IsFatal(nil) {
			t.Error("nil should not be fatal")
		}
	})

	t.Run("Wrapped errors keep their class", func(t *testing.T) {
		err := fmt.Errorf("outer: %w", ValidationError(nil, "bad"))
		if !IsValidation(err) {
			t.Error("expected wrapped validation error to classify as validation")
		}
	})
}

func TestErrorMessages(t *testing.T) {
	t.Run("Public hides internals", func(t *testing.T) {
		err := InternalServerError(Path("secret"), "table users missing")
		if err.Public() != "internal server error" {
			t.Errorf("unexpected public message %q", err.Public())
		}
		if !strings.Contains(err.Error(), "table users missing") {
			t.Errorf("log message should carry the reason: %s", err.Error())
		}
	})

	t.Run("Validation reason is public", func(t *testing.T) {
		err := ValidationError(nil, "value is required")
		if err.Public() != "value is required" {
			t.Errorf("unexpected public message %q", err.Public())
		}
	})

	t.Run("Error includes path and trace", func(t *testing.T) {
		err := ValidationError(Path("items", 2), "bad")
		err.Trace = []Name{"outer", "inner"}
		msg := err.Error()
		if !strings.Contains(msg, "items.2") || !strings.Contains(msg, "outer -> inner") {
			t.Errorf("unexpected message %s", msg)
		}
	})
}

func TestWrapInternal(t *testing.T) {
	t.Run("Foreign error", func(t *testing.T) {
		cause := errors.New("io")
		err := WrapInternal(Path("x"), cause)
		if !errors.Is(err, cause) {
			t.Error("cause should stay reachable")
		}
		if err.Class != ClassInternal || err.Path.String() != "x" {
			t.Errorf("unexpected wrap %+v", err)
		}
	})

	t.Run("Existing Error passes through", func(t *testing.T) {
		orig := ValidationError(Path("y"), "nope")
		if WrapInternal(Path("z"), orig) != orig {
			t.Error("expected the same *Error back")
		}
	})

	t.Run("Cancellation flags", func(t *testing.T) {
		if !WrapInternal(nil, context.Canceled).Canceled {
			t.Error("expected Canceled")
		}
		if !WrapInternal(nil, context.DeadlineExceeded).Timeout {
			t.Error("expected Timeout")
		}
	})

	t.Run("Nil", func(t *testing.T) {
		if WrapInternal(nil, nil) != nil {
			t.Error("expected nil")
		}
	})
}

func TestTraced(t *testing.T) {
	err := traced("inner", Path("a"), ValidationError(Path("a", 0), "bad"))
	err = traced("outer", nil, err)
	if strings.Join(err.Trace, ",") != "outer,inner" {
		t.Errorf("expected outermost first, got %v", err.Trace)
	}
	if err.Path.String() != "a.0" {
		t.Errorf("path should not change, got %s", err.Path)
	}
}

func TestTracedLeavesInputAlone(t *testing.T) {
	shared := ValidationError(Path("a"), "bad")
	first := traced("one", nil, shared)
	second := traced("two", nil, shared)

	if len(shared.Trace) != 0 {
		t.Errorf("expected shared error untouched, got %v", shared.Trace)
	}
	if first == shared || second == shared {
		t.Error("expected copies")
	}
	if strings.Join(first.Trace, ",") != "one" || strings.Join(second.Trace, ",") != "two" {
		t.Errorf("traces leaked between copies: %v %v", first.Trace, second.Trace)
	}
}
