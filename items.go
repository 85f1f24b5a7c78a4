package fieldz

import (
	"context"
	"strings"
)

// wrongKind reports an input of a kind the item cannot operate on. This is a
// schema defect, never a user error.
func wrongKind(c Context, name Name, got Value, want ...Kind) *Error {
	names := make([]string, len(want))
	for i, k := range want {
		names[i] = k.String()
	}
	fe := InternalServerError(c.path, "%s expects %s, got %s", name, strings.Join(names, " or "), got.kind)
	fe.Err = ErrUnsupported
	return fe
}

// resolveArg evaluates an operator argument against the incoming Context.
// Arguments without embedded pipelines cost nothing.
func resolveArg(ctx context.Context, c Context, arg Value) (Value, error) {
	if !arg.HasPipeline() {
		return arg, nil
	}
	return arg.Resolve(ctx, c)
}

// stringOp builds a transform over string input.
func stringOp(name Name, fn func(string) string) Op {
	return Func(name, func(_ context.Context, c Context) (Context, error) {
		s, ok := c.value.AsString()
		if !ok {
			return c, wrongKind(c, name, c.value, KindString)
		}
		return c.WithValue(String(fn(s))), nil
	})
}

// check builds a validator over string input. reason is returned when ok
// reports false.
func check(name Name, reason string, ok func(string) bool) Op {
	return Func(name, func(_ context.Context, c Context) (Context, error) {
		s, isStr := c.value.AsString()
		if !isStr {
			return c, wrongKind(c, name, c.value, KindString)
		}
		if !ok(s) {
			return c, ValidationError(c.path, reason)
		}
		return c, nil
	})
}

func argString(ctx context.Context, c Context, name Name, arg Value) (string, error) {
	v, err := resolveArg(ctx, c, arg)
	if err != nil {
		return "", err
	}
	s, ok := v.AsString()
	if !ok {
		fe := InternalServerError(c.path, "%s argument must be string, got %s", name, v.kind)
		fe.Err = ErrUnsupported
		return "", fe
	}
	return s, nil
}

func argInt(ctx context.Context, c Context, name Name, arg Value) (int, error) {
	v, err := resolveArg(ctx, c, arg)
	if err != nil {
		return 0, err
	}
	i, ok := v.AsInt()
	if !ok {
		fe := InternalServerError(c.path, "%s argument must be an integer, got %s", name, v.kind)
		fe.Err = ErrUnsupported
		return 0, fe
	}
	if i < 0 {
		return 0, InternalServerError(c.path, "%s argument must not be negative, got %d", name, i)
	}
	return int(i), nil
}

// sequenceLike builds an Array, or a Tuple when like is one.
func sequenceLike(like Value, elems []Value) Value {
	if like.kind == KindTuple {
		return Tuple(elems...)
	}
	return Array(elems...)
}
