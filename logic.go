package fieldz

import (
	"context"
	"errors"
	"fmt"
)

// Set replaces the current value with v.
func Set(v Value) Op {
	return Func("set", func(ctx context.Context, c Context) (Context, error) {
		r, err := resolveArg(ctx, c, v)
		if err != nil {
			return c, err
		}
		return c.WithValue(r), nil
	}, v)
}

// Get descends into a Dict entry (key is a string) or an Array or Tuple
// element (key is an integer). The path of the result is extended by key.
func Get(key Value) Op {
	return Func("get", func(ctx context.Context, c Context) (Context, error) {
		k, err := resolveArg(ctx, c, key)
		if err != nil {
			return c, err
		}
		switch c.value.kind {
		case KindDict:
			name, ok := k.AsString()
			if !ok {
				return c, wrongKind(c, "get", k, KindString)
			}
			d, _ := c.value.AsDict()
			v, found := d.Get(name)
			if !found {
				return c, ValidationError(c.path.append(Field(name)), fmt.Sprintf("missing key %q", name))
			}
			return c.ChildValue(Field(name), v), nil
		case KindArray, KindTuple:
			i, ok := k.AsInt()
			if !ok {
				return c, wrongKind(c, "get", k, KindInt64)
			}
			elems, _ := c.value.AsArray()
			if i < 0 || i >= int64(len(elems)) {
				return c, ValidationError(c.path.append(Index(int(i))), fmt.Sprintf("index %d out of range", i))
			}
			return c.ChildValue(Index(int(i)), elems[i]), nil
		default:
			return c, wrongKind(c, "get", c.value, KindDict, KindArray, KindTuple)
		}
	}, key)
}

// Passed runs p and replaces the value with whether it succeeded. Fatal
// errors from p still abort.
func Passed(p *Pipeline) Op {
	return Func("passed", func(ctx context.Context, c Context) (Context, error) {
		_, err := p.ProcessContext(ctx, c)
		if err != nil && IsFatal(err) {
			return c, err
		}
		return c.WithValue(Bool(err == nil)), nil
	}, Pipe(p))
}

// Not succeeds with the incoming Context exactly when p fails non-fatally.
func Not(p *Pipeline) Op {
	return Func("not", func(ctx context.Context, c Context) (Context, error) {
		_, err := p.ProcessContext(ctx, c)
		switch {
		case err == nil:
			return c, ValidationError(c.path, fmt.Sprintf("value must not satisfy $%s", p.Name()))
		case IsFatal(err):
			return c, err
		default:
			return c, nil
		}
	}, Pipe(p))
}

// Validate runs p and passes its result on. A non-fatal failure is reported
// at the current path, with reason replacing p's own when reason is not empty.
func Validate(p *Pipeline, reason string) Op {
	return Func("validate", func(ctx context.Context, c Context) (Context, error) {
		out, err := p.ProcessContext(ctx, c)
		if err == nil {
			return out, nil
		}
		if IsFatal(err) {
			return c, err
		}
		msg := reason
		var fe *Error
		if msg == "" && errors.As(err, &fe) {
			msg = fe.Public()
		}
		return c, ValidationError(c.path, msg)
	}, Pipe(p), String(reason))
}

// Invalid always fails with a ValidationError carrying reason.
func Invalid(reason string) Op {
	return Func("invalid", func(_ context.Context, c Context) (Context, error) {
		return c, ValidationError(c.path, reason)
	}, String(reason))
}
