package fieldz

import (
	"context"
	"errors"
	"strings"
)

// Item is the atomic unit of pipeline behavior: a named, possibly blocking
// step that consumes one Context and produces the next.
//
// Items are built once, while a schema is compiled, and then shared
// read-only by every evaluation. Implementations must therefore be safe for
// concurrent use and must never mutate the Context they receive; Context is a
// value and every derivation already returns a copy.
//
// Failure contract shared by all items:
//   - input of the wrong kind is an InternalServerError (schema defect)
//   - input of the right kind that fails a semantic check is a ValidationError
type Item interface {
	Call(context.Context, Context) (Context, error)
	Name() Name
}

// Name identifies items and pipelines in traces, metrics and error chains.
//
// Example:
//
//	const (
//	    NormalizeEmailName fieldz.Name = "normalize-email"
//	    AdultOnlyName      fieldz.Name = "adult-only"
//	)
type Name = string

// Op is an Item built from a function and the arguments it captured.
// Two Ops are the same behavior when Identify renders them identically; Ops
// are never compared by pointer.
//
// Every built-in operator is an Op. Use Func for bespoke logic.
type Op struct {
	fn   func(context.Context, Context) (Context, error)
	name Name
	args []Value
}

// Func wraps fn as an Item. args are the captured arguments, kept only for
// identity and diagnostics.
//
// Example:
//
//	stamp := fieldz.Func("stamp", func(_ context.Context, c fieldz.Context) (fieldz.Context, error) {
//	    return c.WithValue(fieldz.DateTime(time.Now())), nil
//	})
func Func(name Name, fn func(context.Context, Context) (Context, error), args ...Value) Op {
	return Op{name: name, fn: fn, args: args}
}

// Call implements Item. Panics are recovered as InternalServerError. When
// fn fails with an *Error, Call returns a copy with the operator name
// prepended to its Trace; foreign errors are returned as they are.
func (o Op) Call(ctx context.Context, in Context) (out Context, err error) {
	defer recoverFromPanic(&out, &err, o.name, in)
	out, err = o.fn(ctx, in)
	var fe *Error
	if errors.As(err, &fe) {
		return out, fe.withTrace(o.name)
	}
	return out, err
}

// Name returns the operator name.
func (o Op) Name() Name { return o.name }

// Args returns the captured arguments.
func (o Op) Args() []Value {
	out := make([]Value, len(o.args))
	copy(out, o.args)
	return out
}

func (o Op) String() string { return Identify(o) }

// Identify renders an item as name plus captured arguments, e.g. "gte(3)".
func Identify(it Item) string {
	a, ok := it.(interface{ Args() []Value })
	if !ok {
		return it.Name()
	}
	args := a.Args()
	if len(args) == 0 {
		return it.Name()
	}
	parts := make([]string, len(args))
	for i, v := range args {
		parts[i] = v.String()
	}
	return it.Name() + "(" + strings.Join(parts, ", ") + ")"
}
