package fieldz

import (
	"context"
	"fmt"
)

// Gte requires a value greater than or equal to v.
func Gte(v Value) Op {
	return comparison("gte", "greater than or equal to", v, func(c int) bool { return c >= 0 })
}

// Gt requires a value greater than v.
func Gt(v Value) Op {
	return comparison("gt", "greater than", v, func(c int) bool { return c > 0 })
}

// Lte requires a value less than or equal to v.
func Lte(v Value) Op {
	return comparison("lte", "less than or equal to", v, func(c int) bool { return c <= 0 })
}

// Lt requires a value less than v.
func Lt(v Value) Op {
	return comparison("lt", "less than", v, func(c int) bool { return c < 0 })
}

// Eq requires a value equal to v. Unlike the ordering operators it accepts
// any kind; values of different kinds are simply unequal.
func Eq(v Value) Op {
	return Func("eq", func(ctx context.Context, c Context) (Context, error) {
		want, err := resolveArg(ctx, c, v)
		if err != nil {
			return c, err
		}
		if !Equal(c.value, want) {
			return c, ValidationError(c.path, fmt.Sprintf("value must equal %s", want))
		}
		return c, nil
	}, v)
}

// Neq requires a value different from v.
func Neq(v Value) Op {
	return Func("neq", func(ctx context.Context, c Context) (Context, error) {
		other, err := resolveArg(ctx, c, v)
		if err != nil {
			return c, err
		}
		if Equal(c.value, other) {
			return c, ValidationError(c.path, fmt.Sprintf("value must not equal %s", other))
		}
		return c, nil
	}, v)
}

// Within requires a value inside the range bounds.
func Within(r Value) Op {
	return Func("within", func(ctx context.Context, c Context) (Context, error) {
		rv, err := resolveArg(ctx, c, r)
		if err != nil {
			return c, err
		}
		b, ok := rv.AsRange()
		if !ok {
			return c, wrongKind(c, "within", rv, KindRange)
		}
		in, err := b.Contains(c.value)
		if err != nil {
			fe := InternalServerError(c.path, "within: %v", err)
			fe.Err = err
			return c, fe
		}
		if !in {
			return c, ValidationError(c.path, fmt.Sprintf("value must be within %s", rv))
		}
		return c, nil
	}, r)
}

// comparison builds an ordering validator. Incomparable operands are a
// schema defect and fail as InternalServerError.
func comparison(name Name, phrase string, arg Value, holds func(int) bool) Op {
	return Func(name, func(ctx context.Context, c Context) (Context, error) {
		want, err := resolveArg(ctx, c, arg)
		if err != nil {
			return c, err
		}
		order, err := Compare(c.value, want)
		if err != nil {
			fe := InternalServerError(c.path, "%s: %v", name, err)
			fe.Err = err
			return c, fe
		}
		if !holds(order) {
			return c, ValidationError(c.path, fmt.Sprintf("value must be %s %s", phrase, want))
		}
		return c, nil
	}, arg)
}
