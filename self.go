package fieldz

import "context"

// Self replaces the value with a reference to the bound object. It fails
// with an InternalServerError when the pipeline runs outside a record.
func Self() Op {
	return Func("self", func(_ context.Context, c Context) (Context, error) {
		obj, ok := c.Object()
		if !ok {
			fe := InternalServerError(c.path, "self requires a bound object")
			fe.Err = ErrNoObject
			return c, fe
		}
		return c.WithValue(Ref(obj)), nil
	})
}
