package fieldz

import "context"

// RawQuery sends the current value to a connector and replaces it with the
// result. conn may be nil, in which case the connector of the Context's App
// is used.
//
// This is the one item that performs I/O. Connector errors are returned as
// they are; since they are not *Error they classify as fatal.
func RawQuery(conn Connector) Op {
	return Func("raw_query", func(ctx context.Context, c Context) (Context, error) {
		target := conn
		if target == nil {
			target = c.App().Connector()
		}
		if target == nil {
			fe := InternalServerError(c.path, "raw_query has no connector")
			fe.Err = ErrNoConnector
			return c, fe
		}
		result, err := target.Query(ctx, c.value)
		if err != nil {
			return c, err
		}
		return c.WithValue(result), nil
	})
}
