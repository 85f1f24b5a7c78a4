package fieldz

import (
	"context"

	"go.uber.org/zap"
)

// Print logs the current value, path and intent through the App's logger
// and passes the Context on unchanged. label is optional (null); when given
// it must resolve to a string.
func Print(label Value) Op {
	return Func("print", func(ctx context.Context, c Context) (Context, error) {
		fields := []zap.Field{
			zap.Stringer("value", c.value),
			zap.Stringer("path", c.path),
			zap.Stringer("intent", c.intent),
		}
		if !label.IsNull() {
			s, err := argString(ctx, c, "print", label)
			if err != nil {
				return c, err
			}
			fields = append(fields, zap.String("label", s))
		}
		c.App().Logger().Info("print", fields...)
		return c, nil
	}, label)
}
