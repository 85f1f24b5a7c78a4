package fieldz

import "context"

// Connector is the storage capability the raw query item calls through.
//
// Query sends a query-shaped value and returns the result. Concurrency,
// pooling and timeouts are the connector's business; the engine only passes
// the caller's context along.
type Connector interface {
	Query(ctx context.Context, query Value) (Value, error)
}

// ConnectorFunc adapts a function to Connector.
type ConnectorFunc func(ctx context.Context, query Value) (Value, error)

// Query implements Connector.
func (f ConnectorFunc) Query(ctx context.Context, query Value) (Value, error) {
	return f(ctx, query)
}
