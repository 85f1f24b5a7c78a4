package fieldz

import (
	"errors"

	"go.uber.org/zap"
)

// App is the application state handle threaded through Contexts. It replaces
// any process-wide accessor: items that need I/O or logging find it on the
// Context they are called with.
type App struct {
	conn   Connector
	logger *zap.Logger
	closer func() error
}

// AppOption configures an App.
type AppOption func(*App)

// WithConnector sets the connector used by raw query items that were built
// without one.
func WithConnector(c Connector) AppOption {
	return func(a *App) { a.conn = c }
}

// WithLogger sets the logger. A nil logger keeps the no-op default.
func WithLogger(l *zap.Logger) AppOption {
	return func(a *App) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewApp builds an App. Without options it has no connector and a no-op
// logger.
func NewApp(opts ...AppOption) *App {
	a := &App{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Connector returns the configured connector, which may be nil.
func (a *App) Connector() Connector {
	if a == nil {
		return nil
	}
	return a.conn
}

// Logger returns the application logger. A nil App yields zap's global
// logger.
func (a *App) Logger() *zap.Logger {
	if a == nil || a.logger == nil {
		return zap.L()
	}
	return a.logger
}

// Close runs the OnClose hook and flushes the logger.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	if a.closer != nil {
		errs = append(errs, a.closer())
	}
	// Sync on stderr-backed loggers reports EINVAL on some platforms.
	_ = a.logger.Sync() //nolint:errcheck
	return errors.Join(errs...)
}
