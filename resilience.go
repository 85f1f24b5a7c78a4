package fieldz

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/zoobzio/clockz"
	"github.com/zoobzio/metricz"
	"go.uber.org/zap"
)

// Metric keys for the connector wrappers.
const (
	BackoffRetriesTotal     = metricz.Key("backoff.retries.total")
	BackoffExhaustedTotal   = metricz.Key("backoff.exhausted.total")
	BreakerRejectedTotal    = metricz.Key("breaker.rejected.total")
	BreakerOpenedTotal      = metricz.Key("breaker.opened.total")
	BreakerStateOpen        = metricz.Key("breaker.state.open")
	BreakerConsecutiveFails = metricz.Key("breaker.failures.consecutive")
)

// ErrCircuitOpen is returned by a CircuitBreaker that is refusing queries.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// retryable reports whether a query that failed under ctx may be sent
// again. Classified engine errors (malformed queries) are final, and so is
// every failure once the caller's ctx is done. A deadline the connector
// imposed on itself, such as a query timeout, still counts as a failure of
// the backend.
func retryable(ctx context.Context, err error) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return false
	}
	return ctx.Err() == nil
}

// Backoff retries a connector with exponentially growing delays.
//
// Only unclassified failures are retried; see retryable. Retrying is not
// safe for non-idempotent statements, so wrap only connectors whose queries
// may run twice.
type Backoff struct {
	conn        Connector
	clock       clockz.Clock
	logger      *zap.Logger
	metrics     *metricz.Registry
	name        Name
	baseDelay   time.Duration
	maxAttempts int
}

// NewBackoff wraps conn. maxAttempts below 1 is treated as 1.
func NewBackoff(name Name, conn Connector, maxAttempts int, baseDelay time.Duration) *Backoff {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	metrics := metricz.New()
	metrics.Counter(BackoffRetriesTotal)
	metrics.Counter(BackoffExhaustedTotal)
	return &Backoff{
		name:        name,
		conn:        conn,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		clock:       clockz.RealClock,
		logger:      zap.NewNop(),
		metrics:     metrics,
	}
}

// WithClock sets the clock used for delays.
func (b *Backoff) WithClock(clock clockz.Clock) *Backoff {
	b.clock = clock
	return b
}

// WithLogger sets the logger retries are reported to.
func (b *Backoff) WithLogger(l *zap.Logger) *Backoff {
	if l != nil {
		b.logger = l
	}
	return b
}

// Query implements Connector.
func (b *Backoff) Query(ctx context.Context, query Value) (Value, error) {
	delay := b.baseDelay
	var lastErr error
	for attempt := 1; attempt <= b.maxAttempts; attempt++ {
		result, err := b.conn.Query(ctx, query)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !retryable(ctx, err) || attempt == b.maxAttempts {
			break
		}

		b.metrics.Counter(BackoffRetriesTotal).Inc()
		b.logger.Warn("query failed, backing off",
			zap.String("name", b.name),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", b.maxAttempts),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		select {
		case <-b.clock.After(delay):
			delay *= 2
		case <-ctx.Done():
			return Null(), ctx.Err()
		}
	}
	if retryable(ctx, lastErr) {
		b.metrics.Counter(BackoffExhaustedTotal).Inc()
	}
	return Null(), lastErr
}

// Metrics returns the metrics registry.
func (b *Backoff) Metrics() *metricz.Registry { return b.metrics }

// Name returns the wrapper name.
func (b *Backoff) Name() Name { return b.name }

const (
	stateClosed   = "closed"
	stateOpen     = "open"
	stateHalfOpen = "half-open"
)

// CircuitBreaker stops sending queries to a failing connector.
//
// After failureThreshold consecutive failures the breaker opens and rejects
// every query with ErrCircuitOpen. Once resetTimeout has passed it lets a
// probe query through (half-open); success closes it again, failure reopens
// it. Classified engine errors and failures seen after the caller's context
// ended do not count.
type CircuitBreaker struct {
	lastFailTime     time.Time
	conn             Connector
	clock            clockz.Clock
	logger           *zap.Logger
	metrics          *metricz.Registry
	name             Name
	state            string
	mu               sync.Mutex
	resetTimeout     time.Duration
	generation       int
	failureThreshold int
	failures         int
}

// NewCircuitBreaker wraps conn. failureThreshold below 1 is treated as 1.
func NewCircuitBreaker(name Name, conn Connector, failureThreshold int, resetTimeout time.Duration) *CircuitBreaker {
	if failureThreshold < 1 {
		failureThreshold = 1
	}
	metrics := metricz.New()
	metrics.Counter(BreakerRejectedTotal)
	metrics.Counter(BreakerOpenedTotal)
	metrics.Gauge(BreakerStateOpen)
	metrics.Gauge(BreakerConsecutiveFails)
	return &CircuitBreaker{
		name:             name,
		conn:             conn,
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		state:            stateClosed,
		clock:            clockz.RealClock,
		logger:           zap.NewNop(),
		metrics:          metrics,
	}
}

// WithClock sets the clock used for the reset timeout.
func (cb *CircuitBreaker) WithClock(clock clockz.Clock) *CircuitBreaker {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.clock = clock
	return cb
}

// WithLogger sets the logger state changes are reported to.
func (cb *CircuitBreaker) WithLogger(l *zap.Logger) *CircuitBreaker {
	if l != nil {
		cb.mu.Lock()
		cb.logger = l
		cb.mu.Unlock()
	}
	return cb
}

// Query implements Connector.
func (cb *CircuitBreaker) Query(ctx context.Context, query Value) (Value, error) {
	cb.mu.Lock()
	if cb.state == stateOpen && cb.clock.Since(cb.lastFailTime) > cb.resetTimeout {
		cb.state = stateHalfOpen
		cb.failures = 0
		cb.generation++
		cb.logger.Info("circuit breaker half-open", zap.String("name", cb.name), zap.Int("generation", cb.generation))
	}
	if cb.state == stateOpen {
		cb.metrics.Counter(BreakerRejectedTotal).Inc()
		cb.mu.Unlock()
		return Null(), ErrCircuitOpen
	}
	generation := cb.generation
	cb.mu.Unlock()

	result, err := cb.conn.Query(ctx, query)

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.generation != generation {
		// A concurrent probe already moved the breaker on.
		return result, err
	}
	if err != nil && retryable(ctx, err) {
		cb.onFailure()
	} else if err == nil {
		cb.onSuccess()
	}
	return result, err
}

func (cb *CircuitBreaker) onSuccess() {
	if cb.state == stateHalfOpen {
		cb.logger.Info("circuit breaker closed", zap.String("name", cb.name))
		cb.metrics.Gauge(BreakerStateOpen).Set(0)
	}
	cb.state = stateClosed
	cb.failures = 0
	cb.metrics.Gauge(BreakerConsecutiveFails).Set(0)
}

func (cb *CircuitBreaker) onFailure() {
	cb.lastFailTime = cb.clock.Now()
	cb.failures++
	cb.metrics.Gauge(BreakerConsecutiveFails).Set(float64(cb.failures))
	if cb.state == stateHalfOpen || cb.failures >= cb.failureThreshold {
		cb.state = stateOpen
		cb.generation++
		cb.metrics.Counter(BreakerOpenedTotal).Inc()
		cb.metrics.Gauge(BreakerStateOpen).Set(1)
		cb.logger.Error("circuit breaker opened",
			zap.String("name", cb.name),
			zap.Int("failures", cb.failures),
			zap.Int("threshold", cb.failureThreshold),
		)
	}
}

// State returns "closed", "open" or "half-open".
func (cb *CircuitBreaker) State() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == stateOpen && cb.clock.Since(cb.lastFailTime) > cb.resetTimeout {
		return stateHalfOpen
	}
	return cb.state
}

// Reset closes the breaker.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = stateClosed
	cb.failures = 0
	cb.generation++
	cb.metrics.Gauge(BreakerStateOpen).Set(0)
}

// Metrics returns the metrics registry.
func (cb *CircuitBreaker) Metrics() *metricz.Registry { return cb.metrics }

// Name returns the wrapper name.
func (cb *CircuitBreaker) Name() Name { return cb.name }
