package fieldz

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zoobzio/clockz"
)

// flaky fails the first n queries with err, then echoes the query.
func flaky(n int32, err error) (Connector, *int32) {
	var calls int32
	return ConnectorFunc(func(_ context.Context, q Value) (Value, error) {
		if atomic.AddInt32(&calls, 1) <= n {
			return Null(), err
		}
		return q, nil
	}), &calls
}

func TestBackoff(t *testing.T) {
	t.Run("Succeeds first time", func(t *testing.T) {
		conn, calls := flaky(0, nil)
		got, err := NewBackoff("b", conn, 3, time.Millisecond).Query(context.Background(), String("q"))
		if err != nil || !Equal(got, String("q")) || *calls != 1 {
			t.Errorf("unexpected result %s (%v) after %d calls", got, err, *calls)
		}
	})

	t.Run("Timing with clock", func(t *testing.T) {
		conn, calls := flaky(2, errors.New("connection reset"))
		clock := clockz.NewFakeClock()
		b := NewBackoff("b", conn, 3, 50*time.Millisecond).WithClock(clock)

		done := make(chan struct{})
		var got Value
		var err error
		go func() {
			got, err = b.Query(context.Background(), String("q"))
			close(done)
		}()

		time.Sleep(10 * time.Millisecond)
		clock.Advance(50 * time.Millisecond)
		clock.BlockUntilReady()
		time.Sleep(10 * time.Millisecond)

		// Second delay doubles.
		clock.Advance(100 * time.Millisecond)
		clock.BlockUntilReady()
		time.Sleep(10 * time.Millisecond)

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("test timed out")
		}
		if err != nil || !Equal(got, String("q")) {
			t.Fatalf("expected q, got %s (%v)", got, err)
		}
		if atomic.LoadInt32(calls) != 3 {
			t.Errorf("expected 3 calls, got %d", atomic.LoadInt32(calls))
		}
		if b.Metrics().Counter(BackoffRetriesTotal).Value() != 2 {
			t.Errorf("expected 2 retries, got %f", b.Metrics().Counter(BackoffRetriesTotal).Value())
		}
	})

	t.Run("Exhausted", func(t *testing.T) {
		cause := errors.New("down")
		conn, calls := flaky(10, cause)
		b := NewBackoff("b", conn, 2, time.Millisecond)
		_, err := b.Query(context.Background(), String("q"))
		if !errors.Is(err, cause) || *calls != 2 {
			t.Errorf("expected cause after 2 calls, got %v after %d", err, *calls)
		}
		if b.Metrics().Counter(BackoffExhaustedTotal).Value() != 1 {
			t.Error("expected exhausted counter to be 1")
		}
	})

	t.Run("Classified errors are final", func(t *testing.T) {
		conn, calls := flaky(10, InternalServerError(nil, "malformed"))
		_, err := NewBackoff("b", conn, 5, time.Millisecond).Query(context.Background(), String("q"))
		if !IsFatal(err) || *calls != 1 {
			t.Errorf("expected one call, got %d (%v)", *calls, err)
		}
	})

	t.Run("Connector timeouts are retried", func(t *testing.T) {
		conn, calls := flaky(1, fmt.Errorf("sqlconn: %w", context.DeadlineExceeded))
		got, err := NewBackoff("b", conn, 3, time.Millisecond).Query(context.Background(), String("q"))
		if err != nil || !Equal(got, String("q")) || *calls != 2 {
			t.Errorf("expected success on second call, got %s (%v) after %d calls", got, err, *calls)
		}
	})

	t.Run("Cancellation while waiting", func(t *testing.T) {
		conn, _ := flaky(10, errors.New("down"))
		b := NewBackoff("b", conn, 3, time.Hour)
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()
		if _, err := b.Query(ctx, String("q")); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestCircuitBreaker(t *testing.T) {
	ctx := context.Background()

	t.Run("Opens after threshold", func(t *testing.T) {
		conn, calls := flaky(100, errors.New("down"))
		cb := NewCircuitBreaker("cb", conn, 2, time.Minute)

		for i := 0; i < 2; i++ {
			if _, err := cb.Query(ctx, String("q")); errors.Is(err, ErrCircuitOpen) {
				t.Fatalf("breaker opened too early at call %d", i+1)
			}
		}
		if cb.State() != "open" {
			t.Fatalf("expected open, got %s", cb.State())
		}
		if _, err := cb.Query(ctx, String("q")); !errors.Is(err, ErrCircuitOpen) {
			t.Errorf("expected ErrCircuitOpen, got %v", err)
		}
		if *calls != 2 {
			t.Errorf("open breaker should not call through, got %d calls", *calls)
		}
		if cb.Metrics().Counter(BreakerRejectedTotal).Value() != 1 {
			t.Error("expected one rejection")
		}
	})

	t.Run("Half-open probe closes on success", func(t *testing.T) {
		conn, _ := flaky(1, errors.New("down"))
		clock := clockz.NewFakeClock()
		cb := NewCircuitBreaker("cb", conn, 1, 5*time.Second).WithClock(clock)

		_, _ = cb.Query(ctx, String("q")) //nolint:errcheck
		if cb.State() != "open" {
			t.Fatalf("expected open, got %s", cb.State())
		}
		clock.Advance(6 * time.Second)
		if cb.State() != "half-open" {
			t.Fatalf("expected half-open, got %s", cb.State())
		}
		if _, err := cb.Query(ctx, String("q")); err != nil {
			t.Fatalf("probe should pass, got %v", err)
		}
		if cb.State() != "closed" {
			t.Errorf("expected closed, got %s", cb.State())
		}
	})

	t.Run("Half-open probe reopens on failure", func(t *testing.T) {
		conn, _ := flaky(100, errors.New("down"))
		clock := clockz.NewFakeClock()
		cb := NewCircuitBreaker("cb", conn, 1, 5*time.Second).WithClock(clock)

		_, _ = cb.Query(ctx, String("q")) //nolint:errcheck
		clock.Advance(6 * time.Second)
		_, _ = cb.Query(ctx, String("q")) //nolint:errcheck
		if cb.State() != "open" {
			t.Errorf("expected open, got %s", cb.State())
		}
	})

	t.Run("Connector timeouts count", func(t *testing.T) {
		conn, calls := flaky(100, fmt.Errorf("sqlconn: %w", context.DeadlineExceeded))
		cb := NewCircuitBreaker("cb", conn, 3, time.Minute)
		for i := 0; i < 10; i++ {
			_, _ = cb.Query(ctx, String("q")) //nolint:errcheck
		}
		if cb.State() != "open" {
			t.Errorf("expected open, got %s", cb.State())
		}
		if *calls != 3 {
			t.Errorf("expected 3 calls to reach the backend, got %d", *calls)
		}
	})

	t.Run("Caller cancellation does not count", func(t *testing.T) {
		conn, _ := flaky(100, context.Canceled)
		cb := NewCircuitBreaker("cb", conn, 1, time.Minute)
		canceled, cancel := context.WithCancel(ctx)
		cancel()
		_, _ = cb.Query(canceled, String("q")) //nolint:errcheck
		if cb.State() != "closed" {
			t.Errorf("expected closed, got %s", cb.State())
		}
	})

	t.Run("Classified errors do not count", func(t *testing.T) {
		conn, _ := flaky(100, ValidationError(nil, "bad query"))
		cb := NewCircuitBreaker("cb", conn, 1, time.Minute)
		_, _ = cb.Query(ctx, String("q")) //nolint:errcheck
		if cb.State() != "closed" {
			t.Errorf("expected closed, got %s", cb.State())
		}
	})

	t.Run("Reset", func(t *testing.T) {
		conn, _ := flaky(100, errors.New("down"))
		cb := NewCircuitBreaker("cb", conn, 1, time.Minute)
		_, _ = cb.Query(ctx, String("q")) //nolint:errcheck
		cb.Reset()
		if cb.State() != "closed" {
			t.Errorf("expected closed, got %s", cb.State())
		}
	})

	t.Run("Through a pipeline", func(t *testing.T) {
		conn, _ := flaky(100, errors.New("down"))
		cb := NewCircuitBreaker("cb", conn, 1, time.Minute)
		app := NewApp(WithConnector(cb))
		p := NewPipeline("lookup", RawQuery(nil))
		in := NewContext(String("q"), WithApp(app))

		_, _ = p.Process(ctx, in) //nolint:errcheck
		_, err := p.Process(ctx, in)
		if !IsFatal(err) || !errors.Is(err, ErrCircuitOpen) {
			t.Errorf("expected fatal circuit open error, got %v", err)
		}
	})
}
