// Package fieldztest provides test utilities for fieldz pipelines.
//
// It includes a configurable mock item, a chaos item for failure injection,
// assertion helpers, and an App whose log output can be inspected.
//
// Example usage:
//
//	func TestMyPipeline(t *testing.T) {
//		mock := fieldztest.NewMockItem(t, "mock").WithReturn(fieldz.String("x"), nil)
//		p := fieldz.NewPipeline("test", mock)
//
//		got, err := p.Process(context.Background(), fieldz.NewContext(fieldz.Null()))
//		if err != nil {
//			t.Fatal(err)
//		}
//		fieldztest.AssertCalled(t, mock, 1)
//	}
package fieldztest

import (
	"context"
	"errors"
	mathrand "math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/zoobzio/fieldz"
)

// MockItem is a configurable fieldz.Item. It records every call and returns
// the configured value or error, optionally after a delay or a panic.
type MockItem struct { //nolint:govet // fieldalignment: test helper
	t          *testing.T
	name       string
	callCount  int64
	mu         sync.RWMutex
	calls      []fieldz.Context
	returnVal  fieldz.Value
	hasReturn  bool
	returnErr  error
	delay      time.Duration
	panicMsg   string
	maxHistory int
}

// NewMockItem creates a mock that passes its input through unchanged until
// configured otherwise.
func NewMockItem(t *testing.T, name string) *MockItem {
	return &MockItem{
		t:          t,
		name:       name,
		maxHistory: 100,
	}
}

// WithReturn makes every call replace the value with val and fail with err.
func (m *MockItem) WithReturn(val fieldz.Value, err error) *MockItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.returnVal = val
	m.hasReturn = true
	m.returnErr = err
	return m
}

// WithError makes every call fail with err and leave the value alone.
func (m *MockItem) WithError(err error) *MockItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.returnErr = err
	return m
}

// WithDelay delays every call by d, honoring cancellation.
func (m *MockItem) WithDelay(d time.Duration) *MockItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// WithPanic makes every call panic with msg.
func (m *MockItem) WithPanic(msg string) *MockItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panicMsg = msg
	return m
}

// Name implements fieldz.Item.
func (m *MockItem) Name() fieldz.Name {
	return m.name
}

// Call implements fieldz.Item.
func (m *MockItem) Call(ctx context.Context, in fieldz.Context) (fieldz.Context, error) {
	atomic.AddInt64(&m.callCount, 1)

	m.mu.Lock()
	if m.maxHistory > 0 {
		m.calls = append(m.calls, in)
		if len(m.calls) > m.maxHistory {
			m.calls = m.calls[1:]
		}
	}
	delay, val, hasReturn, err, panicMsg := m.delay, m.returnVal, m.hasReturn, m.returnErr, m.panicMsg
	m.mu.Unlock()

	if panicMsg != "" {
		panic(panicMsg)
	}

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return in, ctx.Err()
		}
	}

	out := in
	if hasReturn {
		out = in.WithValue(val)
	}
	return out, err
}

// CallCount returns how many times Call ran.
func (m *MockItem) CallCount() int {
	return int(atomic.LoadInt64(&m.callCount))
}

// Calls returns a copy of the recorded inputs, oldest first.
func (m *MockItem) Calls() []fieldz.Context {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]fieldz.Context, len(m.calls))
	copy(out, m.calls)
	return out
}

// LastInput returns the most recent input and whether there was one.
func (m *MockItem) LastInput() (fieldz.Context, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.calls) == 0 {
		return fieldz.Context{}, false
	}
	return m.calls[len(m.calls)-1], true
}

// Reset clears all recorded calls.
func (m *MockItem) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	atomic.StoreInt64(&m.callCount, 0)
	m.calls = nil
}

// AssertCalled verifies that mock ran exactly n times.
func AssertCalled(t *testing.T, mock *MockItem, n int) {
	t.Helper()
	if got := mock.CallCount(); got != n {
		t.Errorf("expected mock item %s to be called %d times, but was called %d times", mock.name, n, got)
	}
}

// AssertNotCalled verifies that mock never ran.
func AssertNotCalled(t *testing.T, mock *MockItem) {
	t.Helper()
	AssertCalled(t, mock, 0)
}

// AssertCalledWith verifies that the last input to mock carried want.
func AssertCalledWith(t *testing.T, mock *MockItem, want fieldz.Value) {
	t.Helper()
	in, ok := mock.LastInput()
	if !ok {
		t.Errorf("expected mock item %s to be called with %s, but it was never called", mock.name, want)
		return
	}
	if !fieldz.Equal(in.Value(), want) {
		t.Errorf("expected mock item %s to be called with %s, but was called with %s", mock.name, want, in.Value())
	}
}

// ChaosItem wraps another item and injects failures and panics at the
// configured rates. A fixed seed makes runs reproducible.
type ChaosItem struct { //nolint:govet // fieldalignment: test helper
	name        string
	wrapped     fieldz.Item
	failureRate float64
	panicRate   float64
	rng         *mathrand.Rand
	mu          sync.Mutex
	totalCalls  int64
	failedCalls int64
	panicCalls  int64
}

// ChaosConfig holds the injection rates, each between 0 and 1.
type ChaosConfig struct {
	FailureRate float64
	PanicRate   float64
	Seed        int64
}

// ErrChaos is returned by a ChaosItem when it injects a failure.
var ErrChaos = errors.New("chaos item induced failure")

// NewChaosItem wraps item.
func NewChaosItem(name string, item fieldz.Item, config ChaosConfig) *ChaosItem {
	return &ChaosItem{
		name:        name,
		wrapped:     item,
		failureRate: config.FailureRate,
		panicRate:   config.PanicRate,
		rng:         mathrand.New(mathrand.NewSource(config.Seed)), //nolint:gosec // deterministic test randomness
	}
}

// Name implements fieldz.Item.
func (c *ChaosItem) Name() fieldz.Name { return c.name }

// Call implements fieldz.Item.
func (c *ChaosItem) Call(ctx context.Context, in fieldz.Context) (fieldz.Context, error) {
	atomic.AddInt64(&c.totalCalls, 1)

	c.mu.Lock()
	doPanic := c.rng.Float64() < c.panicRate
	doFail := c.rng.Float64() < c.failureRate
	c.mu.Unlock()

	if doPanic {
		atomic.AddInt64(&c.panicCalls, 1)
		panic("chaos item induced panic")
	}

	out, err := c.wrapped.Call(ctx, in)
	if doFail && err == nil {
		atomic.AddInt64(&c.failedCalls, 1)
		return in, ErrChaos
	}
	return out, err
}

// ChaosStats counts what a ChaosItem injected.
type ChaosStats struct {
	TotalCalls  int64
	FailedCalls int64
	PanicCalls  int64
}

// Stats returns the injection counters.
func (c *ChaosItem) Stats() ChaosStats {
	return ChaosStats{
		TotalCalls:  atomic.LoadInt64(&c.totalCalls),
		FailedCalls: atomic.LoadInt64(&c.failedCalls),
		PanicCalls:  atomic.LoadInt64(&c.panicCalls),
	}
}

// NewObservedApp returns an App whose logger records entries at level and
// above, along with the recorded logs.
func NewObservedApp(level zapcore.Level, opts ...fieldz.AppOption) (*fieldz.App, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	opts = append([]fieldz.AppOption{fieldz.WithLogger(zap.New(core))}, opts...)
	return fieldz.NewApp(opts...), logs
}

// ParallelTest runs fn in n goroutines and waits for all of them.
func ParallelTest(t *testing.T, n int, fn func(int)) {
	t.Helper()

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(id int) {
			defer wg.Done()
			fn(id)
		}(i)
	}
	wg.Wait()
}
