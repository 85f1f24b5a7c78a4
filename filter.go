package fieldz

import (
	"context"
	"strconv"
	"time"

	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Metric keys for Filter observability.
const (
	FilterProcessedTotal = metricz.Key("filter.processed.total")
	FilterKeptTotal      = metricz.Key("filter.kept.total")
	FilterDroppedTotal   = metricz.Key("filter.dropped.total")
	FilterAbortedTotal   = metricz.Key("filter.aborted.total")
)

// Span names for Filter.
const (
	FilterProcessSpan = tracez.Key("filter.process")
)

// Span tags for Filter.
const (
	FilterTagElements = tracez.Tag("filter.elements")
	FilterTagKept     = tracez.Tag("filter.kept")
	FilterTagSuccess  = tracez.Tag("filter.success")
	FilterTagError    = tracez.Tag("filter.error")

	// Hook event keys.
	FilterEventElement = hookz.Key("filter.element")
)

// FilterEvent is emitted via hookz for every element the filter evaluates.
type FilterEvent struct {
	Timestamp time.Time
	Error     error // the error that dropped or aborted the element
	Name      Name
	Path      KeyPath
	Index     int
	Duration  time.Duration
	Kept      bool
	Aborted   bool
}

// Filter keeps the elements of an array for which a sub-pipeline succeeds.
//
// Elements are evaluated one at a time, in order, each in a child Context
// whose path is extended by the element index. A non-fatal failure drops the
// element; the first fatal failure aborts the whole operation and no later
// element is evaluated. An empty array never runs the sub-pipeline.
//
// Example:
//
//	// [1, 2, 3, 4] -> [3, 4]
//	atLeastThree := fieldz.NewFilter(fieldz.NewPipeline("at-least-three", fieldz.Gte(fieldz.Int(3))))
//
// # Observability
//
// Metrics:
//   - filter.processed.total: Counter of filter runs
//   - filter.kept.total: Counter of kept elements
//   - filter.dropped.total: Counter of dropped elements
//   - filter.aborted.total: Counter of runs aborted by a fatal error
//
// Traces:
//   - filter.process: Span per run
//
// Events (via hooks):
//   - filter.element: Fired for each evaluated element
type Filter struct {
	pipeline *Pipeline
	metrics  *metricz.Registry
	tracer   *tracez.Tracer
	hooks    *hookz.Hooks[FilterEvent]
}

// NewFilter creates a filter item driven by p.
func NewFilter(p *Pipeline) *Filter {
	registry := metricz.New()
	registry.Counter(FilterProcessedTotal)
	registry.Counter(FilterKeptTotal)
	registry.Counter(FilterDroppedTotal)
	registry.Counter(FilterAbortedTotal)

	return &Filter{
		pipeline: p,
		metrics:  registry,
		tracer:   tracez.New(),
		hooks:    hookz.New[FilterEvent](),
	}
}

// Call implements Item.
func (f *Filter) Call(ctx context.Context, in Context) (out Context, err error) {
	defer recoverFromPanic(&out, &err, f.Name(), in)

	elems, ok := in.value.AsArray()
	if !ok {
		return in, wrongKind(in, f.Name(), in.value, KindArray, KindTuple)
	}

	ctx, span := f.tracer.StartSpan(ctx, FilterProcessSpan)
	defer span.Finish()
	span.SetTag(FilterTagElements, strconv.Itoa(len(elems)))

	f.metrics.Counter(FilterProcessedTotal).Inc()

	kept := make([]Value, 0, len(elems))
	for i, elem := range elems {
		child := in.ChildValue(Index(i), elem)
		start := time.Now()
		_, perr := f.pipeline.ProcessContext(ctx, child)
		event := FilterEvent{
			Name:      f.Name(),
			Path:      child.Path(),
			Index:     i,
			Kept:      perr == nil,
			Error:     perr,
			Duration:  time.Since(start),
			Timestamp: time.Now(),
		}

		switch {
		case perr == nil:
			kept = append(kept, elem)
			f.metrics.Counter(FilterKeptTotal).Inc()
		case IsFatal(perr):
			event.Aborted = true
			_ = f.hooks.Emit(ctx, FilterEventElement, event) //nolint:errcheck
			f.metrics.Counter(FilterAbortedTotal).Inc()
			span.SetTag(FilterTagSuccess, "false")
			span.SetTag(FilterTagError, perr.Error())
			return in, traced(f.Name(), child.path, perr)
		default:
			f.metrics.Counter(FilterDroppedTotal).Inc()
		}
		_ = f.hooks.Emit(ctx, FilterEventElement, event) //nolint:errcheck
	}

	span.SetTag(FilterTagKept, strconv.Itoa(len(kept)))
	span.SetTag(FilterTagSuccess, "true")
	return in.WithValue(sequenceLike(in.value, kept)), nil
}

// Name implements Item.
func (*Filter) Name() Name { return "filter" }

// Args returns the sub-pipeline as a value.
func (f *Filter) Args() []Value { return []Value{Pipe(f.pipeline)} }

// Pipeline returns the sub-pipeline.
func (f *Filter) Pipeline() *Pipeline { return f.pipeline }

// Metrics returns the metrics registry for this item.
func (f *Filter) Metrics() *metricz.Registry {
	return f.metrics
}

// Tracer returns the tracer for this item.
func (f *Filter) Tracer() *tracez.Tracer {
	return f.tracer
}

// Close gracefully shuts down observability components.
func (f *Filter) Close() error {
	if f.tracer != nil {
		f.tracer.Close()
	}
	f.hooks.Close()
	return nil
}

// OnElement registers a handler called asynchronously for every element.
func (f *Filter) OnElement(handler func(context.Context, FilterEvent) error) error {
	_, err := f.hooks.Hook(FilterEventElement, handler)
	return err
}
