package fieldz

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Observability constants for Pipeline.
const (
	// Metrics.
	PipelineProcessedTotal = metricz.Key("pipeline.processed.total")
	PipelineSuccessesTotal = metricz.Key("pipeline.successes.total")
	PipelineFailuresTotal  = metricz.Key("pipeline.failures.total")
	PipelineFatalTotal     = metricz.Key("pipeline.fatal.total")
	PipelineDeniedTotal    = metricz.Key("pipeline.denied.total")
	PipelineStepsCompleted = metricz.Key("pipeline.steps.completed")
	PipelineDurationMs     = metricz.Key("pipeline.duration.ms")

	// Spans.
	PipelineProcessSpan = tracez.Key("pipeline.process")
	PipelineStepSpan    = tracez.Key("pipeline.step")

	// Tags.
	PipelineTagID         = tracez.Tag("pipeline.id")
	PipelineTagStepCount  = tracez.Tag("pipeline.step_count")
	PipelineTagStepNumber = tracez.Tag("pipeline.step_number")
	PipelineTagItem       = tracez.Tag("pipeline.item")
	PipelineTagSuccess    = tracez.Tag("pipeline.success")
	PipelineTagErrorClass = tracez.Tag("pipeline.error_class")

	// Hook event keys.
	PipelineEventStepComplete = hookz.Key("pipeline.step_complete")
	PipelineEventComplete     = hookz.Key("pipeline.complete")
)

// PipelineEvent is emitted via hookz as steps and whole runs complete.
type PipelineEvent struct {
	Timestamp  time.Time
	Error      error
	Name       Name
	Item       Name
	Path       KeyPath
	Step       int // 1-based, zero on complete events
	TotalSteps int
	Duration   time.Duration
	Success    bool
}

// Pipeline is an ordered, immutable sequence of items.
//
// A pipeline is assembled once, while a schema is compiled, and is then
// shared read-only across all concurrent evaluations. There is no API to
// add, remove or reorder items after construction.
//
// Pipelines are also data: Pipe embeds one in a Value so an operator
// argument, an if-condition or a field's current value can be a pipeline
// awaiting evaluation.
//
// # Entry points
//
//   - Process runs the items and returns the terminal value.
//   - ProcessContext returns the terminal Context (path, object, intent).
//   - Authorize runs the items as a permission gate and reduces the outcome
//     to allow/deny.
//
// # Equality
//
// Pipelines are compared by identity only and Equal always reports false.
// Items close over functions and compiled expressions, which have no
// meaningful structural equality.
//
// # Observability
//
// Metrics:
//   - pipeline.processed.total: Counter of runs
//   - pipeline.successes.total: Counter of successful runs
//   - pipeline.failures.total: Counter of failed runs
//   - pipeline.fatal.total: Counter of runs aborted by a fatal error
//   - pipeline.denied.total: Counter of Authorize denials
//   - pipeline.steps.completed: Gauge of steps completed by the last run
//   - pipeline.duration.ms: Gauge of the last run's duration
//
// Traces:
//   - pipeline.process: Span per run
//   - pipeline.step: Child span per item
//
// Events (via hooks):
//   - pipeline.step_complete: Fired after every item, successful or not
//   - pipeline.complete: Fired when a run finishes without error
type Pipeline struct {
	clock   clockz.Clock
	metrics *metricz.Registry
	tracer  *tracez.Tracer
	hooks   *hookz.Hooks[PipelineEvent]
	name    Name
	items   []Item
	id      uuid.UUID
}

// NewPipeline builds a pipeline from items, copied at construction.
//
// Example:
//
//	normalize := fieldz.NewPipeline("normalize-email",
//	    fieldz.Trim(),
//	    fieldz.ToLowerCase(),
//	    fieldz.IsEmail(),
//	)
func NewPipeline(name Name, items ...Item) *Pipeline {
	metrics := metricz.New()
	metrics.Counter(PipelineProcessedTotal)
	metrics.Counter(PipelineSuccessesTotal)
	metrics.Counter(PipelineFailuresTotal)
	metrics.Counter(PipelineFatalTotal)
	metrics.Counter(PipelineDeniedTotal)
	metrics.Gauge(PipelineStepsCompleted)
	metrics.Gauge(PipelineDurationMs)

	own := make([]Item, len(items))
	copy(own, items)

	return &Pipeline{
		id:      uuid.New(),
		name:    name,
		items:   own,
		clock:   clockz.RealClock,
		metrics: metrics,
		tracer:  tracez.New(),
		hooks:   hookz.New[PipelineEvent](),
	}
}

// WithClock sets the clock used for durations. It must be called before the
// pipeline is shared.
func (p *Pipeline) WithClock(clock clockz.Clock) *Pipeline {
	p.clock = clock
	return p
}

// Process runs every item in order and returns the terminal value.
// The first error of any class aborts the run and is returned.
func (p *Pipeline) Process(ctx context.Context, in Context) (Value, error) {
	out, err := p.ProcessContext(ctx, in)
	if err != nil {
		return Null(), err
	}
	return out.value, nil
}

// ProcessContext runs every item in order and returns the terminal Context.
//
// Step i+1 never starts before step i returns. The caller's context is
// checked before each step; cancellation aborts with a fatal error that
// records whether a deadline or an explicit cancel was the cause.
func (p *Pipeline) ProcessContext(ctx context.Context, in Context) (out Context, err error) {
	if ctx == nil {
		ctx = context.Background()
	}

	p.metrics.Counter(PipelineProcessedTotal).Inc()
	start := p.clock.Now()

	ctx, span := p.tracer.StartSpan(ctx, PipelineProcessSpan)
	span.SetTag(PipelineTagID, p.id.String())
	span.SetTag(PipelineTagStepCount, strconv.Itoa(len(p.items)))
	defer func() {
		elapsed := p.clock.Since(start)
		p.metrics.Gauge(PipelineDurationMs).Set(float64(elapsed.Milliseconds()))
		if err == nil {
			span.SetTag(PipelineTagSuccess, "true")
			p.metrics.Counter(PipelineSuccessesTotal).Inc()
		} else {
			span.SetTag(PipelineTagSuccess, "false")
			span.SetTag(PipelineTagErrorClass, Classify(err).String())
			p.metrics.Counter(PipelineFailuresTotal).Inc()
			if IsFatal(err) {
				p.metrics.Counter(PipelineFatalTotal).Inc()
			}
		}
		span.Finish()
	}()

	out = in
	completed := 0
	for i, it := range p.items {
		if cerr := ctx.Err(); cerr != nil {
			return out, traced(p.name, out.path, cerr)
		}

		stepCtx, stepSpan := p.tracer.StartSpan(ctx, PipelineStepSpan)
		stepSpan.SetTag(PipelineTagStepNumber, strconv.Itoa(i+1))
		stepSpan.SetTag(PipelineTagItem, Identify(it))

		stepStart := p.clock.Now()
		next, stepErr := callItem(stepCtx, it, out)
		stepDuration := p.clock.Since(stepStart)
		stepSpan.Finish()

		_ = p.hooks.Emit(ctx, PipelineEventStepComplete, PipelineEvent{ //nolint:errcheck
			Name:       p.name,
			Item:       it.Name(),
			Path:       out.Path(),
			Step:       i + 1,
			TotalSteps: len(p.items),
			Success:    stepErr == nil,
			Error:      stepErr,
			Duration:   stepDuration,
			Timestamp:  p.clock.Now(),
		})

		if stepErr != nil {
			p.metrics.Gauge(PipelineStepsCompleted).Set(float64(completed))
			return out, traced(p.name, out.path, stepErr)
		}
		out = next
		completed++
	}

	p.metrics.Gauge(PipelineStepsCompleted).Set(float64(completed))
	_ = p.hooks.Emit(ctx, PipelineEventComplete, PipelineEvent{ //nolint:errcheck
		Name:       p.name,
		Path:       out.Path(),
		TotalSteps: len(p.items),
		Success:    true,
		Duration:   p.clock.Since(start),
		Timestamp:  p.clock.Now(),
	})
	return out, nil
}

// Authorize runs the pipeline as a permission gate.
//
// Success allows. A fatal error is returned unchanged. Any other failure is
// replaced by a PermissionError located at the incoming path; the original
// reason is dropped so a gate reveals only that access was denied.
func (p *Pipeline) Authorize(ctx context.Context, in Context) error {
	_, err := p.ProcessContext(ctx, in)
	if err == nil {
		return nil
	}
	if IsFatal(err) {
		return err
	}
	p.metrics.Counter(PipelineDeniedTotal).Inc()
	denied := PermissionError(in.path)
	denied.Trace = []Name{p.name}
	return denied
}

// callItem shields the pipeline from panics in items that do not recover
// on their own.
func callItem(ctx context.Context, it Item, in Context) (out Context, err error) {
	defer recoverFromPanic(&out, &err, it.Name(), in)
	return it.Call(ctx, in)
}

// Call implements Item so pipelines nest inside other pipelines.
func (p *Pipeline) Call(ctx context.Context, in Context) (Context, error) {
	return p.ProcessContext(ctx, in)
}

// Equal always reports false. Pipelines have identity only.
func (*Pipeline) Equal(*Pipeline) bool {
	return false
}

// Name returns the pipeline name.
func (p *Pipeline) Name() Name { return p.name }

// ID returns the instance id assigned at construction.
func (p *Pipeline) ID() uuid.UUID { return p.id }

// Len returns the number of items.
func (p *Pipeline) Len() int { return len(p.items) }

// Items returns a copy of the item sequence.
func (p *Pipeline) Items() []Item {
	out := make([]Item, len(p.items))
	copy(out, p.items)
	return out
}

// Names returns the identity of every item in order, e.g. ["trim", "gte(3)"].
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.items))
	for i, it := range p.items {
		names[i] = Identify(it)
	}
	return names
}

// Metrics returns the metrics registry for this pipeline.
func (p *Pipeline) Metrics() *metricz.Registry {
	return p.metrics
}

// Tracer returns the tracer for this pipeline.
func (p *Pipeline) Tracer() *tracez.Tracer {
	return p.tracer
}

// Close shuts down observability components.
func (p *Pipeline) Close() error {
	if p.tracer != nil {
		p.tracer.Close()
	}
	p.hooks.Close()
	return nil
}

// OnStepComplete registers a handler called asynchronously after each item.
func (p *Pipeline) OnStepComplete(handler func(context.Context, PipelineEvent) error) error {
	_, err := p.hooks.Hook(PipelineEventStepComplete, handler)
	return err
}

// OnComplete registers a handler called asynchronously after a successful run.
func (p *Pipeline) OnComplete(handler func(context.Context, PipelineEvent) error) error {
	_, err := p.hooks.Hook(PipelineEventComplete, handler)
	return err
}
