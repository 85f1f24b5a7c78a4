package fieldz

import (
	"context"
	"time"

	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Observability constants for Modifier.
const (
	ModifierProcessedTotal = metricz.Key("modifier.processed.total")
	ModifierAppliedTotal   = metricz.Key("modifier.applied.total")
	ModifierSkippedTotal   = metricz.Key("modifier.skipped.total")
	ModifierFailedTotal    = metricz.Key("modifier.failed.total")

	ModifierProcessSpan = tracez.Key("modifier.process")

	ModifierTagTarget  = tracez.Tag("modifier.target")
	ModifierTagIntent  = tracez.Tag("modifier.intent")
	ModifierTagApplied = tracez.Tag("modifier.applied")

	ModifierEventApplied = hookz.Key("modifier.applied")
	ModifierEventSkipped = hookz.Key("modifier.skipped")
	ModifierEventFailed  = hookz.Key("modifier.failed")
)

// ModifierEvent is emitted via hookz for every routing decision.
type ModifierEvent struct {
	Timestamp time.Time
	Error     error
	Name      Name
	Path      KeyPath
	Target    Intent
	Intent    Intent
}

// Modifier runs a guarded sub-pipeline only when the request intent matches
// its target; otherwise the Context passes through untouched.
//
// A Modifier is a routing layer, not an error boundary. Call never fails:
// when the guarded pipeline fails, the input Context is returned with Err set
// and a modifier.failed event is emitted. Callers inspect Err, or embed the
// modifier in a pipeline through AsItem, which turns Err back into an error.
//
// Example:
//
//	paginate := fieldz.Many(fieldz.NewPipeline("paginate", truncate))
//	out := paginate.Call(ctx, in)
//	if err := out.Err(); err != nil {
//	    return err
//	}
type Modifier struct {
	pipeline *Pipeline
	metrics  *metricz.Registry
	tracer   *tracez.Tracer
	hooks    *hookz.Hooks[ModifierEvent]
	name     Name
	target   Intent
}

// NewModifier guards p behind target.
func NewModifier(name Name, target Intent, p *Pipeline) *Modifier {
	metrics := metricz.New()
	metrics.Counter(ModifierProcessedTotal)
	metrics.Counter(ModifierAppliedTotal)
	metrics.Counter(ModifierSkippedTotal)
	metrics.Counter(ModifierFailedTotal)

	return &Modifier{
		name:     name,
		target:   target,
		pipeline: p,
		metrics:  metrics,
		tracer:   tracez.New(),
		hooks:    hookz.New[ModifierEvent](),
	}
}

// Many guards p behind IntentMany.
func Many(p *Pipeline) *Modifier {
	return NewModifier("many", IntentMany, p)
}

// NestedMany guards p behind IntentNestedMany.
func NestedMany(p *Pipeline) *Modifier {
	return NewModifier("nested_many", IntentNestedMany, p)
}

// Call routes in through the guarded pipeline when the intent matches.
func (m *Modifier) Call(ctx context.Context, in Context) Context {
	if ctx == nil {
		ctx = context.Background()
	}
	m.metrics.Counter(ModifierProcessedTotal).Inc()

	ctx, span := m.tracer.StartSpan(ctx, ModifierProcessSpan)
	defer span.Finish()
	span.SetTag(ModifierTagTarget, m.target.String())
	span.SetTag(ModifierTagIntent, in.intent.String())

	event := ModifierEvent{
		Name:   m.name,
		Path:   in.Path(),
		Target: m.target,
		Intent: in.intent,
	}

	if in.intent != m.target {
		m.metrics.Counter(ModifierSkippedTotal).Inc()
		span.SetTag(ModifierTagApplied, "false")
		event.Timestamp = time.Now()
		_ = m.hooks.Emit(ctx, ModifierEventSkipped, event) //nolint:errcheck
		return in
	}

	span.SetTag(ModifierTagApplied, "true")
	out, err := m.pipeline.ProcessContext(ctx, in)
	event.Timestamp = time.Now()
	if err != nil {
		m.metrics.Counter(ModifierFailedTotal).Inc()
		fe := traced(m.name, in.path, err)
		event.Error = fe
		_ = m.hooks.Emit(ctx, ModifierEventFailed, event) //nolint:errcheck
		return in.withErr(fe)
	}
	m.metrics.Counter(ModifierAppliedTotal).Inc()
	_ = m.hooks.Emit(ctx, ModifierEventApplied, event) //nolint:errcheck
	return out.withErr(nil)
}

// AsItem adapts the modifier for use inside a pipeline. A failure recorded by
// Call is returned as the item's error.
func (m *Modifier) AsItem() Item {
	return modifierItem{m}
}

type modifierItem struct {
	m *Modifier
}

func (it modifierItem) Call(ctx context.Context, in Context) (Context, error) {
	out := it.m.Call(ctx, in)
	if err := out.Err(); err != nil {
		return in, err
	}
	return out, nil
}

func (it modifierItem) Name() Name { return it.m.name }

func (it modifierItem) Args() []Value { return []Value{Enum(it.m.target.String())} }

// Name returns the modifier name.
func (m *Modifier) Name() Name { return m.name }

// Target returns the intent that enables the guarded pipeline.
func (m *Modifier) Target() Intent { return m.target }

// Pipeline returns the guarded pipeline.
func (m *Modifier) Pipeline() *Pipeline { return m.pipeline }

// Metrics returns the metrics registry for this modifier.
func (m *Modifier) Metrics() *metricz.Registry { return m.metrics }

// Tracer returns the tracer for this modifier.
func (m *Modifier) Tracer() *tracez.Tracer { return m.tracer }

// Close shuts down observability components.
func (m *Modifier) Close() error {
	if m.tracer != nil {
		m.tracer.Close()
	}
	m.hooks.Close()
	return nil
}

// OnApplied registers a handler for runs of the guarded pipeline that succeed.
func (m *Modifier) OnApplied(handler func(context.Context, ModifierEvent) error) error {
	_, err := m.hooks.Hook(ModifierEventApplied, handler)
	return err
}

// OnSkipped registers a handler for intent mismatches.
func (m *Modifier) OnSkipped(handler func(context.Context, ModifierEvent) error) error {
	_, err := m.hooks.Hook(ModifierEventSkipped, handler)
	return err
}

// OnFailed registers a handler for guarded pipeline failures.
func (m *Modifier) OnFailed(handler func(context.Context, ModifierEvent) error) error {
	_, err := m.hooks.Hook(ModifierEventFailed, handler)
	return err
}
