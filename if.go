package fieldz

import (
	"context"
	"time"

	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Observability constants for Conditional.
const (
	IfProcessedTotal     = metricz.Key("if.processed.total")
	IfThenTotal          = metricz.Key("if.then.total")
	IfElseTotal          = metricz.Key("if.else.total")
	IfProbeFailuresTotal = metricz.Key("if.probe.failures.total")

	IfProcessSpan = tracez.Key("if.process")

	IfTagCondition = tracez.Tag("if.condition")
	IfTagBranch    = tracez.Tag("if.branch")

	IfEventBranch = hookz.Key("if.branch")
)

// Trace segments that tell condition failures from branch failures.
const (
	IfConditionTrace Name = "if.condition"
	IfThenTrace      Name = "if.then"
	IfElseTrace      Name = "if.else"
)

// IfEvent is emitted via hookz after the condition has been decided.
type IfEvent struct {
	Timestamp  time.Time
	ProbeError error // non-fatal error that made a probe false
	Name       Name
	Branch     Name // "then", "else"
	Path       KeyPath
	Condition  bool
	HasBranch  bool
}

// Branch is an optional arm of a Conditional.
type Branch func(*Conditional)

// Then sets the arm taken when the condition holds.
func Then(v Value) Branch {
	return func(c *Conditional) { c.then, c.hasThen = v, true }
}

// Else sets the arm taken when the condition does not hold.
func Else(v Value) Branch {
	return func(c *Conditional) { c.els, c.hasElse = v, true }
}

// Conditional is the if item.
//
// The condition must be null (false), a bool, or a pipeline probe. A probe
// runs to completion against the incoming Context: success is true, a
// non-fatal error is false, and a fatal error aborts without choosing an arm.
//
// An arm that is a pipeline runs against the same Context and its terminal
// value replaces the current one; any other arm value is substituted as is.
// A missing arm passes the Context through unchanged.
//
// Every error the item returns carries IfConditionTrace, IfThenTrace or
// IfElseTrace in its Trace so the two fatal sources can be told apart; both abort.
type Conditional struct {
	metrics *metricz.Registry
	tracer  *tracez.Tracer
	hooks   *hookz.Hooks[IfEvent]
	cond    Value
	then    Value
	els     Value
	hasThen bool
	hasElse bool
}

// If builds a conditional item.
//
// Example:
//
//	// Drop the discount for non-members.
//	fieldz.If(fieldz.Pipe(isMember), fieldz.Else(fieldz.Int(0)))
func If(cond Value, branches ...Branch) *Conditional {
	metrics := metricz.New()
	metrics.Counter(IfProcessedTotal)
	metrics.Counter(IfThenTotal)
	metrics.Counter(IfElseTotal)
	metrics.Counter(IfProbeFailuresTotal)

	c := &Conditional{
		cond:    cond,
		metrics: metrics,
		tracer:  tracez.New(),
		hooks:   hookz.New[IfEvent](),
	}
	for _, b := range branches {
		b(c)
	}
	return c
}

// Call implements Item.
func (c *Conditional) Call(ctx context.Context, in Context) (out Context, err error) {
	defer recoverFromPanic(&out, &err, c.Name(), in)
	c.metrics.Counter(IfProcessedTotal).Inc()

	ctx, span := c.tracer.StartSpan(ctx, IfProcessSpan)
	defer span.Finish()

	holds, probeErr, err := c.decide(ctx, in)
	if err != nil {
		return in, traced(IfConditionTrace, in.path, err)
	}
	if probeErr != nil {
		c.metrics.Counter(IfProbeFailuresTotal).Inc()
	}
	if holds {
		span.SetTag(IfTagCondition, "true")
	} else {
		span.SetTag(IfTagCondition, "false")
	}

	arm, has, branch, trace := c.els, c.hasElse, "else", IfElseTrace
	if holds {
		arm, has, branch, trace = c.then, c.hasThen, "then", IfThenTrace
		c.metrics.Counter(IfThenTotal).Inc()
	} else {
		c.metrics.Counter(IfElseTotal).Inc()
	}
	span.SetTag(IfTagBranch, branch)

	_ = c.hooks.Emit(ctx, IfEventBranch, IfEvent{ //nolint:errcheck
		Name:       c.Name(),
		Path:       in.Path(),
		Condition:  holds,
		Branch:     branch,
		HasBranch:  has,
		ProbeError: probeErr,
		Timestamp:  time.Now(),
	})

	if !has {
		return in, nil
	}
	p, isPipe := arm.AsPipeline()
	if !isPipe {
		return in.WithValue(arm), nil
	}
	result, err := p.Process(ctx, in)
	if err != nil {
		return in, traced(trace, in.path, err)
	}
	return in.WithValue(result), nil
}

// decide evaluates the condition. probeErr is the swallowed non-fatal error
// of a failed probe; err is fatal.
func (c *Conditional) decide(ctx context.Context, in Context) (holds bool, probeErr, err error) {
	switch c.cond.kind {
	case KindNull:
		return false, nil, nil
	case KindBool:
		b, _ := c.cond.AsBool()
		return b, nil, nil
	case KindPipeline:
		p, _ := c.cond.AsPipeline()
		_, perr := p.ProcessContext(ctx, in)
		switch {
		case perr == nil:
			return true, nil, nil
		case IsFatal(perr):
			return false, nil, perr
		default:
			return false, perr, nil
		}
	default:
		return false, nil, wrongKind(in, c.Name(), c.cond, KindNull, KindBool, KindPipeline)
	}
}

// Name implements Item.
func (*Conditional) Name() Name { return "if" }

// Args returns the condition followed by the arms that are present.
func (c *Conditional) Args() []Value {
	args := []Value{c.cond}
	if c.hasThen {
		args = append(args, c.then)
	}
	if c.hasElse {
		args = append(args, c.els)
	}
	return args
}

// Metrics returns the metrics registry for this item.
func (c *Conditional) Metrics() *metricz.Registry { return c.metrics }

// Tracer returns the tracer for this item.
func (c *Conditional) Tracer() *tracez.Tracer { return c.tracer }

// Close shuts down observability components.
func (c *Conditional) Close() error {
	if c.tracer != nil {
		c.tracer.Close()
	}
	c.hooks.Close()
	return nil
}

// OnBranch registers a handler called asynchronously after each decision.
func (c *Conditional) OnBranch(handler func(context.Context, IfEvent) error) error {
	_, err := c.hooks.Hook(IfEventBranch, handler)
	return err
}
