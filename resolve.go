package fieldz

import "context"

// Resolve evaluates every pipeline embedded in v against c and returns the
// plain result. Pipelines nested in arrays, tuples, dicts and range bounds
// are resolved too; anything else is returned unchanged.
func (v Value) Resolve(ctx context.Context, c Context) (Value, error) {
	switch v.kind {
	case KindPipeline:
		return v.p.(*Pipeline).Process(ctx, c)
	case KindArray, KindTuple:
		if !v.HasPipeline() {
			return v, nil
		}
		src := v.p.([]Value)
		out := make([]Value, len(src))
		for i, e := range src {
			r, err := e.Resolve(ctx, c)
			if err != nil {
				return Null(), err
			}
			out[i] = r
		}
		return Value{kind: v.kind, p: out}, nil
	case KindDict:
		d := v.p.(*Dict)
		if !d.hasPipeline() {
			return v, nil
		}
		pairs := d.Pairs()
		for i := range pairs {
			r, err := pairs[i].Value.Resolve(ctx, c)
			if err != nil {
				return Null(), err
			}
			pairs[i].Value = r
		}
		return Map(pairs...), nil
	case KindRange:
		r := v.p.(Bounds)
		start, err := r.Start.Resolve(ctx, c)
		if err != nil {
			return Null(), err
		}
		end, err := r.End.Resolve(ctx, c)
		if err != nil {
			return Null(), err
		}
		return Range(start, end, r.Closed), nil
	default:
		return v, nil
	}
}

// HasPipeline reports whether resolving v would run any pipeline.
func (v Value) HasPipeline() bool {
	switch v.kind {
	case KindPipeline:
		return true
	case KindArray, KindTuple:
		for _, e := range v.p.([]Value) {
			if e.HasPipeline() {
				return true
			}
		}
		return false
	case KindDict:
		return v.p.(*Dict).hasPipeline()
	case KindRange:
		r := v.p.(Bounds)
		return r.Start.HasPipeline() || r.End.HasPipeline()
	default:
		return false
	}
}

func (d *Dict) hasPipeline() bool {
	for _, k := range d.keys {
		if d.vals[k].HasPipeline() {
			return true
		}
	}
	return false
}
