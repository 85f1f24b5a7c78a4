package fieldz

import (
	"encoding/json"
	"fmt"
	"math/big"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Kind is the variant tag of a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt32
	KindInt64
	KindFloat32
	KindFloat64
	KindDecimal
	KindString
	KindDate
	KindDateTime
	KindArray
	KindDict
	KindEnum
	KindObject
	KindRegex
	KindRange
	KindTuple
	KindPipeline
)

var kindNames = [...]string{
	KindNull:     "null",
	KindBool:     "bool",
	KindInt32:    "int32",
	KindInt64:    "int64",
	KindFloat32:  "float32",
	KindFloat64:  "float64",
	KindDecimal:  "decimal",
	KindString:   "string",
	KindDate:     "date",
	KindDateTime: "datetime",
	KindArray:    "array",
	KindDict:     "dict",
	KindEnum:     "enum",
	KindObject:   "object",
	KindRegex:    "regex",
	KindRange:    "range",
	KindTuple:    "tuple",
	KindPipeline: "pipeline",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// IsNumber reports whether k is an integer, float or decimal kind.
func (k Kind) IsNumber() bool {
	switch k {
	case KindInt32, KindInt64, KindFloat32, KindFloat64, KindDecimal:
		return true
	default:
		return false
	}
}

// Value is the immutable dynamic datum flowing through the engine.
// The zero Value is null.
type Value struct {
	p    any
	kind Kind
}

// Bounds is the payload of a range Value.
type Bounds struct {
	Start  Value
	End    Value
	Closed bool
}

// Pair is one entry of a Dict.
type Pair struct {
	Key   string
	Value Value
}

// Null returns the null Value.
func Null() Value { return Value{} }

// Bool wraps b.
func Bool(b bool) Value { return Value{kind: KindBool, p: b} }

// Int32 wraps i.
func Int32(i int32) Value { return Value{kind: KindInt32, p: i} }

// Int64 wraps i.
func Int64(i int64) Value { return Value{kind: KindInt64, p: i} }

// Int wraps i as an Int64 value.
func Int(i int) Value { return Int64(int64(i)) }

// Float32 wraps f.
func Float32(f float32) Value { return Value{kind: KindFloat32, p: f} }

// Float64 wraps f.
func Float64(f float64) Value { return Value{kind: KindFloat64, p: f} }

// Decimal wraps a copy of r. A nil r is treated as zero.
func Decimal(r *big.Rat) Value {
	d := new(big.Rat)
	if r != nil {
		d.Set(r)
	}
	return Value{kind: KindDecimal, p: d}
}

// ParseDecimal parses s ("12.50", "1/3", "1e-3") into a decimal Value.
func ParseDecimal(s string) (Value, error) {
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return Null(), fmt.Errorf("invalid decimal %q", s)
	}
	return Value{kind: KindDecimal, p: r}, nil
}

// String wraps s.
func String(s string) Value { return Value{kind: KindString, p: s} }

// Date wraps the calendar date of t, normalized to midnight UTC.
func Date(t time.Time) Value {
	y, m, d := t.Date()
	return Value{kind: KindDate, p: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// DateTime wraps t.
func DateTime(t time.Time) Value { return Value{kind: KindDateTime, p: t} }

// Array wraps a copy of vs.
func Array(vs ...Value) Value {
	return Value{kind: KindArray, p: slices.Clone(vs)}
}

// Tuple wraps a copy of vs.
func Tuple(vs ...Value) Value {
	return Value{kind: KindTuple, p: slices.Clone(vs)}
}

// Map wraps the pairs as an ordered dictionary. Later duplicates win but keep
// the position of the first occurrence.
func Map(pairs ...Pair) Value {
	return Value{kind: KindDict, p: NewDict(pairs...)}
}

// FromDict wraps d. Dicts are immutable so no copy is taken.
func FromDict(d *Dict) Value {
	if d == nil {
		d = NewDict()
	}
	return Value{kind: KindDict, p: d}
}

// Enum wraps a reference to an enum choice.
func Enum(choice string) Value { return Value{kind: KindEnum, p: choice} }

// Ref wraps an object reference. A nil object yields null.
func Ref(o Object) Value {
	if o == nil {
		return Null()
	}
	return Value{kind: KindObject, p: o}
}

// Regex wraps a compiled expression. A nil expression yields null.
func Regex(re *regexp.Regexp) Value {
	if re == nil {
		return Null()
	}
	return Value{kind: KindRegex, p: re}
}

// Range wraps the bounds start and end. Closed ranges include end.
func Range(start, end Value, closed bool) Value {
	return Value{kind: KindRange, p: Bounds{Start: start, End: end, Closed: closed}}
}

// Pipe embeds a pipeline as data. A nil pipeline yields null.
func Pipe(p *Pipeline) Value {
	if p == nil {
		return Null()
	}
	return Value{kind: KindPipeline, p: p}
}

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean payload.
func (v Value) AsBool() (bool, bool) {
	b, ok := v.p.(bool)
	return b, ok && v.kind == KindBool
}

// AsString returns the string payload.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.p.(string), true
}

// AsInt returns any integer payload widened to int64.
func (v Value) AsInt() (int64, bool) {
	switch v.kind {
	case KindInt32:
		return int64(v.p.(int32)), true
	case KindInt64:
		return v.p.(int64), true
	default:
		return 0, false
	}
}

// AsFloat returns any integer or float payload as float64.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindInt32:
		return float64(v.p.(int32)), true
	case KindInt64:
		return float64(v.p.(int64)), true
	case KindFloat32:
		return float64(v.p.(float32)), true
	case KindFloat64:
		return v.p.(float64), true
	default:
		return 0, false
	}
}

// AsDecimal returns a copy of the decimal payload.
func (v Value) AsDecimal() (*big.Rat, bool) {
	if v.kind != KindDecimal {
		return nil, false
	}
	return new(big.Rat).Set(v.p.(*big.Rat)), true
}

// AsTime returns the payload of a date or datetime.
func (v Value) AsTime() (time.Time, bool) {
	if v.kind != KindDate && v.kind != KindDateTime {
		return time.Time{}, false
	}
	return v.p.(time.Time), true
}

// AsArray returns a copy of the elements of an array or tuple.
func (v Value) AsArray() ([]Value, bool) {
	if v.kind != KindArray && v.kind != KindTuple {
		return nil, false
	}
	return slices.Clone(v.p.([]Value)), true
}

// Len returns the element count of an array, tuple or dict, the rune count
// of a string, and false otherwise.
func (v Value) Len() (int, bool) {
	switch v.kind {
	case KindArray, KindTuple:
		return len(v.p.([]Value)), true
	case KindDict:
		return v.p.(*Dict).Len(), true
	case KindString:
		return len([]rune(v.p.(string))), true
	default:
		return 0, false
	}
}

// AsDict returns the dictionary payload.
func (v Value) AsDict() (*Dict, bool) {
	if v.kind != KindDict {
		return nil, false
	}
	return v.p.(*Dict), true
}

// AsEnum returns the enum choice name.
func (v Value) AsEnum() (string, bool) {
	if v.kind != KindEnum {
		return "", false
	}
	return v.p.(string), true
}

// AsObject returns the referenced object.
func (v Value) AsObject() (Object, bool) {
	if v.kind != KindObject {
		return nil, false
	}
	return v.p.(Object), true
}

// AsRegex returns the compiled expression.
func (v Value) AsRegex() (*regexp.Regexp, bool) {
	if v.kind != KindRegex {
		return nil, false
	}
	return v.p.(*regexp.Regexp), true
}

// AsRange returns the range bounds.
func (v Value) AsRange() (Bounds, bool) {
	if v.kind != KindRange {
		return Bounds{}, false
	}
	return v.p.(Bounds), true
}

// AsPipeline returns the embedded pipeline.
func (v Value) AsPipeline() (*Pipeline, bool) {
	if v.kind != KindPipeline {
		return nil, false
	}
	return v.p.(*Pipeline), true
}

// String renders v for diagnostics.
func (v Value) String() string {
	var b strings.Builder
	v.write(&b)
	return b.String()
}

func (v Value) write(b *strings.Builder) {
	switch v.kind {
	case KindNull:
		b.WriteString("null")
	case KindBool:
		b.WriteString(strconv.FormatBool(v.p.(bool)))
	case KindInt32, KindInt64:
		i, _ := v.AsInt()
		b.WriteString(strconv.FormatInt(i, 10))
	case KindFloat32:
		b.WriteString(strconv.FormatFloat(float64(v.p.(float32)), 'g', -1, 32))
	case KindFloat64:
		b.WriteString(strconv.FormatFloat(v.p.(float64), 'g', -1, 64))
	case KindDecimal:
		b.WriteString(decimalString(v.p.(*big.Rat)))
	case KindString:
		b.WriteString(strconv.Quote(v.p.(string)))
	case KindDate:
		b.WriteString(v.p.(time.Time).Format(time.DateOnly))
	case KindDateTime:
		b.WriteString(v.p.(time.Time).Format(time.RFC3339Nano))
	case KindArray, KindTuple:
		open, closing := "[", "]"
		if v.kind == KindTuple {
			open, closing = "(", ")"
		}
		b.WriteString(open)
		for i, e := range v.p.([]Value) {
			if i > 0 {
				b.WriteString(", ")
			}
			e.write(b)
		}
		b.WriteString(closing)
	case KindDict:
		b.WriteString("{")
		d := v.p.(*Dict)
		for i, k := range d.keys {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(strconv.Quote(k))
			b.WriteString(": ")
			d.vals[k].write(b)
		}
		b.WriteString("}")
	case KindEnum:
		b.WriteString(".")
		b.WriteString(v.p.(string))
	case KindObject:
		fmt.Fprintf(b, "<%s %p>", v.p.(Object).ModelName(), v.p)
	case KindRegex:
		b.WriteString("/")
		b.WriteString(v.p.(*regexp.Regexp).String())
		b.WriteString("/")
	case KindRange:
		r := v.p.(Bounds)
		r.Start.write(b)
		if r.Closed {
			b.WriteString("...")
		} else {
			b.WriteString("..")
		}
		r.End.write(b)
	case KindPipeline:
		b.WriteString("$")
		b.WriteString(v.p.(*Pipeline).Name())
	}
}

// decimalString renders r exactly when it has a finite decimal expansion of
// reasonable length and as a fraction otherwise.
func decimalString(r *big.Rat) string {
	if r.IsInt() {
		return r.Num().String()
	}
	if prec, exact := r.FloatPrec(); exact {
		return r.FloatString(prec)
	}
	return r.RatString()
}

// MarshalJSON renders v as JSON. Decimals are strings to keep precision;
// objects, regexes and pipelines render their diagnostic form.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.jsonable())
}

func (v Value) jsonable() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool, KindInt32, KindInt64, KindFloat32, KindFloat64, KindString, KindEnum:
		return v.p
	case KindDecimal:
		return decimalString(v.p.(*big.Rat))
	case KindDate:
		return v.p.(time.Time).Format(time.DateOnly)
	case KindDateTime:
		return v.p.(time.Time).Format(time.RFC3339Nano)
	case KindArray, KindTuple:
		src := v.p.([]Value)
		out := make([]any, len(src))
		for i, e := range src {
			out[i] = e.jsonable()
		}
		return out
	case KindDict:
		return v.p.(*Dict)
	case KindRange:
		r := v.p.(Bounds)
		return map[string]any{"start": r.Start.jsonable(), "end": r.End.jsonable(), "closed": r.Closed}
	default:
		return v.String()
	}
}

// Dict is an immutable string-keyed map that remembers insertion order.
type Dict struct {
	vals map[string]Value
	keys []string
}

// NewDict builds a Dict from pairs.
func NewDict(pairs ...Pair) *Dict {
	d := &Dict{vals: make(map[string]Value, len(pairs)), keys: make([]string, 0, len(pairs))}
	for _, p := range pairs {
		if _, dup := d.vals[p.Key]; !dup {
			d.keys = append(d.keys, p.Key)
		}
		d.vals[p.Key] = p.Value
	}
	return d
}

// Get returns the value stored under k.
func (d *Dict) Get(k string) (Value, bool) {
	v, ok := d.vals[k]
	return v, ok
}

// Len returns the number of entries.
func (d *Dict) Len() int { return len(d.keys) }

// Keys returns the keys in insertion order.
func (d *Dict) Keys() []string { return slices.Clone(d.keys) }

// Pairs returns the entries in insertion order.
func (d *Dict) Pairs() []Pair {
	out := make([]Pair, len(d.keys))
	for i, k := range d.keys {
		out[i] = Pair{Key: k, Value: d.vals[k]}
	}
	return out
}

// With returns a copy of d with k set to v.
func (d *Dict) With(k string, v Value) *Dict {
	return NewDict(append(d.Pairs(), Pair{Key: k, Value: v})...)
}

// MarshalJSON renders the dict as a JSON object in insertion order.
func (d *Dict) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range d.keys {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := d.vals[k].MarshalJSON()
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteByte(':')
		b.Write(val)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}
