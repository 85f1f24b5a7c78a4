package fieldz

import (
	"strconv"
	"strings"
)

// Key is one step of a KeyPath: either a field name or a sequence index.
type Key struct {
	name  string
	index int
	isIdx bool
}

// Field returns a Key addressing a named field.
func Field(name string) Key { return Key{name: name} }

// Index returns a Key addressing a sequence element.
func Index(i int) Key { return Key{index: i, isIdx: true} }

// IsIndex reports whether the key addresses a sequence element.
func (k Key) IsIndex() bool { return k.isIdx }

// FieldName returns the field name, or false for an index key.
func (k Key) FieldName() (string, bool) { return k.name, !k.isIdx }

// Position returns the index, or false for a field key.
func (k Key) Position() (int, bool) { return k.index, k.isIdx }

func (k Key) String() string {
	if k.isIdx {
		return strconv.Itoa(k.index)
	}
	return k.name
}

// KeyPath locates a value within the originating record.
type KeyPath []Key

// Path builds a KeyPath from field names and int indices.
// Elements of any other type are skipped.
func Path(keys ...any) KeyPath {
	p := make(KeyPath, 0, len(keys))
	for _, k := range keys {
		switch k := k.(type) {
		case int:
			p = append(p, Index(k))
		case string:
			p = append(p, Field(k))
		case Key:
			p = append(p, k)
		}
	}
	return p
}

// String renders the path dot separated, e.g. "items.2.name".
func (p KeyPath) String() string {
	parts := make([]string, len(p))
	for i, k := range p {
		parts[i] = k.String()
	}
	return strings.Join(parts, ".")
}

// Equal reports whether both paths address the same location.
func (p KeyPath) Equal(other KeyPath) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

func (p KeyPath) clone() KeyPath {
	if p == nil {
		return nil
	}
	out := make(KeyPath, len(p))
	copy(out, p)
	return out
}

// append returns a new path; the receiver's backing array is never shared.
func (p KeyPath) append(k Key) KeyPath {
	out := make(KeyPath, len(p), len(p)+1)
	copy(out, p)
	return append(out, k)
}

// Intent describes the shape of the surrounding query or response.
type Intent uint8

const (
	IntentSingle Intent = iota
	IntentMany
	IntentNestedMany
)

func (i Intent) String() string {
	switch i {
	case IntentSingle:
		return "single"
	case IntentMany:
		return "many"
	case IntentNestedMany:
		return "nested_many"
	default:
		return "intent(" + strconv.Itoa(int(i)) + ")"
	}
}

// Object is the entity instance a field pipeline evaluates against.
// Implementations must be comparable (typically pointers).
type Object interface {
	ModelName() string
}

// Context is the execution frame threaded through a pipeline.
//
// A Context is a small value: every derivation returns a fresh copy and the
// path is copied on extension, so a holder never observes a later step's
// changes.
type Context struct {
	value  Value
	object Object
	app    *App
	err    error
	path   KeyPath
	intent Intent
}

// ContextOption configures a new Context.
type ContextOption func(*Context)

// WithPath sets the initial path.
func WithPath(p KeyPath) ContextOption {
	return func(c *Context) { c.path = p.clone() }
}

// WithObject binds the entity the pipeline is evaluated against.
func WithObject(o Object) ContextOption {
	return func(c *Context) { c.object = o }
}

// WithIntent sets the request shape.
func WithIntent(i Intent) ContextOption {
	return func(c *Context) { c.intent = i }
}

// WithApp attaches the application state handle used by I/O items.
func WithApp(a *App) ContextOption {
	return func(c *Context) { c.app = a }
}

// NewContext creates the initial frame for an evaluation.
func NewContext(v Value, opts ...ContextOption) Context {
	c := Context{value: v}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Value returns the value being threaded.
func (c Context) Value() Value { return c.value }

// Path returns a copy of the current path.
func (c Context) Path() KeyPath { return c.path.clone() }

// Object returns the bound entity, if any.
func (c Context) Object() (Object, bool) { return c.object, c.object != nil }

// Intent returns the request shape.
func (c Context) Intent() Intent { return c.intent }

// App returns the application state handle, which may be nil.
func (c Context) App() *App { return c.app }

// Err returns the failure recorded by a Modifier, if any.
func (c Context) Err() error { return c.err }

// WithValue returns a copy of c carrying v.
func (c Context) WithValue(v Value) Context {
	c.value = v
	return c
}

// Child returns a copy of c with the path extended by k.
func (c Context) Child(k Key) Context {
	c.path = c.path.append(k)
	return c
}

// ChildValue returns a copy of c with the path extended by k and value v.
func (c Context) ChildValue(k Key, v Value) Context {
	c.path = c.path.append(k)
	c.value = v
	return c
}

func (c Context) withErr(err error) Context {
	c.err = err
	return c
}
