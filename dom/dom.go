package dom

import (
	"strings"
	"time"

	"github.com/mb0/xelf/cor"
)

// Bit is a bit set used for a number of field options.
type Bit uint64

const (
	BitPK Bit = 1 << iota
	BitReq
	BitUniq
	BitAuto // injected by the framework, never part of the generated schema
	BitRO
)

// ConfigError signals a disallowed model shape at registration time. It is fatal to startup
// and never recovered from automatically.
type ConfigError string

func (e ConfigError) Error() string { return string(e) }

func cfgErr(format string, args ...interface{}) error {
	return ConfigError(cor.Errorf(format, args...).Error())
}

// Check validates and possibly coerces a single field value. It backs model-level constraints
// the generic schema cannot express, like url parseability or custom value coercion.
type Check func(v interface{}) (interface{}, error)

// Field describes one attribute of a model.
type Field struct {
	Name string // logical in-code name
	Wire string // wire and storage name, defaults to the logical key
	Kind Kind
	Bits Bit

	MinLen, MaxLen *int
	Min, Max       *float64
	Allowed        []interface{}

	Ref  *Model // target model for ref fields
	Sub  *Model // embedded document model for doc fields
	Elem *Field // element field for list and map fields

	Default func() interface{} // computed at save time when set
	Check   Check              // model-level validator, run on the transient copy

	ord int
}

func (f *Field) Key() string { return strings.ToLower(f.Name) }

// WireKey returns the wire name of the field. It is never empty: an undeclared wire name
// defaults to the logical key.
func (f *Field) WireKey() string {
	if f.Wire == "" {
		return f.Key()
	}
	return f.Wire
}

func (f *Field) Required() bool  { return f.Bits&BitReq != 0 }
func (f *Field) Unique() bool    { return f.Bits&BitUniq != 0 }
func (f *Field) Synthetic() bool { return f.Bits&BitAuto != 0 }

// Identity reports whether the field is the implicit identity field.
func (f *Field) Identity() bool {
	return f.Key() == "id" || f.WireKey() == "_id"
}

// Model represents one entity and its ordered field set.
type Model struct {
	Name string
	// AllowUnknown permits open, dynamic attributes not covered by declared fields.
	AllowUnknown bool
	// Hooks is the model's lifecycle implementation. A nil value means NoHooks.
	Hooks  Lifecycle
	Fields []*Field

	byKey  map[string]*Field
	byWire map[string]*Field
	fixed  bool
}

// New creates a model descriptor with the given fields in declaration order.
func New(name string, fields ...*Field) (*Model, error) {
	m := &Model{Name: name, Fields: fields}
	for i, f := range fields {
		f.ord = i
	}
	if err := m.index(); err != nil {
		return nil, err
	}
	return m, nil
}

// MustNew is New for static model declarations.
func MustNew(name string, fields ...*Field) *Model {
	m, err := New(name, fields...)
	if err != nil {
		panic(err)
	}
	return m
}

func (m *Model) Key() string { return strings.ToLower(m.Name) }

// Field returns the field descriptor for the logical key or nil.
func (m *Model) Field(key string) *Field { return m.byKey[strings.ToLower(key)] }

// ByWire returns the field descriptor for the wire name or nil.
func (m *Model) ByWire(wire string) *Field { return m.byWire[wire] }

// Logical translates a wire name to the logical key. Unknown names map to themselves.
func (m *Model) Logical(wire string) string {
	if f := m.byWire[wire]; f != nil {
		return f.Key()
	}
	return wire
}

// WireName translates a logical key to the wire name. Unknown keys map to themselves.
func (m *Model) WireName(key string) string {
	if f := m.byKey[strings.ToLower(key)]; f != nil {
		return f.WireKey()
	}
	return key
}

// Structured reports whether the model has a field that maps to a structured storage value,
// which changes how inclusion projections must be translated.
func (m *Model) Structured() bool {
	for _, f := range m.Fields {
		switch f.Kind.Base() {
		case KindDoc, KindMap:
			return true
		case KindList:
			if f.Elem != nil && f.Elem.Kind.Base() == KindDoc {
				return true
			}
		}
	}
	return false
}

// PK returns the first field flagged as primary key or nil.
func (m *Model) PK() *Field {
	for _, f := range m.Fields {
		if f.Bits&BitPK != 0 {
			return f
		}
	}
	return nil
}

func (m *Model) index() error {
	m.byKey = make(map[string]*Field, len(m.Fields))
	m.byWire = make(map[string]*Field, len(m.Fields))
	for _, f := range m.Fields {
		if f.Name == "" {
			return cfgErr("model %s: field without name", m.Name)
		}
		key := f.Key()
		if _, ok := m.byKey[key]; ok {
			return cfgErr("model %s: duplicate field %s", m.Name, key)
		}
		wire := f.WireKey()
		if _, ok := m.byWire[wire]; ok {
			return cfgErr("model %s: duplicate wire name %s", m.Name, wire)
		}
		m.byKey[key] = f
		m.byWire[wire] = f
	}
	return nil
}

// Now returns the audit timestamp for save operations: UTC without sub-second part, so wire
// round trips through common date formats stay stable.
func Now() time.Time { return time.Now().UTC().Truncate(time.Second) }
