package dom

import "sort"

// Logical names of the framework audit fields. Their wire names carry the leading underscore
// marker that separates framework-owned keys from user fields.
const (
	CreatedField = "created"
	UpdatedField = "updated"
	EtagField    = "etag"
)

// WireMarker prefixes the wire name of injected audit fields.
const WireMarker = "_"

// IDKey is the wire name of the implicit identity field.
const IDKey = WireMarker + "id"

// DeletedKey is the storage marker for soft deleted documents. It is
// internal and never leaves the store layer.
const DeletedKey = WireMarker + "deleted"

type auditField struct {
	name string
	kind Kind
	def  func() interface{}
}

var auditFields = []auditField{
	{CreatedField, KindTime, func() interface{} { return Now() }},
	{UpdatedField, KindTime, func() interface{} { return Now() }},
	{EtagField, KindString, nil},
}

// Fixup ensures the audit fields exist on the model. Predeclared fields must match the
// expected kind exactly, missing ones are injected with the auto bit set and the marker wire
// name. Injection recomputes the full ordered field sequence. Running Fixup on an already
// fixed model is a no-op.
func (m *Model) Fixup() error {
	if m.fixed {
		return nil
	}
	next := len(m.Fields)
	for _, a := range auditFields {
		if f := m.Field(a.name); f != nil {
			if f.Kind != a.kind {
				return cfgErr("model %s: field %s is needed by the api layer but has kind %s, want %s",
					m.Name, a.name, f.Kind, a.kind)
			}
			continue
		}
		m.Fields = append(m.Fields, &Field{
			Name:    a.name,
			Wire:    WireMarker + a.name,
			Kind:    a.kind,
			Bits:    BitAuto,
			Default: a.def,
			ord:     next,
		})
		next++
	}
	sort.SliceStable(m.Fields, func(i, j int) bool { return m.Fields[i].ord < m.Fields[j].ord })
	if err := m.index(); err != nil {
		return err
	}
	m.fixed = true
	return nil
}
