// Package gen derives the generic constraint schema of a resource from its model descriptor
// and synthesizes the registrations the surrounding api framework consumes.
package gen

import (
	"strings"

	"github.com/MongoEngine/eve-mongoengine/dom"
)

// Constraint record type tags.
const (
	TypeString   = "string"
	TypeInteger  = "integer"
	TypeFloat    = "float"
	TypeBoolean  = "boolean"
	TypeDatetime = "datetime"
	TypeObjectID = "objectid"
	TypeDict     = "dict"
	TypeList     = "list"
	TypeMedia    = "media"
	TypeDynamic  = "dynamic"
)

// kindTypes maps base field kinds to constraint record type tags.
var kindTypes = map[dom.Kind]string{
	dom.KindString: TypeString,
	dom.KindInt:    TypeInteger,
	dom.KindFloat:  TypeFloat,
	dom.KindBool:   TypeBoolean,
	dom.KindTime:   TypeDatetime,
	dom.KindBinary: TypeString,
	dom.KindID:     TypeObjectID,
	dom.KindRef:    TypeObjectID,
	dom.KindDoc:    TypeDict,
	dom.KindMap:    TypeDict,
	dom.KindList:   TypeList,
	dom.KindMedia:  TypeMedia,
}

// Relation names the target resource of a reference field. Embeddable relations allow the
// client to request inlined expansion of the referenced document.
type Relation struct {
	Resource   string `json:"resource"`
	Field      string `json:"field"`
	Embeddable bool   `json:"embeddable"`
}

// Rule is the constraint record of one schema field. Absent constraints stay nil and are
// omitted from the serialized form, they are never defaulted to a sentinel.
type Rule struct {
	Type      string        `json:"type,omitempty"`
	Nullable  bool          `json:"nullable,omitempty"`
	Required  bool          `json:"required,omitempty"`
	Unique    bool          `json:"unique,omitempty"`
	Allowed   []interface{} `json:"allowed,omitempty"`
	MinLength *int          `json:"minlength,omitempty"`
	MaxLength *int          `json:"maxlength,omitempty"`
	Min       *float64      `json:"min,omitempty"`
	Max       *float64      `json:"max,omitempty"`
	Schema    Schema        `json:"schema,omitempty"`
	Items     *Rule         `json:"items,omitempty"`
	Relation  *Relation     `json:"data_relation,omitempty"`
}

// Schema maps wire field names to constraint records.
type Schema map[string]*Rule

// Options configure resource naming.
type Options struct {
	// PreserveCase keeps the model type name as resource name instead of folding it to
	// lowercase.
	PreserveCase bool
}

// ResourceName returns the public resource name for a model type name.
func (o *Options) ResourceName(name string) string {
	if o != nil && o.PreserveCase {
		return name
	}
	return strings.ToLower(name)
}

// MapField maps one field descriptor to a constraint record. The function is total: custom
// kinds resolve through their ancestry chain and kinds without a mapping degrade to an
// unconstrained dynamic record. It never fails.
func MapField(f *dom.Field, opts *Options) *Rule {
	base := f.Kind.Base()
	tag, ok := kindTypes[base]
	if !ok {
		return &Rule{Type: TypeDynamic}
	}
	r := &Rule{Type: tag}
	// a null value on the wire unsets the field, so every typed rule is nullable
	r.Nullable = true
	if f.Required() {
		r.Required = true
	}
	if f.Unique() {
		r.Unique = true
	}
	if len(f.Allowed) > 0 {
		r.Allowed = append([]interface{}{}, f.Allowed...)
	}
	r.MinLength, r.MaxLength = f.MinLen, f.MaxLen
	r.Min, r.Max = f.Min, f.Max
	switch base {
	case dom.KindRef:
		if f.Ref != nil {
			r.Relation = &Relation{
				Resource:   opts.ResourceName(f.Ref.Name),
				Field:      "_id",
				Embeddable: true,
			}
		}
	case dom.KindDoc:
		if f.Sub != nil {
			r.Schema = schemaFields(f.Sub, opts, nil)
		}
	case dom.KindMap:
		if f.Elem != nil {
			r.Items = MapField(f.Elem, opts)
		}
	case dom.KindList:
		if f.Elem != nil {
			r.Items = MapField(f.Elem, opts)
		}
	}
	return r
}

// schemaFields assembles the constraint records of all mappable fields, keyed by wire name.
// Synthetic and identity fields never appear, neither do fields on the exclude list.
func schemaFields(m *dom.Model, opts *Options, exclude []string) Schema {
	s := make(Schema, len(m.Fields))
	for _, f := range m.Fields {
		if f.Synthetic() || f.Identity() {
			continue
		}
		if contains(exclude, f.Key()) || contains(exclude, f.WireKey()) {
			continue
		}
		s[f.WireKey()] = MapField(f, opts)
	}
	return s
}

func contains(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}
