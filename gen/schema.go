package gen

import (
	"fmt"

	"github.com/MongoEngine/eve-mongoengine/dom"
)

// IDPattern is the canonical identifier wire format matched in sub-resource urls.
const IDPattern = "[a-f0-9]{24}"

// SubResource is a derived registration scoped to one parent document: its document set is
// always filtered by the referencing field.
type SubResource struct {
	// Name composes as <targetResourceName><parentResourceName>.
	Name string
	// Field is the wire name of the referencing field constrained to the parent id.
	Field string
	// Settings is a deep copy of the parent resource settings plus the url pattern.
	Settings dom.Settings
}

// Synthesize builds the generic schema for a model and derives its sub-resource
// registrations. It rejects models with a custom primary key, injects the audit fields and
// skips synthetic, identity and explicitly excluded fields. Synthesizing the same model twice
// yields byte-identical schemas.
func Synthesize(m *dom.Model, set dom.Settings, opts *Options) (Schema, []*SubResource, error) {
	if pk := m.PK(); pk != nil && !pk.Identity() {
		return nil, nil, cfgErr("model %s: custom primary key %s not allowed, the api layer "+
			"only supports the implicit identity field", m.Name, pk.Key())
	}
	if err := m.Fixup(); err != nil {
		return nil, nil, err
	}
	name := opts.ResourceName(m.Name)
	schema := schemaFields(m, opts, set.Strs(dom.SetExcludeFields))
	var subs []*SubResource
	for _, f := range m.Fields {
		// only plain reference fields spawn sub-resources, derived kinds do not
		if f.Kind != dom.KindRef || f.Ref == nil {
			continue
		}
		target := opts.ResourceName(f.Ref.Name)
		ss := set.Clone()
		ss[dom.SetURL] = fmt.Sprintf("%s/<regex(%q):%s>/%s", target, IDPattern, f.WireKey(), name)
		subs = append(subs, &SubResource{
			Name:     target + name,
			Field:    f.WireKey(),
			Settings: ss,
		})
	}
	return schema, subs, nil
}

func cfgErr(format string, args ...interface{}) error {
	return dom.ConfigError(fmt.Sprintf(format, args...))
}
