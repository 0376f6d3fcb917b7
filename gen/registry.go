package gen

import (
	"github.com/mb0/xelf/cor"

	"github.com/MongoEngine/eve-mongoengine/dom"
	"github.com/MongoEngine/eve-mongoengine/evt"
)

// ErrNoResource signals a missing resource mapping. Callers treat it as a not-found
// condition, not a failure.
var ErrNoResource = cor.Error("no such resource")

// Registration binds one public resource name to its model, generic schema and settings.
type Registration struct {
	Name     string
	Model    *dom.Model
	Schema   Schema
	Settings dom.Settings
	// AllowUnknown mirrors the model's open-attributes flag into the schema contract.
	AllowUnknown bool
	// Parent and Field are set on sub-resource registrations: documents are implicitly
	// filtered to Field = <parent id>.
	Parent *Registration
	Field  string
}

// Registry owns all resource registrations. It is populated single-threaded at startup and
// read-only while requests are served.
type Registry struct {
	Opts Options
	Hub  *evt.Hub
	regs map[string]*Registration
	keys []string
}

func NewRegistry(opts Options) *Registry {
	return &Registry{Opts: opts, Hub: evt.NewHub(), regs: make(map[string]*Registration)}
}

// Register synthesizes the schema for the model, derives and registers its sub-resources and
// wires the model's lifecycle hooks into the hub. Duplicate resource names are a
// configuration error; the model is never fixed up twice.
func (r *Registry) Register(m *dom.Model, set dom.Settings) (*Registration, error) {
	name := r.Opts.ResourceName(m.Name)
	if _, ok := r.regs[name]; ok {
		return nil, cfgErr("resource %s already registered", name)
	}
	merged := dom.DefaultSettings()
	if set != nil {
		merged.Update(set)
	}
	schema, subs, err := Synthesize(m, merged, &r.Opts)
	if err != nil {
		return nil, err
	}
	reg := &Registration{
		Name:         name,
		Model:        m,
		Schema:       schema,
		Settings:     merged,
		AllowUnknown: m.AllowUnknown,
	}
	all := []*Registration{reg}
	for _, sub := range subs {
		if _, ok := r.regs[sub.Name]; ok {
			return nil, cfgErr("sub-resource %s already registered", sub.Name)
		}
		all = append(all, &Registration{
			Name:         sub.Name,
			Model:        m,
			Schema:       schema,
			Settings:     sub.Settings,
			AllowUnknown: m.AllowUnknown,
			Parent:       reg,
			Field:        sub.Field,
		})
	}
	// commit only once the whole batch checks out
	for _, e := range all {
		r.add(e)
		r.wire(e.Name, m.Hooks)
	}
	return reg, nil
}

func (r *Registry) add(reg *Registration) {
	r.regs[reg.Name] = reg
	r.keys = append(r.keys, reg.Name)
}

// wire connects the model lifecycle to the event slots of the resource. Models without hooks
// get the no-op implementation, so dispatch stays a plain interface call.
func (r *Registry) wire(name string, lf dom.Lifecycle) {
	if lf == nil {
		lf = dom.NoHooks{}
	}
	h := r.Hub.On(name)
	h.FetchedResource = append(h.FetchedResource, lf.OnFetchedResource)
	h.FetchedItem = append(h.FetchedItem, lf.OnFetchedItem)
	h.Insert = append(h.Insert, lf.OnInsert)
	h.Inserted = append(h.Inserted, lf.OnInserted)
	h.Update = append(h.Update, lf.OnUpdate)
	h.Updated = append(h.Updated, lf.OnUpdated)
	h.Replace = append(h.Replace, lf.OnReplace)
	h.Replaced = append(h.Replaced, lf.OnReplaced)
	h.Delete = append(h.Delete, lf.OnDelete)
	h.Deleted = append(h.Deleted, lf.OnDeleted)
}

// Lookup returns the registration for a resource name or ErrNoResource.
func (r *Registry) Lookup(name string) (*Registration, error) {
	reg := r.regs[name]
	if reg == nil {
		return nil, ErrNoResource
	}
	return reg, nil
}

// Resources lists registered resource names in registration order.
func (r *Registry) Resources() []string {
	res := make([]string, len(r.keys))
	copy(res, r.keys)
	return res
}
