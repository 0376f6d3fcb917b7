// Package evt holds the typed per-resource hook tables for data-layer events. Listeners are
// registered explicitly per resource name and invoked directly at the defined extension
// points, so ordering is deterministic and there is no global fan-out.
package evt

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type (
	// DocsFunc observes a fetched or written batch of wire documents.
	DocsFunc func(resource string, docs []bson.M)
	// DocFunc observes a single wire document.
	DocFunc func(resource string, doc bson.M)
	// CheckFunc runs before a batch write and may abort it.
	CheckFunc func(resource string, docs []bson.M) error
	// ChangeFunc runs before a targeted write and may abort it.
	ChangeFunc func(resource string, id primitive.ObjectID, doc bson.M) error
	// VetoFunc authorizes one document operation; an error vetoes it.
	VetoFunc func(resource string, doc bson.M) error
)

// Hooks is the listener table of one resource.
type Hooks struct {
	FetchedResource []DocsFunc
	FetchedItem     []DocFunc
	Insert          []CheckFunc
	Inserted        []DocsFunc
	Update          []ChangeFunc
	Updated         []DocFunc
	Replace         []ChangeFunc
	Replaced        []DocFunc
	Delete          []VetoFunc
	Deleted         []DocFunc
}

// Hub maps resource names to their hook tables. Registration happens single-threaded at
// startup, the hub is read-only while requests are served.
type Hub struct {
	res map[string]*Hooks
}

func NewHub() *Hub { return &Hub{res: make(map[string]*Hooks)} }

// On returns the hook table for the resource, creating it if needed.
func (h *Hub) On(resource string) *Hooks {
	t := h.res[resource]
	if t == nil {
		t = &Hooks{}
		h.res[resource] = t
	}
	return t
}

func (h *Hub) table(resource string) *Hooks {
	if h == nil {
		return nil
	}
	return h.res[resource]
}

func (h *Hub) FetchedResource(resource string, docs []bson.M) {
	if t := h.table(resource); t != nil {
		for _, fn := range t.FetchedResource {
			fn(resource, docs)
		}
	}
}

func (h *Hub) FetchedItem(resource string, doc bson.M) {
	if t := h.table(resource); t != nil {
		for _, fn := range t.FetchedItem {
			fn(resource, doc)
		}
	}
}

func (h *Hub) Insert(resource string, docs []bson.M) error {
	if t := h.table(resource); t != nil {
		for _, fn := range t.Insert {
			if err := fn(resource, docs); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *Hub) Inserted(resource string, docs []bson.M) {
	if t := h.table(resource); t != nil {
		for _, fn := range t.Inserted {
			fn(resource, docs)
		}
	}
}

func (h *Hub) Update(resource string, id primitive.ObjectID, updates bson.M) error {
	if t := h.table(resource); t != nil {
		for _, fn := range t.Update {
			if err := fn(resource, id, updates); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *Hub) Updated(resource string, doc bson.M) {
	if t := h.table(resource); t != nil {
		for _, fn := range t.Updated {
			fn(resource, doc)
		}
	}
}

func (h *Hub) Replace(resource string, id primitive.ObjectID, doc bson.M) error {
	if t := h.table(resource); t != nil {
		for _, fn := range t.Replace {
			if err := fn(resource, id, doc); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *Hub) Replaced(resource string, doc bson.M) {
	if t := h.table(resource); t != nil {
		for _, fn := range t.Replaced {
			fn(resource, doc)
		}
	}
}

// Delete runs the per-document authorization hooks. The first veto aborts that document's
// deletion and is surfaced to the caller.
func (h *Hub) Delete(resource string, doc bson.M) error {
	if t := h.table(resource); t != nil {
		for _, fn := range t.Delete {
			if err := fn(resource, doc); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *Hub) Deleted(resource string, doc bson.M) {
	if t := h.table(resource); t != nil {
		for _, fn := range t.Deleted {
			fn(resource, doc)
		}
	}
}
