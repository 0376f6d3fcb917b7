package qry

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/MongoEngine/eve-mongoengine/dom"
	"github.com/MongoEngine/eve-mongoengine/gen"
	"github.com/mb0/xelf/cor"
	"go.mongodb.org/mongo-driver/bson"
)

// Req carries the query primitives handed over by an api layer for a
// resource fetch. The zero value asks for everything in store order.
type Req struct {
	// MaxResults caps the page size, zero means unlimited.
	MaxResults int
	// Page selects a one-based result page of MaxResults documents.
	Page int
	// Sort holds a raw sort expression in wire naming.
	Sort string
	// Where holds a raw filter expression in wire naming.
	Where string
	// Projection holds a raw json field selection document.
	Projection string
	// IfModifiedSince restricts results to documents changed after
	// the given time when set.
	IfModifiedSince time.Time
}

func parseSort(m *dom.Model, raw string) ([]Ord, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var pairs [][2]interface{}
	if err := json.Unmarshal([]byte(raw), &pairs); err == nil {
		res := make([]Ord, 0, len(pairs))
		for _, p := range pairs {
			key, ok := p[0].(string)
			if !ok {
				return nil, cor.Errorf("%v: sort key %v", ErrBadExpr, p[0])
			}
			dir, ok := p[1].(float64)
			if !ok {
				return nil, cor.Errorf("%v: sort direction %v", ErrBadExpr, p[1])
			}
			res = append(res, Ord{Key: sortKey(m, key), Desc: dir < 0})
		}
		return res, nil
	}
	var res []Ord
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		desc := strings.HasPrefix(part, "-")
		res = append(res, Ord{Key: sortKey(m, strings.TrimPrefix(part, "-")), Desc: desc})
	}
	return res, nil
}

// sortKey resolves logical names to wire names so callers may sort on
// either spelling.
func sortKey(m *dom.Model, key string) string {
	if m.ByWire(key) != nil {
		return key
	}
	return m.WireName(key)
}

// parseProjection fills the plan field selection from a raw json
// document of field names mapped to zero or one. Mixing inclusion and
// exclusion is rejected and the identity and audit fields are always
// delivered, so readers keep a usable integrity token. Inclusion on a
// structured model flips to the exclusion inverse, a storage allow-list
// would truncate nested documents.
func parseProjection(reg *gen.Registration, raw string, p *Plan) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var sel map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &sel); err != nil {
		return cor.Errorf("%v: projection %s", ErrBadExpr, raw)
	}
	var incl, excl []string
	for k, v := range sel {
		on, ok := v.(float64)
		if !ok {
			if b, isb := v.(bool); isb {
				on, ok = 0, true
				if b {
					on = 1
				}
			}
		}
		if !ok {
			return cor.Errorf("%v: projection value for %s", ErrBadExpr, k)
		}
		if reg.Model.ByWire(k) == nil {
			k = reg.Model.WireName(k)
		}
		if on != 0 {
			incl = append(incl, k)
		} else {
			excl = append(excl, k)
		}
	}
	if len(incl) > 0 && len(excl) > 0 {
		return cor.Errorf("%v: mixed projection", ErrBadExpr)
	}
	id := dom.IDKey
	if len(incl) > 0 {
		if reg.Model.Structured() {
			// exclude the declared fields that were not requested
			var inv []string
			for _, f := range reg.Model.Fields {
				w := f.WireKey()
				if f.Synthetic() || f.Identity() || contains(incl, w) {
					continue
				}
				inv = append(inv, w)
			}
			if len(inv) > 0 {
				p.Fields, p.Exclude = inv, true
			}
			return nil
		}
		for _, f := range reg.Model.Fields {
			if f.Synthetic() && !contains(incl, f.WireKey()) {
				incl = append(incl, f.WireKey())
			}
		}
		if !contains(incl, id) {
			incl = append(incl, id)
		}
		p.Fields = incl
		return nil
	}
	// excluding the identity is a no-op, it is always delivered
	excl = remove(excl, id)
	if len(excl) == 0 {
		return nil
	}
	p.Fields, p.Exclude = excl, true
	return nil
}

func contains(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}

func remove(list []string, s string) []string {
	res := list[:0]
	for _, e := range list {
		if e != s {
			res = append(res, e)
		}
	}
	return res
}

// Project trims a document to the planned field selection. Backends
// without native projections use it after filtering.
func (p *Plan) Project(doc bson.M) bson.M {
	if len(p.Fields) == 0 {
		return doc
	}
	res := make(bson.M, len(doc))
	for k, v := range doc {
		in := contains(p.Fields, k)
		if p.Exclude {
			in = !in || k == dom.IDKey
		}
		if in {
			res[k] = v
		}
	}
	return res
}
