/*
Package qry translates resource level read and write requests into store
level plans and executes them against a backend. It owns the wire and
storage naming of documents, audit stamping, integrity tokens, soft
deletes and the lifecycle event dispatch around every operation.
*/
package qry

import (
	"context"
	"time"

	"github.com/MongoEngine/eve-mongoengine/dom"
	"github.com/MongoEngine/eve-mongoengine/gen"
	"github.com/MongoEngine/eve-mongoengine/log"
	"github.com/MongoEngine/eve-mongoengine/vld"
	"github.com/mb0/xelf/cor"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Translator executes resource operations against a backend using the
// schema registry for naming, settings and lifecycle hooks.
type Translator struct {
	Reg  *gen.Registry
	Bend Backend
	Log  log.Logger
}

func New(reg *gen.Registry, bend Backend) *Translator {
	return &Translator{Reg: reg, Bend: bend, Log: log.Root}
}

func (t *Translator) lookup(resource string) (*gen.Registration, error) {
	reg, err := t.Reg.Lookup(resource)
	if err != nil {
		return nil, ErrNotFound
	}
	return reg, nil
}

// Uniquer returns a uniqueness oracle for the resource backed by store
// counts, for use with the validation layer.
func (t *Translator) Uniquer(ctx context.Context, resource string) (vld.Uniquer, error) {
	reg, err := t.lookup(resource)
	if err != nil {
		return nil, err
	}
	return &uniquer{t: t, ctx: ctx, reg: reg}, nil
}

type uniquer struct {
	t   *Translator
	ctx context.Context
	reg *gen.Registration
}

func (u *uniquer) Exists(field string, v interface{}) (bool, error) {
	filter := bson.M{u.reg.Model.WireName(field): v}
	if err := mongotize(u.reg.Model, filter); err != nil {
		if err == errNoMatch {
			return false, nil
		}
		return false, err
	}
	n, err := u.t.Bend.Count(u.ctx, u.reg.Model.Key(), filter)
	return n > 0, err
}

// Find returns one page of documents and the total count of all
// matches. The extra lookup is merged into the parsed filter, it
// carries the parent id constraint for sub-resource requests. Filter
// fields colliding with the extra lookup are rejected.
func (t *Translator) Find(ctx context.Context, resource string, req *Req, extra bson.M) ([]bson.M, int64, error) {
	reg, err := t.lookup(resource)
	if err != nil {
		return nil, 0, err
	}
	if req == nil {
		req = &Req{}
	}
	filter, err := ParseWhere(req.Where)
	if err != nil {
		return nil, 0, err
	}
	if err = checkFilterKeys(reg, filter); err != nil {
		return nil, 0, err
	}
	for k, v := range extra {
		if _, ok := filter[k]; ok {
			return nil, 0, cor.Errorf("%v: filter field %s collides with the resource lookup", ErrBadExpr, k)
		}
		filter[k] = v
	}
	if reg.Settings.Bool(dom.SetSoftDelete) {
		if _, ok := filter[dom.DeletedKey]; !ok {
			filter[dom.DeletedKey] = bson.M{"$ne": true}
		}
	}
	if !req.IfModifiedSince.IsZero() {
		filter[dom.WireMarker+dom.UpdatedField] = bson.M{"$gt": req.IfModifiedSince.UTC()}
	}
	if err = mongotize(reg.Model, filter); err != nil {
		if err == errNoMatch {
			return []bson.M{}, 0, nil
		}
		return nil, 0, err
	}
	plan := &Plan{Filter: filter}
	if plan.Sort, err = parseSort(reg.Model, req.Sort); err != nil {
		return nil, 0, err
	}
	if err = parseProjection(reg, req.Projection, plan); err != nil {
		return nil, 0, err
	}
	if req.MaxResults > 0 {
		plan.Limit = int64(req.MaxResults)
		if req.Page > 1 {
			plan.Skip = int64(req.Page-1) * plan.Limit
		}
	}
	coll := reg.Model.Key()
	total, err := t.Bend.Count(ctx, coll, filter)
	if err != nil {
		t.Log.Error("count failed", "resource", reg.Name, "err", err)
		return nil, 0, opErr("count", reg.Name, err)
	}
	docs, err := t.Bend.Query(ctx, coll, plan)
	if err != nil {
		t.Log.Error("query failed", "resource", reg.Name, "err", err)
		return nil, 0, opErr("find", reg.Name, err)
	}
	for _, doc := range docs {
		Normalize(reg.Model, doc)
	}
	t.Reg.Hub.FetchedResource(reg.Name, docs)
	t.Log.Debug("find", "resource", reg.Name, "n", len(docs), "total", total)
	return docs, total, nil
}

// FindOne returns the single document matching the lookup or
// ErrNotFound. The lookup uses wire naming and honors soft delete. A
// non-nil req contributes its projection.
func (t *Translator) FindOne(ctx context.Context, resource string, lookup bson.M, req *Req) (bson.M, error) {
	reg, err := t.lookup(resource)
	if err != nil {
		return nil, err
	}
	filter := make(bson.M, len(lookup)+1)
	for k, v := range lookup {
		filter[k] = v
	}
	if reg.Settings.Bool(dom.SetSoftDelete) {
		if _, ok := filter[dom.DeletedKey]; !ok {
			filter[dom.DeletedKey] = bson.M{"$ne": true}
		}
	}
	if err = mongotize(reg.Model, filter); err != nil {
		if err == errNoMatch {
			return nil, ErrNotFound
		}
		return nil, err
	}
	plan := &Plan{Filter: filter, Limit: 1}
	if req != nil {
		if err = parseProjection(reg, req.Projection, plan); err != nil {
			return nil, err
		}
	}
	docs, err := t.Bend.Query(ctx, reg.Model.Key(), plan)
	if err != nil {
		t.Log.Error("query failed", "resource", reg.Name, "err", err)
		return nil, opErr("get", reg.Name, err)
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	doc := Normalize(reg.Model, docs[0])
	t.Reg.Hub.FetchedItem(reg.Name, doc)
	return doc, nil
}

// Get is FindOne by identity.
func (t *Translator) Get(ctx context.Context, resource, id string) (bson.M, error) {
	return t.FindOne(ctx, resource, bson.M{dom.IDKey: id}, nil)
}

// Insert stores the given documents and returns their identities in
// order. Each document is mutated in place to carry the assigned
// identity, audit stamps and integrity token. On failure the returned
// error identifies the failed item and all documents before it are
// already stored.
func (t *Translator) Insert(ctx context.Context, resource string, docs ...bson.M) ([]primitive.ObjectID, error) {
	reg, err := t.lookup(resource)
	if err != nil {
		return nil, err
	}
	if err = t.Reg.Hub.Insert(reg.Name, docs); err != nil {
		return nil, opErr("insert", reg.Name, err)
	}
	now := dom.Now()
	coll := reg.Model.Key()
	ids := make([]primitive.ObjectID, 0, len(docs))
	for i, doc := range docs {
		id, ok := asID(doc[dom.IDKey])
		if !ok {
			id = primitive.NewObjectID()
		}
		doc[dom.IDKey] = id
		doc[dom.WireMarker+dom.CreatedField] = now
		applyDefaults(reg.Model, doc)
		stamp(reg.Model, doc, now)
		if err = t.Bend.Insert(ctx, coll, doc); err != nil {
			t.Log.Error("insert failed", "resource", reg.Name, "item", i, "err", err)
			return ids, &OpError{Op: "insert", Resource: reg.Name, Index: i, Err: err}
		}
		ids = append(ids, id)
	}
	t.Reg.Hub.Inserted(reg.Name, docs)
	t.Log.Debug("insert", "resource", reg.Name, "n", len(ids))
	return ids, nil
}

// Update applies a partial change to the identified document and
// returns the full updated document in wire form. The write strategy
// comes from the resource settings: the default writes only the
// changed fields, the resave strategy reloads, merges on logical
// names, re-runs field checks and stores the whole document.
func (t *Translator) Update(ctx context.Context, resource, id string, updates bson.M) (bson.M, error) {
	reg, err := t.lookup(resource)
	if err != nil {
		return nil, err
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	if err = t.Reg.Hub.Update(reg.Name, oid, updates); err != nil {
		return nil, opErr("update", reg.Name, err)
	}
	current, err := t.fetch(ctx, reg, oid)
	if err != nil {
		return nil, err
	}
	now := dom.Now()
	var doc bson.M
	if reg.Settings.Str(dom.SetUpdateStrategy) == dom.StrategyResave {
		doc, err = t.resave(ctx, reg, oid, current, updates, now)
	} else {
		doc, err = t.atomic(ctx, reg, oid, current, updates, now)
	}
	if err != nil {
		return nil, err
	}
	t.Reg.Hub.Updated(reg.Name, doc)
	t.Log.Debug("update", "resource", reg.Name, "id", oid.Hex())
	return doc, nil
}

func (t *Translator) atomic(ctx context.Context, reg *gen.Registration, oid primitive.ObjectID, current, updates bson.M, now time.Time) (bson.M, error) {
	set := bson.M{}
	var unset []string
	for k, v := range updates {
		f := reg.Model.ByWire(k)
		if k == dom.IDKey || (f != nil && f.Synthetic()) {
			continue
		}
		if f == nil && !reg.Model.AllowUnknown {
			continue
		}
		if v == nil {
			unset = append(unset, k)
			delete(current, k)
			continue
		}
		set[k] = v
		current[k] = v
	}
	stamp(reg.Model, current, now)
	// fields pruned as empty must not linger in store either
	for k := range set {
		if _, ok := current[k]; !ok {
			delete(set, k)
			unset = append(unset, k)
		}
	}
	set[dom.WireMarker+dom.UpdatedField] = now
	set[dom.WireMarker+dom.EtagField] = current[dom.WireMarker+dom.EtagField]
	if err := t.Bend.SetFields(ctx, reg.Model.Key(), oid, set, unset); err != nil {
		t.Log.Error("update failed", "resource", reg.Name, "err", err)
		return nil, opErr("update", reg.Name, err)
	}
	return current, nil
}

func (t *Translator) resave(ctx context.Context, reg *gen.Registration, oid primitive.ObjectID, current, updates bson.M, now time.Time) (bson.M, error) {
	logical := Logical(reg.Model, current)
	for k, v := range updates {
		f := reg.Model.ByWire(k)
		if k == dom.IDKey || (f != nil && f.Synthetic()) {
			continue
		}
		if f == nil {
			if reg.Model.AllowUnknown {
				if v == nil {
					delete(logical, k)
				} else {
					logical[k] = v
				}
			}
			continue
		}
		if v == nil {
			delete(logical, f.Key())
			continue
		}
		if f.Check != nil {
			cv, err := f.Check(v)
			if err != nil {
				return nil, cor.Errorf("field %s: %v", f.Key(), err)
			}
			v = cv
		}
		logical[f.Key()] = v
	}
	doc := Wire(reg.Model, logical)
	doc[dom.IDKey] = oid
	applyDefaults(reg.Model, doc)
	stamp(reg.Model, doc, now)
	if err := t.Bend.Replace(ctx, reg.Model.Key(), oid, doc); err != nil {
		t.Log.Error("update failed", "resource", reg.Name, "err", err)
		return nil, opErr("update", reg.Name, err)
	}
	return doc, nil
}

// Replace stores doc as the new content of the identified document,
// preserving the creation stamp. The doc is mutated in place like on
// insert.
func (t *Translator) Replace(ctx context.Context, resource, id string, doc bson.M) (bson.M, error) {
	reg, err := t.lookup(resource)
	if err != nil {
		return nil, err
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	if err = t.Reg.Hub.Replace(reg.Name, oid, doc); err != nil {
		return nil, opErr("replace", reg.Name, err)
	}
	current, err := t.fetch(ctx, reg, oid)
	if err != nil {
		return nil, err
	}
	now := dom.Now()
	doc[dom.IDKey] = oid
	created := dom.WireMarker + dom.CreatedField
	if c, ok := current[created]; ok {
		doc[created] = c
	} else {
		doc[created] = now
	}
	applyDefaults(reg.Model, doc)
	stamp(reg.Model, doc, now)
	if err = t.Bend.Replace(ctx, reg.Model.Key(), oid, doc); err != nil {
		t.Log.Error("replace failed", "resource", reg.Name, "err", err)
		return nil, opErr("replace", reg.Name, err)
	}
	t.Reg.Hub.Replaced(reg.Name, doc)
	t.Log.Debug("replace", "resource", reg.Name, "id", oid.Hex())
	return doc, nil
}

// Remove deletes all documents matching the lookup and returns the
// count. A nil lookup wipes the whole collection without running
// per-document hooks. An empty match returns ErrNotFound. With soft
// delete enabled documents are marked instead of removed and stop
// matching reads. A delete hook veto skips that document, deletion of
// the other matches proceeds and the veto surfaces as the returned
// error.
func (t *Translator) Remove(ctx context.Context, resource string, lookup bson.M) (int64, error) {
	reg, err := t.lookup(resource)
	if err != nil {
		return 0, err
	}
	coll := reg.Model.Key()
	if lookup == nil {
		n, err := t.Bend.Delete(ctx, coll, nil)
		if err != nil {
			t.Log.Error("delete failed", "resource", reg.Name, "err", err)
			return n, opErr("delete", reg.Name, err)
		}
		t.Log.Debug("delete all", "resource", reg.Name, "n", n)
		return n, nil
	}
	filter := make(bson.M, len(lookup)+1)
	for k, v := range lookup {
		filter[k] = v
	}
	soft := reg.Settings.Bool(dom.SetSoftDelete)
	if soft {
		filter[dom.DeletedKey] = bson.M{"$ne": true}
	}
	if err = mongotize(reg.Model, filter); err != nil {
		if err == errNoMatch {
			return 0, ErrNotFound
		}
		return 0, err
	}
	docs, err := t.Bend.Query(ctx, coll, &Plan{Filter: filter})
	if err != nil {
		t.Log.Error("query failed", "resource", reg.Name, "err", err)
		return 0, opErr("delete", reg.Name, err)
	}
	if len(docs) == 0 {
		return 0, ErrNotFound
	}
	now := dom.Now()
	var n int64
	var veto error
	for _, doc := range docs {
		oid, _ := asID(doc[dom.IDKey])
		if err = t.Reg.Hub.Delete(reg.Name, doc); err != nil {
			if veto == nil {
				veto = err
			}
			continue
		}
		if soft {
			stamp(reg.Model, doc, now)
			set := bson.M{
				dom.DeletedKey:                    true,
				dom.WireMarker + dom.UpdatedField: now,
				dom.WireMarker + dom.EtagField:    doc[dom.WireMarker+dom.EtagField],
			}
			err = t.Bend.SetFields(ctx, coll, oid, set, nil)
		} else {
			_, err = t.Bend.Delete(ctx, coll, bson.M{dom.IDKey: oid})
		}
		if err != nil {
			t.Log.Error("delete failed", "resource", reg.Name, "err", err)
			return n, opErr("delete", reg.Name, err)
		}
		n++
		t.Reg.Hub.Deleted(reg.Name, doc)
	}
	if veto != nil {
		return n, opErr("delete", reg.Name, veto)
	}
	t.Log.Debug("delete", "resource", reg.Name, "n", n)
	return n, nil
}

// fetch loads the raw stored document by identity, honoring soft
// delete.
func (t *Translator) fetch(ctx context.Context, reg *gen.Registration, oid primitive.ObjectID) (bson.M, error) {
	filter := bson.M{dom.IDKey: oid}
	if reg.Settings.Bool(dom.SetSoftDelete) {
		filter[dom.DeletedKey] = bson.M{"$ne": true}
	}
	docs, err := t.Bend.Query(ctx, reg.Model.Key(), &Plan{Filter: filter, Limit: 1})
	if err != nil {
		t.Log.Error("query failed", "resource", reg.Name, "err", err)
		return nil, opErr("get", reg.Name, err)
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	return docs[0], nil
}

// stamp normalizes the document, sets the update time and recomputes
// the integrity token over the result.
func stamp(m *dom.Model, doc bson.M, now time.Time) {
	doc[dom.WireMarker+dom.UpdatedField] = now
	Normalize(m, doc)
	doc[dom.WireMarker+dom.EtagField] = Etag(doc)
}

func applyDefaults(m *dom.Model, doc bson.M) {
	for _, f := range m.Fields {
		if f.Default == nil || f.Synthetic() {
			continue
		}
		if _, ok := doc[f.WireKey()]; !ok {
			doc[f.WireKey()] = f.Default()
		}
	}
}

func asID(v interface{}) (primitive.ObjectID, bool) {
	switch c := v.(type) {
	case primitive.ObjectID:
		return c, true
	case string:
		oid, err := primitive.ObjectIDFromHex(c)
		if err == nil {
			return oid, true
		}
	}
	return primitive.ObjectID{}, false
}
