/*
Package qrymem provides a pure in-memory backend for the query
translator. It keeps deep copies of all documents and supports the
filter, sort, projection and pagination plan features, which makes it
the natural backend for tests and the repl.
*/
package qrymem

import (
	"context"
	"sort"
	"sync"

	"github.com/MongoEngine/eve-mongoengine/dom"
	"github.com/MongoEngine/eve-mongoengine/qry"
	"github.com/mb0/xelf/cor"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Backend holds per-collection document lists guarded by one mutex.
type Backend struct {
	sync.RWMutex
	tables map[string][]bson.M
	uniq   map[string][]string
}

func New() *Backend {
	return &Backend{tables: make(map[string][]bson.M), uniq: make(map[string][]string)}
}

// Index declares unique fields for a collection in storage naming.
// Writes violating uniqueness fail.
func (b *Backend) Index(coll string, keys ...string) {
	b.Lock()
	defer b.Unlock()
	b.uniq[coll] = append(b.uniq[coll], keys...)
}

func (b *Backend) Query(ctx context.Context, coll string, p *qry.Plan) ([]bson.M, error) {
	b.RLock()
	defer b.RUnlock()
	var res []bson.M
	for _, doc := range b.tables[coll] {
		if match(p.Filter, doc) {
			res = append(res, doc)
		}
	}
	orderBy(res, p.Sort)
	if p.Skip > 0 {
		if p.Skip >= int64(len(res)) {
			res = nil
		} else {
			res = res[p.Skip:]
		}
	}
	if p.Limit > 0 && p.Limit < int64(len(res)) {
		res = res[:p.Limit]
	}
	out := make([]bson.M, 0, len(res))
	for _, doc := range res {
		out = append(out, p.Project(clone(doc).(bson.M)))
	}
	return out, nil
}

func (b *Backend) Count(ctx context.Context, coll string, filter bson.M) (int64, error) {
	b.RLock()
	defer b.RUnlock()
	var n int64
	for _, doc := range b.tables[coll] {
		if match(filter, doc) {
			n++
		}
	}
	return n, nil
}

func (b *Backend) Insert(ctx context.Context, coll string, doc bson.M) error {
	b.Lock()
	defer b.Unlock()
	if err := b.checkUniq(coll, doc, nil); err != nil {
		return err
	}
	b.tables[coll] = append(b.tables[coll], clone(doc).(bson.M))
	return nil
}

func (b *Backend) SetFields(ctx context.Context, coll string, id primitive.ObjectID, set bson.M, unset []string) error {
	b.Lock()
	defer b.Unlock()
	doc := b.byID(coll, id)
	if doc == nil {
		return cor.Errorf("no document %s in %s", id.Hex(), coll)
	}
	merged := clone(doc).(bson.M)
	for k, v := range set {
		merged[k] = clone(v)
	}
	for _, k := range unset {
		delete(merged, k)
	}
	if err := b.checkUniq(coll, merged, id[:]); err != nil {
		return err
	}
	for k, v := range merged {
		doc[k] = v
	}
	for _, k := range unset {
		delete(doc, k)
	}
	return nil
}

func (b *Backend) Replace(ctx context.Context, coll string, id primitive.ObjectID, doc bson.M) error {
	b.Lock()
	defer b.Unlock()
	if err := b.checkUniq(coll, doc, id[:]); err != nil {
		return err
	}
	list := b.tables[coll]
	for i, d := range list {
		if oid, ok := d[dom.IDKey].(primitive.ObjectID); ok && oid == id {
			list[i] = clone(doc).(bson.M)
			return nil
		}
	}
	return cor.Errorf("no document %s in %s", id.Hex(), coll)
}

func (b *Backend) Delete(ctx context.Context, coll string, filter bson.M) (int64, error) {
	b.Lock()
	defer b.Unlock()
	list := b.tables[coll]
	if filter == nil {
		delete(b.tables, coll)
		return int64(len(list)), nil
	}
	var n int64
	rest := list[:0]
	for _, doc := range list {
		if match(filter, doc) {
			n++
			continue
		}
		rest = append(rest, doc)
	}
	b.tables[coll] = rest
	return n, nil
}

func (b *Backend) byID(coll string, id primitive.ObjectID) bson.M {
	for _, d := range b.tables[coll] {
		if oid, ok := d[dom.IDKey].(primitive.ObjectID); ok && oid == id {
			return d
		}
	}
	return nil
}

// checkUniq scans for another document holding the same value in any
// declared unique field. The not byte slice excludes the document
// itself on update.
func (b *Backend) checkUniq(coll string, doc bson.M, not []byte) error {
	for _, key := range b.uniq[coll] {
		v, ok := doc[key]
		if !ok || v == nil {
			continue
		}
		for _, d := range b.tables[coll] {
			if not != nil {
				if oid, ok := d[dom.IDKey].(primitive.ObjectID); ok && string(oid[:]) == string(not) {
					continue
				}
			}
			if equal(d[key], v) {
				return cor.Errorf("duplicate value for unique field %s", key)
			}
		}
	}
	return nil
}

func orderBy(docs []bson.M, ords []qry.Ord) {
	if len(ords) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, o := range ords {
			c, ok := compare(docs[i][o.Key], docs[j][o.Key])
			if !ok || c == 0 {
				continue
			}
			if o.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func clone(v interface{}) interface{} {
	switch c := v.(type) {
	case bson.M:
		res := make(bson.M, len(c))
		for k, e := range c {
			res[k] = clone(e)
		}
		return res
	case map[string]interface{}:
		return clone(bson.M(c))
	case bson.A:
		res := make(bson.A, 0, len(c))
		for _, e := range c {
			res = append(res, clone(e))
		}
		return res
	case []interface{}:
		return []interface{}(clone(bson.A(c)).(bson.A))
	}
	return v
}
