package qry

import (
	"crypto/sha1"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/MongoEngine/eve-mongoengine/dom"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Logical returns a copy of doc keyed by logical field names.
// Keys without a model field are kept as-is when the model allows
// unknown fields and dropped otherwise.
func Logical(m *dom.Model, doc bson.M) bson.M {
	res := make(bson.M, len(doc))
	for k, v := range doc {
		if f := m.ByWire(k); f != nil {
			res[f.Key()] = v
			continue
		}
		if k == dom.IDKey || m.AllowUnknown {
			res[k] = v
		}
	}
	return res
}

// Wire returns a copy of doc keyed by wire field names.
func Wire(m *dom.Model, doc bson.M) bson.M {
	res := make(bson.M, len(doc))
	for k, v := range doc {
		if f := m.Field(k); f != nil {
			res[f.WireKey()] = v
			continue
		}
		if k == dom.IDKey || m.AllowUnknown {
			res[k] = v
		}
	}
	return res
}

// Normalize strips implementation marker fields and prunes empty list
// and document values so that semantically absent data never differs
// from physically absent data. The doc is mutated in place and returned.
func Normalize(m *dom.Model, doc bson.M) bson.M {
	if doc == nil {
		return nil
	}
	for k, v := range doc {
		if strings.HasPrefix(k, dom.WireMarker) && k != dom.IDKey && m.ByWire(k) == nil {
			delete(doc, k)
			continue
		}
		nv, empty := prune(v)
		if empty {
			delete(doc, k)
			continue
		}
		doc[k] = nv
	}
	return doc
}

func prune(v interface{}) (interface{}, bool) {
	switch c := v.(type) {
	case bson.M:
		for k, e := range c {
			ne, empty := prune(e)
			if empty {
				delete(c, k)
				continue
			}
			c[k] = ne
		}
		return c, len(c) == 0
	case map[string]interface{}:
		return prune(bson.M(c))
	case bson.A:
		res := c[:0]
		for _, e := range c {
			ne, empty := prune(e)
			if !empty {
				res = append(res, ne)
			}
		}
		return res, len(res) == 0
	case []interface{}:
		nv, empty := prune(bson.A(c))
		return []interface{}(nv.(bson.A)), empty
	}
	return v, false
}

// Etag returns the integrity token for a normalized wire document.
// The token is the sha1 digest of a canonical rendering with sorted
// keys, excluding any previous token value.
func Etag(doc bson.M) string {
	var b strings.Builder
	writeCanon(&b, doc, true)
	return fmt.Sprintf("%x", sha1.Sum([]byte(b.String())))
}

func writeCanon(b *strings.Builder, v interface{}, top bool) {
	switch c := v.(type) {
	case nil:
		b.WriteString("null")
	case bson.M:
		keys := make([]string, 0, len(c))
		for k := range c {
			if top && k == dom.WireMarker+dom.EtagField {
				continue
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			fmt.Fprintf(b, "%q:", k)
			writeCanon(b, c[k], false)
		}
		b.WriteByte('}')
	case map[string]interface{}:
		writeCanon(b, bson.M(c), top)
	case bson.A:
		b.WriteByte('[')
		for i, e := range c {
			if i > 0 {
				b.WriteByte(',')
			}
			writeCanon(b, e, false)
		}
		b.WriteByte(']')
	case []interface{}:
		writeCanon(b, bson.A(c), false)
	case string:
		fmt.Fprintf(b, "%q", c)
	case primitive.ObjectID:
		fmt.Fprintf(b, "%q", c.Hex())
	case time.Time:
		fmt.Fprintf(b, "%q", c.UTC().Format(time.RFC3339))
	case primitive.DateTime:
		fmt.Fprintf(b, "%q", c.Time().UTC().Format(time.RFC3339))
	default:
		fmt.Fprintf(b, "%v", c)
	}
}
