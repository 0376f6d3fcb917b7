package qry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/MongoEngine/eve-mongoengine/dom"
)

func postModel(t *testing.T) *dom.Model {
	m := dom.MustNew("Post",
		&dom.Field{Name: "Title", Wire: "title", Kind: dom.KindString, Bits: dom.BitReq},
		&dom.Field{Name: "Tags", Wire: "tags", Kind: dom.KindList,
			Elem: &dom.Field{Name: "E", Kind: dom.KindString}},
		&dom.Field{Name: "Meta", Wire: "meta", Kind: dom.KindDoc,
			Sub: dom.MustNew("Meta", &dom.Field{Name: "City", Kind: dom.KindString})},
	)
	require.NoError(t, m.Fixup())
	return m
}

func TestNormalize(t *testing.T) {
	m := postModel(t)
	oid := primitive.NewObjectID()
	doc := bson.M{
		"_id":      oid,
		"_cls":     "Post",
		"_deleted": false,
		"_etag":    "aa",
		"title":    "hello",
		"tags":     []interface{}{},
		"meta":     bson.M{"city": bson.M{}},
	}
	Normalize(m, doc)
	require.Equal(t, bson.M{"_id": oid, "_etag": "aa", "title": "hello"}, doc)
}

func TestNormalizeNested(t *testing.T) {
	m := postModel(t)
	doc := bson.M{
		"meta": bson.M{"city": "oslo", "old": bson.M{"x": []interface{}{}}},
		"tags": []interface{}{"a", bson.M{}, "b"},
	}
	Normalize(m, doc)
	require.Equal(t, bson.M{
		"meta": bson.M{"city": "oslo"},
		"tags": []interface{}{"a", "b"},
	}, doc)
}

func TestEtagStable(t *testing.T) {
	oid := primitive.NewObjectID()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	a := bson.M{"_id": oid, "title": "x", "_created": now, "n": 3}
	b := bson.M{"n": 3, "_created": now, "title": "x", "_id": oid}
	require.Equal(t, Etag(a), Etag(b))
	require.Len(t, Etag(a), 40)

	// a previous token never feeds the next one
	b["_etag"] = "feedbeef"
	require.Equal(t, Etag(a), Etag(b))

	b["title"] = "y"
	require.NotEqual(t, Etag(a), Etag(b))
}

func TestEtagPrunedEquivalence(t *testing.T) {
	m := postModel(t)
	a := Normalize(m, bson.M{"title": "x", "tags": []interface{}{}})
	b := Normalize(m, bson.M{"title": "x"})
	require.Equal(t, Etag(a), Etag(b))
}

func TestLogicalWire(t *testing.T) {
	m := postModel(t)
	oid := primitive.NewObjectID()
	doc := bson.M{"_id": oid, "title": "x", "_etag": "aa", "stray": 1}
	l := Logical(m, doc)
	require.Equal(t, "x", l["title"])
	require.Equal(t, "aa", l[dom.EtagField])
	require.Equal(t, oid, l["_id"])
	require.NotContains(t, l, "stray")

	w := Wire(m, l)
	require.Equal(t, doc["_id"], w["_id"])
	require.Equal(t, "aa", w["_etag"])
	require.Equal(t, "x", w["title"])
}
