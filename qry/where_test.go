package qry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/MongoEngine/eve-mongoengine/dom"
)

func TestParseWhere(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want bson.M
	}{
		{"empty", "", bson.M{}},
		{"store syntax", `{"title": "hello"}`, bson.M{"title": "hello"}},
		{"store operator", `{"n": {"$gt": 3}}`,
			bson.M{"n": map[string]interface{}{"$gt": float64(3)}}},
		{"portable eq", `(eq title 'hello')`, bson.M{"title": "hello"}},
		{"portable symbol", `(= .title 'hello')`, bson.M{"title": "hello"}},
		{"portable cmp", `(gt n 3)`, bson.M{"n": bson.M{"$gt": float64(3)}}},
		{"portable and", `(and (gt n 1) (lt n 5))`, bson.M{"$and": []interface{}{
			bson.M{"n": bson.M{"$gt": float64(1)}},
			bson.M{"n": bson.M{"$lt": float64(5)}},
		}}},
		{"portable or", `(or (eq a 1) (eq b true))`, bson.M{"$or": []interface{}{
			bson.M{"a": float64(1)},
			bson.M{"b": true},
		}}},
		{"portable in", `(in tag ['a' 'b'])`,
			bson.M{"tag": bson.M{"$in": []interface{}{"a", "b"}}}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := ParseWhere(test.raw)
			require.NoError(t, err)
			require.Equal(t, test.want, got)
		})
	}
}

func TestParseWhereErrs(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"raw javascript", `{"$where": "this.a > 1"}`},
		{"nested javascript", `{"a": {"$where": "x"}}`},
		{"regex", `{"a": {"$regex": "^x"}}`},
		{"unknown operator", `(like title 'x')`},
		{"arity", `(gt n)`},
		{"garbage", `(((`},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := ParseWhere(test.raw)
			require.Error(t, err)
		})
	}
}

func TestMongotize(t *testing.T) {
	m := dom.MustNew("Thing",
		&dom.Field{Name: "At", Wire: "at", Kind: dom.KindTime},
		&dom.Field{Name: "Buddy", Wire: "buddy", Kind: dom.KindRef},
	)
	oid := primitive.NewObjectID()

	filter := bson.M{"buddy": oid.Hex(), "at": bson.M{"$gt": "2024-05-01T00:00:00Z"}}
	require.NoError(t, mongotize(m, filter))
	require.Equal(t, oid, filter["buddy"])
	at := filter["at"].(bson.M)["$gt"]
	require.IsType(t, time.Time{}, at)

	// spelled-out comparison aliases map to store operators
	filter = bson.M{"x": bson.M{"$le": 3, "$ge": 1}}
	require.NoError(t, mongotize(m, filter))
	require.Equal(t, bson.M{"$lte": 3, "$gte": 1}, filter["x"])

	// a broken identifier can never match
	err := mongotize(m, bson.M{"_id": "nope"})
	require.Equal(t, errNoMatch, err)
	err = mongotize(m, bson.M{"buddy": "nope"})
	require.Equal(t, errNoMatch, err)
}
