package gen

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/MongoEngine/eve-mongoengine/dom"
)

func intPtr(v int) *int         { return &v }
func numPtr(v float64) *float64 { return &v }

func TestMapField(t *testing.T) {
	parent := dom.MustNew("Parent", &dom.Field{Name: "Name", Kind: dom.KindString})
	addr := dom.MustNew("Addr",
		&dom.Field{Name: "City", Kind: dom.KindString, Bits: dom.BitReq},
		&dom.Field{Name: "Zip", Kind: dom.KindString},
	)
	tests := []struct {
		name  string
		field *dom.Field
		want  string
	}{
		{"string", &dom.Field{Name: "A", Kind: dom.KindString, Bits: dom.BitReq | dom.BitUniq,
			MinLen: intPtr(1), MaxLen: intPtr(10)},
			`{"type":"string","nullable":true,"required":true,"unique":true,"minlength":1,"maxlength":10}`},
		{"int bounds", &dom.Field{Name: "B", Kind: dom.KindInt, Min: numPtr(0), Max: numPtr(5)},
			`{"type":"integer","nullable":true,"min":0,"max":5}`},
		{"url is a string", &dom.Field{Name: "C", Kind: dom.KindURL},
			`{"type":"string","nullable":true}`},
		{"long is an integer", &dom.Field{Name: "D", Kind: dom.KindLong},
			`{"type":"integer","nullable":true}`},
		{"decimal is a float", &dom.Field{Name: "E", Kind: dom.KindDecimal},
			`{"type":"float","nullable":true}`},
		{"geopoint is a list", &dom.Field{Name: "F", Kind: dom.KindGeoPoint},
			`{"type":"list","nullable":true}`},
		{"media", &dom.Field{Name: "G", Kind: dom.KindMedia},
			`{"type":"media","nullable":true}`},
		{"unknown degrades to dynamic", &dom.Field{Name: "H", Kind: dom.Kind(9999)},
			`{"type":"dynamic"}`},
		{"choices", &dom.Field{Name: "I", Kind: dom.KindString, Allowed: []interface{}{"a", "b"}},
			`{"type":"string","nullable":true,"allowed":["a","b"]}`},
		{"reference", &dom.Field{Name: "J", Kind: dom.KindRef, Ref: parent},
			`{"type":"objectid","nullable":true,"data_relation":{"resource":"parent","field":"_id","embeddable":true}}`},
		{"embedded document", &dom.Field{Name: "K", Kind: dom.KindDoc, Sub: addr},
			`{"type":"dict","nullable":true,"schema":{"city":{"type":"string","nullable":true,"required":true},"zip":{"type":"string","nullable":true}}}`},
		{"list of ints", &dom.Field{Name: "L", Kind: dom.KindList,
			Elem: &dom.Field{Name: "E", Kind: dom.KindInt}},
			`{"type":"list","nullable":true,"items":{"type":"integer","nullable":true}}`},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := json.Marshal(MapField(test.field, nil))
			require.NoError(t, err)
			require.JSONEq(t, test.want, string(got))
		})
	}
}

func TestSynthesizeBasic(t *testing.T) {
	m := dom.MustNew("Thing",
		&dom.Field{Name: "A", Wire: "a", Kind: dom.KindString, Bits: dom.BitReq},
		&dom.Field{Name: "B", Wire: "b", Kind: dom.KindInt},
	)
	schema, subs, err := Synthesize(m, dom.Settings{}, nil)
	require.NoError(t, err)
	require.Empty(t, subs)
	require.Len(t, schema, 2)
	require.Equal(t, TypeString, schema["a"].Type)
	require.True(t, schema["a"].Required)
	require.Equal(t, TypeInteger, schema["b"].Type)
	// no audit or identity keys in the schema
	for _, key := range []string{"_id", "id", "_created", "_updated", "_etag"} {
		require.NotContains(t, schema, key)
	}
	// but the audit fields exist on the model now
	require.NotNil(t, m.Field(dom.EtagField))
}

func TestSynthesizeIdempotent(t *testing.T) {
	m := dom.MustNew("Thing",
		&dom.Field{Name: "A", Kind: dom.KindString},
		&dom.Field{Name: "Tags", Kind: dom.KindList, Elem: &dom.Field{Name: "T", Kind: dom.KindString}},
	)
	one, _, err := Synthesize(m, dom.Settings{}, nil)
	require.NoError(t, err)
	two, _, err := Synthesize(m, dom.Settings{}, nil)
	require.NoError(t, err)
	j1, err := json.Marshal(one)
	require.NoError(t, err)
	j2, err := json.Marshal(two)
	require.NoError(t, err)
	require.Equal(t, string(j1), string(j2))
}

func TestSynthesizeRejectsCustomPK(t *testing.T) {
	m := dom.MustNew("Thing",
		&dom.Field{Name: "Code", Kind: dom.KindString, Bits: dom.BitPK},
	)
	_, _, err := Synthesize(m, dom.Settings{}, nil)
	require.Error(t, err)
	require.IsType(t, dom.ConfigError(""), err)
}

func TestSynthesizeExcludedFields(t *testing.T) {
	m := dom.MustNew("Thing",
		&dom.Field{Name: "A", Kind: dom.KindString},
		&dom.Field{Name: "Secret", Kind: dom.KindString},
	)
	set := dom.Settings{dom.SetExcludeFields: []string{"secret"}}
	schema, _, err := Synthesize(m, set, nil)
	require.NoError(t, err)
	require.Contains(t, schema, "a")
	require.NotContains(t, schema, "secret")
}

func TestSubResources(t *testing.T) {
	parent := dom.MustNew("Parent", &dom.Field{Name: "Name", Kind: dom.KindString})
	child := dom.MustNew("Child",
		&dom.Field{Name: "Name", Kind: dom.KindString},
		&dom.Field{Name: "R", Wire: "r", Kind: dom.KindRef, Ref: parent},
	)
	set := dom.Settings{"cache": dom.Settings{"ttl": 60}}
	_, subs, err := Synthesize(child, set, nil)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	sub := subs[0]
	require.Equal(t, "parentchild", sub.Name)
	require.Equal(t, "r", sub.Field)
	require.Equal(t, `parent/<regex("[a-f0-9]{24}"):r>/child`, sub.Settings.Str(dom.SetURL))
	// settings are a deep copy, mutating one side must not affect the other
	sub.Settings["cache"].(dom.Settings)["ttl"] = 1
	require.Equal(t, 60, set["cache"].(dom.Settings)["ttl"])
}

func TestRegistryDuplicate(t *testing.T) {
	r := NewRegistry(Options{})
	m := dom.MustNew("Thing", &dom.Field{Name: "A", Kind: dom.KindString})
	_, err := r.Register(m, nil)
	require.NoError(t, err)
	// duplicate registration errors instead of double-injecting audit fields
	n := len(m.Fields)
	_, err = r.Register(m, nil)
	require.Error(t, err)
	require.IsType(t, dom.ConfigError(""), err)
	require.Len(t, m.Fields, n)
}

type traceHooks struct {
	dom.NoHooks
	fetched []string
}

func (h *traceHooks) OnFetchedResource(res string, docs []bson.M) {
	h.fetched = append(h.fetched, res)
}

func TestRegistryWiresSubResourceHooks(t *testing.T) {
	r := NewRegistry(Options{})
	parent := dom.MustNew("Parent", &dom.Field{Name: "Name", Kind: dom.KindString})
	child := dom.MustNew("Child",
		&dom.Field{Name: "R", Kind: dom.KindRef, Ref: parent},
	)
	hooks := &traceHooks{}
	child.Hooks = hooks
	_, err := r.Register(parent, nil)
	require.NoError(t, err)
	_, err = r.Register(child, nil)
	require.NoError(t, err)

	// the model listens under its own name and under the derived sub-resource name
	r.Hub.FetchedResource("child", nil)
	r.Hub.FetchedResource("parentchild", nil)
	require.Equal(t, []string{"child", "parentchild"}, hooks.fetched)
}

func TestRegisterAtomic(t *testing.T) {
	r := NewRegistry(Options{})
	parent := dom.MustNew("Parent", &dom.Field{Name: "Name", Kind: dom.KindString})
	_, err := r.Register(parent, nil)
	require.NoError(t, err)
	taken := dom.MustNew("ParentChild", &dom.Field{Name: "A", Kind: dom.KindString})
	_, err = r.Register(taken, nil)
	require.NoError(t, err)

	// the derived sub-resource name collides, nothing of the batch lands
	child := dom.MustNew("Child",
		&dom.Field{Name: "R", Kind: dom.KindRef, Ref: parent},
	)
	_, err = r.Register(child, nil)
	require.Error(t, err)
	_, err = r.Lookup("child")
	require.ErrorIs(t, err, ErrNoResource)
	require.Equal(t, []string{"parent", "parentchild"}, r.Resources())
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry(Options{})
	parent := dom.MustNew("Parent", &dom.Field{Name: "Name", Kind: dom.KindString})
	child := dom.MustNew("Child",
		&dom.Field{Name: "R", Kind: dom.KindRef, Ref: parent},
	)
	_, err := r.Register(parent, nil)
	require.NoError(t, err)
	_, err = r.Register(child, nil)
	require.NoError(t, err)

	reg, err := r.Lookup("parentchild")
	require.NoError(t, err)
	require.NotNil(t, reg.Parent)
	require.Equal(t, "child", reg.Parent.Name)
	require.Equal(t, "r", reg.Field)

	_, err = r.Lookup("nope")
	require.ErrorIs(t, err, ErrNoResource)

	require.Equal(t, []string{"parent", "child", "parentchild"}, r.Resources())
}

func TestRegistryPreserveCase(t *testing.T) {
	r := NewRegistry(Options{PreserveCase: true})
	m := dom.MustNew("CamelThing", &dom.Field{Name: "A", Kind: dom.KindString})
	reg, err := r.Register(m, nil)
	require.NoError(t, err)
	require.Equal(t, "CamelThing", reg.Name)
}
