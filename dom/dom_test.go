package dom

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func testModel(t *testing.T) *Model {
	t.Helper()
	m, err := New("Invoice",
		&Field{Name: "Number", Wire: "no", Kind: KindString, Bits: BitReq},
		&Field{Name: "Total", Kind: KindFloat},
		&Field{Name: "Homepage", Kind: KindURL, MaxLen: intPtr(64)},
	)
	require.NoError(t, err)
	return m
}

func TestNameRoundTrip(t *testing.T) {
	m := testModel(t)
	require.NoError(t, m.Fixup())
	for _, f := range m.Fields {
		wire := f.WireKey()
		logical := m.Logical(wire)
		require.Equal(t, f.Key(), logical)
		require.Equal(t, wire, m.WireName(logical))
	}
	// unknown names pass through unchanged
	require.Equal(t, "nope", m.Logical("nope"))
	require.Equal(t, "nope", m.WireName("nope"))
}

func TestWireKeyDefaults(t *testing.T) {
	f := &Field{Name: "Total", Kind: KindFloat}
	require.Equal(t, "total", f.WireKey())
	f.Wire = "sum"
	require.Equal(t, "sum", f.WireKey())
}

func TestKindAncestry(t *testing.T) {
	tests := []struct {
		kind Kind
		base Kind
	}{
		{KindString, KindString},
		{KindURL, KindString},
		{KindEmail, KindString},
		{KindLong, KindInt},
		{KindDecimal, KindFloat},
		{KindGeoPoint, KindList},
		{KindPoint, KindDoc},
		{KindSortedList, KindList},
		{KindDynamic, KindDynamic},
	}
	for _, test := range tests {
		require.Equal(t, test.base, test.kind.Base(), "base of %s", test.kind)
	}
	custom := RegisterKind("isbn", KindString)
	require.Equal(t, KindString, custom.Base())
	require.Equal(t, "isbn", custom.String())
	orphan := RegisterKind("weird", custom)
	require.Equal(t, KindString, orphan.Base())
}

func TestFixupInjectsAuditFields(t *testing.T) {
	m := testModel(t)
	n := len(m.Fields)
	require.NoError(t, m.Fixup())
	require.Len(t, m.Fields, n+3)
	for _, name := range []string{CreatedField, UpdatedField, EtagField} {
		f := m.Field(name)
		require.NotNil(t, f, "field %s", name)
		require.True(t, f.Synthetic())
		require.Equal(t, WireMarker+name, f.WireKey())
	}
	// declaration order of user fields is preserved
	require.Equal(t, "number", m.Fields[0].Key())
	require.Equal(t, "total", m.Fields[1].Key())
	// second fixup is a no-op
	require.NoError(t, m.Fixup())
	require.Len(t, m.Fields, n+3)
}

func TestFixupKeepsCompatibleFields(t *testing.T) {
	m, err := New("Note",
		&Field{Name: "Text", Kind: KindString},
		&Field{Name: CreatedField, Kind: KindTime},
	)
	require.NoError(t, err)
	require.NoError(t, m.Fixup())
	require.False(t, m.Field(CreatedField).Synthetic())
	require.True(t, m.Field(UpdatedField).Synthetic())
}

func TestFixupRejectsWrongKind(t *testing.T) {
	m, err := New("Note",
		&Field{Name: "Text", Kind: KindString},
		&Field{Name: UpdatedField, Kind: KindInt},
	)
	require.NoError(t, err)
	err = m.Fixup()
	require.Error(t, err)
	require.IsType(t, ConfigError(""), err)
}

func TestDuplicateFieldNames(t *testing.T) {
	_, err := New("Bad",
		&Field{Name: "A", Kind: KindString},
		&Field{Name: "a", Kind: KindInt},
	)
	require.Error(t, err)
	_, err = New("Bad",
		&Field{Name: "A", Wire: "x", Kind: KindString},
		&Field{Name: "B", Wire: "x", Kind: KindInt},
	)
	require.Error(t, err)
}

func TestStructured(t *testing.T) {
	flat := testModel(t)
	require.False(t, flat.Structured())
	sub := MustNew("Addr", &Field{Name: "City", Kind: KindString})
	m := MustNew("Customer",
		&Field{Name: "Name", Kind: KindString},
		&Field{Name: "Addr", Kind: KindDoc, Sub: sub},
	)
	require.True(t, m.Structured())
	l := MustNew("Order",
		&Field{Name: "Lines", Kind: KindList, Elem: &Field{Name: "Line", Kind: KindDoc, Sub: sub}},
	)
	require.True(t, l.Structured())
}

func TestSettingsUpdate(t *testing.T) {
	s := Settings{
		"cache": Settings{"ttl": 60, "shared": true},
		SetURL:  "invoices",
	}
	s.Update(Settings{
		"cache":       Settings{"ttl": 10},
		SetSoftDelete: true,
	})
	cache, ok := s["cache"].(Settings)
	require.True(t, ok, "nested settings must merge, not be replaced")
	require.Equal(t, 10, cache["ttl"])
	require.Equal(t, true, cache["shared"])
	require.Equal(t, "invoices", s.Str(SetURL))
	require.True(t, s.Bool(SetSoftDelete))
}

func TestSettingsClone(t *testing.T) {
	s := Settings{
		"cache":        Settings{"ttl": 60},
		SetItemMethods: []string{"GET"},
	}
	c := s.Clone()
	c["cache"].(Settings)["ttl"] = 1
	c.Strs(SetItemMethods)[0] = "PUT"
	require.Equal(t, 60, s["cache"].(Settings)["ttl"])
	require.Equal(t, "GET", s.Strs(SetItemMethods)[0])
}
