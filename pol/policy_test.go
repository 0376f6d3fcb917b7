package pol

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MongoEngine/eve-mongoengine/dom"
	"github.com/MongoEngine/eve-mongoengine/gen"
)

func testGuard(t *testing.T) *Guard {
	reg := gen.NewRegistry(gen.Options{})
	open := dom.MustNew("Note", &dom.Field{Name: "Text", Kind: dom.KindString})
	_, err := reg.Register(open, nil)
	require.NoError(t, err)
	locked := dom.MustNew("Audit", &dom.Field{Name: "Text", Kind: dom.KindString})
	_, err = reg.Register(locked, dom.Settings{dom.SetAllowedRoles: []string{"admin"}})
	require.NoError(t, err)
	return New(reg)
}

func TestGuardOpenResource(t *testing.T) {
	g := testGuard(t)
	require.NoError(t, g.Allow(nil, "note", "GET"))
	require.NoError(t, g.Allow([]string{"guest"}, "note", "PATCH"))
	require.Error(t, g.Allow(nil, "note", "TRACE"))
	require.Error(t, g.Allow(nil, "nope", "GET"))
}

func TestGuardRoles(t *testing.T) {
	g := testGuard(t)
	require.Error(t, g.Allow(nil, "audit", "GET"))
	require.Error(t, g.Allow([]string{"guest"}, "audit", "GET"))
	require.NoError(t, g.Allow([]string{"admin"}, "audit", "GET"))

	// ops are admins by membership
	g.AddMember("admin", "ops")
	require.NoError(t, g.Allow([]string{"ops"}, "audit", "DELETE"))
}
