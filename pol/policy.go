// Package pol provides role based access control over resource operations.
package pol

import (
	"github.com/mb0/xelf/cor"

	"github.com/MongoEngine/eve-mongoengine/dom"
	"github.com/MongoEngine/eve-mongoengine/gen"
)

// Policy allows roles to call a method on a resource or returns an error.
type Policy interface {
	Allow(roles []string, resource, method string) error
}

// Guard polices requests against the resource settings in a registry.
// A resource without allowed roles is open to everyone, otherwise at
// least one of the caller roles, directly or through group membership,
// must be listed. The method must be enabled for the resource.
type Guard struct {
	Reg    *gen.Registry
	groups map[string][]string
}

func New(reg *gen.Registry) *Guard {
	return &Guard{Reg: reg, groups: make(map[string][]string)}
}

// AddMember records that role is a member of group. Membership is
// transitive.
func (g *Guard) AddMember(group, role string) *Guard {
	g.groups[role] = append(g.groups[role], group)
	return g
}

func (g *Guard) Allow(roles []string, resource, method string) error {
	reg, err := g.Reg.Lookup(resource)
	if err != nil {
		return err
	}
	if !methodEnabled(reg.Settings, method) {
		return cor.Errorf("method %s is not enabled on resource %s", method, resource)
	}
	allowed := reg.Settings.Strs(dom.SetAllowedRoles)
	if len(allowed) == 0 {
		return nil
	}
	have := g.expand(roles)
	for _, a := range allowed {
		if have[a] {
			return nil
		}
	}
	return cor.Errorf("roles %v may not %s resource %s", roles, method, resource)
}

func methodEnabled(set dom.Settings, method string) bool {
	for _, m := range set.Strs(dom.SetResourceMethods) {
		if m == method {
			return true
		}
	}
	for _, m := range set.Strs(dom.SetItemMethods) {
		if m == method {
			return true
		}
	}
	return false
}

// expand returns the closure of the given roles over group membership.
func (g *Guard) expand(roles []string) map[string]bool {
	res := make(map[string]bool, len(roles))
	var walk func(r string)
	walk = func(r string) {
		if res[r] {
			return
		}
		res[r] = true
		for _, grp := range g.groups[r] {
			walk(grp)
		}
	}
	for _, r := range roles {
		walk(r)
	}
	return res
}
