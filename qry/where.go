package qry

import (
	"encoding/json"
	"strings"

	"github.com/MongoEngine/eve-mongoengine/dom"
	"github.com/MongoEngine/eve-mongoengine/gen"
	"github.com/MongoEngine/eve-mongoengine/vld"
	"github.com/mb0/xelf/cor"
	"github.com/mb0/xelf/exp"
	"github.com/mb0/xelf/lit"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrBadExpr is returned for filter or sort input that parses in no
// supported syntax or names operators that are not allowed.
var ErrBadExpr = cor.Error("unable to parse expression")

// errNoMatch marks a filter that can never match, a malformed object
// id for an identifier field is the common cause.
var errNoMatch = cor.Error("no possible match")

var whereOps = map[string]string{
	"eq": "", "=": "",
	"ne": "$ne", "!=": "$ne",
	"lt": "$lt", "<": "$lt",
	"le": "$le", "<=": "$le",
	"gt": "$gt", ">": "$gt",
	"ge": "$ge", ">=": "$ge",
	"in": "$in", "ni": "$nin",
}

// canonical operator spellings for the store layer
var storeOps = map[string]string{"$le": "$lte", "$ge": "$gte"}

// ParseWhere parses a filter expression into a storage filter. A JSON
// object in store syntax is tried first, then the portable prefix
// expression syntax. Raw javascript and regex operators are rejected.
func ParseWhere(raw string) (bson.M, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return bson.M{}, nil
	}
	var m bson.M
	if err := json.Unmarshal([]byte(raw), &m); err == nil {
		if err = sanitize(m); err != nil {
			return nil, err
		}
		return m, nil
	}
	el, err := exp.Read(strings.NewReader(raw))
	if err != nil {
		return nil, cor.Errorf("%v: %s", ErrBadExpr, raw)
	}
	return whereEl(el)
}

func sanitize(m bson.M) error {
	for k, v := range m {
		if k == "$where" || k == "$regex" {
			return cor.Errorf("%v: operator %s not allowed", ErrBadExpr, k)
		}
		switch c := v.(type) {
		case map[string]interface{}:
			if err := sanitize(bson.M(c)); err != nil {
				return err
			}
		case bson.M:
			if err := sanitize(c); err != nil {
				return err
			}
		case []interface{}:
			for _, e := range c {
				if d, ok := e.(map[string]interface{}); ok {
					if err := sanitize(bson.M(d)); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

func whereEl(el exp.El) (bson.M, error) {
	d, ok := el.(*exp.Dyn)
	if !ok || len(d.Els) == 0 {
		return nil, cor.Errorf("%v: want expression", ErrBadExpr)
	}
	sym, ok := d.Els[0].(*exp.Sym)
	if !ok {
		return nil, cor.Errorf("%v: want operator symbol", ErrBadExpr)
	}
	switch sym.Name {
	case "and", "or":
		list := make([]interface{}, 0, len(d.Els)-1)
		for _, arg := range d.Els[1:] {
			sub, err := whereEl(arg)
			if err != nil {
				return nil, err
			}
			list = append(list, sub)
		}
		return bson.M{"$" + sym.Name: list}, nil
	}
	op, ok := whereOps[sym.Name]
	if !ok {
		return nil, cor.Errorf("%v: operator %s", ErrBadExpr, sym.Name)
	}
	if len(d.Els) != 3 {
		return nil, cor.Errorf("%v: operator %s wants two arguments", ErrBadExpr, sym.Name)
	}
	fsym, ok := d.Els[1].(*exp.Sym)
	if !ok {
		return nil, cor.Errorf("%v: want field symbol", ErrBadExpr)
	}
	key := strings.TrimPrefix(fsym.Name, ".")
	val, err := litVal(d.Els[2])
	if err != nil {
		return nil, err
	}
	if op == "" {
		return bson.M{key: val}, nil
	}
	return bson.M{key: bson.M{op: val}}, nil
}

func litVal(el exp.El) (interface{}, error) {
	switch v := el.(type) {
	case *exp.Atom:
		return fromLit(v.Lit)
	case *exp.Dyn:
		list := make([]interface{}, 0, len(v.Els))
		for _, e := range v.Els {
			ev, err := litVal(e)
			if err != nil {
				return nil, err
			}
			list = append(list, ev)
		}
		return list, nil
	}
	return nil, cor.Errorf("%v: want literal value", ErrBadExpr)
}

func fromLit(l lit.Lit) (interface{}, error) {
	switch c := l.(type) {
	case lit.Bool:
		return bool(c), nil
	case lit.Character:
		return c.Char(), nil
	case lit.Numeric:
		return c.Num(), nil
	case *lit.List:
		res := make([]interface{}, 0, len(c.Data))
		for _, e := range c.Data {
			v, err := fromLit(e)
			if err != nil {
				return nil, err
			}
			res = append(res, v)
		}
		return res, nil
	}
	if l == lit.Nil {
		return nil, nil
	}
	return l.String(), nil
}

// mongotize rewrites filter values to their storage representation
// based on the field kinds of the model. It returns errNoMatch when an
// identifier value cannot possibly match any stored document.
func mongotize(m *dom.Model, filter bson.M) error {
	for k, v := range filter {
		switch k {
		case "$and", "$or":
			list, ok := v.([]interface{})
			if !ok {
				return cor.Errorf("%v: %s wants a list", ErrBadExpr, k)
			}
			for _, e := range list {
				sub, ok := toFilter(e)
				if !ok {
					return cor.Errorf("%v: %s wants objects", ErrBadExpr, k)
				}
				if err := mongotize(m, sub); err != nil {
					return err
				}
			}
			continue
		}
		kind := dom.KindDynamic
		if k == dom.IDKey {
			kind = dom.KindID
		} else if f := m.ByWire(k); f != nil {
			kind = f.Kind.Base()
		}
		if ops, ok := toFilter(v); ok && isOpDoc(ops) {
			res := make(bson.M, len(ops))
			for op, ov := range ops {
				if c, ok := storeOps[op]; ok {
					op = c
				}
				if op == "$in" || op == "$nin" {
					list, ok := ov.([]interface{})
					if !ok {
						return cor.Errorf("%v: %s wants a list", ErrBadExpr, op)
					}
					for i, e := range list {
						cv, err := coerce(kind, e)
						if err != nil {
							return err
						}
						list[i] = cv
					}
					res[op] = list
					continue
				}
				cv, err := coerce(kind, ov)
				if err != nil {
					return err
				}
				res[op] = cv
			}
			filter[k] = res
			continue
		}
		cv, err := coerce(kind, v)
		if err != nil {
			return err
		}
		filter[k] = cv
	}
	return nil
}

func toFilter(v interface{}) (bson.M, bool) {
	switch c := v.(type) {
	case bson.M:
		return c, true
	case map[string]interface{}:
		return bson.M(c), true
	}
	return nil, false
}

func isOpDoc(m bson.M) bool {
	for k := range m {
		return strings.HasPrefix(k, "$")
	}
	return false
}

func coerce(kind dom.Kind, v interface{}) (interface{}, error) {
	switch kind {
	case dom.KindID, dom.KindRef:
		switch c := v.(type) {
		case primitive.ObjectID:
			return c, nil
		case string:
			oid, err := primitive.ObjectIDFromHex(c)
			if err != nil {
				return nil, errNoMatch
			}
			return oid, nil
		}
		return nil, errNoMatch
	case dom.KindTime:
		if s, ok := v.(string); ok {
			t, err := vld.ParseTime(s)
			if err != nil {
				return nil, cor.Errorf("%v: datetime %s", ErrBadExpr, s)
			}
			return t, nil
		}
	}
	return v, nil
}

// checkFilterKeys rejects filters naming fields outside the model
// unless the model admits unknown fields. Operator keys pass through.
func checkFilterKeys(reg *gen.Registration, filter bson.M) error {
	if reg.AllowUnknown {
		return nil
	}
	for k, v := range filter {
		if strings.HasPrefix(k, "$") {
			list, ok := v.([]interface{})
			if !ok {
				continue
			}
			for _, e := range list {
				if sub, ok := toFilter(e); ok {
					if err := checkFilterKeys(reg, sub); err != nil {
						return err
					}
				}
			}
			continue
		}
		// the identity and the soft delete flag are always filterable
		if k != dom.IDKey && k != dom.DeletedKey && reg.Model.ByWire(k) == nil {
			return cor.Errorf("%v: unknown filter field %s", ErrBadExpr, k)
		}
	}
	return nil
}
