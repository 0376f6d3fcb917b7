package qrymem

import (
	"reflect"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func match(filter, doc bson.M) bool {
	for k, cond := range filter {
		switch k {
		case "$and", "$or":
			subs, ok := cond.([]interface{})
			if !ok {
				return false
			}
			hit := false
			for _, s := range subs {
				sub, ok := asDoc(s)
				if !ok {
					return false
				}
				if match(sub, doc) {
					hit = true
				} else if k == "$and" {
					return false
				}
			}
			if k == "$or" && !hit {
				return false
			}
		default:
			v, exists := doc[k]
			if ops, ok := asDoc(cond); ok && isOps(ops) {
				for op, ov := range ops {
					if !matchOp(op, v, ov, exists) {
						return false
					}
				}
				continue
			}
			if !equal(v, cond) {
				return false
			}
		}
	}
	return true
}

func matchOp(op string, v, cond interface{}, exists bool) bool {
	switch op {
	case "$exists":
		want, _ := cond.(bool)
		return exists == want
	case "$ne":
		return !equal(v, cond)
	case "$in":
		return oneOf(cond, v)
	case "$nin":
		return !oneOf(cond, v)
	case "$gt", "$gte", "$lt", "$lte":
		c, ok := compare(v, cond)
		if !ok {
			return false
		}
		switch op {
		case "$gt":
			return c > 0
		case "$gte":
			return c >= 0
		case "$lt":
			return c < 0
		}
		return c <= 0
	}
	return false
}

func oneOf(list, v interface{}) bool {
	els, ok := list.([]interface{})
	if !ok {
		if a, isa := list.(bson.A); isa {
			els = []interface{}(a)
		} else {
			return false
		}
	}
	for _, e := range els {
		if equal(v, e) {
			return true
		}
	}
	return false
}

func equal(a, b interface{}) bool {
	if c, ok := compare(a, b); ok {
		return c == 0
	}
	return reflect.DeepEqual(a, b)
}

// compare orders two scalar values of compatible type.
func compare(a, b interface{}) (int, bool) {
	switch x := a.(type) {
	case primitive.ObjectID:
		y, ok := b.(primitive.ObjectID)
		if !ok {
			return 0, false
		}
		switch {
		case string(x[:]) < string(y[:]):
			return -1, true
		case x == y:
			return 0, true
		}
		return 1, true
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x == y:
			return 0, true
		}
		return 1, true
	case bool:
		y, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case x == y:
			return 0, true
		case y:
			return -1, true
		}
		return 1, true
	case time.Time:
		y, ok := asTime(b)
		if !ok {
			return 0, false
		}
		switch {
		case x.Before(y):
			return -1, true
		case x.Equal(y):
			return 0, true
		}
		return 1, true
	case primitive.DateTime:
		xt := x.Time()
		y, ok := asTime(b)
		if !ok {
			return 0, false
		}
		switch {
		case xt.Before(y):
			return -1, true
		case xt.Equal(y):
			return 0, true
		}
		return 1, true
	}
	xf, ok := asFloat(a)
	if !ok {
		return 0, false
	}
	yf, ok := asFloat(b)
	if !ok {
		return 0, false
	}
	switch {
	case xf < yf:
		return -1, true
	case xf == yf:
		return 0, true
	}
	return 1, true
}

func asTime(v interface{}) (time.Time, bool) {
	switch c := v.(type) {
	case time.Time:
		return c, true
	case primitive.DateTime:
		return c.Time(), true
	}
	return time.Time{}, false
}

func asFloat(v interface{}) (float64, bool) {
	switch c := v.(type) {
	case int:
		return float64(c), true
	case int32:
		return float64(c), true
	case int64:
		return float64(c), true
	case float32:
		return float64(c), true
	case float64:
		return c, true
	}
	return 0, false
}

func asDoc(v interface{}) (bson.M, bool) {
	switch c := v.(type) {
	case bson.M:
		return c, true
	case map[string]interface{}:
		return bson.M(c), true
	}
	return nil, false
}

func isOps(m bson.M) bool {
	for k := range m {
		return len(k) > 0 && k[0] == '$'
	}
	return false
}
