// Package vld validates candidate documents against a resource's generic schema and then
// against the model's own field validators, which catch constraints the generic schema
// cannot express.
package vld

import (
	"fmt"
	"net/mail"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/MongoEngine/eve-mongoengine/dom"
	"github.com/MongoEngine/eve-mongoengine/gen"
)

// FieldError is one per-field validation failure. Failures are reported as data for the api
// layer to render, they are never raised as errors that abort the request pipeline.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

type Errors []FieldError

func (es Errors) String() string {
	var b []byte
	for i, e := range es {
		if i > 0 {
			b = append(b, "; "...)
		}
		b = append(b, e.Field...)
		b = append(b, ": "...)
		b = append(b, e.Reason...)
	}
	return string(b)
}

// Uniquer checks whether a field value already exists in the resource's document set. It is
// provided by the data layer so uniqueness can be validated before a write is attempted.
type Uniquer interface {
	Exists(field string, value interface{}) (bool, error)
}

// Validator validates documents for one registered resource.
type Validator struct {
	Reg    *gen.Registration
	Unique Uniquer

	errs Errors
}

func New(reg *gen.Registration) *Validator { return &Validator{Reg: reg} }

// Errors returns the failures accumulated by the last Validate call.
func (v *Validator) Errors() Errors { return v.errs }

func (v *Validator) fail(field, format string, args ...interface{}) {
	v.errs = append(v.errs, FieldError{Field: field, Reason: fmt.Sprintf(format, args...)})
}

// Validate checks the candidate document. For updates the required constraints are relaxed,
// since a partial document legitimately omits fields. The generic schema checks run first
// and on failure the model-level pass is skipped. The input document is never mutated.
func (v *Validator) Validate(doc bson.M, update bool) bool {
	v.errs = nil
	v.generic(doc, update)
	if len(v.errs) > 0 {
		return false
	}
	v.modelPass(doc)
	return len(v.errs) == 0
}

// generic runs the constraint-schema checks: unknown keys, types, lengths, bounds, choices
// and uniqueness.
func (v *Validator) generic(doc bson.M, update bool) {
	schema := v.Reg.Schema
	for key, val := range doc {
		r, ok := schema[key]
		if !ok {
			if !v.Reg.AllowUnknown {
				v.fail(key, "unknown field")
			}
			continue
		}
		v.checkRule(key, r, val)
	}
	if update {
		return
	}
	for key, r := range schema {
		if !r.Required {
			continue
		}
		if val, ok := doc[key]; !ok || val == nil {
			v.fail(key, "required field")
		}
	}
}

func (v *Validator) checkRule(field string, r *gen.Rule, val interface{}) {
	// dynamic fields are exempt from schema-level checks entirely
	if r.Type == gen.TypeDynamic {
		return
	}
	if val == nil {
		if !r.Nullable {
			v.fail(field, "null value not allowed")
		}
		return
	}
	if !v.checkType(field, r, val) {
		return
	}
	if n := length(val); n >= 0 {
		if r.MinLength != nil && n < *r.MinLength {
			v.fail(field, "min length is %d", *r.MinLength)
		}
		if r.MaxLength != nil && n > *r.MaxLength {
			v.fail(field, "max length is %d", *r.MaxLength)
		}
	}
	if f, ok := toFloat(val); ok {
		if r.Min != nil && f < *r.Min {
			v.fail(field, "min value is %v", *r.Min)
		}
		if r.Max != nil && f > *r.Max {
			v.fail(field, "max value is %v", *r.Max)
		}
	}
	if len(r.Allowed) > 0 && !allowed(r.Allowed, val) {
		v.fail(field, "unallowed value %v", val)
	}
	switch r.Type {
	case gen.TypeDict:
		if r.Schema != nil {
			sub, _ := toDoc(val)
			for key, sr := range r.Schema {
				sv, ok := sub[key]
				if !ok {
					if sr.Required {
						v.fail(field+"."+key, "required field")
					}
					continue
				}
				v.checkRule(field+"."+key, sr, sv)
			}
			for key := range sub {
				if _, ok := r.Schema[key]; !ok {
					v.fail(field+"."+key, "unknown field")
				}
			}
		}
	case gen.TypeList:
		if r.Items != nil {
			for i, el := range toList(val) {
				v.checkRule(fmt.Sprintf("%s.%d", field, i), r.Items, el)
			}
		}
	}
	if r.Unique && v.Unique != nil {
		exists, err := v.Unique.Exists(field, val)
		if err == nil && exists {
			v.fail(field, "value %v is not unique", val)
		}
	}
}

func (v *Validator) checkType(field string, r *gen.Rule, val interface{}) bool {
	ok := false
	switch r.Type {
	case gen.TypeString, gen.TypeMedia:
		_, ok = val.(string)
	case gen.TypeInteger:
		switch n := val.(type) {
		case int, int32, int64:
			ok = true
		case float64:
			ok = n == float64(int64(n))
		}
	case gen.TypeFloat:
		switch val.(type) {
		case int, int32, int64, float64:
			ok = true
		}
	case gen.TypeBoolean:
		_, ok = val.(bool)
	case gen.TypeDatetime:
		switch d := val.(type) {
		case time.Time, primitive.DateTime:
			ok = true
		case string:
			_, err := ParseTime(d)
			ok = err == nil
		}
	case gen.TypeObjectID:
		switch id := val.(type) {
		case primitive.ObjectID:
			ok = true
		case string:
			_, err := primitive.ObjectIDFromHex(id)
			ok = err == nil
		}
	case gen.TypeDict:
		_, ok = toDoc(val)
	case gen.TypeList:
		ok = toList(val) != nil
	default:
		ok = true
	}
	if !ok {
		v.fail(field, "want type %s", r.Type)
	}
	return ok
}

// modelPass re-validates on a transient copy keyed by logical names, running the model's own
// per-field validators. Wire keys with no logical counterpart were already handled by the
// generic pass and are dropped here.
func (v *Validator) modelPass(doc bson.M) {
	m := v.Reg.Model
	trans := make(bson.M, len(doc))
	for key, val := range doc {
		f := m.ByWire(key)
		if f == nil {
			continue
		}
		trans[f.Key()] = val
	}
	for key, val := range trans {
		f := m.Field(key)
		if f == nil || val == nil {
			continue
		}
		if err := fieldCheck(f, val); err != nil {
			v.fail(key, "%s", err)
		}
	}
}

// fieldCheck runs the built-in model-level constraint of derived kinds and the field's own
// Check function.
func fieldCheck(f *dom.Field, val interface{}) error {
	switch f.Kind {
	case dom.KindURL:
		if s, ok := val.(string); ok {
			if _, err := url.ParseRequestURI(s); err != nil {
				return fmt.Errorf("invalid url %q", s)
			}
		}
	case dom.KindEmail:
		if s, ok := val.(string); ok {
			if _, err := mail.ParseAddress(s); err != nil {
				return fmt.Errorf("invalid email address %q", s)
			}
		}
	case dom.KindUUID:
		if s, ok := val.(string); ok {
			if _, err := uuid.Parse(s); err != nil {
				return fmt.Errorf("invalid uuid %q", s)
			}
		}
	}
	if f.Check != nil {
		if _, err := f.Check(val); err != nil {
			return err
		}
	}
	return nil
}

// ParseTime accepts the wire date formats of the api layer.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	return time.Parse(time.RFC1123, s)
}

func toDoc(val interface{}) (map[string]interface{}, bool) {
	switch d := val.(type) {
	case bson.M:
		return d, true
	case map[string]interface{}:
		return d, true
	}
	return nil, false
}

func toList(val interface{}) []interface{} {
	switch l := val.(type) {
	case bson.A:
		return l
	case []interface{}:
		return l
	}
	return nil
}

func toFloat(val interface{}) (float64, bool) {
	switch n := val.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func length(val interface{}) int {
	switch l := val.(type) {
	case string:
		return len(l)
	case bson.A:
		return len(l)
	case []interface{}:
		return len(l)
	}
	return -1
}

func allowed(choices []interface{}, val interface{}) bool {
	vf, vn := toFloat(val)
	for _, c := range choices {
		if c == val {
			return true
		}
		if cf, ok := toFloat(c); ok && vn && cf == vf {
			return true
		}
	}
	return false
}
