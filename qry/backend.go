package qry

import (
	"context"
	"fmt"

	"github.com/mb0/xelf/cor"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrNotFound is returned when a lookup matches no document or resource.
var ErrNotFound = cor.Error("not found")

// OpError wraps a store failure with the operation and resource it hit.
// For batch inserts Index identifies the failed item, otherwise it is -1.
type OpError struct {
	Op       string
	Resource string
	Index    int
	Err      error
}

func (e *OpError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("%s %s item %d: %v", e.Op, e.Resource, e.Index, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Resource, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

func opErr(op, res string, err error) *OpError {
	return &OpError{Op: op, Resource: res, Index: -1, Err: err}
}

// Ord describes one sort key in storage naming.
type Ord struct {
	Key  string
	Desc bool
}

// Plan is the store-level form of a single query. Filter keys and sort
// keys use storage names. Fields lists a projection, Exclude flips it
// to an exclusion list. A zero Limit means no limit.
type Plan struct {
	Filter  bson.M
	Sort    []Ord
	Fields  []string
	Exclude bool
	Skip    int64
	Limit   int64
}

// Backend executes plans against a document store. Implementations must
// be safe for concurrent use.
type Backend interface {
	Query(ctx context.Context, coll string, p *Plan) ([]bson.M, error)
	Count(ctx context.Context, coll string, filter bson.M) (int64, error)
	Insert(ctx context.Context, coll string, doc bson.M) error
	SetFields(ctx context.Context, coll string, id primitive.ObjectID, set bson.M, unset []string) error
	Replace(ctx context.Context, coll string, id primitive.ObjectID, doc bson.M) error
	// Delete removes all documents matching filter and returns the count.
	// A nil filter removes every document in the collection.
	Delete(ctx context.Context, coll string, filter bson.M) (int64, error)
}
