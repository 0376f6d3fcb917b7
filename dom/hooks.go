package dom

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Lifecycle is the capability interface for models that observe data-layer events. Models
// embed NoHooks and override the methods they care about; dispatch is a plain interface call.
// Pre-operation methods may return an error to abort the operation, OnDelete in particular
// acts as a per-document authorization veto.
type Lifecycle interface {
	OnFetchedResource(resource string, docs []bson.M)
	OnFetchedItem(resource string, doc bson.M)
	OnInsert(resource string, docs []bson.M) error
	OnInserted(resource string, docs []bson.M)
	OnUpdate(resource string, id primitive.ObjectID, updates bson.M) error
	OnUpdated(resource string, doc bson.M)
	OnReplace(resource string, id primitive.ObjectID, doc bson.M) error
	OnReplaced(resource string, doc bson.M)
	OnDelete(resource string, doc bson.M) error
	OnDeleted(resource string, doc bson.M)
}

// NoHooks is the default no-op lifecycle implementation.
type NoHooks struct{}

func (NoHooks) OnFetchedResource(string, []bson.M)                 {}
func (NoHooks) OnFetchedItem(string, bson.M)                       {}
func (NoHooks) OnInsert(string, []bson.M) error                    { return nil }
func (NoHooks) OnInserted(string, []bson.M)                        {}
func (NoHooks) OnUpdate(string, primitive.ObjectID, bson.M) error  { return nil }
func (NoHooks) OnUpdated(string, bson.M)                           {}
func (NoHooks) OnReplace(string, primitive.ObjectID, bson.M) error { return nil }
func (NoHooks) OnReplaced(string, bson.M)                          {}
func (NoHooks) OnDelete(string, bson.M) error                      { return nil }
func (NoHooks) OnDeleted(string, bson.M)                           {}
