/*
Package qrymgo executes translator plans against a live mongodb
database using the official driver.
*/
package qrymgo

import (
	"context"

	"github.com/MongoEngine/eve-mongoengine/dom"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/MongoEngine/eve-mongoengine/qry"
)

// Backend runs plans against one mongodb database.
type Backend struct {
	DB *mongo.Database
}

func New(db *mongo.Database) *Backend { return &Backend{DB: db} }

// Connect dials the given uri and returns a backend on the named
// database.
func Connect(ctx context.Context, uri, name string) (*Backend, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrapf(err, "connect %s", uri)
	}
	return New(client.Database(name)), nil
}

func (b *Backend) Query(ctx context.Context, coll string, p *qry.Plan) ([]bson.M, error) {
	opt := options.Find()
	if len(p.Sort) > 0 {
		sort := make(bson.D, 0, len(p.Sort))
		for _, o := range p.Sort {
			dir := 1
			if o.Desc {
				dir = -1
			}
			sort = append(sort, bson.E{Key: o.Key, Value: dir})
		}
		opt.SetSort(sort)
	}
	if len(p.Fields) > 0 {
		sel := make(bson.M, len(p.Fields))
		for _, f := range p.Fields {
			if p.Exclude {
				sel[f] = 0
			} else {
				sel[f] = 1
			}
		}
		opt.SetProjection(sel)
	}
	if p.Skip > 0 {
		opt.SetSkip(p.Skip)
	}
	if p.Limit > 0 {
		opt.SetLimit(p.Limit)
	}
	cur, err := b.DB.Collection(coll).Find(ctx, orEmpty(p.Filter), opt)
	if err != nil {
		return nil, errors.Wrapf(err, "query %s", coll)
	}
	var docs []bson.M
	if err = cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrapf(err, "decode %s", coll)
	}
	return docs, nil
}

func (b *Backend) Count(ctx context.Context, coll string, filter bson.M) (int64, error) {
	n, err := b.DB.Collection(coll).CountDocuments(ctx, orEmpty(filter))
	if err != nil {
		return 0, errors.Wrapf(err, "count %s", coll)
	}
	return n, nil
}

func (b *Backend) Insert(ctx context.Context, coll string, doc bson.M) error {
	_, err := b.DB.Collection(coll).InsertOne(ctx, doc)
	return errors.Wrapf(err, "insert %s", coll)
}

func (b *Backend) SetFields(ctx context.Context, coll string, id primitive.ObjectID, set bson.M, unset []string) error {
	change := bson.M{}
	if len(set) > 0 {
		change["$set"] = set
	}
	if len(unset) > 0 {
		un := make(bson.M, len(unset))
		for _, k := range unset {
			un[k] = ""
		}
		change["$unset"] = un
	}
	if len(change) == 0 {
		return nil
	}
	res, err := b.DB.Collection(coll).UpdateByID(ctx, id, change)
	if err != nil {
		return errors.Wrapf(err, "update %s", coll)
	}
	if res.MatchedCount == 0 {
		return errors.Errorf("no document %s in %s", id.Hex(), coll)
	}
	return nil
}

func (b *Backend) Replace(ctx context.Context, coll string, id primitive.ObjectID, doc bson.M) error {
	res, err := b.DB.Collection(coll).ReplaceOne(ctx, bson.M{dom.IDKey: id}, doc)
	if err != nil {
		return errors.Wrapf(err, "replace %s", coll)
	}
	if res.MatchedCount == 0 {
		return errors.Errorf("no document %s in %s", id.Hex(), coll)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, coll string, filter bson.M) (int64, error) {
	res, err := b.DB.Collection(coll).DeleteMany(ctx, orEmpty(filter))
	if err != nil {
		return 0, errors.Wrapf(err, "delete %s", coll)
	}
	return res.DeletedCount, nil
}

// the driver rejects a nil filter document
func orEmpty(m bson.M) bson.M {
	if m == nil {
		return bson.M{}
	}
	return m
}
