// Package mongostore implements collection.Store on MongoDB.
package mongostore

import (
	"context"
	"errors"

	"github.com/jrsteele09/go-auth-bridge/collection"
	apperrors "github.com/jrsteele09/go-auth-bridge/internal/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

var _ collection.Store = (*Store)(nil)

var operators = map[collection.Op]string{
	collection.Eq:  "$eq",
	collection.Ne:  "$ne",
	collection.Lt:  "$lt",
	collection.Lte: "$lte",
	collection.Gt:  "$gt",
	collection.Gte: "$gte",
}

type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// New wraps an already connected client.
func New(client *mongo.Client, database string) *Store {
	return &Store{
		client: client,
		db:     client.Database(database),
	}
}

// Connect dials uri and verifies the connection with a ping.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, apperrors.Wrapf(err, "[mongostore Connect]")
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, apperrors.Wrapf(err, "[mongostore Connect] ping")
	}
	return New(client, database), nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) Get(ctx context.Context, coll, id string) (bson.Raw, error) {
	raw, err := s.db.Collection(coll).FindOne(ctx, bson.D{{Key: collection.IDField, Value: id}}).Raw()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.Wrapf(apperrors.ErrNotFound, "[mongostore Get] %s/%s", coll, id)
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (s *Store) Upsert(ctx context.Context, coll, id string, doc any) error {
	_, err := s.db.Collection(coll).ReplaceOne(ctx,
		bson.D{{Key: collection.IDField, Value: id}},
		doc,
		options.Replace().SetUpsert(true),
	)
	return err
}

func (s *Store) Delete(ctx context.Context, coll, id string) error {
	_, err := s.db.Collection(coll).DeleteOne(ctx, bson.D{{Key: collection.IDField, Value: id}})
	return err
}

func (s *Store) Query(ctx context.Context, coll string, q collection.StoreQuery) ([]bson.Raw, error) {
	filter, err := BuildFilter(q)
	if err != nil {
		return nil, err
	}

	opts := options.Find()
	if len(q.Sort) > 0 {
		opts.SetSort(BuildSort(q.Sort))
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cur, err := s.db.Collection(coll).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	results := make([]bson.Raw, 0)
	for cur.Next(ctx) {
		raw := make(bson.Raw, len(cur.Current))
		copy(raw, cur.Current)
		results = append(results, raw)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// BuildFilter turns normalised predicates and the cursor tuple into a query
// document. The cursor becomes the usual keyset disjunction:
// (k1 > v1) OR (k1 = v1 AND k2 > v2) ...
func BuildFilter(q collection.StoreQuery) (bson.D, error) {
	and := bson.A{}
	for _, p := range q.Filters {
		op, ok := operators[p.Op]
		if !ok {
			return nil, apperrors.Kind(apperrors.ErrInvalidQuery, "operator %q", p.Op)
		}
		and = append(and, bson.D{{Key: p.Field, Value: bson.D{{Key: op, Value: p.Value}}}})
	}

	if len(q.After) > 0 {
		or := bson.A{}
		for i := 0; i < len(q.After) && i < len(q.Sort); i++ {
			clause := bson.D{}
			for j := 0; j < i; j++ {
				clause = append(clause, bson.E{Key: q.Sort[j].Field, Value: bson.D{{Key: "$eq", Value: q.After[j]}}})
			}
			op := "$gt"
			if q.Sort[i].Direction == collection.Descending {
				op = "$lt"
			}
			clause = append(clause, bson.E{Key: q.Sort[i].Field, Value: bson.D{{Key: op, Value: q.After[i]}}})
			or = append(or, clause)
		}
		and = append(and, bson.D{{Key: "$or", Value: or}})
	}

	if len(and) == 0 {
		return bson.D{}, nil
	}
	return bson.D{{Key: "$and", Value: and}}, nil
}

func BuildSort(keys []collection.SortField) bson.D {
	sort := bson.D{}
	for _, k := range keys {
		dir := 1
		if k.Direction == collection.Descending {
			dir = -1
		}
		sort = append(sort, bson.E{Key: k.Field, Value: dir})
	}
	return sort
}
