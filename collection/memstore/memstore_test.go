package memstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-bridge/collection"
	"github.com/jrsteele09/go-auth-bridge/collection/memstore"
	apperrors "github.com/jrsteele09/go-auth-bridge/internal/errors"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func rv(t *testing.T, v any) bson.RawValue {
	t.Helper()
	raw, err := bson.Marshal(bson.D{{Key: "v", Value: v}})
	require.NoError(t, err)
	return bson.Raw(raw).Lookup("v")
}

func idsOf(t *testing.T, raws []bson.Raw) []string {
	t.Helper()
	out := make([]string, 0, len(raws))
	for _, raw := range raws {
		out = append(out, raw.Lookup("_id").StringValue())
	}
	return out
}

func TestStore_UpsertAddsMissingID(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	require.NoError(t, s.Upsert(ctx, "things", "t1", bson.M{"name": "one"}))
	raw, err := s.Get(ctx, "things", "t1")
	require.NoError(t, err)
	require.Equal(t, "t1", raw.Lookup("_id").StringValue())
	require.Equal(t, "one", raw.Lookup("name").StringValue())

	_, err = s.Get(ctx, "other", "t1")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestStore_MixedTypeOrdering(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	docs := []bson.D{
		{{Key: "_id", Value: "bool"}, {Key: "v", Value: true}},
		{{Key: "_id", Value: "date"}, {Key: "v", Value: time.Unix(100, 0)}},
		{{Key: "_id", Value: "string"}, {Key: "v", Value: "abc"}},
		{{Key: "_id", Value: "double"}, {Key: "v", Value: 2.5}},
		{{Key: "_id", Value: "int"}, {Key: "v", Value: int32(2)}},
		{{Key: "_id", Value: "long"}, {Key: "v", Value: int64(3)}},
		{{Key: "_id", Value: "missing"}},
		{{Key: "_id", Value: "null"}, {Key: "v", Value: nil}},
	}
	for _, d := range docs {
		require.NoError(t, s.Upsert(ctx, "mixed", d[0].Value.(string), d))
	}

	got, err := s.Query(ctx, "mixed", collection.StoreQuery{
		Sort: []collection.SortField{
			{Field: "v", Direction: collection.Ascending},
			{Field: "_id", Direction: collection.Descending},
		},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"null", "missing", "int", "double", "long", "string", "bool", "date"}, idsOf(t, got))
}

func TestStore_FilterSemantics(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	require.NoError(t, s.Upsert(ctx, "c", "a", bson.D{{Key: "n", Value: 1}, {Key: "profile", Value: bson.D{{Key: "city", Value: "Leeds"}}}}))
	require.NoError(t, s.Upsert(ctx, "c", "b", bson.D{{Key: "n", Value: 2.0}}))
	require.NoError(t, s.Upsert(ctx, "c", "c", bson.D{{Key: "n", Value: "2"}}))
	require.NoError(t, s.Upsert(ctx, "c", "d", bson.D{}))

	query := func(field string, op collection.Op, v any) []string {
		raws, err := s.Query(ctx, "c", collection.StoreQuery{
			Filters: []collection.Predicate{{Field: field, Op: op, Value: rv(t, v)}},
		})
		require.NoError(t, err)
		return idsOf(t, raws)
	}

	require.Equal(t, []string{"b"}, query("n", collection.Eq, 2))
	require.Equal(t, []string{"a", "b"}, query("n", collection.Lte, int64(2)))
	require.Equal(t, []string{"c"}, query("n", collection.Eq, "2"))
	require.Equal(t, []string{"d"}, query("n", collection.Eq, nil))
	require.Equal(t, []string{"a", "c", "d"}, query("n", collection.Ne, 2))
	require.Equal(t, []string{"a"}, query("profile.city", collection.Eq, "Leeds"))
	require.Empty(t, query("n", collection.Gt, "3"))
}

func TestStore_AfterCursor(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	for i, id := range []string{"p", "q", "r", "s"} {
		require.NoError(t, s.Upsert(ctx, "c", id, bson.D{{Key: "rank", Value: i / 2}}))
	}

	sort := []collection.SortField{
		{Field: "rank", Direction: collection.Ascending},
		{Field: "_id", Direction: collection.Descending},
	}
	all, err := s.Query(ctx, "c", collection.StoreQuery{Sort: sort})
	require.NoError(t, err)
	require.Equal(t, []string{"q", "p", "s", "r"}, idsOf(t, all))

	rest, err := s.Query(ctx, "c", collection.StoreQuery{
		Sort:  sort,
		After: []bson.RawValue{rv(t, 0), rv(t, "p")},
		Limit: 1,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"s"}, idsOf(t, rest))
}

func TestStore_DeleteKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	for _, id := range []string{"1", "2", "3"} {
		require.NoError(t, s.Upsert(ctx, "c", id, bson.D{}))
	}
	require.NoError(t, s.Delete(ctx, "c", "2"))
	require.NoError(t, s.Delete(ctx, "c", "2"))
	require.NoError(t, s.Delete(ctx, "nope", "2"))

	raws, err := s.Query(ctx, "c", collection.StoreQuery{})
	require.NoError(t, err)
	require.Equal(t, []string{"1", "3"}, idsOf(t, raws))
	require.Equal(t, 2, s.Len("c"))
}
