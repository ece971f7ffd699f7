package collection_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-bridge/collection"
	"github.com/jrsteele09/go-auth-bridge/collection/memstore"
	apperrors "github.com/jrsteele09/go-auth-bridge/internal/errors"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

type item struct {
	ID    string `bson:"_id"`
	Group string `bson:"group"`
	Score int    `bson:"score"`
}

func (item) CollectionName() string { return "items" }
func (i item) DocumentID() string   { return i.ID }

type testFixture struct {
	ctx    context.Context
	store  *memstore.Store
	engine *collection.Engine[item]
}

func setupTestFixture(t *testing.T, n int) *testFixture {
	t.Helper()
	f := &testFixture{
		ctx:   context.Background(),
		store: memstore.New(),
	}
	f.engine = collection.NewEngine[item](f.store)
	for i := 0; i < n; i++ {
		group := "a"
		if i%2 == 1 {
			group = "b"
		}
		require.NoError(t, f.engine.Create(f.ctx, item{ID: fmt.Sprintf("id-%03d", i), Group: group, Score: i % 7}))
	}
	return f
}

func ids(items []item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func TestEngine_GetCreateUpdateDelete(t *testing.T) {
	f := setupTestFixture(t, 0)

	_, err := f.engine.Get(f.ctx, "missing")
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	require.NoError(t, f.engine.Create(f.ctx, item{ID: "x", Group: "a", Score: 1}))
	got, err := f.engine.Get(f.ctx, "x")
	require.NoError(t, err)
	require.Equal(t, item{ID: "x", Group: "a", Score: 1}, *got)

	// Create on an existing id overwrites.
	require.NoError(t, f.engine.Create(f.ctx, item{ID: "x", Group: "b", Score: 2}))
	require.NoError(t, f.engine.Update(f.ctx, item{ID: "x", Group: "c", Score: 3}))
	got, err = f.engine.Get(f.ctx, "x")
	require.NoError(t, err)
	require.Equal(t, item{ID: "x", Group: "c", Score: 3}, *got)
	require.Equal(t, 1, f.store.Len("items"))

	require.NoError(t, f.engine.Delete(f.ctx, "x"))
	require.NoError(t, f.engine.Delete(f.ctx, "x"))
	_, err = f.engine.Get(f.ctx, "x")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestEngine_CreateRequiresID(t *testing.T) {
	f := setupTestFixture(t, 0)
	err := f.engine.Create(f.ctx, item{Group: "a"})
	require.ErrorIs(t, err, apperrors.ErrInvalidQuery)
}

func TestEngine_DefaultLimit(t *testing.T) {
	f := setupTestFixture(t, 150)

	all, err := f.engine.Query(f.ctx, collection.Query{})
	require.NoError(t, err)
	require.Len(t, all, collection.DefaultLimit)

	ordered, err := f.engine.Query(f.ctx, collection.Query{Order: collection.OrderBy("score", collection.Ascending)})
	require.NoError(t, err)
	require.Len(t, ordered, collection.DefaultLimit)

	some, err := f.engine.Query(f.ctx, collection.Query{Limit: 7})
	require.NoError(t, err)
	require.Len(t, some, 7)
}

func TestEngine_LimitIsClamped(t *testing.T) {
	require.Equal(t, collection.DefaultLimit, collection.ClampLimit(0))
	require.Equal(t, collection.DefaultLimit, collection.ClampLimit(-5))
	require.Equal(t, 42, collection.ClampLimit(42))
	require.Equal(t, collection.MaxLimit, collection.ClampLimit(collection.MaxLimit+1))
}

func TestEngine_Filters(t *testing.T) {
	f := setupTestFixture(t, 50)

	got, err := f.engine.Query(f.ctx, collection.Query{
		Filters: []collection.Filter{
			collection.Where("group", collection.Eq, "a"),
			collection.Where("score", collection.Gte, 5),
		},
		Limit: collection.MaxLimit,
	})
	require.NoError(t, err)
	require.NotEmpty(t, got)
	for _, it := range got {
		require.Equal(t, "a", it.Group)
		require.GreaterOrEqual(t, it.Score, 5)
	}

	none, err := f.engine.Query(f.ctx, collection.Query{
		Filters: []collection.Filter{collection.Where("group", collection.Eq, "zzz")},
	})
	require.NoError(t, err)
	require.Empty(t, none)

	notA, err := f.engine.Query(f.ctx, collection.Query{
		Filters: []collection.Filter{collection.Where("group", collection.Ne, "a")},
		Limit:   collection.MaxLimit,
	})
	require.NoError(t, err)
	require.Len(t, notA, 25)
}

func TestEngine_TieBreakIsIDDescending(t *testing.T) {
	f := setupTestFixture(t, 21)

	got, err := f.engine.Query(f.ctx, collection.Query{
		Order: collection.OrderBy("score", collection.Ascending),
		Limit: 3,
	})
	require.NoError(t, err)
	// score 0 is held by id-000, id-007, id-014
	require.Equal(t, []string{"id-014", "id-007", "id-000"}, ids(got))
}

func TestEngine_PaginationMatchesUnboundedQuery(t *testing.T) {
	f := setupTestFixture(t, 253)

	orders := []*collection.Order{
		collection.OrderBy("score", collection.Ascending),
		collection.OrderBy("score", collection.Descending),
		collection.OrderBy("group", collection.Ascending),
		collection.OrderBy(collection.IDField, collection.Ascending),
		collection.OrderBy(collection.IDField, collection.Descending),
	}

	for _, order := range orders {
		t.Run(fmt.Sprintf("%s/%d", order.Field, order.Direction), func(t *testing.T) {
			full, err := f.engine.Query(f.ctx, collection.Query{Order: order, Limit: collection.MaxLimit})
			require.NoError(t, err)
			require.Len(t, full, 253)

			for _, pageSize := range []int{1, 10, 50, 253, 300} {
				var paged []item
				cursor := ""
				for {
					c, err := collection.DecodeCursor(cursor)
					require.NoError(t, err)
					page, err := f.engine.QueryPage(f.ctx, collection.Query{Order: order, Cursor: c, Limit: pageSize})
					require.NoError(t, err)
					paged = append(paged, page.Items...)
					if page.NextCursor == "" {
						break
					}
					cursor = page.NextCursor
				}
				require.Equal(t, ids(full), ids(paged), "page size %d", pageSize)
			}
		})
	}
}

func TestEngine_PaginationWithFilter(t *testing.T) {
	f := setupTestFixture(t, 100)
	order := collection.OrderBy("score", collection.Descending)
	filters := []collection.Filter{collection.Where("group", collection.Eq, "b")}

	full, err := f.engine.Query(f.ctx, collection.Query{Filters: filters, Order: order, Limit: collection.MaxLimit})
	require.NoError(t, err)
	require.Len(t, full, 50)

	var paged []item
	var cursor *collection.Cursor
	for {
		got, err := f.engine.Query(f.ctx, collection.Query{Filters: filters, Order: order, Cursor: cursor, Limit: 8})
		require.NoError(t, err)
		paged = append(paged, got...)
		if len(got) < 8 {
			break
		}
		cursor, err = f.engine.CursorAfter(got[len(got)-1], order.Field)
		require.NoError(t, err)
	}
	require.Equal(t, ids(full), ids(paged))
}

func TestEngine_RejectsUnsafeQueries(t *testing.T) {
	f := setupTestFixture(t, 3)

	cases := map[string]collection.Query{
		"operator field":      {Filters: []collection.Filter{collection.Where("$where", collection.Eq, "1")}},
		"nested operator":     {Filters: []collection.Filter{collection.Where("score.$gt", collection.Eq, 1)}},
		"empty field":         {Filters: []collection.Filter{collection.Where("", collection.Eq, 1)}},
		"unknown operator":    {Filters: []collection.Filter{collection.Where("score", collection.Op("$regex"), ".*")}},
		"operator in order":   {Order: collection.OrderBy("$natural", collection.Ascending)},
		"bad direction":       {Order: &collection.Order{Field: "score", Direction: collection.Direction(9)}},
		"cursor without sort": {Cursor: &collection.Cursor{ID: "id-001"}},
		"cursor without id":   {Order: collection.OrderBy("score", collection.Ascending), Cursor: &collection.Cursor{}},
	}
	for name, q := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.engine.Query(f.ctx, q)
			require.ErrorIs(t, err, apperrors.ErrInvalidQuery)
		})
	}
}

func TestCursor_EncodeDecode(t *testing.T) {
	f := setupTestFixture(t, 0)
	c, err := f.engine.CursorAfter(item{ID: "id-9", Score: 4}, "score")
	require.NoError(t, err)
	require.Equal(t, "id-9", c.ID)

	encoded, err := c.Encode()
	require.NoError(t, err)
	require.NotContains(t, encoded, "=")

	decoded, err := collection.DecodeCursor(encoded)
	require.NoError(t, err)
	require.Equal(t, "id-9", decoded.ID)
	require.Equal(t, int32(4), decoded.Value.Int32())

	empty, err := collection.DecodeCursor("")
	require.NoError(t, err)
	require.Nil(t, empty)

	for _, bad := range []string{"!!!", "AAAA", "e30"} {
		_, err := collection.DecodeCursor(bad)
		require.ErrorIs(t, err, apperrors.ErrInvalidQuery, bad)
	}
}

type failingStore struct {
	collection.Store
}

func (failingStore) Query(context.Context, string, collection.StoreQuery) ([]bson.Raw, error) {
	return nil, errors.New("connection reset")
}

func (failingStore) Upsert(context.Context, string, string, any) error {
	return errors.New("disk full")
}

func TestEngine_StoreFailure(t *testing.T) {
	engine := collection.NewEngine[item](failingStore{Store: memstore.New()})

	_, err := engine.Query(context.Background(), collection.Query{})
	require.ErrorIs(t, err, apperrors.ErrStoreFailure)
	require.Contains(t, err.Error(), "connection reset")

	var se *collection.StoreError
	require.ErrorAs(t, err, &se)
	require.Equal(t, "items", se.Collection)

	err = engine.Create(context.Background(), item{ID: "x"})
	require.ErrorIs(t, err, apperrors.ErrStoreFailure)
	require.Contains(t, err.Error(), "disk full")

	_, err = engine.Get(context.Background(), "x")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
	require.NotErrorIs(t, err, apperrors.ErrStoreFailure)
}

type countingObserver struct {
	lock   sync.Mutex
	ops    map[string]int
	failed int
}

func (o *countingObserver) ObserveStoreOp(op, _ string, _ time.Duration, err error) {
	o.lock.Lock()
	defer o.lock.Unlock()
	o.ops[op]++
	if err != nil {
		o.failed++
	}
}

func TestEngine_Observer(t *testing.T) {
	obs := &countingObserver{ops: map[string]int{}}
	engine := collection.NewEngine[item](memstore.New(), collection.WithObserver(obs))
	ctx := context.Background()

	require.NoError(t, engine.Create(ctx, item{ID: "a"}))
	_, err := engine.Get(ctx, "a")
	require.NoError(t, err)
	_, err = engine.Get(ctx, "missing")
	require.Error(t, err)
	_, err = engine.Query(ctx, collection.Query{})
	require.NoError(t, err)

	require.Equal(t, 1, obs.ops["create"])
	require.Equal(t, 2, obs.ops["get"])
	require.Equal(t, 1, obs.ops["query"])
	require.Equal(t, 0, obs.failed)
}
