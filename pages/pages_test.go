package pages_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-bridge/collection"
	"github.com/jrsteele09/go-auth-bridge/collection/memstore"
	apperrors "github.com/jrsteele09/go-auth-bridge/internal/errors"
	"github.com/jrsteele09/go-auth-bridge/pages"
	"github.com/stretchr/testify/require"
)

type testFixture struct {
	ctx     context.Context
	now     time.Time
	service *pages.Service
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	f := &testFixture{
		ctx: context.Background(),
		now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	engine := collection.NewEngine[pages.Page](memstore.New())
	f.service = pages.NewService(engine, pages.WithNowFunc(func() time.Time {
		f.now = f.now.Add(time.Second)
		return f.now
	}))
	return f
}

func TestList_NewestFirstAcrossPages(t *testing.T) {
	f := setupTestFixture(t)

	var created []string
	for i := 0; i < 5; i++ {
		p, err := f.service.Create(f.ctx, "owner-1", pages.CreateRequest{Title: fmt.Sprintf("page %d", i)})
		require.NoError(t, err)
		created = append(created, p.ID)
	}
	_, err := f.service.Create(f.ctx, "owner-2", pages.CreateRequest{Title: "someone else"})
	require.NoError(t, err)

	var seen []string
	cursor := ""
	for {
		page, err := f.service.List(f.ctx, "owner-1", cursor, 2)
		require.NoError(t, err)
		for _, p := range page.Items {
			require.Equal(t, "owner-1", p.OwnerID)
			seen = append(seen, p.ID)
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	require.Equal(t, []string{created[4], created[3], created[2], created[1], created[0]}, seen)
}

func TestList_BadCursor(t *testing.T) {
	f := setupTestFixture(t)
	_, err := f.service.List(f.ctx, "owner-1", "!!not-a-cursor!!", 10)
	require.ErrorIs(t, err, apperrors.ErrInvalidQuery)
}

func TestCreate_Validation(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.service.Create(f.ctx, "owner-1", pages.CreateRequest{})
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = f.service.Create(f.ctx, "", pages.CreateRequest{Title: "x"})
	require.ErrorIs(t, err, apperrors.ErrUnauthenticated)
}

func TestDelete_OnlyOwner(t *testing.T) {
	f := setupTestFixture(t)
	p, err := f.service.Create(f.ctx, "owner-1", pages.CreateRequest{Title: "mine", Image: "key_photo.png"})
	require.NoError(t, err)

	require.ErrorIs(t, f.service.Delete(f.ctx, "owner-2", p.ID), apperrors.ErrForbidden)
	require.NoError(t, f.service.Delete(f.ctx, "owner-1", p.ID))
	require.ErrorIs(t, f.service.Delete(f.ctx, "owner-1", p.ID), apperrors.ErrNotFound)
}
