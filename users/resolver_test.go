package users_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-bridge/collection"
	"github.com/jrsteele09/go-auth-bridge/collection/memstore"
	apperrors "github.com/jrsteele09/go-auth-bridge/internal/errors"
	"github.com/jrsteele09/go-auth-bridge/users"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type testFixture struct {
	ctx      context.Context
	store    *memstore.Store
	accounts *collection.Engine[users.Account]
	resolver *users.Resolver
}

func setupTestFixture(t *testing.T, store collection.Store) *testFixture {
	t.Helper()
	mem := memstore.New()
	if store == nil {
		store = mem
	}
	accounts := collection.NewEngine[users.Account](store)
	return &testFixture{
		ctx:      context.Background(),
		store:    mem,
		accounts: accounts,
		resolver: users.NewResolver(accounts, users.WithNowFunc(func() time.Time { return fixedNow })),
	}
}

func (f *testFixture) all(t *testing.T) []users.Account {
	t.Helper()
	all, err := f.accounts.Query(f.ctx, collection.Query{Limit: collection.MaxLimit})
	require.NoError(t, err)
	return all
}

func TestResolveOrCreate_NewSubjectCreatesOneActiveAccount(t *testing.T) {
	f := setupTestFixture(t, nil)

	account, created, err := f.resolver.ResolveOrCreate(f.ctx, "google", "g-1", users.Profile{
		Name:    "Ada",
		Email:   "Ada@Example.com",
		Picture: "https://cdn.example/ada.png",
	})
	require.NoError(t, err)
	require.True(t, created)
	require.True(t, account.Active)
	require.NotEmpty(t, account.ID)
	require.Equal(t, "Ada", account.Name)
	require.Equal(t, "ada@example.com", account.Email)
	require.Equal(t, "https://cdn.example/ada.png", account.Picture)
	require.Equal(t, fixedNow, account.CreatedAt)

	subject, ok := account.Subject("google")
	require.True(t, ok)
	require.Equal(t, "g-1", subject)

	stored := f.all(t)
	require.Len(t, stored, 1)
	require.Equal(t, account.ID, stored[0].ID)
	require.Equal(t, "g-1", stored[0].Identities["google"])
}

func TestResolveOrCreate_ExistingSubjectIsReused(t *testing.T) {
	f := setupTestFixture(t, nil)

	first, created, err := f.resolver.ResolveOrCreate(f.ctx, "google", "g-1", users.Profile{Name: "Ada"})
	require.NoError(t, err)
	require.True(t, created)

	again, created, err := f.resolver.ResolveOrCreate(f.ctx, "google", "g-1", users.Profile{Name: "Someone Else"})
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, again.ID)
	require.Equal(t, "Ada", again.Name)
	require.Len(t, f.all(t), 1)

	// Same subject at another provider is a different identity.
	other, created, err := f.resolver.ResolveOrCreate(f.ctx, "github", "g-1", users.Profile{Name: "Ada"})
	require.NoError(t, err)
	require.True(t, created)
	require.NotEqual(t, first.ID, other.ID)
	require.Len(t, f.all(t), 2)
}

func TestResolveOrCreate_IDsAreTimeOrdered(t *testing.T) {
	f := setupTestFixture(t, nil)
	var last string
	for i := 0; i < 5; i++ {
		a, _, err := f.resolver.ResolveOrCreate(f.ctx, "google", fmt.Sprintf("s-%d", i), users.Profile{})
		require.NoError(t, err)
		require.Greater(t, a.ID, last)
		last = a.ID
		time.Sleep(2 * time.Millisecond)
	}
}

func TestResolveOrCreate_RejectsBadInput(t *testing.T) {
	f := setupTestFixture(t, nil)

	_, _, err := f.resolver.ResolveOrCreate(f.ctx, "google", "", users.Profile{})
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, _, err = f.resolver.ResolveOrCreate(f.ctx, "$where", "x", users.Profile{})
	require.ErrorIs(t, err, apperrors.ErrInvalidQuery)
}

// racingStore holds every caller at the lookup and again after its write so
// that both concurrent logins miss the lookup and both writes land before
// either caller re-reads.
type racingStore struct {
	collection.Store
	lookups sync.WaitGroup
	writes  sync.WaitGroup
	queries atomic.Int32
}

func (s *racingStore) Query(ctx context.Context, coll string, q collection.StoreQuery) ([]bson.Raw, error) {
	if len(q.Sort) == 0 {
		res, err := s.Store.Query(ctx, coll, q)
		s.lookups.Done()
		s.lookups.Wait()
		return res, err
	}
	s.queries.Add(1)
	return s.Store.Query(ctx, coll, q)
}

func (s *racingStore) Upsert(ctx context.Context, coll, id string, doc any) error {
	err := s.Store.Upsert(ctx, coll, id, doc)
	s.writes.Done()
	s.writes.Wait()
	return err
}

func TestResolveOrCreate_ConcurrentFirstLoginsConverge(t *testing.T) {
	racing := &racingStore{Store: memstore.New()}
	racing.lookups.Add(2)
	racing.writes.Add(2)
	f := setupTestFixture(t, racing)

	var wg sync.WaitGroup
	results := make([]*users.Account, 2)
	created := make([]bool, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], created[i], errs[i] = f.resolver.ResolveOrCreate(f.ctx, "google", "same-sub", users.Profile{Name: "Ada"})
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	require.Equal(t, results[0].ID, results[1].ID)
	require.NotEqual(t, created[0], created[1])
	require.Equal(t, int32(2), racing.queries.Load())

	remaining, err := racing.Store.Query(f.ctx, users.CollectionName, collection.StoreQuery{})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.Equal(t, results[0].ID, remaining[0].Lookup("_id").StringValue())
}

// interleavingStore runs afterLookup once, right after the first unordered
// query returns, to simulate a change landing between lookup and login write.
type interleavingStore struct {
	collection.Store
	once        sync.Once
	afterLookup func()
}

func (s *interleavingStore) Query(ctx context.Context, coll string, q collection.StoreQuery) ([]bson.Raw, error) {
	res, err := s.Store.Query(ctx, coll, q)
	if len(q.Sort) == 0 && s.afterLookup != nil {
		s.once.Do(s.afterLookup)
	}
	return res, err
}

func TestResolveOrCreate_LoginDoesNotUndoConcurrentChanges(t *testing.T) {
	t.Run("deactivated after lookup", func(t *testing.T) {
		store := &interleavingStore{Store: memstore.New()}
		f := setupTestFixture(t, store)
		account, _, err := f.resolver.ResolveOrCreate(f.ctx, "google", "g-1", users.Profile{Name: "Ada"})
		require.NoError(t, err)

		store.afterLookup = func() {
			off := *account
			off.Active = false
			require.NoError(t, f.accounts.Update(f.ctx, off))
		}
		got, created, err := f.resolver.ResolveOrCreate(f.ctx, "google", "g-1", users.Profile{Name: "Ada"})
		require.NoError(t, err)
		require.False(t, created)
		require.False(t, got.Active)

		stored, err := f.accounts.Get(f.ctx, account.ID)
		require.NoError(t, err)
		require.False(t, stored.Active)
	})

	t.Run("deleted after lookup", func(t *testing.T) {
		store := &interleavingStore{Store: memstore.New()}
		f := setupTestFixture(t, store)
		account, _, err := f.resolver.ResolveOrCreate(f.ctx, "google", "g-1", users.Profile{Name: "Ada"})
		require.NoError(t, err)

		store.afterLookup = func() {
			require.NoError(t, f.accounts.Delete(f.ctx, account.ID))
		}
		got, created, err := f.resolver.ResolveOrCreate(f.ctx, "google", "g-1", users.Profile{Name: "Ada"})
		require.NoError(t, err)
		require.True(t, created)
		require.NotEqual(t, account.ID, got.ID)

		_, err = f.accounts.Get(f.ctx, account.ID)
		require.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("email sign-in after deletion", func(t *testing.T) {
		store := &interleavingStore{Store: memstore.New()}
		f := setupTestFixture(t, store)
		// Register's own lookups run first; arm the hook afterwards.
		account, err := f.resolver.Register(f.ctx, users.SignupRequest{Name: "G", Email: "g@example.com", Password: "Passw0rdOK"})
		require.NoError(t, err)

		store.afterLookup = func() {
			require.NoError(t, f.accounts.Delete(f.ctx, account.ID))
		}
		_, err = f.resolver.Authenticate(f.ctx, "g@example.com", "Passw0rdOK")
		require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

		_, err = f.accounts.Get(f.ctx, account.ID)
		require.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestRegisterAndAuthenticate(t *testing.T) {
	f := setupTestFixture(t, nil)

	account, err := f.resolver.Register(f.ctx, users.SignupRequest{
		Name:     "Grace",
		Email:    " Grace@Example.com ",
		Password: "Passw0rdOK",
	})
	require.NoError(t, err)
	require.True(t, account.Active)
	require.Equal(t, "grace@example.com", account.Email)
	require.NotEqual(t, "Passw0rdOK", account.PasswordHash)
	require.Equal(t, "grace@example.com", account.Identities[users.ProviderEmail])

	got, err := f.resolver.Authenticate(f.ctx, "GRACE@example.com", "Passw0rdOK")
	require.NoError(t, err)
	require.Equal(t, account.ID, got.ID)

	_, err = f.resolver.Authenticate(f.ctx, "grace@example.com", "wrong")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, err = f.resolver.Authenticate(f.ctx, "nobody@example.com", "Passw0rdOK")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, err = f.resolver.Register(f.ctx, users.SignupRequest{Name: "Dup", Email: "grace@example.com", Password: "Passw0rdOK"})
	require.ErrorIs(t, err, apperrors.ErrEmailTaken)
}

func TestRegister_Validation(t *testing.T) {
	f := setupTestFixture(t, nil)

	cases := map[string]users.SignupRequest{
		"missing name":   {Email: "a@example.com", Password: "Passw0rdOK"},
		"bad email":      {Name: "A", Email: "not-an-email", Password: "Passw0rdOK"},
		"short password": {Name: "A", Email: "a@example.com", Password: "Pw0"},
		"weak password":  {Name: "A", Email: "a@example.com", Password: "alllowercase1"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.resolver.Register(f.ctx, req)
			require.ErrorIs(t, err, apperrors.ErrInvalidInput)
		})
	}
	require.Empty(t, f.all(t))
}

func TestAuthenticate_InactiveAccount(t *testing.T) {
	f := setupTestFixture(t, nil)

	account, err := f.resolver.Register(f.ctx, users.SignupRequest{Name: "Off", Email: "off@example.com", Password: "Passw0rdOK"})
	require.NoError(t, err)
	account.Active = false
	require.NoError(t, f.accounts.Update(f.ctx, *account))

	_, err = f.resolver.Authenticate(f.ctx, "off@example.com", "Passw0rdOK")
	require.ErrorIs(t, err, apperrors.ErrAccountInactive)
}

func TestResolver_GetAndDelete(t *testing.T) {
	f := setupTestFixture(t, nil)
	account, err := f.resolver.Register(f.ctx, users.SignupRequest{Name: "J", Email: "j@example.com", Password: "Passw0rdOK"})
	require.NoError(t, err)

	got, err := f.resolver.Get(f.ctx, account.ID)
	require.NoError(t, err)
	require.NotEmpty(t, got.PasswordHash)

	body, err := json.Marshal(got)
	require.NoError(t, err)
	require.NotContains(t, string(body), "password")
	require.NotContains(t, string(body), got.PasswordHash)

	require.NoError(t, f.resolver.Delete(f.ctx, account.ID))
	_, err = f.resolver.Get(f.ctx, account.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestValidatePasswordStrength(t *testing.T) {
	require.NoError(t, users.ValidatePasswordStrength("Abcdefg1"))
	require.Error(t, users.ValidatePasswordStrength("Abc1"))
	require.Error(t, users.ValidatePasswordStrength("abcdefg1"))
	require.Error(t, users.ValidatePasswordStrength("ABCDEFG1"))
	require.Error(t, users.ValidatePasswordStrength("Abcdefgh"))
}
