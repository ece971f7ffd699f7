package users

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-bridge/collection"
	apperrors "github.com/jrsteele09/go-auth-bridge/internal/errors"
	"github.com/rs/zerolog/log"
)

// SignupRequest is the input of an email and password registration.
type SignupRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=150"`
	Email    string `json:"email" validate:"required,email,max=200"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// Resolver finds or creates the local account behind an external identity.
type Resolver struct {
	accounts *collection.Engine[Account]
	validate *validator.Validate
	nowFunc  func() time.Time
	newID    func() (string, error)

	// compared against when the email is unknown so both paths cost one bcrypt
	dummyHash string
}

type ResolverOption func(*Resolver)

func WithNowFunc(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		r.nowFunc = now
	}
}

// WithIDGenerator replaces the UUIDv7 generator.
func WithIDGenerator(newID func() (string, error)) ResolverOption {
	return func(r *Resolver) {
		r.newID = newID
	}
}

func NewResolver(accounts *collection.Engine[Account], options ...ResolverOption) *Resolver {
	r := &Resolver{
		accounts: accounts,
		validate: validator.New(),
		nowFunc:  time.Now,
		newID:    newAccountID,
	}
	for _, opt := range options {
		opt(r)
	}
	r.dummyHash, _ = HashPassword(uuid.NewString())
	return r
}

func newAccountID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// ResolveOrCreate returns the account bound to (provider, subject), creating it
// from profile when none exists. The boolean reports whether it was created.
//
// Lookup and create are not atomic. After creating, the binding is queried
// again and the oldest holder wins; a losing duplicate is deleted, so
// concurrent first logins converge on one account.
func (r *Resolver) ResolveOrCreate(ctx context.Context, provider, subject string, profile Profile) (*Account, bool, error) {
	if provider == "" || subject == "" {
		return nil, false, apperrors.Kind(apperrors.ErrInvalidInput, "provider and subject are required")
	}

	existing, err := r.findByIdentity(ctx, provider, subject)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		current, err := r.touch(ctx, existing.ID)
		if err != nil {
			return nil, false, err
		}
		if current != nil {
			return current, false, nil
		}
		// deleted since the lookup; the subject is unbound again
	}

	id, err := r.newID()
	if err != nil {
		return nil, false, apperrors.Wrapf(err, "[Resolver ResolveOrCreate] id")
	}
	now := r.nowFunc().UTC().Truncate(time.Millisecond)
	account := Account{
		ID:         id,
		Name:       profile.Name,
		Email:      NormalizeEmail(profile.Email),
		Identities: map[string]string{provider: subject},
		Picture:    profile.Picture,
		Active:     true,
		CreatedAt:  now,
		LastLogin:  now,
	}
	if err := r.accounts.Create(ctx, account); err != nil {
		return nil, false, apperrors.Wrapf(err, "[Resolver ResolveOrCreate] create")
	}

	winner, err := r.converge(ctx, provider, subject, &account)
	if err != nil {
		return nil, false, err
	}
	return winner, winner.ID == account.ID, nil
}

// Register creates an account bound to an email and password.
func (r *Resolver) Register(ctx context.Context, req SignupRequest) (*Account, error) {
	req.Email = NormalizeEmail(req.Email)
	if err := r.validate.Struct(req); err != nil {
		return nil, apperrors.Kind(apperrors.ErrInvalidInput, "%v", err)
	}
	if err := ValidatePasswordStrength(req.Password); err != nil {
		return nil, apperrors.Kind(apperrors.ErrInvalidInput, "%v", err)
	}

	email := req.Email
	existing, err := r.findByIdentity(ctx, ProviderEmail, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperrors.Wrapf(apperrors.ErrEmailTaken, "[Resolver Register] %s", email)
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, apperrors.Wrapf(err, "[Resolver Register] hash")
	}
	id, err := r.newID()
	if err != nil {
		return nil, apperrors.Wrapf(err, "[Resolver Register] id")
	}
	now := r.nowFunc().UTC().Truncate(time.Millisecond)
	account := Account{
		ID:           id,
		Name:         req.Name,
		Email:        email,
		PasswordHash: hash,
		Identities:   map[string]string{ProviderEmail: email},
		Active:       true,
		CreatedAt:    now,
		LastLogin:    now,
	}
	if err := r.accounts.Create(ctx, account); err != nil {
		return nil, apperrors.Wrapf(err, "[Resolver Register] create")
	}

	winner, err := r.converge(ctx, ProviderEmail, email, &account)
	if err != nil {
		return nil, err
	}
	if winner.ID != account.ID {
		return nil, apperrors.Wrapf(apperrors.ErrEmailTaken, "[Resolver Register] %s", email)
	}
	return winner, nil
}

// Authenticate checks an email and password pair.
func (r *Resolver) Authenticate(ctx context.Context, email, password string) (*Account, error) {
	account, err := r.findByIdentity(ctx, ProviderEmail, NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if account == nil || account.PasswordHash == "" {
		CheckPasswordHash(password, r.dummyHash)
		return nil, apperrors.Wrapf(apperrors.ErrInvalidCredentials, "[Resolver Authenticate]")
	}
	if !CheckPasswordHash(password, account.PasswordHash) {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidCredentials, "[Resolver Authenticate]")
	}
	if !account.Active {
		return nil, apperrors.Wrapf(apperrors.ErrAccountInactive, "[Resolver Authenticate] %s", account.ID)
	}
	current, err := r.touch(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidCredentials, "[Resolver Authenticate]")
	}
	if !current.Active {
		return nil, apperrors.Wrapf(apperrors.ErrAccountInactive, "[Resolver Authenticate] %s", current.ID)
	}
	return current, nil
}

func (r *Resolver) Get(ctx context.Context, id string) (*Account, error) {
	return r.accounts.Get(ctx, id)
}

func (r *Resolver) Delete(ctx context.Context, id string) error {
	return r.accounts.Delete(ctx, id)
}

func (r *Resolver) findByIdentity(ctx context.Context, provider, subject string) (*Account, error) {
	found, err := r.accounts.Query(ctx, collection.Query{
		Filters: []collection.Filter{collection.Where(IdentityField(provider), collection.Eq, subject)},
	})
	if err != nil {
		return nil, apperrors.Wrapf(err, "[Resolver findByIdentity] %s", provider)
	}
	if len(found) == 0 {
		return nil, nil
	}
	return &found[0], nil
}

func (r *Resolver) converge(ctx context.Context, provider, subject string, ours *Account) (*Account, error) {
	holders, err := r.accounts.Query(ctx, collection.Query{
		Filters: []collection.Filter{collection.Where(IdentityField(provider), collection.Eq, subject)},
		Order:   collection.OrderBy("created_at", collection.Ascending),
		Limit:   1,
	})
	if err != nil {
		return nil, apperrors.Wrapf(err, "[Resolver converge] %s", provider)
	}
	if len(holders) == 0 || holders[0].ID == ours.ID {
		return ours, nil
	}

	winner := holders[0]
	log.Warn().Str("provider", provider).Str("kept", winner.ID).Str("dropped", ours.ID).Msg("duplicate account created concurrently")
	if err := r.accounts.Delete(ctx, ours.ID); err != nil {
		return nil, apperrors.Wrapf(err, "[Resolver converge] delete duplicate")
	}
	return &winner, nil
}

// touch records the login time on a copy read just before the write, so a
// deactivation or deletion since the lookup is not overwritten. It returns
// that copy, or nil when the account no longer exists. Inactive accounts are
// returned unchanged. A failed write is logged and does not fail the login.
func (r *Resolver) touch(ctx context.Context, id string) (*Account, error) {
	current, err := r.accounts.Get(ctx, id)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrapf(err, "[Resolver touch] %s", id)
	}
	if !current.Active {
		return current, nil
	}

	current.LastLogin = r.nowFunc().UTC().Truncate(time.Millisecond)
	if err := r.accounts.Update(ctx, *current); err != nil {
		log.Err(err).Str("account", id).Msg("failed to record last login")
	}
	return current, nil
}
