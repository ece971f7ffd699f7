package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/go-auth-bridge/internal/errors"
	"github.com/jrsteele09/go-auth-bridge/oauth"
	"github.com/jrsteele09/go-auth-bridge/token"
	"github.com/jrsteele09/go-auth-bridge/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Login outcomes reported to a LoginObserver.
const (
	OutcomeExisting = "existing"
	OutcomeCreated  = "created"
	OutcomeFailed   = "failed"
)

// LoginObserver is told about every completed or failed login.
type LoginObserver interface {
	ObserveLogin(provider, outcome string)
}

// Session is an issued session token and the account it is bound to.
type Session struct {
	Token     string
	Claims    *token.Claims
	Account   *users.Account
	ReturnURL string
	Created   bool
}

// Service ties the OAuth bridges, the account resolver and the token codec
// together. It holds no per-request state.
type Service struct {
	providers *oauth.Registry
	resolver  *users.Resolver
	codec     *token.Codec
	observer  LoginObserver
}

type ServiceOption func(*Service)

func WithLoginObserver(o LoginObserver) ServiceOption {
	return func(s *Service) {
		s.observer = o
	}
}

func NewService(providers *oauth.Registry, resolver *users.Resolver, codec *token.Codec, options ...ServiceOption) (*Service, error) {
	if providers == nil {
		return nil, errors.New("[NewService] provider registry is required")
	}
	if resolver == nil {
		return nil, errors.New("[NewService] resolver is required")
	}
	if codec == nil {
		return nil, errors.New("[NewService] codec is required")
	}

	s := &Service{
		providers: providers,
		resolver:  resolver,
		codec:     codec,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

func (s *Service) Providers() []string {
	return s.providers.Names()
}

// BeginLogin returns the provider URL to redirect the user to.
func (s *Service) BeginLogin(provider, returnURL string) (string, error) {
	bridge, err := s.providers.Get(provider)
	if err != nil {
		return "", err
	}
	return bridge.AuthorizeURL(returnURL), nil
}

// CompleteLogin handles the provider callback and issues a session for the
// resolved account.
func (s *Service) CompleteLogin(ctx context.Context, provider, state, code string) (*Session, error) {
	bridge, err := s.providers.Get(provider)
	if err != nil {
		return nil, err
	}

	callback, err := bridge.Exchange(ctx, state, code)
	if err != nil {
		s.observe(provider, OutcomeFailed)
		return nil, err
	}

	identity := callback.Identity
	account, created, err := s.resolver.ResolveOrCreate(ctx, identity.Provider, identity.Subject, users.Profile{
		Name:    identity.Name,
		Email:   identity.Email,
		Picture: identity.Picture,
	})
	if err != nil {
		s.observe(provider, OutcomeFailed)
		return nil, errors.Wrap(err, "[Service CompleteLogin] resolve account")
	}
	if !account.Active {
		s.observe(provider, OutcomeFailed)
		return nil, errors.Wrapf(apperrors.ErrAccountInactive, "[Service CompleteLogin] %s", account.ID)
	}

	session, err := s.issue(account)
	if err != nil {
		s.observe(provider, OutcomeFailed)
		return nil, err
	}
	session.ReturnURL = callback.ReturnURL
	session.Created = created

	if created {
		s.observe(provider, OutcomeCreated)
		log.Info().Str("provider", provider).Str("account", account.ID).Msg("account created")
	} else {
		s.observe(provider, OutcomeExisting)
	}
	return session, nil
}

// SignUp registers an email and password account and signs it in.
func (s *Service) SignUp(ctx context.Context, req users.SignupRequest) (*Session, error) {
	account, err := s.resolver.Register(ctx, req)
	if err != nil {
		s.observe(users.ProviderEmail, OutcomeFailed)
		return nil, err
	}
	session, err := s.issue(account)
	if err != nil {
		return nil, err
	}
	session.Created = true
	s.observe(users.ProviderEmail, OutcomeCreated)
	return session, nil
}

// SignIn checks an email and password and issues a session.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	account, err := s.resolver.Authenticate(ctx, email, password)
	if err != nil {
		s.observe(users.ProviderEmail, OutcomeFailed)
		return nil, err
	}
	session, err := s.issue(account)
	if err != nil {
		return nil, err
	}
	s.observe(users.ProviderEmail, OutcomeExisting)
	return session, nil
}

// Authenticate verifies a session token. Every failure matches
// apperrors.ErrUnauthenticated as well as the specific token error.
func (s *Service) Authenticate(ctx context.Context, tokenString string) (*token.Claims, error) {
	if tokenString == "" {
		return nil, apperrors.ErrUnauthenticated
	}
	claims, err := s.codec.VerifyContext(ctx, tokenString)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrUnauthenticated, err)
	}
	return claims, nil
}

// Logout revokes the session so the token stops verifying before it expires.
func (s *Service) Logout(ctx context.Context, claims *token.Claims) error {
	if claims == nil {
		return nil
	}
	return s.codec.Revoke(ctx, claims)
}

// CurrentAccount loads the account a session belongs to. A session whose
// account no longer exists is unauthenticated.
func (s *Service) CurrentAccount(ctx context.Context, claims *token.Claims) (*users.Account, error) {
	if claims == nil || claims.Subject == "" {
		return nil, apperrors.ErrUnauthenticated
	}
	account, err := s.resolver.Get(ctx, claims.Subject)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrUnauthenticated, err)
	}
	if err != nil {
		return nil, err
	}
	return account, nil
}

// DeleteAccount removes the session's account and revokes the session.
func (s *Service) DeleteAccount(ctx context.Context, claims *token.Claims) error {
	if claims == nil || claims.Subject == "" {
		return apperrors.ErrUnauthenticated
	}
	if err := s.resolver.Delete(ctx, claims.Subject); err != nil {
		return errors.Wrap(err, "[Service DeleteAccount]")
	}
	if err := s.codec.Revoke(ctx, claims); err != nil {
		log.Err(err).Str("account", claims.Subject).Msg("failed to revoke session of deleted account")
	}
	return nil
}

func (s *Service) issue(account *users.Account) (*Session, error) {
	signed, claims, err := s.codec.Issue(token.Claims{
		Name:    account.Name,
		Email:   account.Email,
		Picture: account.Picture,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: account.ID,
		},
	})
	if err != nil {
		return nil, err
	}
	return &Session{
		Token:   signed,
		Claims:  claims,
		Account: account,
	}, nil
}

func (s *Service) observe(provider, outcome string) {
	if s.observer != nil {
		s.observer.ObserveLogin(provider, outcome)
	}
}
