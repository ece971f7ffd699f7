package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/go-auth-bridge/internal/errors"
	"golang.org/x/oauth2"
)

const defaultHTTPTimeout = 10 * time.Second

var defaultScopes = []string{oidc.ScopeOpenID, "email", "profile"}

// ProviderConfig holds the client registration at one identity provider.
type ProviderConfig struct {
	Name         string `json:"-"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	AuthURI      string `json:"auth_uri"`
	TokenURI     string `json:"token_uri"`
	CallbackURL  string `json:"-"`
	Issuer       string `json:"-"`
}

// LoadProviderFile reads a client-secret JSON file as downloaded from the
// provider console. When field is set the registration is read from that
// top-level key (Google uses "web").
func LoadProviderFile(path, field string) (ProviderConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ProviderConfig{}, apperrors.Wrapf(err, "[LoadProviderFile] read %s", path)
	}

	target := json.RawMessage(data)
	if field != "" {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(data, &fields); err != nil {
			return ProviderConfig{}, apperrors.Wrapf(err, "[LoadProviderFile] parse %s", path)
		}
		var ok bool
		if target, ok = fields[field]; !ok {
			return ProviderConfig{}, apperrors.Wrapf(apperrors.ErrUnknownProvider, "[LoadProviderFile] field %q not found in %s", field, path)
		}
	}

	var cfg ProviderConfig
	if err := json.Unmarshal(target, &cfg); err != nil {
		return ProviderConfig{}, apperrors.Wrapf(err, "[LoadProviderFile] decode %s", path)
	}
	return cfg, nil
}

// Identity is what the bridge extracts from the provider's identity token.
type Identity struct {
	Provider string
	Subject  string
	Name     string
	Email    string
	Picture  string
}

// Callback is the outcome of a successful callback: who signed in and where
// they asked to be sent afterwards.
type Callback struct {
	ReturnURL string
	Identity  Identity
}

type identityClaims struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
	jwt.RegisteredClaims
}

// Bridge drives the authorization-code flow against one provider.
// It keeps no per-flow state and is safe for concurrent use.
type Bridge struct {
	name       string
	config     *oauth2.Config
	httpClient *http.Client
	verifier   *oidc.IDTokenVerifier
	nowFunc    func() time.Time
}

type BridgeOption func(*Bridge)

func WithHTTPClient(client *http.Client) BridgeOption {
	return func(b *Bridge) {
		b.httpClient = client
	}
}

func WithNowFunc(now func() time.Time) BridgeOption {
	return func(b *Bridge) {
		b.nowFunc = now
	}
}

// WithVerifier turns on signature, audience and expiry checks of the identity token.
// Without it the token's claims are read unverified.
func WithVerifier(verifier *oidc.IDTokenVerifier) BridgeOption {
	return func(b *Bridge) {
		b.verifier = verifier
	}
}

func NewBridge(cfg ProviderConfig, options ...BridgeOption) (*Bridge, error) {
	if cfg.ClientID == "" || cfg.AuthURI == "" || cfg.TokenURI == "" || cfg.CallbackURL == "" {
		return nil, apperrors.Wrapf(apperrors.ErrUnknownProvider, "[NewBridge] incomplete configuration for %q", cfg.Name)
	}

	b := &Bridge{
		name: cfg.Name,
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURI,
				TokenURL:  cfg.TokenURI,
				AuthStyle: oauth2.AuthStyleInParams,
			},
			RedirectURL: cfg.CallbackURL,
			Scopes:      defaultScopes,
		},
	}

	for _, opt := range options {
		opt(b)
	}

	if b.httpClient == nil {
		b.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if b.nowFunc == nil {
		b.nowFunc = time.Now
	}
	return b, nil
}

// NewVerifier discovers the issuer's signing keys for use with WithVerifier.
func NewVerifier(ctx context.Context, client *http.Client, issuer, clientID string) (*oidc.IDTokenVerifier, error) {
	if client != nil {
		ctx = oidc.ClientContext(ctx, client)
	}
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, apperrors.Wrapf(err, "[NewVerifier] discovery for %s", issuer)
	}
	return provider.Verifier(&oidc.Config{ClientID: clientID}), nil
}

func (b *Bridge) Name() string {
	return b.name
}

// AuthorizeURL returns the provider URL the caller should be redirected to.
// returnURL comes back in Callback.ReturnURL once the user has signed in.
// The query is assembled by hand so state is percent-encoded exactly once and
// scopes are joined with %20.
func (b *Bridge) AuthorizeURL(returnURL string) string {
	params := []string{
		"client_id=" + urlEncode(b.config.ClientID),
		"redirect_uri=" + urlEncode(b.config.RedirectURL),
		"response_type=code",
		"scope=" + urlEncode(strings.Join(b.config.Scopes, " ")),
		"state=" + EncodeState(returnURL, b.nowFunc()),
	}
	sep := "?"
	if strings.Contains(b.config.Endpoint.AuthURL, "?") {
		sep = "&"
	}
	return b.config.Endpoint.AuthURL + sep + strings.Join(params, "&")
}

// Exchange completes the flow: it decodes state, trades the code for tokens
// and extracts the identity from the returned ID token. Nothing is retried.
func (b *Bridge) Exchange(ctx context.Context, state, code string) (*Callback, error) {
	returnURL, _, err := DecodeState(state)
	if err != nil {
		return nil, err
	}
	if code == "" {
		return nil, apperrors.Kind(apperrors.ErrProviderExchangeFailed, "missing authorization code")
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, b.httpClient)
	tok, err := b.config.Exchange(ctx, code)
	if err != nil {
		var re *oauth2.RetrieveError
		if apperrors.As(err, &re) && re.Response != nil {
			return nil, apperrors.Kind(apperrors.ErrProviderExchangeFailed,
				"token endpoint returned error %s: %s", re.Response.Status, string(re.Body))
		}
		return nil, apperrors.Kind(apperrors.ErrProviderExchangeFailed, "%v", err)
	}

	rawIDToken, ok := tok.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, apperrors.Wrapf(apperrors.ErrNoIdentityToken, "[Bridge Exchange] %s", b.name)
	}

	identity, err := b.identity(ctx, rawIDToken)
	if err != nil {
		return nil, err
	}

	return &Callback{
		ReturnURL: returnURL,
		Identity:  *identity,
	}, nil
}

func (b *Bridge) identity(ctx context.Context, rawIDToken string) (*Identity, error) {
	var claims identityClaims

	if b.verifier != nil {
		idToken, err := b.verifier.Verify(oidc.ClientContext(ctx, b.httpClient), rawIDToken)
		if err != nil {
			return nil, apperrors.Kind(apperrors.ErrProviderExchangeFailed, "id token verification: %v", err)
		}
		if err := idToken.Claims(&claims); err != nil {
			return nil, apperrors.Kind(apperrors.ErrProviderExchangeFailed, "id token claims: %v", err)
		}
	} else {
		// TLS to the token endpoint is the only proof of origin here; the
		// claims are used for account linkage only.
		if _, _, err := jwt.NewParser().ParseUnverified(rawIDToken, &claims); err != nil {
			return nil, apperrors.Kind(apperrors.ErrNoIdentityToken, "undecodable id token: %v", err)
		}
	}

	if claims.Subject == "" {
		return nil, apperrors.Kind(apperrors.ErrNoIdentityToken, "id token without subject")
	}

	return &Identity{
		Provider: b.name,
		Subject:  claims.Subject,
		Name:     claims.Name,
		Email:    claims.Email,
		Picture:  claims.Picture,
	}, nil
}
