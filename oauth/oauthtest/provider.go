// Package oauthtest runs a minimal OpenID Connect provider on httptest for
// exercising the bridge end to end.
package oauthtest

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-auth-bridge/oauth"
)

const (
	ClientID     = "test-client"
	ClientSecret = "test-secret"
	keyID        = "test-key"
)

// JWKS represents a JSON Web Key Set
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWK represents a JSON Web Key
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use,omitempty"`
	Kid string `json:"kid,omitempty"`
	Alg string `json:"alg,omitempty"`
	N   string `json:"n,omitempty"`
	E   string `json:"e,omitempty"`
}

// User is the identity the provider asserts for an authorization code.
type User struct {
	Subject string
	Name    string
	Email   string
	Picture string
}

// Provider is a fake identity provider. Codes are single use.
type Provider struct {
	Server *httptest.Server

	key   *rsa.PrivateKey
	codes map[string]User
	lock  sync.Mutex

	failStatus  int
	failBody    string
	omitIDToken bool
	lastForm    url.Values
}

func NewProvider() *Provider {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(fmt.Sprintf("failed to generate RSA key: %v", err))
	}
	p := &Provider{
		key:   key,
		codes: make(map[string]User),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/openid-configuration", p.discovery)
	mux.HandleFunc("GET /jwks", p.jwks)
	mux.HandleFunc("POST /token", p.token)
	p.Server = httptest.NewServer(mux)
	return p
}

func (p *Provider) Close() {
	p.Server.Close()
}

func (p *Provider) Issuer() string {
	return p.Server.URL
}

// Config returns a registration for this provider named name.
func (p *Provider) Config(name, callbackURL string) oauth.ProviderConfig {
	return oauth.ProviderConfig{
		Name:         name,
		ClientID:     ClientID,
		ClientSecret: ClientSecret,
		AuthURI:      p.Server.URL + "/authorize",
		TokenURI:     p.Server.URL + "/token",
		CallbackURL:  callbackURL,
		Issuer:       p.Server.URL,
	}
}

// Authorize registers code as a valid authorization code for user.
func (p *Provider) Authorize(code string, user User) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.codes[code] = user
}

// FailTokenRequests makes the token endpoint answer every request with status and body.
func (p *Provider) FailTokenRequests(status int, body string) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.failStatus = status
	p.failBody = body
}

// OmitIDToken makes successful token responses carry no id_token.
func (p *Provider) OmitIDToken() {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.omitIDToken = true
}

// LastTokenRequest returns the form of the most recent token request.
func (p *Provider) LastTokenRequest() url.Values {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.lastForm
}

// SignIDToken signs an ID token for user the way the token endpoint does.
func (p *Provider) SignIDToken(user User, expiresAt time.Time) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":   p.Issuer(),
		"aud":   ClientID,
		"sub":   user.Subject,
		"email": user.Email,
		"name":  user.Name,
		"iat":   now.Unix(),
		"exp":   expiresAt.Unix(),
	}
	if user.Picture != "" {
		claims["picture"] = user.Picture
	}
	t := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	t.Header["kid"] = keyID
	return t.SignedString(p.key)
}

func (p *Provider) discovery(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"issuer":                                p.Issuer(),
		"authorization_endpoint":                p.Server.URL + "/authorize",
		"token_endpoint":                        p.Server.URL + "/token",
		"jwks_uri":                              p.Server.URL + "/jwks",
		"response_types_supported":              []string{"code"},
		"subject_types_supported":               []string{"public"},
		"id_token_signing_alg_values_supported": []string{"RS256"},
	})
}

func (p *Provider) jwks(w http.ResponseWriter, _ *http.Request) {
	pub := p.key.PublicKey
	writeJSON(w, http.StatusOK, JWKS{Keys: []JWK{{
		Kty: "RSA",
		Use: "sig",
		Kid: keyID,
		Alg: "RS256",
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}}})
}

func (p *Provider) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	p.lock.Lock()
	p.lastForm = r.PostForm
	failStatus, failBody, omit := p.failStatus, p.failBody, p.omitIDToken
	code := r.PostForm.Get("code")
	user, ok := p.codes[code]
	delete(p.codes, code)
	p.lock.Unlock()

	if failStatus != 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(failStatus)
		_, _ = w.Write([]byte(failBody))
		return
	}

	if r.PostForm.Get("grant_type") != "authorization_code" ||
		r.PostForm.Get("client_id") != ClientID ||
		r.PostForm.Get("client_secret") != ClientSecret ||
		r.PostForm.Get("redirect_uri") == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
		return
	}

	resp := map[string]any{
		"access_token": "access-" + code,
		"token_type":   "Bearer",
		"expires_in":   3600,
		"scope":        "openid email profile",
	}
	if !omit {
		idToken, err := p.SignIDToken(user, time.Now().Add(time.Hour))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		resp["id_token"] = idToken
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
