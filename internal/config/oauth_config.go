package config

type OAuthConfig interface {
	GetGoogleClientFile() string
	GetGoogleProvider() ProviderSettings
	GetVerifyIDToken() bool
}

// ProviderSettings are the raw identity provider values read from the environment.
type ProviderSettings struct {
	ClientID     string
	ClientSecret string
	AuthURI      string
	TokenURI     string
	Issuer       string
}

// Configured reports whether enough is set to talk to the provider.
func (p ProviderSettings) Configured() bool {
	return p.ClientID != "" && p.ClientSecret != ""
}

type OAuth struct {
	GoogleClientFile   string `env:"OAUTH_GOOGLE_CLIENT_FILE"`
	GoogleClientID     string `env:"OAUTH_GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"OAUTH_GOOGLE_CLIENT_SECRET"`
	GoogleAuthURI      string `env:"OAUTH_GOOGLE_AUTH_URI" envDefault:"https://accounts.google.com/o/oauth2/auth"`
	GoogleTokenURI     string `env:"OAUTH_GOOGLE_TOKEN_URI" envDefault:"https://oauth2.googleapis.com/token"`
	GoogleIssuer       string `env:"OAUTH_GOOGLE_ISSUER" envDefault:"https://accounts.google.com"`
	VerifyIDToken      bool   `env:"OAUTH_VERIFY_ID_TOKEN" envDefault:"false"`
}

var _ OAuthConfig = OAuth{}

// GetGoogleClientFile returns the path of a Google client-secret JSON file.
// When set it takes precedence over the individual OAUTH_GOOGLE_* values.
func (o OAuth) GetGoogleClientFile() string {
	return o.GoogleClientFile
}

func (o OAuth) GetGoogleProvider() ProviderSettings {
	return ProviderSettings{
		ClientID:     o.GoogleClientID,
		ClientSecret: o.GoogleClientSecret,
		AuthURI:      o.GoogleAuthURI,
		TokenURI:     o.GoogleTokenURI,
		Issuer:       o.GoogleIssuer,
	}
}

func (o OAuth) GetVerifyIDToken() bool {
	return o.VerifyIDToken
}
