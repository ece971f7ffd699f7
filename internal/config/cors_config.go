package config

import (
	"net/url"
	"strings"
	"unicode"
)

type Cors struct {
	Origins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

var _ CorsConfig = Cors{}

type AllowedOrigins map[string]struct{}
type nullValue = struct{}

func (a AllowedOrigins) IsAllowedOrigin(origin string) bool {
	_, ok := a[origin]
	return ok
}

// IsAllowedReturnURL reports whether a post-login redirect target is safe.
// Relative paths are always allowed; absolute URLs must match an allowed origin.
// Backslashes, whitespace and control characters are refused anywhere since
// browsers drop or rewrite them, which can turn "/\t/host" into "//host".
func (a AllowedOrigins) IsAllowedReturnURL(returnURL string) bool {
	if returnURL == "" || strings.IndexFunc(returnURL, unsafeURLRune) >= 0 {
		return false
	}
	u, err := url.Parse(returnURL)
	if err != nil {
		return false
	}
	if strings.HasPrefix(returnURL, "/") {
		return u.Scheme == "" && u.Host == "" &&
			strings.HasPrefix(u.Path, "/") && !strings.HasPrefix(u.Path, "//") &&
			strings.IndexFunc(u.Path, unsafeURLRune) < 0
	}
	if u.Scheme == "" || u.Host == "" {
		return false
	}
	return a.IsAllowedOrigin(u.Scheme + "://" + u.Host)
}

func unsafeURLRune(r rune) bool {
	return r == '\\' || unicode.IsControl(r) || unicode.IsSpace(r)
}

func (a AllowedOrigins) String() string {
	var origins []string
	for k := range a {
		origins = append(origins, k)
	}
	return strings.Join(origins, ", ")
}

func (c Cors) GetAllowedOrigins() AllowedOrigins {
	origins := AllowedOrigins{}
	for _, o := range c.Origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o != "" {
			origins[o] = nullValue{}
		}
	}
	return origins
}

func (Cors) GetAllowedMethods() string {
	return "GET, POST, PUT, PATCH, DELETE"
}

func (Cors) GetAllowedHeaders() string {
	return "Content-Type, Authorization"
}
