package oauth

import (
	"sort"

	apperrors "github.com/jrsteele09/go-auth-bridge/internal/errors"
)

// Registry maps a provider name, as used in routes, to its Bridge.
// It is built once at startup and read concurrently afterwards.
type Registry struct {
	bridges map[string]*Bridge
}

func NewRegistry(bridges ...*Bridge) *Registry {
	r := &Registry{bridges: make(map[string]*Bridge, len(bridges))}
	for _, b := range bridges {
		r.bridges[b.Name()] = b
	}
	return r
}

func (r *Registry) Get(name string) (*Bridge, error) {
	b, ok := r.bridges[name]
	if !ok {
		return nil, apperrors.Wrapf(apperrors.ErrUnknownProvider, "[Registry Get] %q", name)
	}
	return b, nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.bridges))
	for name := range r.bridges {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
