package secrets

import (
	"context"
	"fmt"
)

// Provider retrieves JSON key/value secrets by name.
type Provider interface {
	GetSecret(ctx context.Context, name string) (map[string]string, error)
}

// StaticProvider serves secrets from memory. It backs local development,
// where credentials come from the environment instead of AWS.
type StaticProvider map[string]map[string]string

// GetSecret returns a copy of the named secret.
func (p StaticProvider) GetSecret(_ context.Context, name string) (map[string]string, error) {
	s, ok := p[name]
	if !ok {
		return nil, fmt.Errorf("secret [%s] not found", name)
	}
	out := make(map[string]string, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out, nil
}
