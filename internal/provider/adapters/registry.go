package adapters

import (
	"strings"

	"github.com/storyforge/storyforge/internal/provider/domain"
)

// Registry maps provider names to adapters.
type Registry struct {
	providers map[string]domain.CompletionProvider
}

func NewRegistry(providers ...domain.CompletionProvider) *Registry {
	registry := &Registry{providers: map[string]domain.CompletionProvider{}}
	for _, p := range providers {
		if p == nil {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(p.Name()))
		if name == "" {
			continue
		}
		registry.providers[name] = p
	}
	return registry
}

func (r *Registry) Get(name string) (domain.CompletionProvider, error) {
	if r == nil {
		return nil, domain.ErrProviderNotFound
	}
	name = strings.ToLower(strings.TrimSpace(name))
	p, ok := r.providers[name]
	if !ok {
		return nil, domain.ErrProviderNotFound
	}
	return p, nil
}
