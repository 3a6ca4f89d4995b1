package ai

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

const StubProviderName = "stub"

type ProviderFactory func(ctx context.Context, model string) (Provider, error)

// Route names the provider and model that answer for a bot family.
type Route struct {
	Provider string
	Model    string
}

// Registry maps provider names to factories and bot families to routes.
// Families without a route are answered by the stub provider.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]ProviderFactory
	routes    map[string]Route
}

func NewRegistry() *Registry {
	r := &Registry{
		factories: make(map[string]ProviderFactory),
		routes:    make(map[string]Route),
	}
	r.Register(StubProviderName, func(ctx context.Context, model string) (Provider, error) {
		return NewStubProvider(), nil
	})
	return r
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (r *Registry) Register(name string, f ProviderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[normalize(name)] = f
}

func (r *Registry) Route(family string, route Route) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[normalize(family)] = route
}

func (r *Registry) Get(ctx context.Context, name string, model string) (Provider, error) {
	r.mu.RLock()
	f, ok := r.factories[normalize(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown ai provider: %s", name)
	}
	return f(ctx, model)
}

// ForBot resolves the provider for a bot family.
func (r *Registry) ForBot(ctx context.Context, family string) (Provider, error) {
	r.mu.RLock()
	route, ok := r.routes[normalize(family)]
	r.mu.RUnlock()
	if !ok {
		route = Route{Provider: StubProviderName}
	}
	return r.Get(ctx, route.Provider, route.Model)
}

func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
