package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

type ProviderFactory func(ctx context.Context) (Provider, error)

// Registry maps model tier names ("flash-lite", "flash", "pro") to
// provider factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]ProviderFactory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]ProviderFactory)}
}

func (r *Registry) Register(tier string, f ProviderFactory) {
	tier = strings.ToLower(strings.TrimSpace(tier))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[tier] = f
}

func (r *Registry) Get(ctx context.Context, tier string) (Provider, error) {
	tier = strings.ToLower(strings.TrimSpace(tier))
	r.mu.RLock()
	f, ok := r.factories[tier]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown model tier: %s", tier)
	}
	return f(ctx)
}
