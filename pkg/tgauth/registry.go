package tgauth

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultRegistrySize bounds the number of bots a Registry keeps validators for.
const DefaultRegistrySize = 256

type registryKey struct {
	token string
	flow  Flow
}

// Registry hands out validators per bot token so hosts serving several bots
// derive each secret once. Least recently used validators are evicted.
type Registry struct {
	cache *lru.Cache[registryKey, any]
	opts  []Option
}

// NewRegistry creates a registry holding at most size validators; opts are
// applied to every validator it creates.
func NewRegistry(size int, opts ...Option) (*Registry, error) {
	if size <= 0 {
		size = DefaultRegistrySize
	}
	cache, err := lru.New[registryKey, any](size)
	if err != nil {
		return nil, err
	}
	return &Registry{cache: cache, opts: opts}, nil
}

func (r *Registry) InitData(botToken string) (*InitDataValidator, error) {
	key := registryKey{token: botToken, flow: FlowWebApp}
	if v, ok := r.cache.Get(key); ok {
		return v.(*InitDataValidator), nil
	}
	v, err := NewInitDataValidator(botToken, r.opts...)
	if err != nil {
		return nil, err
	}
	// a concurrent caller may have won the race; reuse its validator
	if prev, ok, _ := r.cache.PeekOrAdd(key, v); ok {
		return prev.(*InitDataValidator), nil
	}
	return v, nil
}

func (r *Registry) OAuth(botToken string) (*OAuthValidator, error) {
	key := registryKey{token: botToken, flow: FlowOAuth}
	if v, ok := r.cache.Get(key); ok {
		return v.(*OAuthValidator), nil
	}
	v, err := NewOAuthValidator(botToken, r.opts...)
	if err != nil {
		return nil, err
	}
	if prev, ok, _ := r.cache.PeekOrAdd(key, v); ok {
		return prev.(*OAuthValidator), nil
	}
	return v, nil
}

// Len reports how many validators are cached.
func (r *Registry) Len() int {
	return r.cache.Len()
}
