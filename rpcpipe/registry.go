package rpcpipe

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/sync/singleflight"
)

// Registry is the provider registry: exactly one Provider per rpc_url,
// shared by every handler registered against that endpoint. Concurrent
// first-use callers for the same URL are deduplicated with a singleflight
// group so only one stack is ever built, satisfying the provider-
// deduplication invariant even under registration races.
type Registry struct {
	// CacheDir is the parent directory under which each network's KV store
	// is opened (default "./cache").
	CacheDir string

	mu        sync.Mutex
	providers map[string]*Provider
	stores    map[string]*Store
	group     singleflight.Group
}

// NewRegistry constructs an empty registry rooted at cacheDir.
func NewRegistry(cacheDir string) *Registry {
	if cacheDir == "" {
		cacheDir = "./cache"
	}
	return &Registry{
		CacheDir:  cacheDir,
		providers: make(map[string]*Provider),
		stores:    make(map[string]*Store),
	}
}

// GetOrCreate returns the shared Provider for network, building it (KV store
// + rate limiter + cache + HTTP transport) on first use.
func (r *Registry) GetOrCreate(ctx context.Context, network Network) (*Provider, error) {
	if _, err := url.ParseRequestURI(network.RPCURL); err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidRPCURL, network.RPCURL, err)
	}

	r.mu.Lock()
	if p, ok := r.providers[network.RPCURL]; ok {
		r.mu.Unlock()
		return p, nil
	}
	r.mu.Unlock()

	v, err, _ := r.group.Do(network.RPCURL, func() (any, error) {
		return r.build(network)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Provider), nil
}

func (r *Registry) build(network Network) (*Provider, error) {
	r.mu.Lock()
	if p, ok := r.providers[network.RPCURL]; ok {
		r.mu.Unlock()
		return p, nil
	}
	r.mu.Unlock()

	store, err := OpenStore(r.CacheDir, network.Name)
	if err != nil {
		return nil, err
	}

	limit := network.RequestsPerSecond
	if limit <= 0 {
		limit = 10
	}
	transport := &RateLimitRoundTripper{
		Limit:  limit,
		Period: time.Second,
		Next: &CacheRoundTripper{
			Store: store,
			Next:  http.DefaultTransport,
		},
	}

	client, err := rpc.DialHTTPWithClient(network.RPCURL, &http.Client{Transport: transport})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("%w: dialing %q: %v", ErrInvalidRPCURL, network.RPCURL, err)
	}
	provider := &Provider{
		eth: ethclient.NewClient(client),
		rpc: client,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.providers[network.RPCURL]; ok {
		client.Close()
		store.Close()
		return existing, nil
	}
	r.providers[network.RPCURL] = provider
	r.stores[network.RPCURL] = store
	return provider, nil
}

// Close shuts down every provider and store the registry has opened.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.providers {
		p.rpc.Close()
	}
	for _, s := range r.stores {
		s.Close()
	}
}
