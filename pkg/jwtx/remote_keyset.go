package jwtx

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// RemoteKeySetOptions tunes a RemoteKeySet. Zero values pick the defaults.
type RemoteKeySetOptions struct {
	HTTPClient *http.Client

	// Timeout bounds a single JWKS fetch.
	Timeout time.Duration

	// CacheSize is the number of kids kept.
	CacheSize int

	// TTL is how long a fetched key is trusted before it is fetched again.
	TTL time.Duration

	// MinRefreshInterval stops a stream of unknown kids from turning into a
	// stream of fetches.
	MinRefreshInterval time.Duration
}

const (
	defaultJWKSTimeout    = 5 * time.Second
	defaultJWKSCacheSize  = 64
	defaultJWKSTTL        = time.Hour
	defaultJWKSMinRefresh = 10 * time.Second

	maxJWKSBody = 1 << 20
)

// RemoteKeySet is a KeySource backed by a provider's JWKS endpoint. Keys are
// cached per kid and concurrent misses share one fetch.
type RemoteKeySet struct {
	url        string
	client     *http.Client
	timeout    time.Duration
	minRefresh time.Duration

	cache *expirable.LRU[string, *rsa.PublicKey]
	group singleflight.Group

	mu        sync.Mutex
	lastFetch time.Time
	now       func() time.Time
}

// NewRemoteKeySet creates a key set that fetches from url on demand.
func NewRemoteKeySet(url string, opts RemoteKeySetOptions) *RemoteKeySet {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultJWKSTimeout
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = defaultJWKSCacheSize
	}
	if opts.TTL <= 0 {
		opts.TTL = defaultJWKSTTL
	}
	if opts.MinRefreshInterval < 0 {
		opts.MinRefreshInterval = 0
	} else if opts.MinRefreshInterval == 0 {
		opts.MinRefreshInterval = defaultJWKSMinRefresh
	}

	return &RemoteKeySet{
		url:        url,
		client:     opts.HTTPClient,
		timeout:    opts.Timeout,
		minRefresh: opts.MinRefreshInterval,
		cache:      expirable.NewLRU[string, *rsa.PublicKey](opts.CacheSize, nil, opts.TTL),
		now:        time.Now,
	}
}

// URL returns the JWKS endpoint.
func (r *RemoteKeySet) URL() string { return r.url }

// Key implements KeySource.
func (r *RemoteKeySet) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if pub, ok := r.cache.Get(kid); ok {
		return pub, nil
	}

	if !r.shouldRefresh() {
		// A fetch may have landed between the first lookup and now.
		if pub, ok := r.cache.Get(kid); ok {
			return pub, nil
		}
		return nil, ErrUnknownKID
	}

	ch := r.group.DoChan("jwks", func() (any, error) {
		// Detached so one caller giving up does not fail the others.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()
		return nil, r.refresh(fctx)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrKeyFetch, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
	}

	if pub, ok := r.cache.Get(kid); ok {
		return pub, nil
	}
	return nil, ErrUnknownKID
}

// Refresh fetches the key set now, regardless of the cache state.
func (r *RemoteKeySet) Refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.refresh(ctx)
}

func (r *RemoteKeySet) shouldRefresh() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastFetch.IsZero() || r.now().Sub(r.lastFetch) >= r.minRefresh
}

func (r *RemoteKeySet) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeyFetch, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeyFetch, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: unexpected status %d", ErrKeyFetch, resp.StatusCode)
	}

	var set JWKS
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJWKSBody)).Decode(&set); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrKeyFetch, err)
	}

	added := 0
	for _, j := range set.Keys {
		if j.Kid == "" || (j.Use != "" && j.Use != "sig") {
			continue
		}
		pub, err := j.RSAPublicKey()
		if err != nil {
			slog.Debug("skipping unusable jwk", slog.String("kid", j.Kid), slog.Any("err", err))
			continue
		}
		r.cache.Add(j.Kid, pub)
		added++
	}

	r.mu.Lock()
	r.lastFetch = r.now()
	r.mu.Unlock()

	slog.Debug("jwks refreshed", slog.String("url", r.url), slog.Int("keys", added))
	return nil
}
