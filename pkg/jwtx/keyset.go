package jwtx

import (
	"context"
	"crypto/rsa"
	"fmt"
	"sync"
)

// StaticKeySet is an in-memory KeySource. It serves fixed deployments where
// the provider's keys are pinned in configuration, and tests.
type StaticKeySet struct {
	mu  sync.RWMutex
	pub map[string]*rsa.PublicKey
}

// NewStaticKeySet returns an empty StaticKeySet.
func NewStaticKeySet() *StaticKeySet {
	return &StaticKeySet{pub: make(map[string]*rsa.PublicKey)}
}

// Add registers pub under kid, replacing any previous key.
func (k *StaticKeySet) Add(kid string, pub *rsa.PublicKey) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.pub[kid] = pub
}

// AddJWKS parses every key in set and adds it.
func (k *StaticKeySet) AddJWKS(set JWKS) error {
	parsed := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, j := range set.Keys {
		pub, err := j.RSAPublicKey()
		if err != nil {
			return fmt.Errorf("jwtx: key %q: %w", j.Kid, err)
		}
		parsed[j.Kid] = pub
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	for kid, pub := range parsed {
		k.pub[kid] = pub
	}
	return nil
}

// Key implements KeySource.
func (k *StaticKeySet) Key(_ context.Context, kid string) (*rsa.PublicKey, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if pub, ok := k.pub[kid]; ok {
		return pub, nil
	}
	return nil, ErrUnknownKID
}
