// Package jwks derives the public JSON Web Key Set from the key store so
// other services can verify session tokens.
package jwks

import (
	"context"
	"sync"

	"github.com/go-jose/go-jose/v4"

	"github.com/authgate/authgate/keys"
	"github.com/authgate/authgate/logging"
)

// Publisher caches the JWKS document derived from a key store. The cache is
// not invalidated automatically: callers that mutate the store must call
// Refresh afterwards, before any request can observe the mutation. The
// rotation controller honors this sequencing contract.
type Publisher struct {
	mu    sync.RWMutex
	store *keys.Store
	doc   jose.JSONWebKeySet
}

// NewPublisher builds a publisher over the given store and computes the
// initial document.
func NewPublisher(store *keys.Store) *Publisher {
	p := &Publisher{store: store}
	p.Refresh()
	return p
}

// Document returns the cached key set. An empty store yields a document with
// an empty key list — verifiers must treat that as "nothing to validate
// against", not an error.
func (p *Publisher) Document() jose.JSONWebKeySet {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.doc
}

// Refresh recomputes the document from the store. Keys that fail conversion
// are logged and skipped so one bad entry never empties the whole document.
func (p *Publisher) Refresh() {
	ctx := context.Background()

	set := jose.JSONWebKeySet{Keys: []jose.JSONWebKey{}}
	for _, kid := range p.store.AllKeyIDs() {
		pub, ok := p.store.PublicKey(kid)
		if !ok {
			continue
		}
		k := jose.JSONWebKey{
			Key:       pub,
			KeyID:     kid,
			Use:       "sig",
			Algorithm: string(jose.RS256),
		}
		if !k.Valid() {
			logging.Warnw(ctx, "jwks: skipping key that failed conversion", "kid", kid)
			continue
		}
		set.Keys = append(set.Keys, k)
	}

	p.mu.Lock()
	p.doc = set
	p.mu.Unlock()
}
