package keys

import (
	"context"
	"sync"
	"time"

	"github.com/authgate/authgate/logging"
)

// Refresher is notified after every store mutation so derived caches (the
// JWKS document) are rebuilt before any request can observe the change.
type Refresher interface {
	Refresh()
}

// RotationResult reports the outcome of a rotation.
type RotationResult struct {
	PreviousActive string `json:"previousActive"`
	NewActive      string `json:"newActive"`
	TotalKeys      int    `json:"keyCount"`
}

// PurgeResult reports which keys a purge removed and which remain.
type PurgeResult struct {
	Removed   []string `json:"removed"`
	Remaining []string `json:"remaining"`
}

// Status is a read-only projection of the store for observability.
type Status struct {
	ActiveKID     string   `json:"activeKid"`
	AvailableKIDs []string `json:"availableKids"`
	KeyCount      int      `json:"keyCount"`
}

// Rotator orchestrates key rotation: adding keys, promoting a new active
// key, and purging retired keys once their grace period has elapsed. It is
// the only component that mutates the store after startup.
//
// Rotation deliberately never removes the outgoing key: tokens signed
// moments before the cutover must stay verifiable for their full lifetime.
// Operators should purge with a grace period at least as long as the token
// lifetime.
type Rotator struct {
	mu        sync.Mutex
	store     *Store
	publisher Refresher
}

// NewRotator returns a rotation controller over the given store. The
// publisher is refreshed synchronously after every mutation.
func NewRotator(store *Store, publisher Refresher) *Rotator {
	return &Rotator{store: store, publisher: publisher}
}

// Rotate validates the new key material, installs it as the active signing
// key and refreshes the JWKS publisher. The store is left unchanged when the
// material does not parse.
func (r *Rotator) Rotate(ctx context.Context, id string, privPEM, pubPEM []byte) (RotationResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	priv, pub, err := ParseKeyPairPEM(privPEM, pubPEM)
	if err != nil {
		return RotationResult{}, err
	}

	previous, _ := r.store.ActiveKeyID()
	r.store.Add(id, priv, pub, true)
	r.publisher.Refresh()

	logging.Infow(ctx, "keys: rotated signing key", "previousKid", previous, "newKid", id)
	return RotationResult{
		PreviousActive: previous,
		NewActive:      id,
		TotalKeys:      r.store.Len(),
	}, nil
}

// AddStandby validates and adds a key without promoting it, supporting
// staged rotations where the new key is published ahead of the cutover.
func (r *Rotator) AddStandby(ctx context.Context, id string, privPEM, pubPEM []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	priv, pub, err := ParseKeyPairPEM(privPEM, pubPEM)
	if err != nil {
		return err
	}
	r.store.Add(id, priv, pub, false)
	r.publisher.Refresh()

	logging.Infow(ctx, "keys: added standby key", "kid", id)
	return nil
}

// Purge removes retired keys. When explicit ids are given, each is removed
// unless it is the active key, which is skipped with a warning rather than
// an error. Without an explicit list, every non-active key at least minAge
// old is removed.
func (r *Rotator) Purge(ctx context.Context, explicit []string, minAge time.Duration) (PurgeResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	active, _ := r.store.ActiveKeyID()

	candidates := explicit
	if candidates == nil {
		for _, id := range r.store.AllKeyIDs() {
			if age, ok := r.store.KeyAge(id); ok && age >= minAge {
				candidates = append(candidates, id)
			}
		}
	}

	removed := make([]string, 0, len(candidates))
	for _, id := range candidates {
		if id == active {
			logging.Warnw(ctx, "keys: purge skipping active signing key", "kid", id)
			continue
		}
		if _, ok := r.store.PublicKey(id); !ok {
			logging.Warnw(ctx, "keys: purge skipping unknown key", "kid", id)
			continue
		}
		r.store.Remove(ctx, id)
		removed = append(removed, id)
	}

	if len(removed) > 0 {
		r.publisher.Refresh()
	}

	logging.Infow(ctx, "keys: purge complete", "removed", removed, "remaining", r.store.Len())
	return PurgeResult{
		Removed:   removed,
		Remaining: r.store.AllKeyIDs(),
	}, nil
}

// Status returns a read-only view of the store.
func (r *Rotator) Status() Status {
	active, _ := r.store.ActiveKeyID()
	return Status{
		ActiveKID:     active,
		AvailableKIDs: r.store.AllKeyIDs(),
		KeyCount:      r.store.Len(),
	}
}
