// Package keys implements the signing key registry for the auth gateway: an
// in-memory store of RSA key pairs with a single active signing key, the
// startup loader that populates it, and the rotation controller that mutates
// it after startup.
package keys

import (
	"context"
	"crypto/rsa"
	"sort"
	"sync"
	"time"

	"github.com/authgate/authgate/errors"
	"github.com/authgate/authgate/logging"
)

// ErrUnknownKey is returned when an operation names a key id that is not in
// the store.
var ErrUnknownKey = errors.NewC("keys: unknown key id", errors.NotFound)

// keyPair is a single entry in the store. Immutable once created.
type keyPair struct {
	id      string
	private *rsa.PrivateKey
	public  *rsa.PublicKey
	addedAt time.Time
}

// Store is an in-memory registry of RSA key pairs with one designated active
// signing key. It is safe for concurrent use: reads take a shared lock and
// never block each other, mutations take an exclusive lock so a reader never
// observes a partially-updated store.
//
// Stores are constructor-injected; there is deliberately no package-level
// instance.
type Store struct {
	mu       sync.RWMutex
	active   string
	pairs    map[string]keyPair
	timeFunc func() time.Time
}

// NewStore returns an empty key store.
func NewStore() *Store {
	return &Store{
		pairs:    map[string]keyPair{},
		timeFunc: time.Now,
	}
}

// ActivePrivateKey returns the private key of the active entry, or false if
// no active key is configured.
func (s *Store) ActivePrivateKey() (*rsa.PrivateKey, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pairs[s.active]
	if !ok {
		return nil, false
	}
	return p.private, true
}

// ActiveKeyID returns the id of the active entry, or false if unset.
func (s *Store) ActiveKeyID() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.pairs[s.active]; !ok {
		return "", false
	}
	return s.active, true
}

// PublicKey returns the public key for the given id.
func (s *Store) PublicKey(id string) (*rsa.PublicKey, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pairs[id]
	if !ok {
		return nil, false
	}
	return p.public, true
}

// AllPublicKeys returns a copy of the id → public key mapping.
func (s *Store) AllPublicKeys() map[string]*rsa.PublicKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*rsa.PublicKey, len(s.pairs))
	for id, p := range s.pairs {
		out[id] = p.public
	}
	return out
}

// AllKeyIDs returns the ids of every entry, sorted for stable iteration.
func (s *Store) AllKeyIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.pairs))
	for id := range s.pairs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pairs)
}

// KeyAge returns how long ago the entry with the given id was added.
func (s *Store) KeyAge(id string) (time.Duration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pairs[id]
	if !ok {
		return 0, false
	}
	return s.timeFunc().Sub(p.addedAt), true
}

// Add inserts or overwrites an entry. If makeActive is true the entry also
// becomes the active signing key. Callers holding a derived cache (such as
// the JWKS publisher) must refresh it after any mutation; the store itself
// holds no cache.
func (s *Store) Add(id string, private *rsa.PrivateKey, public *rsa.PublicKey, makeActive bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pairs[id] = keyPair{
		id:      id,
		private: private,
		public:  public,
		addedAt: s.timeFunc(),
	}
	if makeActive {
		s.active = id
	}
}

// Remove deletes the entry with the given id. Removing the active key or an
// unknown id is a logged no-op: the active signing key can never be deleted
// while it remains active.
func (s *Store) Remove(ctx context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == s.active {
		logging.Warnw(ctx, "keys: refusing to remove active signing key", "kid", id)
		return
	}
	if _, ok := s.pairs[id]; !ok {
		logging.Warnw(ctx, "keys: remove called for unknown key", "kid", id)
		return
	}
	delete(s.pairs, id)
}

// SetActive promotes an existing entry to be the active signing key.
func (s *Store) SetActive(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pairs[id]; !ok {
		return errors.Wrap(ErrUnknownKey, 0).Append("keys: set active " + id)
	}
	s.active = id
	return nil
}
