package keys

import (
	"context"
	"crypto/rsa"
	"fmt"
	"os"
	"sort"

	"github.com/golang-jwt/jwt/v5"

	"github.com/authgate/authgate/errors"
	"github.com/authgate/authgate/logging"
)

// ErrInvalidKeyMaterial is returned when key material does not parse as a
// structurally valid RSA key.
var ErrInvalidKeyMaterial = errors.NewC("keys: invalid key material", errors.FailedPrecondition)

// Slot is one triple of key material from the indexed-environment strategy.
type Slot struct {
	PrivatePEM string
	PublicPEM  string
	KID        string
}

// SlotLookup returns the slot with the given 1-based index, or false if the
// slot is absent. Slot n+1 is only consulted if slot n exists.
type SlotLookup func(n int) (Slot, bool)

// FallbackKID is the positional key id used when a slot carries none.
func FallbackKID(n int) string {
	return fmt.Sprintf("key-%d", n)
}

// LoadIndexed populates the store from sequential slots 1, 2, 3, … stopping
// at the first missing slot. A present pair with no key id gets the
// positional fallback id "key-<n>". Slots that fail to parse abort the load;
// gaps are not permitted.
func LoadIndexed(ctx context.Context, store *Store, lookup SlotLookup, activeKID string) error {
	for n := 1; ; n++ {
		slot, ok := lookup(n)
		if !ok {
			break
		}
		kid := slot.KID
		if kid == "" {
			kid = FallbackKID(n)
			logging.Warnw(ctx, "keys: slot missing key id, using positional fallback", "slot", n, "kid", kid)
		}
		priv, pub, err := ParseKeyPairPEM([]byte(slot.PrivatePEM), []byte(slot.PublicPEM))
		if err != nil {
			return errors.Wrap(err, 0).Append(fmt.Sprintf("keys: slot %d", n))
		}
		store.Add(kid, priv, pub, false)
		logging.Infow(ctx, "keys: loaded signing key", "slot", n, "kid", kid)
	}
	return resolveActive(ctx, store, activeKID)
}

// LoadFromFiles populates the store with a single key pair read from the
// given file paths, under the given key id.
func LoadFromFiles(ctx context.Context, store *Store, privPath, pubPath, kid, activeKID string) error {
	privPEM, err := os.ReadFile(privPath)
	if err != nil {
		return errors.Wrap(err, 0).WithCode(errors.FailedPrecondition).Append("keys: reading private key file")
	}
	pubPEM, err := os.ReadFile(pubPath)
	if err != nil {
		return errors.Wrap(err, 0).WithCode(errors.FailedPrecondition).Append("keys: reading public key file")
	}
	priv, pub, err := ParseKeyPairPEM(privPEM, pubPEM)
	if err != nil {
		return err
	}
	store.Add(kid, priv, pub, false)
	logging.Infow(ctx, "keys: loaded signing key from files", "kid", kid)
	return resolveActive(ctx, store, activeKID)
}

// resolveActive picks the active key after loading: the explicit id if it
// names a loaded key, otherwise the lexicographically-last loaded id. The
// fallback is a deterministic heuristic, not a guarantee of "most recent".
// A store that loaded zero keys is left empty; downstream signing fails with
// a typed error rather than crashing here.
func resolveActive(ctx context.Context, store *Store, explicit string) error {
	ids := store.AllKeyIDs()
	if len(ids) == 0 {
		logging.Warn(ctx, "keys: no signing keys loaded, token issuance will be unavailable")
		return nil
	}
	if explicit != "" {
		if err := store.SetActive(explicit); err == nil {
			logging.Infow(ctx, "keys: active signing key set from config", "kid", explicit)
			return nil
		}
		logging.Warnw(ctx, "keys: configured active key id not loaded, falling back", "kid", explicit)
	}
	sort.Strings(ids)
	last := ids[len(ids)-1]
	if err := store.SetActive(last); err != nil {
		return err
	}
	logging.Infow(ctx, "keys: active signing key defaulted to lexicographically-last id", "kid", last)
	return nil
}

// ParseKeyPairPEM parses a private/public PEM pair, returning
// ErrInvalidKeyMaterial if either fails to parse.
func ParseKeyPairPEM(privPEM, pubPEM []byte) (*rsa.PrivateKey, *rsa.PublicKey, error) {
	priv, err := ParsePrivateKeyPEM(privPEM)
	if err != nil {
		return nil, nil, err
	}
	pub, err := ParsePublicKeyPEM(pubPEM)
	if err != nil {
		return nil, nil, err
	}
	return priv, pub, nil
}

// ParsePrivateKeyPEM parses a PEM-encoded RSA private key in PKCS#1 or
// PKCS#8 form.
func ParsePrivateKeyPEM(data []byte) (*rsa.PrivateKey, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(data)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidKeyMaterial, 0).Append(err.Error())
	}
	return key, nil
}

// ParsePublicKeyPEM parses a PEM-encoded RSA public key in PKIX or PKCS#1
// form. Certificates holding an RSA public key are accepted too.
func ParsePublicKeyPEM(data []byte) (*rsa.PublicKey, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM(data)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidKeyMaterial, 0).Append(err.Error())
	}
	return key, nil
}
