// Package token implements the signing authority for session tokens: RS256
// JWTs signed with the key store's active key, verified against any known
// key via the kid header.
package token

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/authgate/authgate/errors"
	"github.com/authgate/authgate/keys"
	"github.com/authgate/authgate/logging"
)

// Leeway for JWT expiration checks.
const jwtLeeway = 5 * time.Second

// DefaultLifetime is used when no lifetime is configured. The design relies
// on short lifetimes plus re-authentication instead of revocation.
const DefaultLifetime = 15 * time.Minute

var (
	// ErrNoActiveKey is returned by Issue when the store has no active
	// signing key. Tokens are never issued unsigned.
	ErrNoActiveKey = errors.NewC("token: no active signing key", errors.Unavailable)

	// ErrExpired is returned when a token's expiry has passed.
	ErrExpired = errors.NewC("token: expired", errors.Unauthenticated)

	// ErrInvalidSignature is returned when no known key verifies the token.
	ErrInvalidSignature = errors.NewC("token: invalid signature", errors.Unauthenticated)

	// ErrClaimMismatch is returned when the issuer or audience does not match
	// the configured expectations.
	ErrClaimMismatch = errors.NewC("token: issuer or audience mismatch", errors.Unauthenticated)

	// ErrAllKeysFailed is returned when verification was attempted with an
	// empty key set.
	ErrAllKeysFailed = errors.NewC("token: no keys available to verify", errors.Unauthenticated)
)

// Claims carried in every session token.
type Claims struct {
	jwt.RegisteredClaims

	Email    string   `json:"email,omitempty"`
	OrgID    string   `json:"org,omitempty"`
	Roles    []string `json:"roles,omitempty"`
	Provider string   `json:"idp,omitempty"`
}

// Subject is the resolved identity a token is issued for. SessionID becomes
// the jti claim and keys the session's audit record.
type Subject struct {
	Subject   string
	SessionID string
	Email     string
	OrgID     string
	Provider  string
	Roles     []string
}

// Authority signs and verifies session tokens against a key store. The
// algorithm is pinned to RS256; the active key id is embedded in the token
// header so verifiers can pick the right public key.
type Authority struct {
	store    *keys.Store
	issuer   string
	audience string
	lifetime time.Duration
	timeFunc func() time.Time
}

// NewAuthority returns a token authority over the given store. A
// non-positive lifetime falls back to DefaultLifetime.
func NewAuthority(store *keys.Store, issuer, audience string, lifetime time.Duration) *Authority {
	if lifetime <= 0 {
		lifetime = DefaultLifetime
	}
	return &Authority{
		store:    store,
		issuer:   issuer,
		audience: audience,
		lifetime: lifetime,
		timeFunc: time.Now,
	}
}

// Lifetime returns the configured token lifetime.
func (a *Authority) Lifetime() time.Duration {
	return a.lifetime
}

// Issue signs a token for the given subject with the active key. The kid
// header names the signing key; iat and exp are computed from the configured
// lifetime.
func (a *Authority) Issue(ctx context.Context, sub Subject) (string, error) {
	priv, ok := a.store.ActivePrivateKey()
	if !ok {
		return "", errors.WrapPrefix(ErrNoActiveKey, "token: issue", 0).
			WithPublicMessage("Sign-in is temporarily unavailable")
	}
	kid, ok := a.store.ActiveKeyID()
	if !ok {
		return "", errors.WrapPrefix(ErrNoActiveKey, "token: issue", 0).
			WithPublicMessage("Sign-in is temporarily unavailable")
	}

	now := a.timeFunc()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sub.SessionID,
			Subject:   sub.Subject,
			Issuer:    a.issuer,
			Audience:  jwt.ClaimStrings{a.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.lifetime)),
		},
		Email:    sub.Email,
		OrgID:    sub.OrgID,
		Roles:    sub.Roles,
		Provider: sub.Provider,
	}

	t := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	t.Header["kid"] = kid

	signed, err := t.SignedString(priv)
	if err != nil {
		return "", errors.Wrap(err, 0).WithCode(errors.Internal).Append("token: signing failed")
	}

	logging.Debugw(ctx, "token: issued", "kid", kid, "sub", sub.Subject)
	return signed, nil
}

// Verify parses and validates a token, returning its claims.
//
// The key id embedded in the header is authoritative: when it names a known
// key, verification happens strictly against that key and failures are
// final. The all-keys fallback only runs for tokens without a kid, or whose
// kid is no longer known — compatibility with tokens issued before kid
// embedding, or by a key that was since removed from the header lookup path.
func (a *Authority) Verify(ctx context.Context, raw string) (*Claims, error) {
	header, err := a.parseHeader(raw)
	if err != nil {
		return nil, err
	}

	if kid, ok := header["kid"].(string); ok && kid != "" {
		if pub, found := a.store.PublicKey(kid); found {
			claims, err := a.verifyWith(raw, pub)
			if err != nil {
				// The kid was explicit, so no fallback is attempted.
				logging.Debugw(ctx, "token: verification failed for embedded kid", "kid", kid, "error", err)
				return nil, err
			}
			return claims, nil
		}
		logging.Debugw(ctx, "token: embedded kid not known, trying all keys", "kid", kid)
	}

	ids := a.store.AllKeyIDs()
	if len(ids) == 0 {
		return nil, errors.Wrap(ErrAllKeysFailed, 0)
	}

	var lastErr error
	for _, id := range ids {
		pub, ok := a.store.PublicKey(id)
		if !ok {
			continue
		}
		claims, err := a.verifyWith(raw, pub)
		if err == nil {
			return claims, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (a *Authority) parseHeader(raw string) (map[string]interface{}, error) {
	t, _, err := jwt.NewParser().ParseUnverified(raw, &Claims{})
	if err != nil {
		return nil, errors.Wrap(ErrInvalidSignature, 0).Append(err.Error())
	}
	return t.Header, nil
}

func (a *Authority) verifyWith(raw string, pub interface{}) (*Claims, error) {
	t, err := jwt.ParseWithClaims(
		raw,
		&Claims{},
		func(*jwt.Token) (interface{}, error) { return pub, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(a.issuer),
		jwt.WithAudience(a.audience),
		jwt.WithLeeway(jwtLeeway),
		jwt.WithTimeFunc(a.timeFunc),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, mapJWTError(err)
	}
	claims, ok := t.Claims.(*Claims)
	if !ok || !t.Valid {
		return nil, errors.Wrap(ErrInvalidSignature, 0).Append("invalid claims")
	}
	return claims, nil
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return errors.Wrap(ErrExpired, 1)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer), errors.Is(err, jwt.ErrTokenInvalidAudience):
		return errors.Wrap(ErrClaimMismatch, 1)
	default:
		return errors.Wrap(ErrInvalidSignature, 1).Append(err.Error())
	}
}
