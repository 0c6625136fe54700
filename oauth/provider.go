// Package oauth implements the login flow against third-party identity
// providers. Each provider is one implementation of a small capability
// interface — building the authorization URL, exchanging the code, fetching
// the verified identity — unified behind a CSRF-safe, replay-resistant flow.
package oauth

import (
	"context"

	"golang.org/x/oauth2"

	"github.com/authgate/authgate/errors"
)

var (
	// ErrUnsupportedProvider is returned for provider names outside the
	// configured set.
	ErrUnsupportedProvider = errors.NewC("oauth: unsupported provider", errors.InvalidArgument)

	// ErrProviderError is returned when the provider reports an error on the
	// callback (the user denied access, or the provider failed).
	ErrProviderError = errors.NewC("oauth: provider reported an error", errors.Unauthenticated)

	// ErrMissingParameters is returned when the callback lacks code or state.
	ErrMissingParameters = errors.NewC("oauth: missing code or state parameter", errors.InvalidArgument)

	// ErrStateMismatch is returned when the callback state does not
	// exact-match the one issued for this provider. Never downgraded to a
	// retry.
	ErrStateMismatch = errors.NewC("oauth: state mismatch", errors.Unauthenticated)

	// ErrExchangeFailed is returned when the authorization code could not be
	// exchanged for a token.
	ErrExchangeFailed = errors.NewC("oauth: token exchange failed", errors.Unavailable)

	// ErrIdentityIncomplete is returned when the provider did not yield a
	// verified email address.
	ErrIdentityIncomplete = errors.NewC("oauth: provider identity is missing an email", errors.PermissionDenied)
)

// Identity is the verified identity fetched from a provider after a
// successful exchange.
type Identity struct {
	Subject       string
	Email         string
	Name          string
	EmailVerified bool
}

// Provider is the per-provider capability interface. Google speaks OpenID
// Connect with discovery and PKCE; GitHub and LinkedIn are raw OAuth2
// authorization-code exchanges. Selection happens by name through the
// flow's registry, not by inheritance.
type Provider interface {
	// Name of the provider as it appears in URLs ("google", "github", …).
	Name() string

	// UsesPKCE reports whether authorization requests carry a PKCE
	// challenge.
	UsesPKCE() bool

	// AuthCodeURL builds the authorization URL the browser is redirected
	// to. codeVerifier is empty for providers without PKCE.
	AuthCodeURL(ctx context.Context, state, codeVerifier string) (string, error)

	// Exchange swaps the authorization code for an access token.
	Exchange(ctx context.Context, code, codeVerifier string) (*oauth2.Token, error)

	// Identity fetches the verified identity for the token.
	Identity(ctx context.Context, tok *oauth2.Token) (Identity, error)
}
