package oauth

import (
	"context"
	"encoding/json"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/authgate/authgate/errors"
	"github.com/authgate/authgate/logging"
)

const defaultGitHubAPI = "https://api.github.com"

// GitHub authenticates users through GitHub's OAuth2 authorization-code
// flow. GitHub does not guarantee an email on the user record, so the
// primary address is resolved through a second call to /user/emails.
type GitHub struct {
	conf   *oauth2.Config
	apiURL string
}

// NewGitHub returns a GitHub provider for the given OAuth app.
func NewGitHub(clientID, clientSecret, redirectURL string) *GitHub {
	return &GitHub{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     github.Endpoint,
			RedirectURL:  redirectURL,
			Scopes:       []string{"read:user", "user:email"},
		},
		apiURL: defaultGitHubAPI,
	}
}

func (g *GitHub) Name() string { return "github" }

func (g *GitHub) UsesPKCE() bool { return false }

func (g *GitHub) AuthCodeURL(_ context.Context, state, _ string) (string, error) {
	return g.conf.AuthCodeURL(state), nil
}

func (g *GitHub) Exchange(ctx context.Context, code, _ string) (*oauth2.Token, error) {
	tok, err := g.conf.Exchange(ctx, code)
	if err != nil {
		return nil, errors.WrapPrefix(ErrExchangeFailed, "github", 0).
			WithPublicMessage("GitHub sign-in failed, please try again")
	}
	return tok, nil
}

func (g *GitHub) Identity(ctx context.Context, tok *oauth2.Token) (Identity, error) {
	client := g.conf.Client(ctx, tok)

	var user struct {
		ID    int64  `json:"id"`
		Login string `json:"login"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := getJSON(ctx, client, g.apiURL+"/user", &user); err != nil {
		return Identity{}, errors.Wrap(err, 0).WithCode(errors.Unavailable).Append("github: fetching user")
	}

	ident := Identity{
		Subject: user.Login,
		Email:   user.Email,
		Name:    user.Name,
	}

	if ident.Email == "" {
		email, verified, err := g.primaryEmail(ctx, client)
		if err != nil {
			return Identity{}, err
		}
		ident.Email = email
		ident.EmailVerified = verified
	} else {
		// An email on the public profile is user-asserted; the emails
		// endpoint is the source of truth for verification.
		_, verified, err := g.primaryEmail(ctx, client)
		if err == nil {
			ident.EmailVerified = verified
		}
	}
	return ident, nil
}

// primaryEmail resolves the account's primary address, preferring verified
// entries.
func (g *GitHub) primaryEmail(ctx context.Context, client *http.Client) (string, bool, error) {
	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := getJSON(ctx, client, g.apiURL+"/user/emails", &emails); err != nil {
		return "", false, errors.Wrap(err, 0).WithCode(errors.Unavailable).Append("github: fetching emails")
	}
	for _, e := range emails {
		if e.Primary {
			return e.Email, e.Verified, nil
		}
	}
	if len(emails) > 0 {
		logging.Warn(ctx, "github: no primary email flagged, using first address")
		return emails[0].Email, emails[0].Verified, nil
	}
	return "", false, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Codef(errors.Unavailable, "unexpected status %d from %s", resp.StatusCode, url)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
