// Package directory looks up provisioned users through the Coordinator
// service, mapping a verified provider identity to an internal user record.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/authgate/authgate/errors"
	"github.com/authgate/authgate/logging"
)

// Actions understood by the Coordinator endpoint. The Coordinator dispatches
// on this string; unrecognized actions come back in the response envelope.
const (
	ActionGetUser = "get-user"
)

const requesterService = "auth"

var (
	// ErrUserNotProvisioned is returned when the directory has no record for
	// the email/provider pair. Distinct from ErrUnavailable so callers can
	// show the right message.
	ErrUserNotProvisioned = errors.NewC("directory: user not provisioned", errors.PermissionDenied)

	// ErrUnavailable is returned for network failures and 5xx responses.
	ErrUnavailable = errors.NewC("directory: service unavailable", errors.Unavailable)

	// ErrUnknownAction is returned when the Coordinator rejects the action
	// string, which indicates a deployment version mismatch.
	ErrUnknownAction = errors.NewC("directory: coordinator rejected action", errors.Internal)
)

// User is the directory's record for a provisioned user.
type User struct {
	UserID         string   `json:"userId"`
	OrganizationID string   `json:"organizationId"`
	Roles          []string `json:"roles"`
}

// Client is an HTTP client for the Coordinator's directory lookup.
type Client struct {
	url    string
	client *http.Client
}

// NewClient returns a directory client. Requests are bounded by the given
// timeout; failures surface once, immediately — retries are the caller's
// concern.
func NewClient(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

type lookupRequest struct {
	RequesterService string `json:"requesterService"`
	Action           string `json:"action"`
	Email            string `json:"email"`
	Provider         string `json:"provider"`
}

type lookupResponse struct {
	User
	Error string `json:"error,omitempty"`
}

// GetUser maps email + provider to a provisioned user. A lookup miss is
// ErrUserNotProvisioned; a directory outage is ErrUnavailable.
func (c *Client) GetUser(ctx context.Context, email, provider string) (User, error) {
	body, err := json.Marshal(lookupRequest{
		RequesterService: requesterService,
		Action:           ActionGetUser,
		Email:            email,
		Provider:         provider,
	})
	if err != nil {
		return User{}, errors.Wrap(err, 0).WithCode(errors.Internal)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return User{}, errors.Wrap(err, 0).WithCode(errors.Internal)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		logging.Warnw(ctx, "directory: lookup request failed", "error", err)
		return User{}, errors.WrapPrefix(ErrUnavailable, "directory: get-user", 0).
			WithPublicMessage("The user directory is temporarily unavailable")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return User{}, errors.WrapPrefix(ErrUserNotProvisioned, email, 0).
			WithPublicMessage("Your account has not been provisioned for this service")
	case resp.StatusCode >= 500:
		logging.Warnw(ctx, "directory: lookup returned server error", "status", resp.StatusCode)
		return User{}, errors.WrapPrefix(ErrUnavailable, "directory: get-user", 0).
			WithPublicMessage("The user directory is temporarily unavailable")
	case resp.StatusCode != http.StatusOK:
		return User{}, errors.Codef(errors.Internal, "directory: unexpected status %d", resp.StatusCode)
	}

	var out lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return User{}, errors.Wrap(err, 0).WithCode(errors.Internal).Append("directory: decoding response")
	}
	if out.Error != "" {
		return User{}, errors.WrapPrefix(ErrUnknownAction, out.Error, 0)
	}
	if out.UserID == "" {
		// Some deployments signal a miss with an empty 200 body.
		return User{}, errors.WrapPrefix(ErrUserNotProvisioned, email, 0).
			WithPublicMessage("Your account has not been provisioned for this service")
	}

	logging.Debugw(ctx, "directory: user resolved", "userId", out.UserID, "org", out.OrganizationID)
	return out.User, nil
}
