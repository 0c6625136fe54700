package directory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetUser_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "auth", req["requesterService"])
		assert.Equal(t, "get-user", req["action"])
		assert.Equal(t, "pat@example.com", req["email"])
		assert.Equal(t, "github", req["provider"])

		json.NewEncoder(w).Encode(map[string]any{
			"userId":         "user-1",
			"organizationId": "org-7",
			"roles":          []string{"admin"},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	user, err := c.GetUser(context.Background(), "pat@example.com", "github")
	require.NoError(t, err)
	assert.Equal(t, User{UserID: "user-1", OrganizationID: "org-7", Roles: []string{"admin"}}, user)
}

func TestGetUser_NotProvisioned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	_, err := c.GetUser(context.Background(), "stranger@example.com", "google")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUserNotProvisioned)
}

func TestGetUser_EmptyBodyIsNotProvisioned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	_, err := c.GetUser(context.Background(), "stranger@example.com", "google")
	assert.ErrorIs(t, err, ErrUserNotProvisioned)
}

func TestGetUser_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	_, err := c.GetUser(context.Background(), "pat@example.com", "google")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestGetUser_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // immediately, so the dial fails

	c := NewClient(srv.URL, time.Second)
	_, err := c.GetUser(context.Background(), "pat@example.com", "google")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestGetUser_UnknownAction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"error": "unknown action: get-user"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	_, err := c.GetUser(context.Background(), "pat@example.com", "google")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestGetUser_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		<-release
	}))
	defer func() {
		close(release)
		srv.Close()
	}()

	c := NewClient(srv.URL, 50*time.Millisecond)
	_, err := c.GetUser(context.Background(), "pat@example.com", "google")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}
