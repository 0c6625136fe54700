package authgate

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/authgate/authgate/errors"
	"github.com/authgate/authgate/keys"
	"github.com/authgate/authgate/logging"
)

var errAdminDisabled = errors.NewC("authgate: admin endpoints are not configured", errors.PermissionDenied).
	WithPublicMessage("Not available")

var errBadAdminToken = errors.NewC("authgate: invalid admin token", errors.Unauthenticated).
	WithPublicMessage("Invalid credentials")

// adminOnly guards key management with a static bearer token. No token
// configured means the endpoints are off.
func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.comp.AdminToken == "" {
			writeJSONError(w, r, errAdminDisabled)
			return
		}
		got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.comp.AdminToken)) != 1 {
			writeJSONError(w, r, errBadAdminToken)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type rotateRequest struct {
	// Slot selects a specific configured key slot. Zero means the first
	// slot holding a key id the store does not have yet.
	Slot int `json:"slot,omitempty"`
}

type rotateResponse struct {
	PreviousActive string `json:"previousActive"`
	NewActive      string `json:"newActive"`
	TotalKeys      int    `json:"totalKeys"`
}

// handleRotate activates new signing material. Slots are re-read from
// configuration on every call so operators can deploy a key and rotate to
// it without restarting the gateway.
func (s *Server) handleRotate(r *http.Request) (any, error) {
	var req rotateRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}

	slot, err := s.pickRotationSlot(req.Slot)
	if err != nil {
		return nil, err
	}

	res, err := s.comp.Rotator.Rotate(r.Context(), slot.KID, []byte(slot.PrivatePEM), []byte(slot.PublicPEM))
	if err != nil {
		return nil, err
	}
	logging.Infow(r.Context(), "signing key rotated",
		"previous", res.PreviousActive, "active", res.NewActive, "total", res.TotalKeys)
	return rotateResponse{
		PreviousActive: res.PreviousActive,
		NewActive:      res.NewActive,
		TotalKeys:      res.TotalKeys,
	}, nil
}

func (s *Server) pickRotationSlot(explicit int) (keys.Slot, error) {
	if s.comp.RotationSlots == nil {
		return keys.Slot{}, errors.NewC("authgate: no rotation key source configured", errors.FailedPrecondition).
			WithPublicMessage("No key material available for rotation")
	}
	if explicit > 0 {
		slot, ok := s.comp.RotationSlots(explicit)
		if !ok {
			return keys.Slot{}, errors.Codef(errors.NotFound, "authgate: key slot %d is not configured", explicit).
				WithPublicMessage("Requested key slot is not configured")
		}
		return withFallbackKID(slot, explicit), nil
	}

	loaded := make(map[string]bool)
	for _, id := range s.comp.Keys.AllKeyIDs() {
		loaded[id] = true
	}
	for n := 1; ; n++ {
		slot, ok := s.comp.RotationSlots(n)
		if !ok {
			break
		}
		slot = withFallbackKID(slot, n)
		if !loaded[slot.KID] {
			return slot, nil
		}
	}
	return keys.Slot{}, errors.NewC("authgate: every configured key slot is already loaded", errors.FailedPrecondition).
		WithPublicMessage("No new key material available for rotation")
}

func withFallbackKID(slot keys.Slot, n int) keys.Slot {
	if slot.KID == "" {
		slot.KID = keys.FallbackKID(n)
	}
	return slot
}

type purgeRequest struct {
	// KIDs lists keys to remove. Empty means every non-active key older
	// than MinAgeMinutes.
	KIDs          []string `json:"kids,omitempty"`
	MinAgeMinutes int      `json:"minAgeMinutes,omitempty"`
}

type purgeResponse struct {
	Removed   []string `json:"removed"`
	Remaining []string `json:"remaining"`
}

func (s *Server) handlePurge(r *http.Request) (any, error) {
	var req purgeRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}

	res, err := s.comp.Rotator.Purge(r.Context(), req.KIDs, time.Duration(req.MinAgeMinutes)*time.Minute)
	if err != nil {
		return nil, err
	}
	logging.Infow(r.Context(), "signing keys purged", "removed", res.Removed, "remaining", res.Remaining)
	return purgeResponse{Removed: res.Removed, Remaining: res.Remaining}, nil
}

type keyStatusResponse struct {
	ActiveKID     string   `json:"activeKid"`
	AvailableKIDs []string `json:"availableKids"`
	KeyCount      int      `json:"keyCount"`
}

func (s *Server) handleKeyStatus(r *http.Request) (any, error) {
	st := s.comp.Rotator.Status()
	return keyStatusResponse{
		ActiveKID:     st.ActiveKID,
		AvailableKIDs: st.AvailableKIDs,
		KeyCount:      st.KeyCount,
	}, nil
}

// decodeBody tolerates an empty body so POSTs without options work.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.WrapPrefix(err, "authgate: decoding request body", 0).
			WithCode(errors.InvalidArgument).
			WithPublicMessage("Malformed request body")
	}
	return nil
}
