package authgate

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/authgate/authgate/errors"
)

type XFramesOptions string

const (
	XFramesOptionsNone       XFramesOptions = ""
	XFramesOptionsDeny       XFramesOptions = "DENY"
	XFramesOptionsSameOrigin XFramesOptions = "SAMEORIGIN"
)

// HSTS preload requires a minimum expiration of 1 year.
var ErrBadHSTSExpiration = errors.NewC(
	"authgate: HSTS preload requires expiration of at least 1 year", errors.FailedPrecondition)

// SecurityHeaders describes the security headers set on every response.
// The gateway serves redirects and cookies, so clickjacking and sniffing
// protections are always on.
type SecurityHeaders struct {
	XFramesOptions XFramesOptions

	// Strict-Transport-Security. Zero expiration disables the header.
	HSTSExpiration        time.Duration
	HSTSIncludeSubdomains bool
	HSTSPreload           bool

	once    sync.Once
	headers map[string]string
	err     error
}

// DefaultSecurityHeaders suit a gateway serving browser redirect flows.
func DefaultSecurityHeaders() *SecurityHeaders {
	return &SecurityHeaders{
		XFramesOptions: XFramesOptionsDeny,
	}
}

// Apply sets the configured headers on the response.
func (s *SecurityHeaders) Apply(w http.ResponseWriter) error {
	s.once.Do(s.compute)
	if s.err != nil {
		return s.err
	}
	for k, v := range s.headers {
		w.Header().Set(k, v)
	}
	return nil
}

func (s *SecurityHeaders) compute() {
	s.headers = map[string]string{
		"X-Content-Type-Options": "nosniff",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
	}
	if s.XFramesOptions != XFramesOptionsNone {
		s.headers["X-Frame-Options"] = string(s.XFramesOptions)
	}
	if s.HSTSExpiration > 0 {
		v := fmt.Sprintf("max-age=%d", int(s.HSTSExpiration.Seconds()))
		if s.HSTSIncludeSubdomains {
			v += "; includeSubDomains"
		}
		if s.HSTSPreload {
			if s.HSTSExpiration < 365*24*time.Hour {
				s.err = ErrBadHSTSExpiration
				return
			}
			v += "; preload"
		}
		s.headers["Strict-Transport-Security"] = v
	}
}

// securityMiddleware applies the headers before the handler runs.
func securityMiddleware(s *SecurityHeaders) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := s.Apply(w); err != nil {
				writeJSONError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
