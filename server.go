package authgate

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/go-chi/chi/v5"

	"github.com/authgate/authgate/auditlog"
	"github.com/authgate/authgate/errors"
	"github.com/authgate/authgate/jwks"
	"github.com/authgate/authgate/keys"
	"github.com/authgate/authgate/logging"
	"github.com/authgate/authgate/oauth"
	"github.com/authgate/authgate/token"
)

// Components are the assembled pieces the HTTP surface exposes. Build them
// by hand in tests, or from configuration with FromConfig.
type Components struct {
	Keys      *keys.Store
	Authority *token.Authority
	Publisher *jwks.Publisher
	Rotator   *keys.Rotator
	Flow      *oauth.Flow
	Audit     auditlog.Store

	// SuccessURL is where the browser is redirected after login;
	// LoginURL receives failed logins with an error query parameter.
	SuccessURL string
	LoginURL   string

	// AdminToken guards the key management endpoints. Empty disables them.
	AdminToken string

	// RotationSlots supplies fresh key material for the rotate endpoint,
	// read at call time so new slots appear without a restart.
	RotationSlots keys.SlotLookup

	Security *SecurityHeaders
	Logger   logging.Logger
}

// Server is the authentication gateway's HTTP server.
type Server struct {
	addr    string
	comp    Components
	handler http.Handler
	http    *http.Server
}

// New builds a server listening on host:port.
func New(host, port string, comp Components) *Server {
	if comp.Security == nil {
		comp.Security = DefaultSecurityHeaders()
	}
	s := &Server{
		addr: net.JoinHostPort(host, port),
		comp: comp,
	}
	s.handler = s.routes()
	return s
}

// Handler exposes the routed handler, primarily for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.loggingMiddleware)
	r.Use(securityMiddleware(s.comp.Security))

	r.Get("/login/{provider}", s.handleLogin)
	r.Get("/auth/{provider}/callback", s.handleCallback)
	r.Get("/logout", s.handleLogout)

	r.Method(http.MethodGet, "/.well-known/jwks.json",
		gziphandler.GzipHandler(http.HandlerFunc(s.handleJWKS)))

	r.Route("/admin/keys", func(r chi.Router) {
		r.Use(s.adminOnly)
		r.Method(http.MethodPost, "/rotate", wrapJSONHandler(s.handleRotate))
		r.Method(http.MethodPost, "/purge", wrapJSONHandler(s.handlePurge))
		r.Method(http.MethodGet, "/status", wrapJSONHandler(s.handleKeyStatus))
	})

	return r
}

// loggingMiddleware scopes a logger into the request context and logs each
// request on completion.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if s.comp.Logger != nil {
			ctx = logging.With(ctx, s.comp.Logger)
		}
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r.WithContext(ctx))
		logging.Infow(ctx, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", time.Since(start),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Start serves until ctx is cancelled, then drains with a bounded
// shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.http = &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Infow(ctx, "authgate listening", "addr", s.addr)
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.WrapPrefix(err, "authgate: serve", 0)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return errors.WrapPrefix(err, "authgate: shutdown", 0)
		}
		return nil
	}
}
