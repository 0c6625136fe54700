package authgate

import (
	"encoding/json"
	"net/http"

	"github.com/authgate/authgate/errors"
	"github.com/authgate/authgate/logging"
)

// JSONHandler is a plain HTTP handler that returns a value to encode, or an
// error to be rendered with its HTTP status, code name, and public message.
type JSONHandler func(r *http.Request) (any, error)

// errorResponse is the JSON body sent for a failed request. Message is the
// error's public message; internal detail stays in the logs.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func wrapJSONHandler(fn JSONHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp, err := fn(r)
		if err != nil {
			writeJSONError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "error encoding response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}

func writeJSONError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		logging.Errorw(r.Context(), "request failed", "error", err,
			"req.method", r.Method, "req.url", r.URL.String())
	} else {
		logging.Warnw(r.Context(), "request rejected", "error", err,
			"req.method", r.Method, "req.url", r.URL.String())
	}
	writeJSON(w, status, errorResponse{
		Code:    errors.CodeOf(err).String(),
		Message: errors.PublicMessage(err),
	})
}
