// Package httpx writes the JSON bodies of the site's API endpoints.
package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"bitpoet.dev/bitpoet-web/internal/platform/requestctx"
)

// Reason is the machine-readable cause of a failed API call.
type Reason string

const (
	ReasonInvalidPayload   Reason = "invalid_payload"
	ReasonRateLimited      Reason = "rate_limited"
	ReasonEmailFailed      Reason = "email_failed"
	ReasonMethodNotAllowed Reason = "method_not_allowed"
	ReasonInternal         Reason = "internal_error"
)

// Failure is the body of every non-2xx JSON response. The contact form script
// shows Message and marks the inputs named in Fields.
type Failure struct {
	Success    bool              `json:"success"`
	Message    string            `json:"message"`
	Reason     Reason            `json:"reason"`
	Fields     map[string]string `json:"fields,omitempty"`
	RetryAfter *int              `json:"retryAfter,omitempty"`
	RequestID  string            `json:"requestId,omitempty"`
	TraceID    string            `json:"traceId,omitempty"`
}

// Fail writes f with status. Success is always false, an empty Message becomes
// the status text, and the request and trace ids come from ctx.
func Fail(ctx context.Context, w http.ResponseWriter, status int, f Failure) {
	if status < http.StatusBadRequest {
		status = http.StatusInternalServerError
	}
	f.Success = false
	if f.Message == "" {
		f.Message = http.StatusText(status)
	}
	if f.RequestID == "" {
		f.RequestID = middleware.GetReqID(ctx)
	}
	if f.TraceID == "" {
		f.TraceID = requestctx.TraceID(ctx)
	}
	WriteJSON(w, status, f)
}

// MethodNotAllowed rejects r and advertises the allowed methods.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	Fail(r.Context(), w, http.StatusMethodNotAllowed, Failure{Reason: ReasonMethodNotAllowed})
}

// WriteJSON encodes v with status. API responses are never cached.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
