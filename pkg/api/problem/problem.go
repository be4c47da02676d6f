// Package problem writes RFC 7807 problem+json responses.
package problem

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// TypeBase prefixes problem type URIs.
const TypeBase = "https://caseguard.dev/errors/"

// Detail implements RFC 7807 (Problem Details for HTTP APIs).
type Detail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	// TraceID is the request ID of the failed request.
	TraceID string `json:"trace_id,omitempty"`
}

func (p *Detail) Error() string {
	return fmt.Sprintf("%s: %s", p.Title, p.Detail)
}

// Write sends a problem response. The request is optional; when given, the
// instance and trace ID are filled in.
func Write(w http.ResponseWriter, r *http.Request, status int, title, detail string) {
	p := &Detail{
		Type:   fmt.Sprintf("%s%d", TypeBase, status),
		Title:  title,
		Status: status,
		Detail: detail,
	}
	if r != nil {
		p.Instance = r.URL.Path
		p.TraceID = w.Header().Get("X-Request-ID")
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(p)
}

func BadRequest(w http.ResponseWriter, r *http.Request, detail string) {
	Write(w, r, http.StatusBadRequest, "Bad Request", detail)
}

func Unauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	if detail == "" {
		detail = "Authentication required"
	}
	w.Header().Set("WWW-Authenticate", `Bearer realm="caseguard"`)
	Write(w, r, http.StatusUnauthorized, "Unauthorized", detail)
}

func Forbidden(w http.ResponseWriter, r *http.Request, detail string) {
	if detail == "" {
		detail = "Insufficient permissions"
	}
	Write(w, r, http.StatusForbidden, "Forbidden", detail)
}

func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	Write(w, r, http.StatusNotFound, "Not Found", detail)
}

func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	Write(w, r, http.StatusMethodNotAllowed, "Method Not Allowed", "The HTTP method is not supported for this endpoint")
}

func TooManyRequests(w http.ResponseWriter, r *http.Request, retryAfterSecs int) {
	w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfterSecs))
	Write(w, r, http.StatusTooManyRequests, "Too Many Requests", "Rate limit exceeded. Retry after the specified interval.")
}

// BadGateway reports a failed upstream call. The cause is logged, never sent.
func BadGateway(w http.ResponseWriter, r *http.Request, err error) {
	logger(r).Error("upstream failure", "error", err)
	Write(w, r, http.StatusBadGateway, "Bad Gateway", "generation error")
}

// Internal reports an unexpected failure. The cause is logged, never sent.
func Internal(w http.ResponseWriter, r *http.Request, err error) {
	logger(r).Error("internal server error", "error", err)
	Write(w, r, http.StatusInternalServerError, "Internal Server Error", "An unexpected error occurred. Please try again later.")
}

func logger(r *http.Request) *slog.Logger {
	if r == nil {
		return slog.Default()
	}
	return slog.Default().With("path", r.URL.Path)
}
