// Package api exposes review and classification over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/focusforward/caseguard/pkg/api/problem"
	"github.com/focusforward/caseguard/pkg/auth"
	"github.com/focusforward/caseguard/pkg/review"
	"github.com/focusforward/caseguard/pkg/tally"
)

// maxBodyBytes bounds request bodies well above the longest valid note.
const maxBodyBytes = 64 << 10

// Reviewer is the review pipeline the handlers call.
type Reviewer interface {
	Review(ctx context.Context, req review.Request) (review.ReviewResult, error)
	Classify(ctx context.Context, note string) (review.Classification, error)
}

// Options wires a router. Reviewer is required; a nil Tallies disables the
// session routes and a nil Validator rejects every protected request.
type Options struct {
	Reviewer    Reviewer
	Tallies     tally.Store
	Validator   auth.TokenValidator
	Limiter     Limiter
	RateRPS     float64
	CORSOrigins []string
	// Versions is reported by /health.
	Versions map[string]string
	Logger   *slog.Logger
}

type server struct {
	reviewer Reviewer
	tallies  tally.Store
	versions map[string]string
	logger   *slog.Logger
}

// NewRouter builds the HTTP handler. Middleware runs in order: request ID,
// CORS, rate limit, auth.
func NewRouter(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "api")
	s := &server{reviewer: opts.Reviewer, tallies: opts.Tallies, versions: opts.Versions, logger: logger}

	r := chi.NewRouter()
	r.Use(auth.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(auth.CORS(opts.CORSOrigins))
	r.Use(RateLimitMiddleware(opts.Limiter, opts.RateRPS, logger))
	r.Use(auth.NewMiddleware(opts.Validator, logger))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		problem.NotFound(w, r, "No such endpoint")
	})
	r.MethodNotAllowed(problem.MethodNotAllowed)

	r.Get("/health", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/review", s.handleReview)
		r.Post("/classify", s.handleClassify)
		r.Get("/sessions/{id}/tally", s.handleTally)
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		problem.BadRequest(w, r, "Invalid request body")
		return false
	}
	return true
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	body := map[string]string{"status": "ok"}
	for k, v := range s.versions {
		body[k] = v
	}
	writeJSON(w, http.StatusOK, body)
}

type reviewRequest struct {
	Note      string   `json:"note"`
	Hints     []string `json:"hints,omitempty"`
	SessionID string   `json:"session_id,omitempty"`
}

func (s *server) handleReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if !decode(w, r, &req) {
		return
	}
	if req.SessionID != "" && !tally.ValidSession(req.SessionID) {
		problem.BadRequest(w, r, "Invalid session_id")
		return
	}
	p, err := auth.GetPrincipal(r.Context())
	if err != nil {
		problem.Unauthorized(w, r, "")
		return
	}

	result, err := s.reviewer.Review(r.Context(), review.Request{Note: req.Note, Hints: req.Hints, Email: p.Email})
	if err != nil {
		s.writeReviewError(w, r, err)
		return
	}

	if req.SessionID != "" && s.tallies != nil {
		if err := s.tallies.Record(r.Context(), req.SessionID, tally.EntryFrom(result)); err != nil {
			s.logger.WarnContext(r.Context(), "tally record failed",
				"request_id", auth.RequestIDFrom(r.Context()), "error", err)
		}
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *server) writeReviewError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *review.ValidationError
	var uerr *review.UpstreamError
	switch {
	case errors.As(err, &verr):
		problem.BadRequest(w, r, verr.Message())
	case errors.Is(err, review.ErrAccessDenied):
		problem.Forbidden(w, r, "No active subscription")
	case errors.As(err, &uerr):
		problem.BadGateway(w, r, uerr)
	default:
		problem.Internal(w, r, err)
	}
}

type classifyRequest struct {
	Note string `json:"note"`
}

func (s *server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if !decode(w, r, &req) {
		return
	}
	c, err := s.reviewer.Classify(r.Context(), req.Note)
	if err != nil {
		s.writeReviewError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *server) handleTally(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !tally.ValidSession(id) {
		problem.BadRequest(w, r, "Invalid session id")
		return
	}
	if s.tallies == nil {
		problem.NotFound(w, r, "Session tallies are disabled")
		return
	}
	t, err := s.tallies.Get(r.Context(), id)
	if err != nil {
		problem.Internal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}
