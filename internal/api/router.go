package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/elicit/internal/interview"
	"github.com/kalambet/elicit/internal/pipeline"
	"github.com/kalambet/elicit/internal/storage"
)

const (
	maxRequestBodySize  = 1 << 20  // 1MB
	maxDocumentBodySize = 10 << 20 // 10MB
)

type AppDeps struct {
	Store       *storage.Store
	Interviewer *pipeline.Interviewer
	Token       string
}

// NewRouter returns the HTTP API. Everything except /health requires the bearer token.
func NewRouter(deps AppDeps) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/projects", handleCreateProject(deps))
		r.Get("/projects", handleListProjects(deps))
		r.Route("/projects/{id}", func(r chi.Router) {
			r.Get("/", handleGetProject(deps))
			r.Delete("/", handleDeleteProject(deps))
			r.Post("/framework", handleGenerateFramework(deps))
			r.Get("/topics", handleTopics(deps))
			r.Patch("/topics/{topic}", handleEditTopic(deps))
			r.Post("/topics/{topic}/slots", handleAddSlot(deps))
			r.Patch("/topics/{topic}/slots/{slot}", handleEditSlot(deps))
			r.Get("/priority", handlePriority(deps))
			r.Post("/interview/start", handleStart(deps))
			r.Post("/interview/reply", handleReply(deps))
			r.Get("/chat", handleChat(deps))
		})
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

// writeError maps scheduler and storage errors onto HTTP statuses.
func writeError(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		httpError(w, http.StatusNotFound, "not_found", "%s: %v", action, err)
	case errors.Is(err, interview.ErrInvalidEdit):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%s: %v", action, err)
	case errors.Is(err, interview.ErrReferenceNotFound):
		httpError(w, http.StatusUnprocessableEntity, "reference_error", "%s: %v", action, err)
	case errors.Is(err, interview.ErrInterviewComplete),
		errors.Is(err, interview.ErrInvalidTransition),
		errors.Is(err, interview.ErrInvariantViolation),
		errors.Is(err, pipeline.ErrNotStarted),
		errors.Is(err, pipeline.ErrNoFramework):
		httpError(w, http.StatusConflict, "conflict_error", "%s: %v", action, err)
	case errors.Is(err, interview.ErrOracleUnavailable),
		errors.Is(err, interview.ErrMalformedOracleOutput):
		httpError(w, http.StatusBadGateway, "oracle_error", "%s: %v", action, err)
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "%s: %v", action, err)
	}
}

func projectID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid project id %q", chi.URLParam(r, "id"))
		return 0, false
	}
	return id, true
}
