package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/elicit/internal/interview"
)

type EditTopicRequest struct {
	Content string `json:"content"`
}

type AddSlotRequest struct {
	Key       string  `json:"key"`
	Value     *string `json:"value,omitempty"`
	Necessity bool    `json:"necessity"`
}

// decodeBody reads a bounded JSON body into v and reports a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

func handleEditTopic(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := projectID(w, r)
		if !ok {
			return
		}
		var req EditTopicRequest
		if !decodeBody(w, r, &req) {
			return
		}
		t, err := deps.Interviewer.EditTopic(r.Context(), id, chi.URLParam(r, "topic"), req.Content)
		if err != nil {
			writeError(w, "editing topic", err)
			return
		}
		writeJSON(w, t)
	}
}

func handleAddSlot(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := projectID(w, r)
		if !ok {
			return
		}
		var req AddSlotRequest
		if !decodeBody(w, r, &req) {
			return
		}
		sl, err := deps.Interviewer.AddSlot(r.Context(), id, chi.URLParam(r, "topic"), req.Key, req.Value, req.Necessity)
		if err != nil {
			writeError(w, "adding slot", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(sl)
	}
}

func handleEditSlot(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := projectID(w, r)
		if !ok {
			return
		}
		var req interview.SlotEdit
		if !decodeBody(w, r, &req) {
			return
		}
		sl, err := deps.Interviewer.EditSlot(r.Context(), id, chi.URLParam(r, "topic"), chi.URLParam(r, "slot"), req)
		if err != nil {
			writeError(w, "editing slot", err)
			return
		}
		writeJSON(w, sl)
	}
}
