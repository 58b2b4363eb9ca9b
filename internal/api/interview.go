package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/kalambet/elicit/internal/storage"
)

type ReplyRequest struct {
	Text string `json:"text"`
}

func handlePriority(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := projectID(w, r)
		if !ok {
			return
		}
		ranking, err := deps.Interviewer.Priority(r.Context(), id)
		if err != nil {
			writeError(w, "building priority", err)
			return
		}
		writeJSON(w, ranking)
	}
}

func handleStart(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := projectID(w, r)
		if !ok {
			return
		}
		res, err := deps.Interviewer.Start(r.Context(), id)
		if err != nil {
			writeError(w, "starting interview", err)
			return
		}
		writeJSON(w, res)
	}
}

func handleReply(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := projectID(w, r)
		if !ok {
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req ReplyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if strings.TrimSpace(req.Text) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "text is required")
			return
		}

		res, err := deps.Interviewer.Reply(r.Context(), id, req.Text)
		if err != nil {
			writeError(w, "processing reply", err)
			return
		}
		writeJSON(w, res)
	}
}

func handleChat(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := projectID(w, r)
		if !ok {
			return
		}
		if _, err := deps.Store.GetProject(r.Context(), id); err != nil {
			writeError(w, "getting project", err)
			return
		}
		msgs, err := deps.Store.ListMessages(r.Context(), id)
		if err != nil {
			writeError(w, "listing messages", err)
			return
		}
		if msgs == nil {
			msgs = []storage.Message{}
		}
		writeJSON(w, msgs)
	}
}
