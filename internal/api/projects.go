package api

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/kalambet/elicit/internal/docs"
	"github.com/kalambet/elicit/internal/interview"
	"github.com/kalambet/elicit/internal/storage"
)

type CreateProjectRequest struct {
	Name         string `json:"name"`
	Requirements string `json:"requirements"`
	// Document is an optional base64 encoded requirements file (text or PDF)
	// appended to Requirements.
	Document string `json:"document,omitempty"`
	Filename string `json:"filename,omitempty"`
}

func handleCreateProject(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxDocumentBodySize)
		defer r.Body.Close()

		var req CreateProjectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "name is required")
			return
		}

		requirements := strings.TrimSpace(req.Requirements)
		if req.Document != "" {
			decoded, err := base64.StdEncoding.DecodeString(req.Document)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid base64 document")
				return
			}
			text, err := docs.Extract(req.Filename, decoded)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "reading document: %v", err)
				return
			}
			requirements = strings.TrimSpace(requirements + "\n\n" + text)
		}
		if requirements == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "requirements or document is required")
			return
		}

		p, err := deps.Store.CreateProject(r.Context(), req.Name, requirements)
		if err != nil {
			writeError(w, "creating project", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(p)
	}
}

func handleListProjects(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projects, err := deps.Store.ListProjects(r.Context())
		if err != nil {
			writeError(w, "listing projects", err)
			return
		}
		if projects == nil {
			projects = []storage.Project{}
		}
		writeJSON(w, projects)
	}
}

func handleGetProject(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := projectID(w, r)
		if !ok {
			return
		}
		p, err := deps.Store.GetProject(r.Context(), id)
		if err != nil {
			writeError(w, "getting project", err)
			return
		}
		writeJSON(w, p)
	}
}

func handleDeleteProject(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := projectID(w, r)
		if !ok {
			return
		}
		if err := deps.Interviewer.DeleteProject(r.Context(), id); err != nil {
			writeError(w, "deleting project", err)
			return
		}
		writeJSON(w, map[string]string{"status": "deleted"})
	}
}

func handleGenerateFramework(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := projectID(w, r)
		if !ok {
			return
		}
		fw, err := deps.Interviewer.GenerateFramework(r.Context(), id)
		if err != nil {
			writeError(w, "generating framework", err)
			return
		}
		writeJSON(w, frameworkView(fw))
	}
}

func handleTopics(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := projectID(w, r)
		if !ok {
			return
		}
		if _, err := deps.Store.GetProject(r.Context(), id); err != nil {
			writeError(w, "getting project", err)
			return
		}
		fw, err := interview.LoadFramework(r.Context(), deps.Store, id)
		if err != nil {
			writeError(w, "loading topics", err)
			return
		}
		writeJSON(w, frameworkView(fw))
	}
}

// SectionView nests a section's topics and their slots.
type SectionView struct {
	storage.Section
	Topics []TopicView `json:"topics"`
}

type TopicView struct {
	storage.Topic
	Slots []storage.Slot `json:"slots"`
}

func frameworkView(fw interview.Framework) []SectionView {
	out := make([]SectionView, 0, len(fw.Sections))
	index := make(map[int64]int, len(fw.Sections))
	for _, sec := range fw.Sections {
		index[sec.ID] = len(out)
		out = append(out, SectionView{Section: sec, Topics: []TopicView{}})
	}
	for _, t := range fw.Topics {
		i, ok := index[t.SectionID]
		if !ok {
			continue
		}
		slots := fw.Slots[t.ID]
		if slots == nil {
			slots = []storage.Slot{}
		}
		out[i].Topics = append(out[i].Topics, TopicView{Topic: t, Slots: slots})
	}
	return out
}
