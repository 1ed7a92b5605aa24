package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"mauassist/internal/auth"
	"mauassist/internal/feedback"
)

type answerRequest struct {
	Answer   string   `json:"answer"`
	Category string   `json:"category"`
	Keywords []string `json:"keywords"`
}

type knowledgeRequest struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Category string   `json:"category"`
	Keywords []string `json:"keywords"`
}

type importURLRequest struct {
	URL      string   `json:"url"`
	Question string   `json:"question"`
	Category string   `json:"category"`
	Keywords []string `json:"keywords"`
}

// handleListUnanswered returns tracked questions, most frequent first
func (s *Server) handleListUnanswered(w http.ResponseWriter, r *http.Request) {
	questions := s.tracker.List(r.Context())
	if status := r.URL.Query().Get("status"); status != "" {
		filtered := make([]feedback.Question, 0, len(questions))
		for _, q := range questions {
			if q.Status == status {
				filtered = append(filtered, q)
			}
		}
		questions = filtered
	}
	writeJSON(w, http.StatusOK, questions)
}

// handleAnswerUnanswered turns a question into a custom entry
func (s *Server) handleAnswerUnanswered(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	admin, err := s.currentUser(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, auth.ErrInvalidToken.Error())
		return
	}

	var req answerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if strings.TrimSpace(req.Answer) == "" {
		writeError(w, http.StatusBadRequest, "answer is required")
		return
	}

	id := r.PathValue("id")
	if err := s.tracker.Answer(ctx, id, req.Answer, req.Category, req.Keywords, admin.Username); err != nil {
		s.writeTrackerError(w, err)
		return
	}

	s.audit(ctx, admin, "answer_question", id)
	q, err := s.tracker.Get(ctx, id)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": feedback.StatusAnswered})
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// handleIgnoreUnanswered dismisses a question
func (s *Server) handleIgnoreUnanswered(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	admin, err := s.currentUser(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, auth.ErrInvalidToken.Error())
		return
	}

	id := r.PathValue("id")
	if err := s.tracker.Ignore(ctx, id); err != nil {
		s.writeTrackerError(w, err)
		return
	}

	s.audit(ctx, admin, "ignore_question", id)
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": feedback.StatusIgnored})
}

func (s *Server) writeTrackerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, feedback.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, feedback.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, feedback.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.WithContext("error", err.Error()).Error("unanswered question update failed")
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// handleDraftAnswer asks the LLM provider for a suggested answer. With
// ?stream=true the draft is streamed as plain text.
func (s *Server) handleDraftAnswer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if s.drafter == nil {
		writeError(w, http.StatusServiceUnavailable, "draft assistance is not configured")
		return
	}

	q, err := s.tracker.Get(ctx, r.PathValue("id"))
	if err != nil {
		s.writeTrackerError(w, err)
		return
	}

	if r.URL.Query().Get("stream") == "true" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		if _, err := s.drafter.Draft(ctx, q.Question, &flushWriter{w: w}); err != nil {
			s.logger.WithContext("error", err.Error()).Warn("streamed draft failed")
		}
		return
	}

	var buf bytes.Buffer
	draft, err := s.drafter.Draft(ctx, q.Question, &buf)
	if err != nil {
		s.logger.WithContext("error", err.Error()).Warn("draft failed")
		writeError(w, http.StatusBadGateway, "draft failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": q.ID, "question": q.Question, "draft": draft})
}

// handleDraftStatus reports whether drafting is available
func (s *Server) handleDraftStatus(w http.ResponseWriter, r *http.Request) {
	if s.drafter == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"enabled": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"enabled": true, "status": s.drafter.Status()})
}

// flushWriter flushes after every write so tokens reach the client promptly
type flushWriter struct {
	w io.Writer
}

func (fw *flushWriter) Write(p []byte) (int, error) {
	n, err := fw.w.Write(p)
	if f, ok := fw.w.(http.Flusher); ok {
		f.Flush()
	}
	return n, err
}

// handleListKnowledge returns custom entries, newest first
func (s *Server) handleListKnowledge(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.knowledge.List(r.Context()))
}

// handleAddKnowledge stores a new custom entry
func (s *Server) handleAddKnowledge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	admin, err := s.currentUser(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, auth.ErrInvalidToken.Error())
		return
	}

	var req knowledgeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if strings.TrimSpace(req.Question) == "" || strings.TrimSpace(req.Answer) == "" {
		writeError(w, http.StatusBadRequest, "question and answer are required")
		return
	}

	if !s.knowledge.Add(ctx, req.Question, req.Answer, req.Category, req.Keywords, admin.Username) {
		writeError(w, http.StatusInternalServerError, "failed to save knowledge entry")
		return
	}

	s.audit(ctx, admin, "add_knowledge", req.Question)
	s.hub.Broadcast(EventKnowledgeAdded, map[string]string{"question": req.Question, "created_by": admin.Username})
	writeJSON(w, http.StatusCreated, map[string]string{"status": "created"})
}

// handleImportFile imports an uploaded YAML or JSON file of entries
func (s *Server) handleImportFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	admin, err := s.currentUser(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, auth.ErrInvalidToken.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes+1024*1024)
	if err := r.ParseMultipartForm(s.config.MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse upload")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.config.MaxUploadBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	res, err := s.importer.ImportData(ctx, header.Filename, data, admin.Username)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.audit(ctx, admin, "import_file", fmt.Sprintf("%s: %d added, %d skipped", header.Filename, res.Added, res.Skipped))
	writeJSON(w, http.StatusOK, res)
}

// handleImportURL builds an entry's answer from a web page
func (s *Server) handleImportURL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	admin, err := s.currentUser(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, auth.ErrInvalidToken.Error())
		return
	}

	var req importURLRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if strings.TrimSpace(req.URL) == "" || strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "url and question are required")
		return
	}

	answer, err := s.importer.ImportURL(ctx, req.URL, req.Question, req.Category, req.Keywords, admin.Username)
	if err != nil {
		s.logger.WithContext("error", err.Error()).Warn("URL import failed")
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	s.audit(ctx, admin, "import_url", req.URL)
	writeJSON(w, http.StatusCreated, map[string]string{"question": req.Question, "answer": answer})
}

// handleAudit returns recent audit entries
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := s.store.GetAuditLog(r.Context(), limit)
	if err != nil {
		s.logger.WithContext("error", err.Error()).Error("failed to get audit log")
		writeError(w, http.StatusInternalServerError, "failed to get audit log")
		return
	}
	if entries == nil {
		entries = []AuditEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleListUsers returns every account, newest first
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		s.logger.WithContext("error", err.Error()).Error("failed to list users")
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	if users == nil {
		users = []auth.User{}
	}
	writeJSON(w, http.StatusOK, users)
}
