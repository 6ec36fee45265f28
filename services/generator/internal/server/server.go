// Package server exposes the HTTP surface of the generator: document
// upload, job status, topic review, and draft selection.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"questiongen/internal/ratelimit"
	"questiongen/internal/util"
	"questiongen/pkg/domain"
	"questiongen/services/generator/internal/app"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	UploadLimiter  *ratelimit.FixedWindowLimiter
	TrustedProxies *util.TrustedProxies
	MaxUploadBytes int64
}

// Server exposes HTTP endpoints for the generator service.
type Server struct {
	app            *app.App
	uploadLimiter  *ratelimit.FixedWindowLimiter
	trustedProxies *util.TrustedProxies
	maxUploadBytes int64
	mux            *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 20 << 20
	}
	s := &Server{
		app:            cfg.App,
		uploadLimiter:  cfg.UploadLimiter,
		trustedProxies: cfg.TrustedProxies,
		maxUploadBytes: maxUpload,
		mux:            http.NewServeMux(),
	}
	s.routes()
	return s
}

// Router returns the configured handler with the middleware chain.
func (s *Server) Router() http.Handler {
	return util.WithSecurityHeaders(
		util.WithCORS(
			util.WithRequestID(
				util.WithRequestLog("generator", s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/jobs", s.handleJobs)
	s.mux.HandleFunc("/jobs/", s.handleJobSubtree)
	s.mux.HandleFunc("/topics/", s.handleTopicSubtree)
	s.mux.HandleFunc("/drafts/save", s.handleSaveDrafts)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleJobs serves POST /jobs (upload) and GET /jobs?scopeId=.
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleUpload(w, r)
	case http.MethodGet:
		s.handleListJobs(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.uploadLimiter != nil {
		ip := util.ClientIP(r, s.trustedProxies)
		if !s.uploadLimiter.Allow(ip) {
			writeError(w, http.StatusTooManyRequests, "too many uploads, try again later")
			return
		}
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart upload")
		return
	}
	ownerID := strings.TrimSpace(r.FormValue("ownerId"))
	scopeID := strings.TrimSpace(r.FormValue("scopeId"))
	if ownerID == "" || scopeID == "" {
		writeError(w, http.StatusBadRequest, "ownerId and scopeId are required")
		return
	}
	file, header, err := r.FormFile("document")
	if err != nil {
		writeError(w, http.StatusBadRequest, "document file is required")
		return
	}
	defer file.Close()

	content, err := app.ReadUpload(file, s.maxUploadBytes)
	if err != nil {
		writeAppError(w, err)
		return
	}
	job, err := s.app.Enqueue(r.Context(), ownerID, scopeID, header.Filename, content)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	scopeID := strings.TrimSpace(r.URL.Query().Get("scopeId"))
	if scopeID == "" {
		writeError(w, http.StatusBadRequest, "scopeId query parameter is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	jobs, err := s.app.ListJobs(r.Context(), scopeID, limit)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

// handleJobSubtree serves GET /jobs/{id} and GET /jobs/{id}/topics.
func (s *Server) handleJobSubtree(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/jobs/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		http.NotFound(w, r)
		return
	}
	switch sub {
	case "":
		job, ok, err := s.app.GetJob(r.Context(), id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		if !ok {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeJSON(w, http.StatusOK, job)
	case "topics":
		topics, err := s.app.ListTopics(r.Context(), id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"topics": topics})
	case "drafts":
		drafts, err := s.app.ListJobDrafts(r.Context(), id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"drafts": drafts})
	case "document":
		url, err := s.app.DocumentURL(r.Context(), id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"url": url})
	default:
		http.NotFound(w, r)
	}
}

// handleTopicSubtree serves PATCH /topics/{id} and GET /topics/{id}/drafts.
func (s *Server) handleTopicSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/topics/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		http.NotFound(w, r)
		return
	}
	switch {
	case sub == "" && r.Method == http.MethodPatch:
		s.handleReconfigureTopic(w, r, id)
	case sub == "drafts" && r.Method == http.MethodGet:
		drafts, err := s.app.ListDrafts(r.Context(), id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"drafts": drafts})
	default:
		methodNotAllowed(w)
	}
}

type reconfigureRequest struct {
	QuestionCount int                   `json:"questionCount"`
	QuestionTypes []domain.QuestionType `json:"questionTypes"`
}

func (s *Server) handleReconfigureTopic(w http.ResponseWriter, r *http.Request, topicID string) {
	var req reconfigureRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	topic, err := s.app.ReconfigureTopic(r.Context(), topicID, req.QuestionCount, req.QuestionTypes)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, topic)
}

type saveDraftsRequest struct {
	ScopeID  string   `json:"scopeId"`
	OwnerID  string   `json:"ownerId"`
	DraftIDs []string `json:"draftIds"`
}

func (s *Server) handleSaveDrafts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req saveDraftsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.ScopeID) == "" || strings.TrimSpace(req.OwnerID) == "" {
		writeError(w, http.StatusBadRequest, "scopeId and ownerId are required")
		return
	}
	saved, err := s.app.SaveSelected(r.Context(), req.ScopeID, req.OwnerID, req.DraftIDs)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"saved": len(saved), "drafts": saved})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	return dec.Decode(dst)
}

func writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidDocument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrTopicLocked):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
