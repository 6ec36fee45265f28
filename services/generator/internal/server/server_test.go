package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"questiongen/pkg/ai"
	"questiongen/pkg/domain"
	"questiongen/pkg/questionbank"
	"questiongen/pkg/storage"
	"questiongen/pkg/store"
	"questiongen/services/generator/internal/app"
)

type fixedExtractor struct{}

func (fixedExtractor) Extract(_ context.Context, r io.Reader) (string, error) {
	_, _ = io.Copy(io.Discard, r)
	return "course text", nil
}

type fixedAnalyzer struct{}

func (fixedAnalyzer) Analyze(context.Context, string) ([]ai.TopicDescriptor, error) {
	return []ai.TopicDescriptor{{Title: "Recursion", Description: "Base cases", Content: "course text"}}, nil
}

type fixedGenerator struct{}

func (fixedGenerator) Generate(context.Context, ai.TopicDescriptor, []domain.QuestionType, int) ([]ai.DraftDescriptor, error) {
	return []ai.DraftDescriptor{{
		Name: "Q1",
		Text: "Is recursion self-referential?",
		Type: domain.TypeTrueFalse,
		Answers: []domain.Answer{
			{Text: "True", Fraction: 1},
			{Text: "False", Fraction: 0},
		},
	}}, nil
}

func (fixedGenerator) SampleQuestions(ai.TopicDescriptor, []domain.QuestionType, int) []ai.DraftDescriptor {
	return nil
}

func newTestServer(t *testing.T) (*Server, *app.App) {
	t.Helper()
	core, err := app.New(app.Config{
		Store:     store.NewMemoryStore(),
		Objects:   storage.NewMemoryObjectStore(),
		Extractor: fixedExtractor{},
		Analyzer:  fixedAnalyzer{},
		Generator: fixedGenerator{},
		Bank:      questionbank.NewMemoryBank(),
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return New(Config{App: core}), core
}

func multipartUpload(t *testing.T, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("ownerId", "user-7"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	if err := mw.WriteField("scopeId", "course-42"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	fw, err := mw.CreateFormFile("document", "outline.pdf")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("write file: %v", err)
	}
	mw.Close()
	return &body, mw.FormDataContentType()
}

func TestUploadCreatesPendingJob(t *testing.T) {
	srv, _ := newTestServer(t)
	body, contentType := multipartUpload(t, []byte("%PDF-1.4 outline"))

	req := httptest.NewRequest(http.MethodPost, "/jobs", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var job domain.Job
	if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if job.Status != domain.JobPending || job.ID == "" {
		t.Fatalf("job = %+v", job)
	}
}

func TestUploadRejectsNonPDF(t *testing.T) {
	srv, _ := newTestServer(t)
	body, contentType := multipartUpload(t, []byte("just text"))

	req := httptest.NewRequest(http.MethodPost, "/jobs", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGetJobNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/jobs/nope", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestListJobsRequiresScope(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/jobs", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestReconfigureLockedTopicConflicts(t *testing.T) {
	srv, core := newTestServer(t)

	job, err := core.Enqueue(context.Background(), "user-7", "course-42", "outline.pdf", []byte("%PDF-1.4 outline"))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := core.ClaimAndRun(context.Background(), 1); err != nil {
		t.Fatalf("run: %v", err)
	}
	topics, err := core.ListTopics(context.Background(), job.ID)
	if err != nil || len(topics) == 0 {
		t.Fatalf("topics: %v (%d)", err, len(topics))
	}

	payload := strings.NewReader(`{"questionCount":3,"questionTypes":["essay"]}`)
	req := httptest.NewRequest(http.MethodPatch, "/topics/"+topics[0].ID, payload)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestSaveDraftsRequiresIdentity(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/drafts/save", strings.NewReader(`{"draftIds":["d1"]}`))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatal("missing request id header")
	}
}
