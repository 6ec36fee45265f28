// Package app is the job state machine: it accepts uploads, claims
// pending jobs, runs the generation pipeline, and applies review
// decisions. Jobs move pending -> processing -> completed|failed and
// never leave a terminal state.
package app

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"questiongen/internal/util"
	"questiongen/pkg/ai"
	"questiongen/pkg/domain"
	"questiongen/pkg/extract"
	"questiongen/pkg/questionbank"
	"questiongen/pkg/storage"
	"questiongen/pkg/store"
)

const (
	defaultQuestionCount = 5
	defaultAITimeout     = 30 * time.Second
	storageKeyPrefix     = "curricula/"
)

// defaultQuestionTypes applies when the analyzer does not suggest types
// for a topic.
var defaultQuestionTypes = []domain.QuestionType{domain.TypeMultichoice, domain.TypeTrueFalse}

// TopicAnalyzer proposes curriculum topics from extracted text.
type TopicAnalyzer interface {
	Analyze(ctx context.Context, text string) ([]ai.TopicDescriptor, error)
}

// QuestionGenerator drafts questions for one topic, with a
// deterministic sample set as the degraded-mode alternative.
type QuestionGenerator interface {
	Generate(ctx context.Context, topic ai.TopicDescriptor, types []domain.QuestionType, count int) ([]ai.DraftDescriptor, error)
	SampleQuestions(topic ai.TopicDescriptor, types []domain.QuestionType, count int) []ai.DraftDescriptor
}

// Enqueuer wakes workers after a job is inserted. Delivery is
// best-effort; the poll loop picks up anything the stream misses.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobID string) error
}

// Config holds the collaborators and tunables for the state machine.
type Config struct {
	Store     store.Store
	Objects   storage.ObjectStore
	Extractor extract.Extractor
	Analyzer  TopicAnalyzer
	Generator QuestionGenerator
	Bank      questionbank.Bank
	Queue     Enqueuer

	CategoryName string
	AITimeout    time.Duration
	Now          func() time.Time
}

// App processes question generation jobs.
type App struct {
	store     store.Store
	objects   storage.ObjectStore
	extractor extract.Extractor
	analyzer  TopicAnalyzer
	generator QuestionGenerator
	bank      questionbank.Bank
	queue     Enqueuer

	categoryName string
	aiTimeout    time.Duration
	now          func() time.Time
}

// New validates the wiring and returns the state machine.
func New(cfg Config) (*App, error) {
	switch {
	case cfg.Store == nil:
		return nil, errors.New("store is required")
	case cfg.Objects == nil:
		return nil, errors.New("object store is required")
	case cfg.Extractor == nil:
		return nil, errors.New("extractor is required")
	case cfg.Analyzer == nil:
		return nil, errors.New("analyzer is required")
	case cfg.Generator == nil:
		return nil, errors.New("generator is required")
	case cfg.Bank == nil:
		return nil, errors.New("question bank is required")
	}
	if cfg.CategoryName == "" {
		cfg.CategoryName = questionbank.DefaultCategoryName
	}
	if cfg.AITimeout <= 0 {
		cfg.AITimeout = defaultAITimeout
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &App{
		store:        cfg.Store,
		objects:      cfg.Objects,
		extractor:    cfg.Extractor,
		analyzer:     cfg.Analyzer,
		generator:    cfg.Generator,
		bank:         cfg.Bank,
		queue:        cfg.Queue,
		categoryName: cfg.CategoryName,
		aiTimeout:    cfg.AITimeout,
		now:          cfg.Now,
	}, nil
}

// Enqueue validates an uploaded document, stores it, and registers a
// pending job. Only documents with a PDF signature are accepted.
func (a *App) Enqueue(ctx context.Context, ownerID, scopeID, filename string, content []byte) (domain.Job, error) {
	if strings.TrimSpace(ownerID) == "" || strings.TrimSpace(scopeID) == "" {
		return domain.Job{}, errors.New("ownerId and scopeId are required")
	}
	if len(content) == 0 {
		return domain.Job{}, fmt.Errorf("%w: empty upload", domain.ErrInvalidDocument)
	}
	if !extract.IsPDF(content) {
		return domain.Job{}, fmt.Errorf("%w: missing PDF signature", domain.ErrInvalidDocument)
	}

	sum := sha1.Sum(content)
	now := a.now()
	job := domain.Job{
		ID:          util.NewID(),
		OwnerID:     ownerID,
		ScopeID:     scopeID,
		Filename:    strings.TrimSpace(filename),
		Fingerprint: hex.EncodeToString(sum[:]),
		Status:      domain.JobPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	job.StorageKey = storageKeyPrefix + job.ID + ".pdf"

	if err := a.objects.Put(ctx, job.StorageKey, bytes.NewReader(content), int64(len(content)), "application/pdf"); err != nil {
		return domain.Job{}, fmt.Errorf("store document: %w", err)
	}
	if err := a.store.CreateJob(ctx, job); err != nil {
		return domain.Job{}, fmt.Errorf("create job: %w", err)
	}
	if a.queue != nil {
		if err := a.queue.Enqueue(ctx, job.ID); err != nil {
			// The periodic claim loop will still find the job.
			util.LoggerFromContext(ctx).Warn("queue wake-up failed", "job_id", job.ID, "err", err)
		}
	}
	return job, nil
}

// GetJob returns one job by id.
func (a *App) GetJob(ctx context.Context, jobID string) (domain.Job, bool, error) {
	return a.store.GetJob(ctx, jobID)
}

// ListJobs returns the most recent jobs of a scope, newest first.
func (a *App) ListJobs(ctx context.Context, scopeID string, limit int) ([]domain.Job, error) {
	if limit <= 0 {
		limit = 20
	}
	return a.store.ListJobsByScope(ctx, scopeID, limit)
}

// ListTopics returns a job's topics in analyzer order.
func (a *App) ListTopics(ctx context.Context, jobID string) ([]domain.Topic, error) {
	return a.store.ListTopicsByJob(ctx, jobID)
}

// ListDrafts returns the generated drafts of one topic.
func (a *App) ListDrafts(ctx context.Context, topicID string) ([]domain.DraftQuestion, error) {
	return a.store.ListDraftsByTopic(ctx, topicID)
}

// ListJobDrafts returns every draft of a job across its topics, in
// topic order, for the review screen.
func (a *App) ListJobDrafts(ctx context.Context, jobID string) ([]domain.DraftQuestion, error) {
	return a.store.ListDraftsByJob(ctx, jobID)
}

// DocumentURL returns a short-lived download link for a job's source
// document.
func (a *App) DocumentURL(ctx context.Context, jobID string) (string, error) {
	job, ok, err := a.store.GetJob(ctx, jobID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", domain.ErrNotFound
	}
	return a.objects.PresignGet(ctx, job.StorageKey, 15*time.Minute)
}

// ClaimAndRun atomically claims up to limit pending jobs and runs them
// in parallel. Each job lands in a terminal state regardless of
// pipeline outcome. Returns the number of jobs claimed.
func (a *App) ClaimAndRun(ctx context.Context, limit int) (int, error) {
	jobs, err := a.store.ClaimPendingJobs(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("claim jobs: %w", err)
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			a.Run(gctx, job)
			return nil
		})
	}
	_ = g.Wait()
	return len(jobs), nil
}

// Run executes the generation pipeline for a claimed job: extract text,
// analyze topics, draft questions per topic, then mark the job
// completed. Collaborator outages degrade to the built-in fallbacks;
// unreadable documents fail the job with a stored error message.
func (a *App) Run(ctx context.Context, job domain.Job) {
	logger := util.LoggerFromContext(ctx).With("job_id", job.ID)

	text, err := a.extractText(ctx, job)
	if err != nil {
		logger.Error("text extraction failed", "err", err)
		a.finish(ctx, job.ID, domain.JobFailed, err.Error())
		return
	}

	topics, fallback := a.analyzeTopics(ctx, text)
	if fallback {
		logger.Info("topic analysis degraded", "source", "fallback", "topics", len(topics))
	} else {
		logger.Info("topic analysis complete", "source", "ai", "topics", len(topics))
	}

	for i, descriptor := range topics {
		topic := domain.Topic{
			ID:            util.NewID(),
			JobID:         job.ID,
			Title:         descriptor.Title,
			Description:   descriptor.Description,
			Content:       descriptor.Content,
			SortOrder:     i + 1,
			QuestionCount: defaultQuestionCount,
			QuestionTypes: append([]domain.QuestionType(nil), defaultQuestionTypes...),
			CreatedAt:     a.now(),
		}
		if err := a.store.CreateTopic(ctx, topic); err != nil {
			logger.Error("persist topic failed", "err", err)
			a.finish(ctx, job.ID, domain.JobFailed, "internal error while saving topics")
			return
		}
		if err := a.generateDrafts(ctx, logger, topic, descriptor); err != nil {
			a.finish(ctx, job.ID, domain.JobFailed, "internal error while saving questions")
			return
		}
	}

	a.finish(ctx, job.ID, domain.JobCompleted, "")
	logger.Info("job completed", "topics", len(topics))
}

func (a *App) extractText(ctx context.Context, job domain.Job) (string, error) {
	object, err := a.objects.Get(ctx, job.StorageKey)
	if err != nil {
		return "", fmt.Errorf("%w: stored document unavailable", domain.ErrUnreadableDocument)
	}
	defer object.Close()
	text, err := a.extractor.Extract(ctx, object)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: no extractable text", domain.ErrUnreadableDocument)
	}
	return text, nil
}

func (a *App) analyzeTopics(ctx context.Context, text string) ([]ai.TopicDescriptor, bool) {
	callCtx, cancel := context.WithTimeout(ctx, a.aiTimeout)
	defer cancel()
	topics, err := a.analyzer.Analyze(callCtx, text)
	if err != nil || len(topics) == 0 {
		return ai.DefaultTopics(), true
	}
	return topics, false
}

func (a *App) generateDrafts(ctx context.Context, logger *slog.Logger, topic domain.Topic, descriptor ai.TopicDescriptor) error {
	callCtx, cancel := context.WithTimeout(ctx, a.aiTimeout)
	descriptors, err := a.generator.Generate(callCtx, descriptor, topic.QuestionTypes, topic.QuestionCount)
	cancel()
	if err != nil {
		descriptors = a.generator.SampleQuestions(descriptor, topic.QuestionTypes, topic.QuestionCount)
		logger.Info("question generation degraded", "source", "fallback", "topic", topic.Title)
	}

	kept := 0
	for _, d := range descriptors {
		now := a.now()
		draft := domain.DraftQuestion{
			ID:         util.NewID(),
			TopicID:    topic.ID,
			Name:       d.Name,
			Text:       d.Text,
			Type:       d.Type,
			Answers:    d.Answers,
			Feedback:   d.Feedback,
			Difficulty: d.Difficulty,
			Status:     domain.DraftGenerated,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := domain.ValidateDraft(draft); err != nil {
			// Invalid proposals are dropped; the topic just yields fewer
			// questions than requested.
			logger.Info("dropped invalid draft", "topic", topic.Title, "name", d.Name, "err", err)
			continue
		}
		if err := a.store.CreateDraft(ctx, draft); err != nil {
			logger.Error("persist draft failed", "err", err)
			return err
		}
		kept++
	}
	if kept < topic.QuestionCount {
		logger.Info("question shortfall", "topic", topic.Title, "requested", topic.QuestionCount, "kept", kept)
	}
	return nil
}

func (a *App) finish(ctx context.Context, jobID string, status domain.JobStatus, errMsg string) {
	if err := a.store.SetJobStatus(ctx, jobID, status, errMsg); err != nil {
		util.LoggerFromContext(ctx).Error("set job status failed", "job_id", jobID, "status", status, "err", err)
	}
}

// ReadUpload buffers an upload stream, rejecting anything over limit
// bytes as an invalid document.
func ReadUpload(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: upload exceeds %d bytes", domain.ErrInvalidDocument, limit)
	}
	return data, nil
}
