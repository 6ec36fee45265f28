package store

import (
	"context"
	"time"

	"questiongen/pkg/domain"
)

// Store defines persistence operations for jobs, topics, and draft questions.
//
// ClaimPendingJobs is the single concurrency-sensitive operation: it must
// select-and-transition atomically so two workers never claim the same job.
type Store interface {
	// jobs
	CreateJob(ctx context.Context, job domain.Job) error
	GetJob(ctx context.Context, id string) (domain.Job, bool, error)
	ListJobsByScope(ctx context.Context, scopeID string, limit int) ([]domain.Job, error)
	ClaimPendingJobs(ctx context.Context, limit int) ([]domain.Job, error)
	SetJobStatus(ctx context.Context, id string, status domain.JobStatus, errMsg string) error
	ListJobsCreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Job, error)
	DeleteJob(ctx context.Context, id string) error

	// topics
	CreateTopic(ctx context.Context, topic domain.Topic) error
	GetTopic(ctx context.Context, id string) (domain.Topic, bool, error)
	ListTopicsByJob(ctx context.Context, jobID string) ([]domain.Topic, error)
	UpdateTopicConfig(ctx context.Context, id string, count int, types []domain.QuestionType) error
	DeleteTopicsByJob(ctx context.Context, jobID string) error

	// drafts
	CreateDraft(ctx context.Context, draft domain.DraftQuestion) error
	GetDraft(ctx context.Context, id string) (domain.DraftQuestion, bool, error)
	ListDraftsByTopic(ctx context.Context, topicID string) ([]domain.DraftQuestion, error)
	ListDraftsByJob(ctx context.Context, jobID string) ([]domain.DraftQuestion, error)
	CountDraftsByTopic(ctx context.Context, topicID string) (int, error)
	MarkDraftSaved(ctx context.Context, id, bankEntryID string) error
	DeleteUnsavedDraftsByJob(ctx context.Context, jobID string) error
}
