package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"questiongen/pkg/domain"
)

const migrateLockID int64 = 48120734

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&JobModel{}, &TopicModel{}, &DraftModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

// DB exposes the underlying connection so sibling schemas (the
// question bank) can share it.
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// CreateJob inserts a new job record.
func (s *GormStore) CreateJob(ctx context.Context, job domain.Job) error {
	model := jobToModel(job)
	return s.db.WithContext(ctx).Create(&model).Error
}

// GetJob retrieves a job by ID.
func (s *GormStore) GetJob(ctx context.Context, id string) (domain.Job, bool, error) {
	var model JobModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Job{}, false, nil
		}
		return domain.Job{}, false, err
	}
	return jobFromModel(model), true, nil
}

// ListJobsByScope returns the most recent jobs for a scope.
func (s *GormStore) ListJobsByScope(ctx context.Context, scopeID string, limit int) ([]domain.Job, error) {
	if limit <= 0 {
		limit = 20
	}
	var models []JobModel
	if err := s.db.WithContext(ctx).
		Where("scope_id = ?", scopeID).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	return jobsFromModels(models), nil
}

// ClaimPendingJobs atomically transitions up to limit pending jobs to
// processing, oldest first. FOR UPDATE SKIP LOCKED guarantees that
// concurrent callers never claim the same row.
func (s *GormStore) ClaimPendingJobs(ctx context.Context, limit int) ([]domain.Job, error) {
	if limit <= 0 {
		limit = 1
	}
	var models []JobModel
	err := s.db.WithContext(ctx).Raw(`
		UPDATE job_models SET status = ?, updated_at = ?
		WHERE id IN (
			SELECT id FROM job_models
			WHERE status = ?
			ORDER BY created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT ?
		)
		RETURNING *
	`, string(domain.JobProcessing), time.Now().UTC(), string(domain.JobPending), limit).
		Scan(&models).Error
	if err != nil {
		return nil, fmt.Errorf("claim pending jobs: %w", err)
	}
	return jobsFromModels(models), nil
}

// SetJobStatus updates job status and error detail. Jobs already in a
// terminal state are left untouched.
func (s *GormStore) SetJobStatus(ctx context.Context, id string, status domain.JobStatus, errMsg string) error {
	return s.db.WithContext(ctx).Model(&JobModel{}).
		Where("id = ? AND status NOT IN ?", id, []string{string(domain.JobCompleted), string(domain.JobFailed)}).
		Updates(map[string]any{
			"status":        string(status),
			"error_message": errMsg,
			"updated_at":    time.Now().UTC(),
		}).Error
}

// ListJobsCreatedBefore returns jobs older than cutoff, oldest first.
func (s *GormStore) ListJobsCreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Job, error) {
	if limit <= 0 {
		limit = 100
	}
	var models []JobModel
	if err := s.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	return jobsFromModels(models), nil
}

// DeleteJob removes a job record.
func (s *GormStore) DeleteJob(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&JobModel{}, "id = ?", id).Error
}

// CreateTopic inserts a topic for a job.
func (s *GormStore) CreateTopic(ctx context.Context, topic domain.Topic) error {
	model := topicToModel(topic)
	return s.db.WithContext(ctx).Create(&model).Error
}

// GetTopic retrieves a topic by ID.
func (s *GormStore) GetTopic(ctx context.Context, id string) (domain.Topic, bool, error) {
	var model TopicModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Topic{}, false, nil
		}
		return domain.Topic{}, false, err
	}
	return topicFromModel(model), true, nil
}

// ListTopicsByJob returns a job's topics in sort order.
func (s *GormStore) ListTopicsByJob(ctx context.Context, jobID string) ([]domain.Topic, error) {
	var models []TopicModel
	if err := s.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("sort_order ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Topic, 0, len(models))
	for _, m := range models {
		res = append(res, topicFromModel(m))
	}
	return res, nil
}

// UpdateTopicConfig changes requested count and types for a topic.
func (s *GormStore) UpdateTopicConfig(ctx context.Context, id string, count int, types []domain.QuestionType) error {
	return s.db.WithContext(ctx).Model(&TopicModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"question_count": count,
			"question_types": encodeTypes(types),
		}).Error
}

// DeleteTopicsByJob removes all topics belonging to a job.
func (s *GormStore) DeleteTopicsByJob(ctx context.Context, jobID string) error {
	return s.db.WithContext(ctx).Delete(&TopicModel{}, "job_id = ?", jobID).Error
}

// CreateDraft inserts a draft question.
func (s *GormStore) CreateDraft(ctx context.Context, draft domain.DraftQuestion) error {
	model, err := draftToModel(draft)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}
	return s.db.WithContext(ctx).Create(&model).Error
}

// GetDraft retrieves a draft by ID.
func (s *GormStore) GetDraft(ctx context.Context, id string) (domain.DraftQuestion, bool, error) {
	var model DraftModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.DraftQuestion{}, false, nil
		}
		return domain.DraftQuestion{}, false, err
	}
	return draftFromModel(model), true, nil
}

// ListDraftsByTopic returns drafts for a topic ordered by creation.
func (s *GormStore) ListDraftsByTopic(ctx context.Context, topicID string) ([]domain.DraftQuestion, error) {
	var models []DraftModel
	if err := s.db.WithContext(ctx).
		Where("topic_id = ?", topicID).
		Order("created_at ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	return draftsFromModels(models), nil
}

// ListDraftsByJob returns every draft under a job's topics, in topic
// sort order then creation order.
func (s *GormStore) ListDraftsByJob(ctx context.Context, jobID string) ([]domain.DraftQuestion, error) {
	var models []DraftModel
	err := s.db.WithContext(ctx).
		Joins("JOIN topic_models ON topic_models.id = draft_models.topic_id").
		Where("topic_models.job_id = ?", jobID).
		Order("topic_models.sort_order ASC, draft_models.created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return draftsFromModels(models), nil
}

// CountDraftsByTopic returns the number of drafts under a topic.
func (s *GormStore) CountDraftsByTopic(ctx context.Context, topicID string) (int, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&DraftModel{}).
		Where("topic_id = ?", topicID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// MarkDraftSaved flips a generated draft to saved with its bank entry
// reference. A draft already saved is not touched, which keeps the
// generated -> saved transition one-way.
func (s *GormStore) MarkDraftSaved(ctx context.Context, id, bankEntryID string) error {
	return s.db.WithContext(ctx).Model(&DraftModel{}).
		Where("id = ? AND status = ?", id, string(domain.DraftGenerated)).
		Updates(map[string]any{
			"status":        string(domain.DraftSaved),
			"bank_entry_id": bankEntryID,
			"updated_at":    time.Now().UTC(),
		}).Error
}

// DeleteUnsavedDraftsByJob removes a job's drafts that never reached the
// question bank. Saved drafts and their bank records are untouched.
func (s *GormStore) DeleteUnsavedDraftsByJob(ctx context.Context, jobID string) error {
	return s.db.WithContext(ctx).Exec(`
		DELETE FROM draft_models
		WHERE status != ?
		AND topic_id IN (SELECT id FROM topic_models WHERE job_id = ?)
	`, string(domain.DraftSaved), jobID).Error
}

func jobsFromModels(models []JobModel) []domain.Job {
	res := make([]domain.Job, 0, len(models))
	for _, m := range models {
		res = append(res, jobFromModel(m))
	}
	return res
}

func draftsFromModels(models []DraftModel) []domain.DraftQuestion {
	res := make([]domain.DraftQuestion, 0, len(models))
	for _, m := range models {
		res = append(res, draftFromModel(m))
	}
	return res
}
