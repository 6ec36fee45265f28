package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"questiongen/pkg/domain"
)

// MemoryStore keeps pipeline state in-process. It backs tests and
// single-node development; claim semantics match the Postgres store.
type MemoryStore struct {
	mu     sync.RWMutex
	jobs   map[string]domain.Job
	topics map[string]domain.Topic
	drafts map[string]domain.DraftQuestion
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:   make(map[string]domain.Job),
		topics: make(map[string]domain.Topic),
		drafts: make(map[string]domain.DraftQuestion),
	}
}

// CreateJob stores a new job.
func (m *MemoryStore) CreateJob(_ context.Context, job domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
	return nil
}

// GetJob retrieves a job by ID.
func (m *MemoryStore) GetJob(_ context.Context, id string) (domain.Job, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	return j, ok, nil
}

// ListJobsByScope returns the most recent jobs for a scope.
func (m *MemoryStore) ListJobsByScope(_ context.Context, scopeID string, limit int) ([]domain.Job, error) {
	if limit <= 0 {
		limit = 20
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []domain.Job
	for _, j := range m.jobs {
		if j.ScopeID == scopeID {
			res = append(res, j)
		}
	}
	sort.Slice(res, func(i, k int) bool { return res[i].CreatedAt.After(res[k].CreatedAt) })
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

// ClaimPendingJobs claims up to limit pending jobs, oldest first, under
// a single lock so concurrent callers never receive the same job.
func (m *MemoryStore) ClaimPendingJobs(_ context.Context, limit int) ([]domain.Job, error) {
	if limit <= 0 {
		limit = 1
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var pending []domain.Job
	for _, j := range m.jobs {
		if j.Status == domain.JobPending {
			pending = append(pending, j)
		}
	}
	sort.Slice(pending, func(i, k int) bool {
		if pending[i].CreatedAt.Equal(pending[k].CreatedAt) {
			return pending[i].ID < pending[k].ID
		}
		return pending[i].CreatedAt.Before(pending[k].CreatedAt)
	})
	if len(pending) > limit {
		pending = pending[:limit]
	}
	claimed := make([]domain.Job, 0, len(pending))
	for _, j := range pending {
		j.Status = domain.JobProcessing
		j.UpdatedAt = time.Now().UTC()
		m.jobs[j.ID] = j
		claimed = append(claimed, j)
	}
	return claimed, nil
}

// SetJobStatus updates status and error detail unless the job is
// already terminal.
func (m *MemoryStore) SetJobStatus(_ context.Context, id string, status domain.JobStatus, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.Status.Terminal() {
		return nil
	}
	j.Status = status
	j.ErrorMessage = errMsg
	j.UpdatedAt = time.Now().UTC()
	m.jobs[id] = j
	return nil
}

// ListJobsCreatedBefore returns jobs older than cutoff, oldest first.
func (m *MemoryStore) ListJobsCreatedBefore(_ context.Context, cutoff time.Time, limit int) ([]domain.Job, error) {
	if limit <= 0 {
		limit = 100
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []domain.Job
	for _, j := range m.jobs {
		if j.CreatedAt.Before(cutoff) {
			res = append(res, j)
		}
	}
	sort.Slice(res, func(i, k int) bool { return res[i].CreatedAt.Before(res[k].CreatedAt) })
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

// DeleteJob removes a job record.
func (m *MemoryStore) DeleteJob(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, id)
	return nil
}

// CreateTopic stores a topic.
func (m *MemoryStore) CreateTopic(_ context.Context, topic domain.Topic) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.topics[topic.ID] = topic
	return nil
}

// GetTopic retrieves a topic by ID.
func (m *MemoryStore) GetTopic(_ context.Context, id string) (domain.Topic, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.topics[id]
	return t, ok, nil
}

// ListTopicsByJob returns a job's topics in sort order.
func (m *MemoryStore) ListTopicsByJob(_ context.Context, jobID string) ([]domain.Topic, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []domain.Topic
	for _, t := range m.topics {
		if t.JobID == jobID {
			res = append(res, t)
		}
	}
	sort.Slice(res, func(i, k int) bool { return res[i].SortOrder < res[k].SortOrder })
	return res, nil
}

// UpdateTopicConfig changes requested count and types for a topic.
func (m *MemoryStore) UpdateTopicConfig(_ context.Context, id string, count int, types []domain.QuestionType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.topics[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.QuestionCount = count
	t.QuestionTypes = append([]domain.QuestionType(nil), types...)
	m.topics[id] = t
	return nil
}

// DeleteTopicsByJob removes all topics belonging to a job.
func (m *MemoryStore) DeleteTopicsByJob(_ context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.topics {
		if t.JobID == jobID {
			delete(m.topics, id)
		}
	}
	return nil
}

// CreateDraft stores a draft question.
func (m *MemoryStore) CreateDraft(_ context.Context, draft domain.DraftQuestion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drafts[draft.ID] = draft
	return nil
}

// GetDraft retrieves a draft by ID.
func (m *MemoryStore) GetDraft(_ context.Context, id string) (domain.DraftQuestion, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.drafts[id]
	return d, ok, nil
}

// ListDraftsByTopic returns drafts for a topic ordered by creation.
func (m *MemoryStore) ListDraftsByTopic(_ context.Context, topicID string) ([]domain.DraftQuestion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []domain.DraftQuestion
	for _, d := range m.drafts {
		if d.TopicID == topicID {
			res = append(res, d)
		}
	}
	sortDrafts(res)
	return res, nil
}

// ListDraftsByJob returns every draft under a job's topics.
func (m *MemoryStore) ListDraftsByJob(_ context.Context, jobID string) ([]domain.DraftQuestion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	topicIDs := make(map[string]bool)
	for _, t := range m.topics {
		if t.JobID == jobID {
			topicIDs[t.ID] = true
		}
	}
	var res []domain.DraftQuestion
	for _, d := range m.drafts {
		if topicIDs[d.TopicID] {
			res = append(res, d)
		}
	}
	sortDrafts(res)
	return res, nil
}

// CountDraftsByTopic returns the number of drafts under a topic.
func (m *MemoryStore) CountDraftsByTopic(_ context.Context, topicID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, d := range m.drafts {
		if d.TopicID == topicID {
			count++
		}
	}
	return count, nil
}

// MarkDraftSaved flips a generated draft to saved. Saved drafts stay as
// they are.
func (m *MemoryStore) MarkDraftSaved(_ context.Context, id, bankEntryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drafts[id]
	if !ok || d.Status != domain.DraftGenerated {
		return nil
	}
	d.Status = domain.DraftSaved
	d.BankEntryID = bankEntryID
	d.UpdatedAt = time.Now().UTC()
	m.drafts[id] = d
	return nil
}

// DeleteUnsavedDraftsByJob removes a job's drafts that never reached
// the question bank.
func (m *MemoryStore) DeleteUnsavedDraftsByJob(_ context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	topicIDs := make(map[string]bool)
	for _, t := range m.topics {
		if t.JobID == jobID {
			topicIDs[t.ID] = true
		}
	}
	for id, d := range m.drafts {
		if topicIDs[d.TopicID] && d.Status != domain.DraftSaved {
			delete(m.drafts, id)
		}
	}
	return nil
}

func sortDrafts(drafts []domain.DraftQuestion) {
	sort.Slice(drafts, func(i, k int) bool {
		if drafts[i].CreatedAt.Equal(drafts[k].CreatedAt) {
			return drafts[i].ID < drafts[k].ID
		}
		return drafts[i].CreatedAt.Before(drafts[k].CreatedAt)
	})
}
