package app

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"questiongen/pkg/ai"
	"questiongen/pkg/domain"
	"questiongen/pkg/questionbank"
	"questiongen/pkg/storage"
	"questiongen/pkg/store"
)

var pdfUpload = []byte("%PDF-1.4 fake course outline")

type stubExtractor struct {
	text string
	err  error
}

func (s stubExtractor) Extract(_ context.Context, r io.Reader) (string, error) {
	_, _ = io.Copy(io.Discard, r)
	return s.text, s.err
}

type stubAnalyzer struct {
	topics []ai.TopicDescriptor
	err    error
}

func (s stubAnalyzer) Analyze(context.Context, string) ([]ai.TopicDescriptor, error) {
	return s.topics, s.err
}

type stubGenerator struct {
	drafts []ai.DraftDescriptor
	err    error
}

func (s stubGenerator) Generate(context.Context, ai.TopicDescriptor, []domain.QuestionType, int) ([]ai.DraftDescriptor, error) {
	return s.drafts, s.err
}

func (s stubGenerator) SampleQuestions(topic ai.TopicDescriptor, _ []domain.QuestionType, count int) []ai.DraftDescriptor {
	out := make([]ai.DraftDescriptor, count)
	for i := range out {
		out[i] = validDescriptor(fmt.Sprintf("%s sample %d", topic.Title, i+1))
	}
	return out
}

func validDescriptor(name string) ai.DraftDescriptor {
	return ai.DraftDescriptor{
		Name: name,
		Text: "Which statement about " + name + " is correct?",
		Type: domain.TypeMultichoice,
		Answers: []domain.Answer{
			{Text: "The right one", Fraction: 1},
			{Text: "The wrong one", Fraction: 0},
		},
		Difficulty: domain.DifficultyMedium,
	}
}

type testEnv struct {
	app     *App
	store   *store.MemoryStore
	objects *storage.MemoryObjectStore
	bank    *questionbank.MemoryBank
	now     time.Time
}

func newTestEnv(t *testing.T, cfgFns ...func(*Config)) *testEnv {
	t.Helper()
	env := &testEnv{
		store:   store.NewMemoryStore(),
		objects: storage.NewMemoryObjectStore(),
		bank:    questionbank.NewMemoryBank(),
		now:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	cfg := Config{
		Store:     env.store,
		Objects:   env.objects,
		Extractor: stubExtractor{text: "Unit one covers variables. Unit two covers loops."},
		Analyzer: stubAnalyzer{topics: []ai.TopicDescriptor{
			{Title: "Variables", Description: "Naming and scope", Content: "Unit one covers variables."},
			{Title: "Loops", Description: "Iteration basics", Content: "Unit two covers loops."},
		}},
		Generator: stubGenerator{drafts: []ai.DraftDescriptor{
			validDescriptor("Q1"),
			validDescriptor("Q2"),
			{Name: "Broken", Text: "No correct answer", Type: domain.TypeMultichoice,
				Answers: []domain.Answer{{Text: "a", Fraction: 0}, {Text: "b", Fraction: 0}}},
		}},
		Bank: env.bank,
		Now:  func() time.Time { return env.now },
	}
	for _, fn := range cfgFns {
		fn(&cfg)
	}
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	env.app = a
	return env
}

func (e *testEnv) enqueue(t *testing.T) domain.Job {
	t.Helper()
	job, err := e.app.Enqueue(context.Background(), "user-7", "course-42", "outline.pdf", pdfUpload)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	return job
}

func (e *testEnv) runOne(t *testing.T) domain.Job {
	t.Helper()
	job := e.enqueue(t)
	n, err := e.app.ClaimAndRun(context.Background(), 5)
	if err != nil {
		t.Fatalf("claim and run: %v", err)
	}
	if n != 1 {
		t.Fatalf("claimed %d jobs, want 1", n)
	}
	got, ok, err := e.app.GetJob(context.Background(), job.ID)
	if err != nil || !ok {
		t.Fatalf("get job: ok=%v err=%v", ok, err)
	}
	return got
}

func TestEnqueueRejectsNonPDF(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.app.Enqueue(context.Background(), "user-7", "course-42", "notes.txt", []byte("plain text"))
	if !errors.Is(err, domain.ErrInvalidDocument) {
		t.Fatalf("err = %v, want ErrInvalidDocument", err)
	}
	jobs, _ := env.app.ListJobs(context.Background(), "course-42", 10)
	if len(jobs) != 0 {
		t.Fatalf("rejected upload still created %d jobs", len(jobs))
	}
}

func TestEnqueueStoresDocumentAndFingerprint(t *testing.T) {
	env := newTestEnv(t)
	job := env.enqueue(t)

	sum := sha1.Sum(pdfUpload)
	if job.Fingerprint != hex.EncodeToString(sum[:]) {
		t.Fatalf("fingerprint = %q", job.Fingerprint)
	}
	if job.Status != domain.JobPending {
		t.Fatalf("status = %q, want pending", job.Status)
	}
	if !strings.HasPrefix(job.StorageKey, "curricula/") {
		t.Fatalf("storage key = %q", job.StorageKey)
	}
	obj, err := env.objects.Get(context.Background(), job.StorageKey)
	if err != nil {
		t.Fatalf("stored object missing: %v", err)
	}
	obj.Close()

	url, err := env.app.DocumentURL(context.Background(), job.ID)
	if err != nil || url == "" {
		t.Fatalf("document url = %q, err = %v", url, err)
	}
}

func TestRunCompletesAndDropsInvalidDrafts(t *testing.T) {
	env := newTestEnv(t)
	job := env.runOne(t)

	if job.Status != domain.JobCompleted {
		t.Fatalf("status = %q (%s), want completed", job.Status, job.ErrorMessage)
	}
	topics, err := env.app.ListTopics(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("list topics: %v", err)
	}
	if len(topics) != 2 {
		t.Fatalf("topics = %d, want 2", len(topics))
	}
	for i, topic := range topics {
		if topic.SortOrder != i+1 {
			t.Fatalf("topic %d sort order = %d", i, topic.SortOrder)
		}
		drafts, err := env.app.ListDrafts(context.Background(), topic.ID)
		if err != nil {
			t.Fatalf("list drafts: %v", err)
		}
		// The third proposed draft has no correct answer and is dropped.
		if len(drafts) != 2 {
			t.Fatalf("topic %q drafts = %d, want 2", topic.Title, len(drafts))
		}
		for _, d := range drafts {
			if d.Status != domain.DraftGenerated {
				t.Fatalf("draft status = %q", d.Status)
			}
		}
	}
}

func TestRunFallsBackWhenCollaboratorUnavailable(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		cfg.Analyzer = stubAnalyzer{err: ai.ErrUnavailable}
		cfg.Generator = stubGenerator{err: ai.ErrUnavailable}
	})
	job := env.runOne(t)

	if job.Status != domain.JobCompleted {
		t.Fatalf("status = %q, want completed on fallback", job.Status)
	}
	topics, _ := env.app.ListTopics(context.Background(), job.ID)
	if len(topics) != len(ai.DefaultTopics()) {
		t.Fatalf("topics = %d, want the %d defaults", len(topics), len(ai.DefaultTopics()))
	}
	for _, topic := range topics {
		drafts, _ := env.app.ListDrafts(context.Background(), topic.ID)
		if len(drafts) != topic.QuestionCount {
			t.Fatalf("topic %q drafts = %d, want %d", topic.Title, len(drafts), topic.QuestionCount)
		}
	}
}

func TestRunFailsOnUnreadableDocument(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		cfg.Extractor = stubExtractor{err: fmt.Errorf("%w: bad xref", domain.ErrUnreadableDocument)}
	})
	job := env.runOne(t)

	if job.Status != domain.JobFailed {
		t.Fatalf("status = %q, want failed", job.Status)
	}
	if job.ErrorMessage == "" {
		t.Fatal("failed job has no error message")
	}
	topics, _ := env.app.ListTopics(context.Background(), job.ID)
	if len(topics) != 0 {
		t.Fatalf("failed job has %d topics", len(topics))
	}
}

func TestReconfigureTopicLockedOnceDraftsExist(t *testing.T) {
	env := newTestEnv(t)
	job := env.runOne(t)
	topics, _ := env.app.ListTopics(context.Background(), job.ID)

	_, err := env.app.ReconfigureTopic(context.Background(), topics[0].ID, 3, []domain.QuestionType{domain.TypeEssay})
	if !errors.Is(err, domain.ErrTopicLocked) {
		t.Fatalf("err = %v, want ErrTopicLocked", err)
	}

	// A topic without drafts can still be reconfigured.
	fresh := domain.Topic{
		ID: "topic-fresh", JobID: job.ID, Title: "Fresh", SortOrder: 99,
		QuestionCount: 5, QuestionTypes: []domain.QuestionType{domain.TypeMultichoice},
		CreatedAt: env.now,
	}
	if err := env.store.CreateTopic(context.Background(), fresh); err != nil {
		t.Fatalf("create topic: %v", err)
	}
	got, err := env.app.ReconfigureTopic(context.Background(), fresh.ID, 3, []domain.QuestionType{domain.TypeEssay})
	if err != nil {
		t.Fatalf("reconfigure: %v", err)
	}
	if got.QuestionCount != 3 || got.QuestionTypes[0] != domain.TypeEssay {
		t.Fatalf("reconfigured topic = %+v", got)
	}
}

func TestSaveSelectedIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	job := env.runOne(t)
	topics, _ := env.app.ListTopics(context.Background(), job.ID)
	drafts, _ := env.app.ListDrafts(context.Background(), topics[0].ID)
	if len(drafts) < 2 {
		t.Fatalf("need at least 2 drafts, got %d", len(drafts))
	}
	selection := []string{drafts[0].ID, drafts[1].ID}

	saved, err := env.app.SaveSelected(context.Background(), job.ScopeID, job.OwnerID, selection)
	if err != nil {
		t.Fatalf("save selected: %v", err)
	}
	if len(saved) != 2 {
		t.Fatalf("saved = %d, want 2", len(saved))
	}
	if saved[0].BankEntryID == "" || saved[0].BankEntryID == saved[1].BankEntryID {
		t.Fatalf("bank entry ids not distinct: %q %q", saved[0].BankEntryID, saved[1].BankEntryID)
	}

	again, err := env.app.SaveSelected(context.Background(), job.ScopeID, job.OwnerID, selection)
	if err != nil {
		t.Fatalf("save selected again: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("second save persisted %d drafts, want 0", len(again))
	}
	if env.bank.SavedCount() != 2 {
		t.Fatalf("bank has %d entries, want 2", env.bank.SavedCount())
	}

	// Unselected drafts stay generated.
	remaining, _ := env.app.ListDrafts(context.Background(), topics[1].ID)
	for _, d := range remaining {
		if d.Status != domain.DraftGenerated {
			t.Fatalf("unselected draft has status %q", d.Status)
		}
	}
}

func TestSaveSelectedEmptySelectionIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	saved, err := env.app.SaveSelected(context.Background(), "course-42", "user-7", nil)
	if err != nil {
		t.Fatalf("save selected: %v", err)
	}
	if saved != nil {
		t.Fatalf("expected nil result, got %v", saved)
	}
	if env.bank.SavedCount() != 0 {
		t.Fatal("empty selection touched the bank")
	}
}

func TestSweepRemovesOldJobsButKeepsBankRecords(t *testing.T) {
	env := newTestEnv(t)
	oldJob := env.runOne(t)
	topics, _ := env.app.ListTopics(context.Background(), oldJob.ID)
	drafts, _ := env.app.ListDrafts(context.Background(), topics[0].ID)
	if _, err := env.app.SaveSelected(context.Background(), oldJob.ScopeID, oldJob.OwnerID, []string{drafts[0].ID}); err != nil {
		t.Fatalf("save selected: %v", err)
	}

	// A second upload 40 days later must survive the sweep.
	env.now = env.now.Add(40 * 24 * time.Hour)
	freshJob := env.enqueue(t)

	removed, err := env.app.Sweep(context.Background(), 30*24*time.Hour)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, ok, _ := env.app.GetJob(context.Background(), oldJob.ID); ok {
		t.Fatal("old job survived sweep")
	}
	if _, ok, _ := env.app.GetJob(context.Background(), freshJob.ID); !ok {
		t.Fatal("fresh job was swept")
	}
	if remaining, _ := env.app.ListTopics(context.Background(), oldJob.ID); len(remaining) != 0 {
		t.Fatalf("old job still has %d topics", len(remaining))
	}
	if env.bank.SavedCount() != 1 {
		t.Fatalf("bank entries = %d, want 1 surviving", env.bank.SavedCount())
	}
	if _, err := env.objects.Get(context.Background(), oldJob.StorageKey); err == nil {
		t.Fatal("swept job's document still in object store")
	}
}

func TestReadUploadEnforcesLimit(t *testing.T) {
	data, err := ReadUpload(strings.NewReader("%PDF-1.4 tiny"), 1024)
	if err != nil {
		t.Fatalf("read upload: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("empty read")
	}
	if _, err := ReadUpload(strings.NewReader(strings.Repeat("x", 2048)), 1024); !errors.Is(err, domain.ErrInvalidDocument) {
		t.Fatalf("err = %v, want ErrInvalidDocument", err)
	}
}
