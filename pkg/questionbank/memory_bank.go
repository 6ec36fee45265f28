package questionbank

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"questiongen/pkg/domain"
)

// MemoryBank is an in-memory Bank and Admin for tests and local runs.
type MemoryBank struct {
	mu            sync.Mutex
	categories    map[string]Category            // id -> category
	entries       map[string]string              // entry id -> category id
	questions     map[string]domain.DraftQuestion // entry id -> saved draft snapshot
	versions      map[string]*QuestionVersion    // version id -> version
	entryVersions map[string]string              // entry id -> version id
	defaultStatus string
}

func NewMemoryBank() *MemoryBank {
	return &MemoryBank{
		categories:    make(map[string]Category),
		entries:       make(map[string]string),
		questions:     make(map[string]domain.DraftQuestion),
		versions:      make(map[string]*QuestionVersion),
		entryVersions: make(map[string]string),
		defaultStatus: StatusDraft,
	}
}

func (b *MemoryBank) GetOrCreateCategory(_ context.Context, scopeID, name string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.categories {
		if c.ScopeID == scopeID && c.Name == name {
			return c.ID, nil
		}
	}
	c := Category{ID: uuid.NewString(), ScopeID: scopeID, Name: name}
	b.categories[c.ID] = c
	return c.ID, nil
}

func (b *MemoryBank) SaveQuestion(_ context.Context, categoryID, ownerID string, d domain.DraftQuestion) (string, error) {
	if err := domain.ValidateDraft(d); err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.categories[categoryID]; !ok {
		return "", fmt.Errorf("unknown category %q", categoryID)
	}
	_ = ownerID
	entryID := uuid.NewString()
	b.entries[entryID] = categoryID
	b.questions[entryID] = d
	v := &QuestionVersion{
		ID:           uuid.NewString(),
		QuestionID:   uuid.NewString(),
		QuestionName: d.Name,
		Status:       b.defaultStatus,
	}
	b.versions[v.ID] = v
	b.entryVersions[entryID] = v.ID
	return entryID, nil
}

func (b *MemoryBank) DeleteQuestion(_ context.Context, bankEntryID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if vID, ok := b.entryVersions[bankEntryID]; ok {
		delete(b.versions, vID)
	}
	delete(b.entryVersions, bankEntryID)
	delete(b.questions, bankEntryID)
	delete(b.entries, bankEntryID)
	return nil
}

// SavedCount reports the number of stored entries, for assertions.
func (b *MemoryBank) SavedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

func (b *MemoryBank) ListCategories(_ context.Context) ([]Category, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Category, 0, len(b.categories))
	for _, c := range b.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ScopeID != out[j].ScopeID {
			return out[i].ScopeID < out[j].ScopeID
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (b *MemoryBank) ListVersionsByCategory(_ context.Context, categoryID string) ([]QuestionVersion, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []QuestionVersion
	for entryID, catID := range b.entries {
		if catID != categoryID {
			continue
		}
		if v, ok := b.versions[b.entryVersions[entryID]]; ok {
			out = append(out, *v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionName < out[j].QuestionName })
	return out, nil
}

func (b *MemoryBank) SetVersionReady(_ context.Context, versionID string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.versions[versionID]
	if !ok || v.Status != StatusDraft {
		return false, nil
	}
	v.Status = StatusReady
	return true, nil
}
