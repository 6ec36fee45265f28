// Package questionbank is the persistence sink for reviewed drafts. A
// saved question spans several rows (bank entry, question, version,
// typed options, answers) that are always written and removed as one
// transactional unit.
package questionbank

import (
	"context"

	"questiongen/pkg/domain"
)

// Version statuses for persisted questions.
const (
	StatusDraft = "draft"
	StatusReady = "ready"
)

// DefaultCategoryName is the category generated questions are filed
// under within a scope.
const DefaultCategoryName = "AI Generated Questions"

// Bank stores selected drafts as first-class question records.
type Bank interface {
	// GetOrCreateCategory resolves the category for a scope, creating
	// it on first use. Concurrent first saves in the same scope must
	// still produce a single category.
	GetOrCreateCategory(ctx context.Context, scopeID, name string) (string, error)
	// SaveQuestion persists a draft under the category and returns the
	// bank entry id. All sub-records are created in one transaction.
	SaveQuestion(ctx context.Context, categoryID, ownerID string, d domain.DraftQuestion) (string, error)
	// DeleteQuestion removes an entry and all its sub-records.
	DeleteQuestion(ctx context.Context, bankEntryID string) error
}

// Category is a named container for questions within a scope.
type Category struct {
	ID      string
	ScopeID string
	Name    string
}

// QuestionVersion is the visibility record of one persisted question.
type QuestionVersion struct {
	ID           string
	QuestionID   string
	QuestionName string
	Status       string
}

// Admin exposes the operator-facing surface used to bulk-adjust
// question visibility.
type Admin interface {
	ListCategories(ctx context.Context) ([]Category, error)
	ListVersionsByCategory(ctx context.Context, categoryID string) ([]QuestionVersion, error)
	// SetVersionReady graduates a draft version to ready. Returns false
	// when the version was not in draft status; the record is left as is.
	SetVersionReady(ctx context.Context, versionID string) (bool, error)
}

// GraduateDrafts bulk-transitions draft versions to ready across the
// given categories. With dryRun no changes are persisted; report is
// called with a human-readable line per considered question.
func GraduateDrafts(ctx context.Context, admin Admin, categoryIDs []string, dryRun bool, report func(string)) (changed, skipped int, err error) {
	if report == nil {
		report = func(string) {}
	}
	for _, catID := range categoryIDs {
		report("Processing category " + catID)
		versions, err := admin.ListVersionsByCategory(ctx, catID)
		if err != nil {
			return changed, skipped, err
		}
		for _, v := range versions {
			if v.Status != StatusDraft {
				skipped++
				continue
			}
			line := " - draft question " + v.QuestionID + " '" + v.QuestionName + "' => ready"
			if dryRun {
				report(line + " (dry-run)")
				changed++
				continue
			}
			ok, err := admin.SetVersionReady(ctx, v.ID)
			if err != nil {
				return changed, skipped, err
			}
			if !ok {
				skipped++
				continue
			}
			report(line)
			changed++
		}
	}
	return changed, skipped, nil
}
