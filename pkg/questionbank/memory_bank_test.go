package questionbank

import (
	"context"
	"strings"
	"sync"
	"testing"

	"questiongen/pkg/domain"
)

func sampleDraft(name string) domain.DraftQuestion {
	return domain.DraftQuestion{
		Name: name,
		Text: "What does ACID stand for?",
		Type: domain.TypeMultichoice,
		Answers: []domain.Answer{
			{Text: "Atomicity, Consistency, Isolation, Durability", Fraction: 1},
			{Text: "Access, Control, Integrity, Data", Fraction: 0},
		},
	}
}

func TestGetOrCreateCategoryConcurrent(t *testing.T) {
	bank := NewMemoryBank()
	ctx := context.Background()

	const workers = 16
	ids := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := bank.GetOrCreateCategory(ctx, "scope-1", DefaultCategoryName)
			if err != nil {
				t.Errorf("GetOrCreateCategory: %v", err)
				return
			}
			ids[i] = id
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("got divergent category ids %q and %q", ids[0], ids[i])
		}
	}
	cats, err := bank.ListCategories(ctx)
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	if len(cats) != 1 {
		t.Fatalf("expected a single category, got %d", len(cats))
	}
}

func TestSaveQuestionRejectsInvalidDraft(t *testing.T) {
	bank := NewMemoryBank()
	ctx := context.Background()
	catID, err := bank.GetOrCreateCategory(ctx, "scope-1", DefaultCategoryName)
	if err != nil {
		t.Fatalf("GetOrCreateCategory: %v", err)
	}

	bad := sampleDraft("No correct answer")
	bad.Answers[0].Fraction = 0
	if _, err := bank.SaveQuestion(ctx, catID, "user-1", bad); err == nil {
		t.Fatal("expected invalid draft to be rejected")
	}
	if bank.SavedCount() != 0 {
		t.Fatalf("expected no saved entries, got %d", bank.SavedCount())
	}
}

func TestSaveAndDeleteQuestion(t *testing.T) {
	bank := NewMemoryBank()
	ctx := context.Background()
	catID, err := bank.GetOrCreateCategory(ctx, "scope-1", DefaultCategoryName)
	if err != nil {
		t.Fatalf("GetOrCreateCategory: %v", err)
	}

	entryID, err := bank.SaveQuestion(ctx, catID, "user-1", sampleDraft("Q1"))
	if err != nil {
		t.Fatalf("SaveQuestion: %v", err)
	}
	versions, err := bank.ListVersionsByCategory(ctx, catID)
	if err != nil {
		t.Fatalf("ListVersionsByCategory: %v", err)
	}
	if len(versions) != 1 || versions[0].Status != StatusDraft {
		t.Fatalf("expected one draft version, got %+v", versions)
	}

	if err := bank.DeleteQuestion(ctx, entryID); err != nil {
		t.Fatalf("DeleteQuestion: %v", err)
	}
	versions, err = bank.ListVersionsByCategory(ctx, catID)
	if err != nil {
		t.Fatalf("ListVersionsByCategory: %v", err)
	}
	if len(versions) != 0 {
		t.Fatalf("expected no versions after delete, got %d", len(versions))
	}
	if bank.SavedCount() != 0 {
		t.Fatalf("expected no saved entries after delete, got %d", bank.SavedCount())
	}
}

func TestGraduateDrafts(t *testing.T) {
	bank := NewMemoryBank()
	ctx := context.Background()
	catID, err := bank.GetOrCreateCategory(ctx, "scope-1", DefaultCategoryName)
	if err != nil {
		t.Fatalf("GetOrCreateCategory: %v", err)
	}
	for _, name := range []string{"Q1", "Q2", "Q3"} {
		if _, err := bank.SaveQuestion(ctx, catID, "user-1", sampleDraft(name)); err != nil {
			t.Fatalf("SaveQuestion(%s): %v", name, err)
		}
	}
	// Pre-graduate one so it is skipped.
	versions, _ := bank.ListVersionsByCategory(ctx, catID)
	if _, err := bank.SetVersionReady(ctx, versions[0].ID); err != nil {
		t.Fatalf("SetVersionReady: %v", err)
	}

	var lines []string
	changed, skipped, err := GraduateDrafts(ctx, bank, []string{catID}, false, func(s string) {
		lines = append(lines, s)
	})
	if err != nil {
		t.Fatalf("GraduateDrafts: %v", err)
	}
	if changed != 2 || skipped != 1 {
		t.Fatalf("expected 2 changed and 1 skipped, got %d/%d", changed, skipped)
	}
	versions, _ = bank.ListVersionsByCategory(ctx, catID)
	for _, v := range versions {
		if v.Status != StatusReady {
			t.Fatalf("version %s still %s", v.ID, v.Status)
		}
	}
	if len(lines) == 0 || !strings.HasPrefix(lines[0], "Processing category") {
		t.Fatalf("unexpected report output: %v", lines)
	}
}

func TestGraduateDraftsDryRunChangesNothing(t *testing.T) {
	bank := NewMemoryBank()
	ctx := context.Background()
	catID, err := bank.GetOrCreateCategory(ctx, "scope-1", DefaultCategoryName)
	if err != nil {
		t.Fatalf("GetOrCreateCategory: %v", err)
	}
	if _, err := bank.SaveQuestion(ctx, catID, "user-1", sampleDraft("Q1")); err != nil {
		t.Fatalf("SaveQuestion: %v", err)
	}

	changed, _, err := GraduateDrafts(ctx, bank, []string{catID}, true, nil)
	if err != nil {
		t.Fatalf("GraduateDrafts: %v", err)
	}
	if changed != 1 {
		t.Fatalf("expected dry-run to count 1 candidate, got %d", changed)
	}
	versions, _ := bank.ListVersionsByCategory(ctx, catID)
	if versions[0].Status != StatusDraft {
		t.Fatalf("dry-run mutated status to %s", versions[0].Status)
	}
}
