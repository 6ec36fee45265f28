package app

import (
	"context"
	"fmt"

	"questiongen/internal/util"
	"questiongen/pkg/domain"
)

// ReconfigureTopic changes a topic's question count and type set. The
// configuration is locked once any draft exists for the topic.
func (a *App) ReconfigureTopic(ctx context.Context, topicID string, count int, types []domain.QuestionType) (domain.Topic, error) {
	if err := domain.ValidateTopicConfig(count, types); err != nil {
		return domain.Topic{}, err
	}
	topic, ok, err := a.store.GetTopic(ctx, topicID)
	if err != nil {
		return domain.Topic{}, err
	}
	if !ok {
		return domain.Topic{}, domain.ErrNotFound
	}
	n, err := a.store.CountDraftsByTopic(ctx, topicID)
	if err != nil {
		return domain.Topic{}, err
	}
	if n > 0 {
		return domain.Topic{}, fmt.Errorf("%w: topic already has %d drafts", domain.ErrTopicLocked, n)
	}
	if err := a.store.UpdateTopicConfig(ctx, topicID, count, types); err != nil {
		return domain.Topic{}, err
	}
	topic.QuestionCount = count
	topic.QuestionTypes = append([]domain.QuestionType(nil), types...)
	return topic, nil
}

// SaveSelected persists the chosen drafts into the question bank and
// marks each one saved with its bank entry id. Already-saved drafts are
// skipped, so repeating a selection never duplicates bank records. An
// empty selection is a no-op. Returns the drafts saved by this call.
func (a *App) SaveSelected(ctx context.Context, scopeID, ownerID string, draftIDs []string) ([]domain.DraftQuestion, error) {
	if len(draftIDs) == 0 {
		return nil, nil
	}
	categoryID, err := a.bank.GetOrCreateCategory(ctx, scopeID, a.categoryName)
	if err != nil {
		return nil, fmt.Errorf("resolve category: %w", err)
	}
	logger := util.LoggerFromContext(ctx)

	var saved []domain.DraftQuestion
	for _, id := range draftIDs {
		draft, ok, err := a.store.GetDraft(ctx, id)
		if err != nil {
			return saved, err
		}
		if !ok {
			return saved, fmt.Errorf("%w: draft %s", domain.ErrNotFound, id)
		}
		if draft.Status == domain.DraftSaved {
			continue
		}
		bankEntryID, err := a.bank.SaveQuestion(ctx, categoryID, ownerID, draft)
		if err != nil {
			return saved, fmt.Errorf("save draft %s: %w", id, err)
		}
		if err := a.store.MarkDraftSaved(ctx, id, bankEntryID); err != nil {
			// The bank record exists but the draft still reads
			// generated; undo the bank write to stay consistent.
			if delErr := a.bank.DeleteQuestion(ctx, bankEntryID); delErr != nil {
				logger.Error("orphaned bank entry", "bank_entry_id", bankEntryID, "err", delErr)
			}
			return saved, fmt.Errorf("mark draft %s saved: %w", id, err)
		}
		draft.Status = domain.DraftSaved
		draft.BankEntryID = bankEntryID
		saved = append(saved, draft)
	}
	logger.Info("drafts saved to question bank", "scope_id", scopeID, "requested", len(draftIDs), "saved", len(saved))
	return saved, nil
}
