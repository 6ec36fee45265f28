package questionbank

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"questiongen/pkg/domain"
)

// Separate advisory lock key from the job store so the two migrations
// do not serialize against each other.
const bankMigrateLockID int64 = 48120735

// GormBank is the Postgres-backed Bank and Admin implementation.
type GormBank struct {
	db *gorm.DB
	// status assigned to newly saved question versions.
	defaultStatus string
}

// NewGormBank migrates the bank schema and returns a ready bank.
// defaultStatus is the visibility assigned to freshly saved questions;
// empty means StatusDraft.
func NewGormBank(db *gorm.DB, defaultStatus string) (*GormBank, error) {
	if defaultStatus == "" {
		defaultStatus = StatusDraft
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", bankMigrateLockID).Error; err != nil {
			return err
		}
		return tx.AutoMigrate(
			&CategoryModel{},
			&BankEntryModel{},
			&QuestionModel{},
			&QuestionVersionModel{},
			&MultichoiceOptionModel{},
			&TrueFalseOptionModel{},
			&ShortAnswerOptionModel{},
			&AnswerModel{},
		)
	})
	if err != nil {
		return nil, fmt.Errorf("migrate question bank: %w", err)
	}
	return &GormBank{db: db, defaultStatus: defaultStatus}, nil
}

func (b *GormBank) GetOrCreateCategory(ctx context.Context, scopeID, name string) (string, error) {
	var cat CategoryModel
	err := b.db.WithContext(ctx).
		Where("scope_id = ? AND name = ?", scopeID, name).
		First(&cat).Error
	if err == nil {
		return cat.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}
	// Insert-on-conflict-do-nothing, then re-read. A concurrent creator
	// winning the race just makes our insert a no-op.
	cat = CategoryModel{
		ID:      uuid.NewString(),
		ScopeID: scopeID,
		Name:    name,
		Info:    "Automatically generated questions",
	}
	err = b.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&cat).Error
	if err != nil {
		return "", err
	}
	err = b.db.WithContext(ctx).
		Where("scope_id = ? AND name = ?", scopeID, name).
		First(&cat).Error
	if err != nil {
		return "", err
	}
	return cat.ID, nil
}

func (b *GormBank) SaveQuestion(ctx context.Context, categoryID, ownerID string, d domain.DraftQuestion) (string, error) {
	if err := domain.ValidateDraft(d); err != nil {
		return "", err
	}
	entryID := uuid.NewString()
	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry := BankEntryModel{ID: entryID, CategoryID: categoryID, OwnerID: ownerID}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		q := QuestionModel{
			ID:              uuid.NewString(),
			Name:            d.Name,
			Text:            d.Text,
			Type:            string(d.Type),
			GeneralFeedback: d.Feedback,
			DefaultMark:     1,
			Penalty:         penaltyFor(d.Type),
			CreatedBy:       ownerID,
		}
		if err := tx.Create(&q).Error; err != nil {
			return err
		}
		version := QuestionVersionModel{
			ID:          uuid.NewString(),
			BankEntryID: entryID,
			QuestionID:  q.ID,
			Version:     1,
			Status:      b.defaultStatus,
		}
		if err := tx.Create(&version).Error; err != nil {
			return err
		}
		return createTypeRecords(tx, q.ID, d)
	})
	if err != nil {
		return "", fmt.Errorf("save question: %w", err)
	}
	return entryID, nil
}

func createTypeRecords(tx *gorm.DB, questionID string, d domain.DraftQuestion) error {
	answerIDs := make([]string, len(d.Answers))
	for i, a := range d.Answers {
		answerIDs[i] = uuid.NewString()
		row := AnswerModel{
			ID:         answerIDs[i],
			QuestionID: questionID,
			Text:       a.Text,
			Fraction:   a.Fraction,
			Feedback:   a.Feedback,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
	}
	switch d.Type {
	case domain.TypeMultichoice:
		return tx.Create(&MultichoiceOptionModel{
			QuestionID:      questionID,
			Single:          true,
			ShuffleAnswers:  true,
			AnswerNumbering: "abc",
		}).Error
	case domain.TypeTrueFalse:
		opts := TrueFalseOptionModel{QuestionID: questionID}
		for i, a := range d.Answers {
			if domain.IsTrueLabel(a.Text) {
				opts.TrueAnswerID = answerIDs[i]
			} else {
				opts.FalseAnswerID = answerIDs[i]
			}
		}
		return tx.Create(&opts).Error
	case domain.TypeShortAnswer:
		return tx.Create(&ShortAnswerOptionModel{QuestionID: questionID}).Error
	case domain.TypeEssay:
		return nil
	}
	return fmt.Errorf("unsupported question type %q", d.Type)
}

// penaltyFor mirrors conventional retry penalties per type.
func penaltyFor(t domain.QuestionType) float64 {
	switch t {
	case domain.TypeMultichoice, domain.TypeShortAnswer:
		return 0.3333333
	default:
		return 1
	}
}

func (b *GormBank) DeleteQuestion(ctx context.Context, bankEntryID string) error {
	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var versions []QuestionVersionModel
		if err := tx.Where("bank_entry_id = ?", bankEntryID).Find(&versions).Error; err != nil {
			return err
		}
		for _, v := range versions {
			for _, model := range []any{
				&AnswerModel{},
				&MultichoiceOptionModel{},
				&TrueFalseOptionModel{},
				&ShortAnswerOptionModel{},
			} {
				if err := tx.Where("question_id = ?", v.QuestionID).Delete(model).Error; err != nil {
					return err
				}
			}
			if err := tx.Delete(&QuestionModel{}, "id = ?", v.QuestionID).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("bank_entry_id = ?", bankEntryID).Delete(&QuestionVersionModel{}).Error; err != nil {
			return err
		}
		return tx.Delete(&BankEntryModel{}, "id = ?", bankEntryID).Error
	})
}

func (b *GormBank) ListCategories(ctx context.Context) ([]Category, error) {
	var rows []CategoryModel
	if err := b.db.WithContext(ctx).Order("scope_id, name").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Category, len(rows))
	for i, r := range rows {
		out[i] = Category{ID: r.ID, ScopeID: r.ScopeID, Name: r.Name}
	}
	return out, nil
}

func (b *GormBank) ListVersionsByCategory(ctx context.Context, categoryID string) ([]QuestionVersion, error) {
	var rows []struct {
		ID           string
		QuestionID   string
		QuestionName string
		Status       string
	}
	err := b.db.WithContext(ctx).
		Table("question_versions").
		Select("question_versions.id, question_versions.question_id, questions.name AS question_name, question_versions.status").
		Joins("JOIN question_bank_entries ON question_bank_entries.id = question_versions.bank_entry_id").
		Joins("JOIN questions ON questions.id = question_versions.question_id").
		Where("question_bank_entries.category_id = ?", categoryID).
		Order("questions.name").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]QuestionVersion, len(rows))
	for i, r := range rows {
		out[i] = QuestionVersion{ID: r.ID, QuestionID: r.QuestionID, QuestionName: r.QuestionName, Status: r.Status}
	}
	return out, nil
}

func (b *GormBank) SetVersionReady(ctx context.Context, versionID string) (bool, error) {
	res := b.db.WithContext(ctx).
		Model(&QuestionVersionModel{}).
		Where("id = ? AND status = ?", versionID, StatusDraft).
		Update("status", StatusReady)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
