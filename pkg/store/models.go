package store

import (
	"encoding/json"
	"strings"
	"time"

	"gorm.io/datatypes"

	"questiongen/pkg/domain"
)

// GORM models used for persistence.
type JobModel struct {
	ID           string `gorm:"primaryKey"`
	OwnerID      string `gorm:"not null;index"`
	ScopeID      string `gorm:"not null;index"`
	Filename     string `gorm:"not null"`
	StorageKey   string
	Fingerprint  string    `gorm:"index"`
	Status       string    `gorm:"not null;index"`
	ErrorMessage string    `gorm:"type:text"`
	CreatedAt    time.Time `gorm:"not null;index"`
	UpdatedAt    time.Time `gorm:"not null"`
}

type TopicModel struct {
	ID            string `gorm:"primaryKey"`
	JobID         string `gorm:"not null;index"`
	Title         string `gorm:"not null"`
	Description   string `gorm:"type:text"`
	Content       string `gorm:"type:text"`
	SortOrder     int    `gorm:"not null"`
	QuestionCount int    `gorm:"not null"`
	QuestionTypes string `gorm:"not null"`
	CreatedAt     time.Time `gorm:"not null"`
}

type DraftModel struct {
	ID          string `gorm:"primaryKey"`
	TopicID     string `gorm:"not null;index"`
	Name        string `gorm:"not null"`
	Text        string `gorm:"type:text;not null"`
	Type        string `gorm:"not null"`
	Answers     datatypes.JSON `gorm:"type:jsonb"`
	Feedback    string `gorm:"type:text"`
	Difficulty  string
	Status      string    `gorm:"not null;index"`
	BankEntryID string    `gorm:"index"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

func jobToModel(j domain.Job) JobModel {
	return JobModel{
		ID:           j.ID,
		OwnerID:      j.OwnerID,
		ScopeID:      j.ScopeID,
		Filename:     j.Filename,
		StorageKey:   j.StorageKey,
		Fingerprint:  j.Fingerprint,
		Status:       string(j.Status),
		ErrorMessage: j.ErrorMessage,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
	}
}

func jobFromModel(m JobModel) domain.Job {
	return domain.Job{
		ID:           m.ID,
		OwnerID:      m.OwnerID,
		ScopeID:      m.ScopeID,
		Filename:     m.Filename,
		StorageKey:   m.StorageKey,
		Fingerprint:  m.Fingerprint,
		Status:       domain.JobStatus(m.Status),
		ErrorMessage: m.ErrorMessage,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func topicToModel(t domain.Topic) TopicModel {
	return TopicModel{
		ID:            t.ID,
		JobID:         t.JobID,
		Title:         t.Title,
		Description:   t.Description,
		Content:       t.Content,
		SortOrder:     t.SortOrder,
		QuestionCount: t.QuestionCount,
		QuestionTypes: encodeTypes(t.QuestionTypes),
		CreatedAt:     t.CreatedAt,
	}
}

func topicFromModel(m TopicModel) domain.Topic {
	return domain.Topic{
		ID:            m.ID,
		JobID:         m.JobID,
		Title:         m.Title,
		Description:   m.Description,
		Content:       m.Content,
		SortOrder:     m.SortOrder,
		QuestionCount: m.QuestionCount,
		QuestionTypes: decodeTypes(m.QuestionTypes),
		CreatedAt:     m.CreatedAt,
	}
}

func draftToModel(d domain.DraftQuestion) (DraftModel, error) {
	answers, err := json.Marshal(d.Answers)
	if err != nil {
		return DraftModel{}, err
	}
	return DraftModel{
		ID:          d.ID,
		TopicID:     d.TopicID,
		Name:        d.Name,
		Text:        d.Text,
		Type:        string(d.Type),
		Answers:     datatypes.JSON(answers),
		Feedback:    d.Feedback,
		Difficulty:  string(d.Difficulty),
		Status:      string(d.Status),
		BankEntryID: d.BankEntryID,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}, nil
}

func draftFromModel(m DraftModel) domain.DraftQuestion {
	var answers []domain.Answer
	if len(m.Answers) > 0 {
		_ = json.Unmarshal(m.Answers, &answers)
	}
	return domain.DraftQuestion{
		ID:          m.ID,
		TopicID:     m.TopicID,
		Name:        m.Name,
		Text:        m.Text,
		Type:        domain.QuestionType(m.Type),
		Answers:     answers,
		Feedback:    m.Feedback,
		Difficulty:  domain.Difficulty(m.Difficulty),
		Status:      domain.DraftStatus(m.Status),
		BankEntryID: m.BankEntryID,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func encodeTypes(types []domain.QuestionType) string {
	parts := make([]string, 0, len(types))
	for _, t := range types {
		parts = append(parts, string(t))
	}
	return strings.Join(parts, ",")
}

func decodeTypes(raw string) []domain.QuestionType {
	var types []domain.QuestionType
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		types = append(types, domain.QuestionType(part))
	}
	return types
}
