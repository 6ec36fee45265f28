package domain

import (
	"errors"
	"time"
)

type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether a job can no longer change status.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

type DraftStatus string

const (
	DraftGenerated DraftStatus = "generated"
	DraftSaved     DraftStatus = "saved"
)

type QuestionType string

const (
	TypeMultichoice QuestionType = "multichoice"
	TypeTrueFalse   QuestionType = "truefalse"
	TypeShortAnswer QuestionType = "shortanswer"
	TypeEssay       QuestionType = "essay"
)

// SupportedTypes lists every question type the pipeline can produce.
var SupportedTypes = []QuestionType{TypeMultichoice, TypeTrueFalse, TypeShortAnswer, TypeEssay}

// ValidType reports whether t is one of the supported question types.
func ValidType(t QuestionType) bool {
	for _, s := range SupportedTypes {
		if t == s {
			return true
		}
	}
	return false
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

var (
	// ErrInvalidDocument rejects uploads that are not recognized as PDF content.
	ErrInvalidDocument = errors.New("invalid document")
	// ErrUnreadableDocument means the stored document could not be extracted.
	ErrUnreadableDocument = errors.New("unreadable document")
	// ErrTopicLocked means a topic already has drafts and its generation
	// configuration can no longer change.
	ErrTopicLocked = errors.New("topic already has generated drafts")
	// ErrNotFound is returned for lookups of absent records.
	ErrNotFound = errors.New("not found")
)

// Job is one user-initiated generation request. It is created pending,
// claimed into processing by exactly one worker, and ends in completed
// or failed. Terminal states are never left.
type Job struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"ownerId"`
	ScopeID      string    `json:"scopeId"`
	Filename     string    `json:"filename"`
	StorageKey   string    `json:"-"`
	Fingerprint  string    `json:"fingerprint"`
	Status       JobStatus `json:"status"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Topic is one curriculum topic extracted for a job. QuestionCount and
// QuestionTypes are the only mutable fields, and only before the topic
// has drafts.
type Topic struct {
	ID            string         `json:"id"`
	JobID         string         `json:"jobId"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Content       string         `json:"content"`
	SortOrder     int            `json:"sortOrder"`
	QuestionCount int            `json:"questionCount"`
	QuestionTypes []QuestionType `json:"questionTypes"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// DraftQuestion is one AI-proposed question attached to a topic. Once
// saved it is immutable and carries the bank entry it produced.
type DraftQuestion struct {
	ID          string       `json:"id"`
	TopicID     string       `json:"topicId"`
	Name        string       `json:"name"`
	Text        string       `json:"text"`
	Type        QuestionType `json:"type"`
	Answers     []Answer     `json:"answers"`
	Feedback    string       `json:"feedback"`
	Difficulty  Difficulty   `json:"difficulty"`
	Status      DraftStatus  `json:"status"`
	BankEntryID string       `json:"bankEntryId,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// Answer is a value type; its meaning depends on the question type.
type Answer struct {
	Text     string  `json:"text"`
	Fraction float64 `json:"fraction"`
	Feedback string  `json:"feedback,omitempty"`
}
