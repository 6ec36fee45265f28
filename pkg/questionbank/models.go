package questionbank

import "time"

// CategoryModel groups questions per scope. The (scope_id, name) unique
// index backs the race-safe get-or-create.
type CategoryModel struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	ScopeID   string `gorm:"type:varchar(64);not null;uniqueIndex:idx_category_scope_name"`
	Name      string `gorm:"type:varchar(255);not null;uniqueIndex:idx_category_scope_name"`
	Info      string `gorm:"type:text"`
	CreatedAt time.Time
}

func (CategoryModel) TableName() string { return "question_categories" }

// BankEntryModel is the stable handle a saved draft points back to.
type BankEntryModel struct {
	ID         string `gorm:"type:uuid;primaryKey"`
	CategoryID string `gorm:"type:uuid;not null;index"`
	OwnerID    string `gorm:"type:varchar(64);not null"`
	CreatedAt  time.Time
}

func (BankEntryModel) TableName() string { return "question_bank_entries" }

type QuestionModel struct {
	ID              string `gorm:"type:uuid;primaryKey"`
	Name            string `gorm:"type:varchar(255);not null"`
	Text            string `gorm:"type:text;not null"`
	Type            string `gorm:"type:varchar(32);not null"`
	GeneralFeedback string `gorm:"type:text"`
	DefaultMark     float64
	Penalty         float64
	CreatedBy       string `gorm:"type:varchar(64)"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (QuestionModel) TableName() string { return "questions" }

// QuestionVersionModel binds a question to its bank entry and carries
// the visibility status.
type QuestionVersionModel struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	BankEntryID string `gorm:"type:uuid;not null;index"`
	QuestionID  string `gorm:"type:uuid;not null;index"`
	Version     int    `gorm:"not null;default:1"`
	Status      string `gorm:"type:varchar(16);not null"`
	CreatedAt   time.Time
}

func (QuestionVersionModel) TableName() string { return "question_versions" }

type MultichoiceOptionModel struct {
	QuestionID      string `gorm:"type:uuid;primaryKey"`
	Single          bool   `gorm:"not null;default:true"`
	ShuffleAnswers  bool   `gorm:"not null;default:true"`
	AnswerNumbering string `gorm:"type:varchar(16);not null;default:'abc'"`
}

func (MultichoiceOptionModel) TableName() string { return "question_multichoice_options" }

type TrueFalseOptionModel struct {
	QuestionID    string `gorm:"type:uuid;primaryKey"`
	TrueAnswerID  string `gorm:"type:uuid;not null"`
	FalseAnswerID string `gorm:"type:uuid;not null"`
}

func (TrueFalseOptionModel) TableName() string { return "question_truefalse_options" }

type ShortAnswerOptionModel struct {
	QuestionID string `gorm:"type:uuid;primaryKey"`
	UseCase    bool   `gorm:"not null;default:false"`
}

func (ShortAnswerOptionModel) TableName() string { return "question_shortanswer_options" }

type AnswerModel struct {
	ID         string `gorm:"type:uuid;primaryKey"`
	QuestionID string `gorm:"type:uuid;not null;index"`
	Text       string `gorm:"type:text;not null"`
	Fraction   float64
	Feedback   string `gorm:"type:text"`
}

func (AnswerModel) TableName() string { return "question_answers" }
