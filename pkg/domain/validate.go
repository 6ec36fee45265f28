package domain

import (
	"fmt"
	"strings"
)

// ValidateDraft checks a draft question against the answer-set rules of
// its type. Drafts failing validation are dropped by the pipeline as a
// generation shortfall rather than failing the job.
func ValidateDraft(d DraftQuestion) error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("draft question name is empty")
	}
	if strings.TrimSpace(d.Text) == "" {
		return fmt.Errorf("draft question text is empty")
	}
	if !ValidType(d.Type) {
		return fmt.Errorf("unsupported question type %q", d.Type)
	}
	for i, a := range d.Answers {
		if a.Fraction < 0 || a.Fraction > 1 {
			return fmt.Errorf("answer %d fraction %v out of range", i, a.Fraction)
		}
	}
	switch d.Type {
	case TypeMultichoice:
		return validateMultichoice(d.Answers)
	case TypeTrueFalse:
		return validateTrueFalse(d.Answers)
	case TypeShortAnswer:
		if len(d.Answers) < 1 {
			return fmt.Errorf("shortanswer requires at least one accepted pattern")
		}
	case TypeEssay:
		if len(d.Answers) != 0 {
			return fmt.Errorf("essay must have an empty answer set")
		}
	}
	return nil
}

// Multichoice is persisted in single-answer mode, so exactly one answer
// must carry full credit.
func validateMultichoice(answers []Answer) error {
	if len(answers) < 2 {
		return fmt.Errorf("multichoice requires at least 2 answers, got %d", len(answers))
	}
	correct := 0
	for _, a := range answers {
		if a.Fraction == 1.0 {
			correct++
		}
	}
	if correct != 1 {
		return fmt.Errorf("multichoice requires exactly one answer with fraction 1.0, got %d", correct)
	}
	return nil
}

func validateTrueFalse(answers []Answer) error {
	if len(answers) != 2 {
		return fmt.Errorf("truefalse requires exactly 2 answers, got %d", len(answers))
	}
	var hasTrue, hasFalse bool
	for _, a := range answers {
		if IsTrueLabel(a.Text) {
			hasTrue = true
		}
		if IsFalseLabel(a.Text) {
			hasFalse = true
		}
	}
	if !hasTrue || !hasFalse {
		return fmt.Errorf("truefalse requires one true-labelled and one false-labelled answer")
	}
	return nil
}

// IsTrueLabel reports whether an answer text labels the true option.
func IsTrueLabel(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), "true")
}

// IsFalseLabel reports whether an answer text labels the false option.
func IsFalseLabel(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), "false")
}

// ValidateTopicConfig checks a requested generation configuration.
func ValidateTopicConfig(count int, types []QuestionType) error {
	if count < 1 {
		return fmt.Errorf("question count must be at least 1, got %d", count)
	}
	if len(types) == 0 {
		return fmt.Errorf("at least one question type is required")
	}
	seen := make(map[QuestionType]bool, len(types))
	for _, t := range types {
		if !ValidType(t) {
			return fmt.Errorf("unsupported question type %q", t)
		}
		if seen[t] {
			return fmt.Errorf("duplicate question type %q", t)
		}
		seen[t] = true
	}
	return nil
}
