package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"

	"questiongen/pkg/domain"
)

// DraftDescriptor is one AI-proposed question before validation and
// persistence.
type DraftDescriptor struct {
	Name       string            `json:"name"`
	Text       string            `json:"text"`
	Type       domain.QuestionType `json:"type"`
	Answers    []domain.Answer   `json:"answers"`
	Feedback   string            `json:"feedback"`
	Difficulty domain.Difficulty `json:"difficulty"`
}

// TypeSelector picks an index into the requested type set for one
// sample question. Injected so tests can make generation deterministic.
type TypeSelector func(n int) int

// Generator drafts questions for a topic via the AI collaborator.
type Generator struct {
	client   Client
	pickType TypeSelector
}

// GeneratorOption customizes a Generator.
type GeneratorOption func(*Generator)

// WithTypeSelector overrides the uniform random type choice used by the
// fallback sample set.
func WithTypeSelector(sel TypeSelector) GeneratorOption {
	return func(g *Generator) {
		if sel != nil {
			g.pickType = sel
		}
	}
}

// NewGenerator builds a question generator on top of a completion
// client. Sample-set type selection defaults to uniform random choice.
func NewGenerator(client Client, options ...GeneratorOption) *Generator {
	g := &Generator{
		client:   client,
		pickType: rand.Intn,
	}
	for _, option := range options {
		option(g)
	}
	return g
}

// Generate asks the collaborator for count questions about the topic,
// each of a type drawn from types. Collaborator failures, including a
// response missing the `questions` key, surface as ErrUnavailable.
func (g *Generator) Generate(ctx context.Context, topic TopicDescriptor, types []domain.QuestionType, count int) ([]DraftDescriptor, error) {
	content, err := g.client.Complete(ctx, systemPrompt, buildQuestionPrompt(topic, types, count))
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Questions []DraftDescriptor `json:"questions"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("%w: parse questions: %v", ErrUnavailable, err)
	}
	if parsed.Questions == nil {
		return nil, fmt.Errorf("%w: response missing questions key", ErrUnavailable)
	}
	return parsed.Questions, nil
}

// SampleQuestions is the deterministic canned set used when the
// generator collaborator is unreachable or returns malformed output.
// Only the per-question type choice varies, through the selector.
func (g *Generator) SampleQuestions(topic TopicDescriptor, types []domain.QuestionType, count int) []DraftDescriptor {
	title := strings.TrimSpace(topic.Title)
	if title == "" {
		title = "Programming"
	}
	if len(types) == 0 {
		types = []domain.QuestionType{domain.TypeMultichoice}
	}
	drafts := make([]DraftDescriptor, 0, count)
	for i := 1; i <= count; i++ {
		qtype := types[g.pickType(len(types))]
		name := fmt.Sprintf("Question %d - %s", i, title)
		switch qtype {
		case domain.TypeMultichoice:
			drafts = append(drafts, DraftDescriptor{
				Name: name,
				Text: fmt.Sprintf("Which of the following best describes %s?", title),
				Type: domain.TypeMultichoice,
				Answers: []domain.Answer{
					{Text: "A correct statement about " + title, Fraction: 1.0, Feedback: "Correct!"},
					{Text: "Incorrect option A", Fraction: 0.0, Feedback: "Incorrect."},
					{Text: "Incorrect option B", Fraction: 0.0, Feedback: "Incorrect."},
					{Text: "Incorrect option C", Fraction: 0.0, Feedback: "Incorrect."},
				},
				Feedback:   fmt.Sprintf("This question tests basic knowledge of %s.", title),
				Difficulty: domain.DifficultyMedium,
			})
		case domain.TypeTrueFalse:
			drafts = append(drafts, DraftDescriptor{
				Name: name,
				Text: fmt.Sprintf("%s is a fundamental concept in modern programming.", title),
				Type: domain.TypeTrueFalse,
				Answers: []domain.Answer{
					{Text: "True", Fraction: 1.0, Feedback: "Correct!"},
					{Text: "False", Fraction: 0.0, Feedback: "Incorrect."},
				},
				Feedback:   fmt.Sprintf("This question checks understanding of %s.", title),
				Difficulty: domain.DifficultyEasy,
			})
		case domain.TypeShortAnswer:
			drafts = append(drafts, DraftDescriptor{
				Name: name,
				Text: fmt.Sprintf("Name two important concepts related to %s.", title),
				Type: domain.TypeShortAnswer,
				Answers: []domain.Answer{
					{Text: "*", Fraction: 1.0, Feedback: "Answer accepted."},
				},
				Feedback:   fmt.Sprintf("Expected answers include fundamental concepts of %s.", title),
				Difficulty: domain.DifficultyMedium,
			})
		case domain.TypeEssay:
			drafts = append(drafts, DraftDescriptor{
				Name:       name,
				Text:       fmt.Sprintf("Explain in detail the main concepts of %s and their importance.", title),
				Type:       domain.TypeEssay,
				Answers:    nil,
				Feedback:   fmt.Sprintf("The answer should cover theoretical and practical aspects of %s.", title),
				Difficulty: domain.DifficultyHard,
			})
		}
	}
	return drafts
}

func buildQuestionPrompt(topic TopicDescriptor, types []domain.QuestionType, count int) string {
	parts := make([]string, 0, len(types))
	for _, t := range types {
		parts = append(parts, string(t))
	}
	return fmt.Sprintf("Generate %d educational questions about the following topic:\n\n", count) +
		fmt.Sprintf("Topic: %s\n", topic.Title) +
		fmt.Sprintf("Description: %s\n", topic.Description) +
		fmt.Sprintf("Content: %s\n\n", topic.Content) +
		fmt.Sprintf("Generate questions of these types: %s\n\n", strings.Join(parts, ", ")) +
		"For multiple choice questions, provide 4 options with only one correct answer.\n" +
		"For true/false questions, provide the statement and correct answer.\n" +
		"For short answer questions, provide the question and expected answer.\n" +
		"For essay questions, provide the question and key points to cover.\n\n" +
		"Return results in JSON format:\n" +
		"{\n" +
		"  \"questions\": [\n" +
		"    {\n" +
		"      \"name\": \"Question Name\",\n" +
		"      \"text\": \"Question text\",\n" +
		"      \"type\": \"multichoice|truefalse|shortanswer|essay\",\n" +
		"      \"answers\": [\n" +
		"        {\"text\": \"Answer text\", \"fraction\": 1.0, \"feedback\": \"Feedback\"}\n" +
		"      ],\n" +
		"      \"feedback\": \"General feedback\",\n" +
		"      \"difficulty\": \"easy|medium|hard\"\n" +
		"    }\n" +
		"  ]\n" +
		"}"
}
