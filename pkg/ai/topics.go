package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// TopicDescriptor is one curriculum topic proposed by the analyzer.
type TopicDescriptor struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Content     string `json:"content"`
}

// Analyzer extracts curriculum topics from plain text via the AI
// collaborator. A fresh call re-analyzes; results are not cached.
type Analyzer struct {
	client Client
}

// NewAnalyzer builds a topic analyzer on top of a completion client.
func NewAnalyzer(client Client) *Analyzer {
	return &Analyzer{client: client}
}

// Analyze returns the topics found in text. Every collaborator failure,
// including a response without the `topics` key, surfaces as
// ErrUnavailable so the caller can take the documented fallback.
func (a *Analyzer) Analyze(ctx context.Context, text string) ([]TopicDescriptor, error) {
	content, err := a.client.Complete(ctx, systemPrompt, buildTopicPrompt(text))
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Topics []TopicDescriptor `json:"topics"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("%w: parse topics: %v", ErrUnavailable, err)
	}
	if parsed.Topics == nil {
		return nil, fmt.Errorf("%w: response missing topics key", ErrUnavailable)
	}
	topics := make([]TopicDescriptor, 0, len(parsed.Topics))
	for _, t := range parsed.Topics {
		if strings.TrimSpace(t.Title) == "" {
			continue
		}
		topics = append(topics, t)
	}
	if len(topics) == 0 {
		return nil, fmt.Errorf("%w: no usable topics in response", ErrUnavailable)
	}
	return topics, nil
}

func buildTopicPrompt(text string) string {
	return "Analyze the following curriculum text and identify the main educational topics. " +
		"For each topic, provide:\n" +
		"1. A clear, concise title\n" +
		"2. A brief description (1-2 sentences)\n" +
		"3. Key concepts and subtopics\n\n" +
		"Return the results in JSON format with the following structure:\n" +
		"{\n" +
		"  \"topics\": [\n" +
		"    {\n" +
		"      \"title\": \"Topic Title\",\n" +
		"      \"description\": \"Brief description\",\n" +
		"      \"content\": \"Key concepts and subtopics\"\n" +
		"    }\n" +
		"  ]\n" +
		"}\n\n" +
		"Curriculum text:\n" + text
}

// DefaultTopics is the fixed topic set used when the analyzer
// collaborator is unreachable or returns malformed output. The degrade
// path is deliberate, not an error, and is flagged in logs.
func DefaultTopics() []TopicDescriptor {
	return []TopicDescriptor{
		{
			Title:       "Introduction to Programming",
			Description: "Basic programming concepts, algorithms, and fundamental data structures.",
			Content:     "Variables, data types, conditionals, loops, arrays, functions",
		},
		{
			Title:       "Object-Oriented Programming",
			Description: "The object-oriented programming paradigm and its core principles.",
			Content:     "Classes, objects, inheritance, polymorphism, encapsulation, abstraction, interfaces",
		},
		{
			Title:       "Databases",
			Description: "Fundamental concepts of relational database management systems.",
			Content:     "SQL, normalization, data modeling, transactions, joins, indexes",
		},
		{
			Title:       "Web Development",
			Description: "Technologies and concepts for building modern web applications.",
			Content:     "HTML, CSS, JavaScript, REST APIs, HTTP, sessions, web security",
		},
		{
			Title:       "Testing and Software Quality",
			Description: "Methodologies and practices for assuring the quality of developed software.",
			Content:     "Unit testing, TDD, debugging, quality metrics, code review",
		},
	}
}
