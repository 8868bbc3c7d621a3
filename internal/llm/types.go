package llm

import (
	"context"
	"errors"
)

// ErrValidation marks request errors the caller should report to the
// client as a validation failure rather than a provider failure.
var ErrValidation = errors.New("validation error")

// Style steers the tone of a generated answer.
type Style string

const (
	StyleProfessional   Style = "professional"
	StyleConversational Style = "conversational"
	StyleDetailed       Style = "detailed"
	StyleConcise        Style = "concise"
)

// Valid reports whether the style is one of the enumerated presets.
func (s Style) Valid() bool {
	switch s {
	case StyleProfessional, StyleConversational, StyleDetailed, StyleConcise:
		return true
	}
	return false
}

// Question is one interview prompt generated for the interviewee.
// Questions are immutable once created.
type Question struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Category string `json:"category,omitempty"` // technical, behavioral, or general
}

// Answer is a non-streaming answer to a single question.
type Answer struct {
	Answer string `json:"answer"`
	Style  string `json:"style"`
}

// StreamOptions tunes a streaming answer request.
type StreamOptions struct {
	Temperature float32
	MaxTokens   int
}

// Sink receives ordered frames from a streaming answer. Implementations
// return an error once the underlying transport is gone; the adapter must
// stop reading from the provider when that happens.
type Sink interface {
	Write(v any) error
}

// AnswerChunk is one incremental piece of a streamed answer.
type AnswerChunk struct {
	Type      string `json:"type"` // always "answer_chunk"
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// AnswerComplete terminates a streamed answer.
type AnswerComplete struct {
	Type      string `json:"type"` // always "answer_complete"
	Timestamp int64  `json:"timestamp"`
}

// Adapter is the interface to the external LLM provider.
type Adapter interface {
	// GenerateSingleQuestion derives one interview-style question from a
	// short text. Used by test mode.
	GenerateSingleQuestion(ctx context.Context, text string) (Question, error)

	// GenerateQuestions derives up to maxQuestions questions from a
	// transcript. maxQuestions must be <= 10 and the transcript <= 10,000
	// characters, otherwise ErrValidation.
	GenerateQuestions(ctx context.Context, transcript string, maxQuestions int, categories []string) ([]Question, error)

	// GetAnswer answers one question against the transcript context in
	// the given style. Unknown styles are rejected with ErrValidation.
	GetAnswer(ctx context.Context, question, transcriptContext string, style Style) (Answer, error)

	// StreamAnswer streams an answer for prompt into sink as answer_chunk
	// frames followed by one answer_complete frame. A failed sink write
	// aborts the provider stream.
	StreamAnswer(ctx context.Context, prompt string, opts StreamOptions, sink Sink) error
}
