package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/evermind-ai/interview-gateway/internal/config"
	"github.com/evermind-ai/interview-gateway/internal/observability"
	"github.com/evermind-ai/interview-gateway/internal/resilience"
)

var validCategories = map[string]struct{}{
	"technical":  {},
	"behavioral": {},
	"general":    {},
}

// OpenAIAdapter implements Adapter against the OpenAI chat completions API.
type OpenAIAdapter struct {
	client  *openai.Client
	model   string
	breaker *resilience.CircuitBreaker
	retry   *resilience.RetryConfig
}

// NewOpenAIAdapter creates an adapter from service configuration.
func NewOpenAIAdapter(cfg *config.Config) *OpenAIAdapter {
	clientCfg := openai.DefaultConfig(cfg.LLMAPIKey)
	if cfg.LLMBaseURL != "" {
		clientCfg.BaseURL = cfg.LLMBaseURL
	}

	return &OpenAIAdapter{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.LLMModel,
		breaker: resilience.NewCircuitBreaker(
			"llm",
			cfg.CircuitBreakerMaxFailures,
			time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
		),
		retry: &resilience.RetryConfig{
			MaxAttempts:       2,
			InitialBackoff:    200 * time.Millisecond,
			MaxBackoff:        2 * time.Second,
			BackoffMultiplier: 2.0,
		},
	}
}

// GenerateSingleQuestion derives one interview question from a short text.
func (a *OpenAIAdapter) GenerateSingleQuestion(ctx context.Context, text string) (Question, error) {
	content, err := a.complete(ctx, singleQuestionSystemPrompt, text)
	if err != nil {
		return Question{}, err
	}

	return Question{
		ID:       uuid.New().String(),
		Text:     strings.TrimSpace(content),
		Category: "general",
	}, nil
}

// GenerateQuestions derives up to maxQuestions questions from a transcript.
func (a *OpenAIAdapter) GenerateQuestions(ctx context.Context, transcript string, maxQuestions int, categories []string) ([]Question, error) {
	if maxQuestions < 1 || maxQuestions > MaxQuestionLimit {
		return nil, fmt.Errorf("%w: maxQuestions must be between 1 and %d, got %d", ErrValidation, MaxQuestionLimit, maxQuestions)
	}
	if len(transcript) > MaxTranscriptChars {
		return nil, fmt.Errorf("%w: transcript exceeds %d characters", ErrValidation, MaxTranscriptChars)
	}
	if strings.TrimSpace(transcript) == "" {
		return nil, fmt.Errorf("%w: transcript is empty", ErrValidation)
	}

	content, err := a.complete(ctx, questionsSystemPrompt(maxQuestions, categories), transcript)
	if err != nil {
		return nil, err
	}

	questions := parseQuestions(content, maxQuestions)
	if len(questions) == 0 {
		return nil, fmt.Errorf("provider returned no usable questions")
	}
	return questions, nil
}

// GetAnswer answers one question in the requested style.
func (a *OpenAIAdapter) GetAnswer(ctx context.Context, question, transcriptContext string, style Style) (Answer, error) {
	stylePrompt, err := StylePrompt(style)
	if err != nil {
		return Answer{}, err
	}

	content, err := a.complete(ctx, answerSystemPrompt(stylePrompt), answerUserPrompt(question, transcriptContext))
	if err != nil {
		return Answer{}, err
	}

	return Answer{
		Answer: strings.TrimSpace(content),
		Style:  string(style),
	}, nil
}

// StreamAnswer streams an answer into sink, one answer_chunk frame per
// provider delta, terminated by answer_complete. A failed sink write stops
// the provider read immediately.
func (a *OpenAIAdapter) StreamAnswer(ctx context.Context, prompt string, opts StreamOptions, sink Sink) error {
	stream, err := a.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       a.model,
		Messages:    []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		Stream:      true,
	})
	if err != nil {
		a.breaker.RecordResult(false)
		observability.IncrementCircuitBreakerFailures("llm")
		return fmt.Errorf("failed to open answer stream: %w", err)
	}
	defer stream.Close()
	a.breaker.RecordResult(true)

	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			a.breaker.RecordResult(false)
			observability.IncrementCircuitBreakerFailures("llm")
			return fmt.Errorf("answer stream failed: %w", err)
		}
		if len(response.Choices) == 0 {
			continue
		}

		delta := response.Choices[0].Delta.Content
		if delta == "" {
			continue
		}

		chunk := AnswerChunk{Type: "answer_chunk", Text: delta, Timestamp: nowMillis()}
		if err := sink.Write(chunk); err != nil {
			// Sink is gone; stop reading from the provider.
			return fmt.Errorf("answer stream sink closed: %w", err)
		}
	}

	return sink.Write(AnswerComplete{Type: "answer_complete", Timestamp: nowMillis()})
}

// complete runs one non-streaming chat completion behind the circuit
// breaker, retrying transient network failures.
func (a *OpenAIAdapter) complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	var content string

	err := a.breaker.Call(func() error {
		return resilience.Retry(func() error {
			resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
				Model: a.model,
				Messages: []openai.ChatCompletionMessage{
					{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
					{Role: openai.ChatMessageRoleUser, Content: userPrompt},
				},
			})
			if err != nil {
				return err
			}
			if len(resp.Choices) == 0 {
				return fmt.Errorf("provider returned no choices")
			}
			content = resp.Choices[0].Message.Content
			return nil
		}, a.retry, resilience.IsRetryableNetworkError)
	})

	observability.UpdateCircuitBreakerState("llm", int(a.breaker.GetState()))
	if err != nil {
		observability.IncrementCircuitBreakerFailures("llm")
		return "", fmt.Errorf("completion failed: %w", err)
	}

	return content, nil
}

// parseQuestions extracts questions from the provider reply. The prompt
// asks for a JSON array; some models still wrap it in code fences or fall
// back to a numbered list, so both shapes are accepted.
func parseQuestions(content string, maxQuestions int) []Question {
	cleaned := strings.TrimSpace(content)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var raw []struct {
		Text     string `json:"text"`
		Category string `json:"category"`
	}
	if err := json.Unmarshal([]byte(cleaned), &raw); err == nil {
		questions := make([]Question, 0, len(raw))
		for _, item := range raw {
			text := strings.TrimSpace(item.Text)
			if text == "" {
				continue
			}
			questions = append(questions, Question{
				ID:       uuid.New().String(),
				Text:     text,
				Category: normalizeCategory(item.Category),
			})
			if len(questions) == maxQuestions {
				break
			}
		}
		return questions
	}

	// Fallback: one question per non-empty line, numbering stripped.
	var questions []Question
	for _, line := range strings.Split(cleaned, "\n") {
		text := strings.TrimSpace(line)
		text = strings.TrimLeft(text, "0123456789.-) ")
		if text == "" {
			continue
		}
		questions = append(questions, Question{
			ID:   uuid.New().String(),
			Text: text,
		})
		if len(questions) == maxQuestions {
			break
		}
	}
	return questions
}

func normalizeCategory(category string) string {
	category = strings.ToLower(strings.TrimSpace(category))
	if _, ok := validCategories[category]; ok {
		return category
	}
	return ""
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
