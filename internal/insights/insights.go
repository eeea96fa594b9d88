// Package insights derives a meeting title, summary, action items and key
// points from a closed session's transcript using an OpenAI-compatible chat
// completion API.
package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"acta-transcript-engine/internal/models"
	"acta-transcript-engine/internal/observability/logging"
)

// ErrEmptyTranscript is returned when there is nothing to analyze.
var ErrEmptyTranscript = errors.New("empty transcript")

const systemPrompt = `You analyze meeting transcripts. Reply with a single JSON object with the keys
"title" (string), "summary" (array of short strings), "action_items" (array of strings)
and "key_points" (array of strings). Use the transcript's language. Do not invent facts.`

// Config configures the Extractor.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string // optional, for OpenAI-compatible gateways
	Timeout time.Duration
}

// Extractor calls the chat completion API.
type Extractor struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	log     zerolog.Logger
}

// New creates an Extractor.
func New(cfg Config) *Extractor {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Extractor{
		client:  openai.NewClientWithConfig(oc),
		model:   model,
		timeout: timeout,
		log:     logging.WithComponent("insights"),
	}
}

type analysis struct {
	Title       string   `json:"title"`
	Summary     []string `json:"summary"`
	ActionItems []string `json:"action_items"`
	KeyPoints   []string `json:"key_points"`
}

// Extract analyzes the transcript of summary.
func (e *Extractor) Extract(ctx context.Context, summary models.Summary) (models.Insights, error) {
	text := strings.TrimSpace(summary.FullTranscript)
	if text == "" {
		return models.Insights{}, ErrEmptyTranscript
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(summary)},
		},
		Temperature: 0.3,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return models.Insights{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return models.Insights{}, errors.New("chat completion returned no choices")
	}

	var a analysis
	content := stripCodeFence(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &a); err != nil {
		return models.Insights{}, fmt.Errorf("parse insights: %w", err)
	}

	e.log.Info().
		Str("sessionId", summary.SessionID).
		Int("promptTokens", resp.Usage.PromptTokens).
		Int("completionTokens", resp.Usage.CompletionTokens).
		Dur("latency", time.Since(start)).
		Msg("Insights generated")

	return models.Insights{
		Title:       a.Title,
		Summary:     nonNil(a.Summary),
		ActionItems: nonNil(a.ActionItems),
		KeyPoints:   nonNil(a.KeyPoints),
	}, nil
}

func userPrompt(summary models.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Language: %s\n", summary.Config.Language)
	fmt.Fprintf(&b, "Sentences: %d, words: %d\n\n", summary.Metadata.TotalSentences, summary.Metadata.TotalWords)
	b.WriteString("Transcript:\n")
	b.WriteString(summary.FullTranscript)
	return b.String()
}

// stripCodeFence removes a markdown ```json fence some models add despite
// the JSON response format.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
