// Package agent holds the clients for the external services the pipeline
// talks to: the language-model completion API, PubMed literature search
// and the RxNav interaction lookup.
package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// DefaultCompletionBaseURL is Groq's OpenAI-compatible endpoint.
const DefaultCompletionBaseURL = "https://api.groq.com/openai/v1"

var ErrCompletion = errors.New("completion service error")

type CompletionRequest struct {
	System      string
	User        string
	Model       string
	Temperature float32
	MaxTokens   int
}

// Completer produces a single chat completion. Every failure (transport,
// auth, quota, timeout, empty response) is reported wrapping ErrCompletion.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

type openAICompleter struct {
	client *openai.Client
	hasKey bool
}

// NewOpenAICompleter targets any OpenAI-compatible chat completion API. An
// empty apiKey yields a completer whose calls always fail, which sends the
// pipeline down its fallback paths.
func NewOpenAICompleter(apiKey, baseURL string, timeout time.Duration) Completer {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return &openAICompleter{
		client: openai.NewClientWithConfig(cfg),
		hasKey: apiKey != "",
	}
}

func (c *openAICompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if !c.hasKey {
		return "", fmt.Errorf("%w: api key not configured", ErrCompletion)
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCompletion, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", ErrCompletion)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("%w: empty content (finish reason %q)", ErrCompletion, resp.Choices[0].FinishReason)
	}
	return content, nil
}
