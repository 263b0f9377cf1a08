package summarize

import (
	"context"
	"errors"
	"fmt"

	"github.com/bouwbuddy/bouwbuddy/internal/ollama"
)

const (
	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "llama3.2"
)

// Ollama summarizes with a model served by a local Ollama instance.
type Ollama struct {
	client *ollama.Client
	model  string
}

// NewOllama creates an Ollama summarizer.
func NewOllama(baseURL, model string) *Ollama {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	if model == "" {
		model = defaultOllamaModel
	}
	return &Ollama{client: ollama.New(baseURL), model: model}
}

// Client exposes the underlying client for readiness checks.
func (o *Ollama) Client() *ollama.Client { return o.client }

// Model returns the configured model name.
func (o *Ollama) Model() string { return o.model }

// Summarize sends prompt as a single user message.
func (o *Ollama) Summarize(ctx context.Context, prompt string) (string, error) {
	text, err := o.client.Chat(ctx, o.model, []ollama.Message{{Role: "user", Content: prompt}})
	if errors.Is(err, ollama.ErrEmptyResponse) {
		return "", ErrEmptySummary
	}
	if err != nil {
		return "", fmt.Errorf("ollama: %w", err)
	}
	return checkText(text)
}
