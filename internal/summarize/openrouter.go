package summarize

import (
	"context"
	"errors"
	"fmt"

	"github.com/bouwbuddy/bouwbuddy/internal/proxy"
)

const defaultOpenRouterModel = "google/gemini-2.5-flash"

// OpenRouter summarizes through the OpenRouter chat completions API.
type OpenRouter struct {
	client *proxy.Client
	model  string
}

// NewOpenRouter creates an OpenRouter summarizer. An empty baseURL uses the
// public endpoint.
func NewOpenRouter(apiKey, model, baseURL string) *OpenRouter {
	if model == "" {
		model = defaultOpenRouterModel
	}
	c := proxy.NewClient(apiKey)
	if baseURL != "" {
		c = proxy.NewClientWithBaseURL(apiKey, baseURL)
	}
	return &OpenRouter{client: c, model: model}
}

// Summarize sends prompt as a single user message.
func (o *OpenRouter) Summarize(ctx context.Context, prompt string) (string, error) {
	text, err := o.client.Complete(ctx, proxy.ChatRequest{
		Model:    o.model,
		Messages: []proxy.Message{{Role: "user", Content: prompt}},
	})
	if errors.Is(err, proxy.ErrEmptyCompletion) {
		return "", ErrEmptySummary
	}
	if err != nil {
		return "", fmt.Errorf("openrouter: %w", err)
	}
	return checkText(text)
}

// Model returns the model completions are requested from.
func (o *OpenRouter) Model() string { return o.model }

// CheckModel verifies that the configured model is offered by OpenRouter.
func (o *OpenRouter) CheckModel(ctx context.Context) error {
	models, err := o.client.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("openrouter: %w", err)
	}
	for _, m := range models {
		if m.ID == o.model {
			return nil
		}
	}
	return fmt.Errorf("openrouter: model %q is not available", o.model)
}
