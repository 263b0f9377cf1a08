// Package summarize turns a report prompt into prose through one of several
// generative-text backends.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Backend names accepted by New.
const (
	BackendOpenRouter = "openrouter"
	BackendGemini     = "gemini"
	BackendOllama     = "ollama"
)

// ErrEmptySummary is returned when a backend answers with blank text.
var ErrEmptySummary = errors.New("summarizer returned empty text")

// Summarizer produces a report body for a prompt. Implementations make a
// single attempt; retrying is the caller's decision.
type Summarizer interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}

// Func adapts a plain function to Summarizer.
type Func func(ctx context.Context, prompt string) (string, error)

// Summarize calls f.
func (f Func) Summarize(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Options selects and configures a backend.
type Options struct {
	Backend string
	Model   string
	APIKey  string
	// BaseURL overrides the backend endpoint. Required for ollama.
	BaseURL string
}

// New builds the Summarizer named by opts.Backend.
func New(ctx context.Context, opts Options) (Summarizer, error) {
	switch strings.ToLower(opts.Backend) {
	case BackendOpenRouter, "":
		return NewOpenRouter(opts.APIKey, opts.Model, opts.BaseURL), nil
	case BackendGemini:
		return NewGemini(ctx, opts.APIKey, opts.Model, opts.BaseURL)
	case BackendOllama:
		return NewOllama(opts.BaseURL, opts.Model), nil
	default:
		return nil, fmt.Errorf("unknown summarizer backend %q", opts.Backend)
	}
}

// WithTimeout bounds every call to s by d. A zero or negative d leaves s as is.
func WithTimeout(s Summarizer, d time.Duration) Summarizer {
	if d <= 0 {
		return s
	}
	return Func(func(ctx context.Context, prompt string) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return s.Summarize(ctx, prompt)
	})
}

func checkText(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptySummary
	}
	return text, nil
}
