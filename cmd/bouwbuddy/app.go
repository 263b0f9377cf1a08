package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/bouwbuddy/bouwbuddy/internal/aggregate"
	"github.com/bouwbuddy/bouwbuddy/internal/api"
	"github.com/bouwbuddy/bouwbuddy/internal/collect"
	"github.com/bouwbuddy/bouwbuddy/internal/composer"
	"github.com/bouwbuddy/bouwbuddy/internal/config"
	"github.com/bouwbuddy/bouwbuddy/internal/ollama"
	"github.com/bouwbuddy/bouwbuddy/internal/storage"
	"github.com/bouwbuddy/bouwbuddy/internal/summarize"
)

type recordStore interface {
	collect.Appender
	aggregate.Querier
	CountReports(ctx context.Context) (int, error)
}

type historyStore interface {
	aggregate.HistoryStore
	api.SummaryReader
}

// backend is the opened record store. history and sqlite are nil for the
// memory driver.
type backend struct {
	records recordStore
	history historyStore
	sqlite  *storage.Store
}

func openBackend(cfg config.Config) (*backend, error) {
	switch strings.ToLower(cfg.Storage.Driver) {
	case "memory":
		slog.Warn("using in-memory record store, reports are lost on restart")
		return &backend{records: storage.NewMemoryStore()}, nil
	case "sqlite", "":
		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return nil, fmt.Errorf("opening storage: %w", err)
		}
		return &backend{records: store, history: store, sqlite: store}, nil
	default:
		return nil, &config.ConfigurationError{
			Key:    "storage.driver",
			Reason: fmt.Sprintf("unknown driver %q (want sqlite or memory)", cfg.Storage.Driver),
		}
	}
}

func (b *backend) Close() error {
	if b.sqlite == nil {
		return nil
	}
	return b.sqlite.Close()
}

// newSummarizer builds the configured backend. For ollama the model is
// pulled first when the local server does not have it yet.
func newSummarizer(ctx context.Context, cfg config.Config) (summarize.Summarizer, error) {
	opts := summarize.Options{
		Backend: cfg.Summarizer.Backend,
		Model:   cfg.Summarizer.Model,
	}
	switch strings.ToLower(cfg.Summarizer.Backend) {
	case summarize.BackendGemini:
		opts.APIKey = cfg.Summarizer.GeminiAPIKey
	case summarize.BackendOllama:
		opts.BaseURL = cfg.Summarizer.OllamaBaseURL
	default:
		opts.APIKey = cfg.Summarizer.OpenRouterAPIKey
	}

	sum, err := summarize.New(ctx, opts)
	if err != nil {
		return nil, err
	}
	if o, ok := sum.(*summarize.Ollama); ok {
		if err := ollama.EnsureModel(ctx, o.Client(), o.Model(), os.Stderr); err != nil {
			return nil, err
		}
	}
	return sum, nil
}

func newAggregator(cfg config.Config, b *backend, sum summarize.Summarizer) *aggregate.Aggregator {
	return aggregate.New(aggregate.Deps{
		Records:    b.records,
		Summarizer: sum,
		Composer:   composer.New(cfg.Composer.MaxFieldRunes),
		History:    b.history,
		Timeout:    cfg.Summarizer.Timeout,
	})
}
