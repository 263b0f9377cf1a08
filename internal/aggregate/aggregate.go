// Package aggregate turns the records of a report window into a generated
// summary plus the photo evidence that goes with it.
package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bouwbuddy/bouwbuddy/internal/composer"
	"github.com/bouwbuddy/bouwbuddy/internal/fieldreport"
	"github.com/bouwbuddy/bouwbuddy/internal/storage"
	"github.com/bouwbuddy/bouwbuddy/internal/summarize"
)

// DefaultTimeout bounds one summarization call when Deps.Timeout is zero.
const DefaultTimeout = 90 * time.Second

// Querier is the read side of the record store.
type Querier interface {
	Query(ctx context.Context, tr fieldreport.TimeRange) ([]fieldreport.Record, error)
}

// HistoryStore keeps generated summaries.
type HistoryStore interface {
	SaveSummary(ctx context.Context, s storage.Summary) error
}

// Outcome classifies a Generate call.
type Outcome int

const (
	// Generated means Body holds the summary.
	Generated Outcome = iota
	// EmptyWindow means no records fell inside the window. Nothing was sent
	// to the summarizer.
	EmptyWindow
	// GenerationFailure means the summarizer failed or answered with
	// nothing usable. Body and Media are empty.
	GenerationFailure
)

func (o Outcome) String() string {
	switch o {
	case Generated:
		return "generated"
	case EmptyWindow:
		return "empty_window"
	case GenerationFailure:
		return "generation_failure"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is what one report request produced.
type Result struct {
	Window      fieldreport.Window
	Range       fieldreport.TimeRange
	Outcome     Outcome
	RecordCount int
	Body        string
	Media       Media
	// Err is the cause of a GenerationFailure, kept for logs. It is never
	// meant to be shown to end users.
	Err error
}

// Deps are the collaborators of an Aggregator.
type Deps struct {
	Records    Querier
	Summarizer summarize.Summarizer
	Composer   *composer.Composer // optional; defaults to composer.New(composer.DefaultMaxFieldRunes)
	History    HistoryStore       // optional
	Now        func() time.Time   // optional; defaults to time.Now
	Timeout    time.Duration      // optional; defaults to DefaultTimeout
	Logger     *slog.Logger       // optional; defaults to slog.Default()
}

// Aggregator builds reports. It never writes to the record store.
type Aggregator struct {
	records    Querier
	summarizer summarize.Summarizer
	composer   *composer.Composer
	history    HistoryStore
	now        func() time.Time
	timeout    time.Duration
	logger     *slog.Logger
}

// New creates an Aggregator.
func New(deps Deps) *Aggregator {
	a := &Aggregator{
		records:    deps.Records,
		summarizer: deps.Summarizer,
		composer:   deps.Composer,
		history:    deps.History,
		now:        deps.Now,
		timeout:    deps.Timeout,
		logger:     deps.Logger,
	}
	if a.composer == nil {
		a.composer = composer.New(composer.DefaultMaxFieldRunes)
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.timeout <= 0 {
		a.timeout = DefaultTimeout
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a
}

// Records returns the records of window w as of now, in submission order.
func (a *Aggregator) Records(ctx context.Context, w fieldreport.Window) (fieldreport.TimeRange, []fieldreport.Record, error) {
	tr := w.Range(a.now())
	recs, err := a.records.Query(ctx, tr)
	if err != nil {
		return tr, nil, fmt.Errorf("querying %s window: %w", w, err)
	}
	return tr, recs, nil
}

// Generate produces the report for window w. Failures of the summarizer or
// the record store come back as GenerationFailure, never as a Go error.
func (a *Aggregator) Generate(ctx context.Context, w fieldreport.Window) Result {
	return a.GenerateNotify(ctx, w, nil)
}

// GenerateNotify is Generate with a hook that runs once the window is known
// to hold records, right before the summarizer is called.
func (a *Aggregator) GenerateNotify(ctx context.Context, w fieldreport.Window, started func(records int)) Result {
	tr, recs, err := a.Records(ctx, w)
	res := Result{Window: w, Range: tr, RecordCount: len(recs)}
	if err != nil {
		a.logger.Error("report generation failed", "window", w, "error", err)
		res.Outcome, res.Err = GenerationFailure, err
		return res
	}
	if len(recs) == 0 {
		res.Outcome = EmptyWindow
		return res
	}

	if started != nil {
		started(len(recs))
	}

	prompt := a.composer.Build(w, recs)
	a.logger.Debug("summarizing report",
		"window", w,
		"records", len(recs),
		"prompt_tokens_est", composer.EstimateTokens(prompt),
	)

	body, err := a.summarize(ctx, prompt)
	if err != nil {
		a.logger.Error("report generation failed", "window", w, "records", len(recs), "error", err)
		res.Outcome, res.Err = GenerationFailure, err
		return res
	}

	res.Outcome = Generated
	res.Body = body
	res.Media = BuildMedia(recs)
	a.saveHistory(ctx, res)
	return res
}

func (a *Aggregator) summarize(ctx context.Context, prompt string) (string, error) {
	if a.summarizer == nil {
		return "", fmt.Errorf("no summarizer configured")
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	body, err := a.summarizer.Summarize(ctx, prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(body) == "" {
		return "", summarize.ErrEmptySummary
	}
	return body, nil
}

func (a *Aggregator) saveHistory(ctx context.Context, res Result) {
	if a.history == nil {
		return
	}
	err := a.history.SaveSummary(ctx, storage.Summary{
		ID:          uuid.New().String(),
		Window:      string(res.Window),
		CreatedAt:   a.now(),
		RecordCount: res.RecordCount,
		Body:        res.Body,
	})
	if err != nil {
		a.logger.Warn("saving report history failed", "window", res.Window, "error", err)
	}
}
