// Package scheduler pushes the daily report to fixed chats once a day.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/bouwbuddy/bouwbuddy/internal/aggregate"
	"github.com/bouwbuddy/bouwbuddy/internal/fieldreport"
)

// Generator produces reports.
type Generator interface {
	Generate(ctx context.Context, w fieldreport.Window) aggregate.Result
}

// Deliverer sends a finished report to a chat.
type Deliverer interface {
	Deliver(ctx context.Context, chatID int64, res aggregate.Result)
}

// Worker runs the daily report at a fixed local time of day.
type Worker struct {
	gen     Generator
	out     Deliverer
	chatIDs []int64
	hour    int
	minute  int
	now     func() time.Time
	after   func(time.Duration) <-chan time.Time
	logger  *slog.Logger
}

// NewWorker creates a Worker firing every day at the HH:MM given in at.
func NewWorker(gen Generator, out Deliverer, chatIDs []int64, at string) (*Worker, error) {
	h, m, err := ParseClock(at)
	if err != nil {
		return nil, err
	}
	return &Worker{
		gen:     gen,
		out:     out,
		chatIDs: chatIDs,
		hour:    h,
		minute:  m,
		now:     time.Now,
		after:   time.After,
		logger:  slog.Default(),
	}, nil
}

// ParseClock parses a 24-hour "HH:MM" time of day.
func ParseClock(s string) (hour, minute int, err error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if ok {
		hour, err = strconv.Atoi(hh)
		if err == nil {
			minute, err = strconv.Atoi(mm)
		}
	}
	if !ok || err != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid time of day %q (want HH:MM)", s)
	}
	return hour, minute, nil
}

// Next returns the first run time strictly after now, in now's location.
func (w *Worker) Next(now time.Time) time.Time {
	y, mo, d := now.Date()
	next := time.Date(y, mo, d, w.hour, w.minute, 0, 0, now.Location())
	if !next.After(now) {
		next = time.Date(y, mo, d+1, w.hour, w.minute, 0, 0, now.Location())
	}
	return next
}

// Run sleeps until each scheduled time and runs the report, until ctx is
// cancelled. With no chats configured it returns at once.
func (w *Worker) Run(ctx context.Context) error {
	if len(w.chatIDs) == 0 {
		w.logger.Info("report scheduler disabled, no chats configured")
		return nil
	}
	for {
		next := w.Next(w.now())
		w.logger.Info("next scheduled report", "at", next.Format(time.RFC3339))

		select {
		case <-ctx.Done():
			return nil
		case <-w.after(next.Sub(w.now())):
		}
		w.RunOnce(ctx)
	}
}

// RunOnce generates today's report and delivers it to every chat. Empty
// days and failed generations are logged and not pushed.
func (w *Worker) RunOnce(ctx context.Context) aggregate.Outcome {
	res := w.gen.Generate(ctx, fieldreport.WindowDaily)
	switch res.Outcome {
	case aggregate.EmptyWindow:
		w.logger.Info("scheduled report skipped, no updates today")
		return res.Outcome
	case aggregate.GenerationFailure:
		w.logger.Error("scheduled report failed", "error", res.Err)
		return res.Outcome
	}

	for _, id := range w.chatIDs {
		if ctx.Err() != nil {
			break
		}
		w.out.Deliver(ctx, id, res)
	}
	w.logger.Info("scheduled report delivered", "chats", len(w.chatIDs), "records", res.RecordCount)
	return res.Outcome
}
