package telegram

import (
	"context"
	"log/slog"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bouwbuddy/bouwbuddy/internal/session"
)

const pollTimeout = 60 // seconds

// UpdateSource is the long-polling side of *tgbotapi.BotAPI.
type UpdateSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Handler consumes chat events.
type Handler interface {
	Handle(ctx context.Context, ev session.Event)
}

// Poller reads updates and hands them to a Handler. Events of one user are
// handled in arrival order; different users are handled concurrently.
type Poller struct {
	source  UpdateSource
	handler Handler
	logger  *slog.Logger

	mu     sync.Mutex
	queues map[int64][]session.Event
	wg     sync.WaitGroup
}

// NewPoller creates a Poller.
func NewPoller(source UpdateSource, handler Handler) *Poller {
	return &Poller{
		source:  source,
		handler: handler,
		logger:  slog.Default(),
		queues:  make(map[int64][]session.Event),
	}
}

// Run polls until ctx is cancelled, then waits for in-flight handlers.
func (p *Poller) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = pollTimeout
	updates := p.source.GetUpdatesChan(cfg)
	p.logger.Info("telegram poller started")

	defer p.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			p.source.StopReceivingUpdates()
			p.logger.Info("telegram poller stopped")
			return nil
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			ev, ok := EventFromUpdate(u)
			if !ok {
				continue
			}
			p.dispatch(ctx, ev)
		}
	}
}

func (p *Poller) dispatch(ctx context.Context, ev session.Event) {
	p.mu.Lock()
	_, running := p.queues[ev.UserID]
	p.queues[ev.UserID] = append(p.queues[ev.UserID], ev)
	p.mu.Unlock()
	if running {
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.drain(ctx, ev.UserID)
	}()
}

// drain handles the queued events of one user until none are left.
func (p *Poller) drain(ctx context.Context, userID int64) {
	for {
		p.mu.Lock()
		q := p.queues[userID]
		if len(q) == 0 {
			delete(p.queues, userID)
			p.mu.Unlock()
			return
		}
		ev := q[0]
		p.queues[userID] = q[1:]
		p.mu.Unlock()

		p.handler.Handle(ctx, ev)
	}
}

// EventFromUpdate extracts the chat event from an update. Updates without a
// user message are skipped.
func EventFromUpdate(u tgbotapi.Update) (session.Event, bool) {
	m := u.Message
	if m == nil || m.From == nil || m.Chat == nil {
		return session.Event{}, false
	}

	ev := session.Event{
		UserID: m.From.ID,
		ChatID: m.Chat.ID,
		Text:   m.Text,
	}
	if m.IsCommand() {
		ev.Command = m.Command()
		ev.Text = m.CommandArguments()
	}
	if len(m.Photo) > 0 {
		ev.PhotoRef = largestPhoto(m.Photo).FileID
		if ev.Text == "" {
			ev.Text = m.Caption
		}
	}
	return ev, true
}

func largestPhoto(sizes []tgbotapi.PhotoSize) tgbotapi.PhotoSize {
	best := sizes[0]
	for _, s := range sizes[1:] {
		if s.Width*s.Height >= best.Width*best.Height {
			best = s
		}
	}
	return best
}
