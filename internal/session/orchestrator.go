// Package session routes chat events to per-user collection sessions and
// report requests, and sends the replies back through the transport.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/bouwbuddy/bouwbuddy/internal/aggregate"
	"github.com/bouwbuddy/bouwbuddy/internal/collect"
	"github.com/bouwbuddy/bouwbuddy/internal/fieldreport"
)

// Command names understood by the orchestrator.
const (
	CmdStart        = "start"
	CmdHelp         = "help"
	CmdUpdate       = "update"
	CmdCancel       = "cancel"
	CmdDailyReport  = "daily_report"
	CmdWeeklyReport = "weekly_report"
)

// Command is one entry of the bot's command menu.
type Command struct {
	Name        string
	Description string
}

// Commands lists the commands in menu order.
var Commands = []Command{
	{CmdUpdate, "Log a new progress update"},
	{CmdDailyReport, "Generate a report for today's updates"},
	{CmdWeeklyReport, "Generate a report for the last 7 days"},
	{CmdCancel, "Cancel the update in progress"},
	{CmdHelp, "Show the help message"},
}

const (
	textWelcome = "Hi! I'm BouwBuddy AI. I'm here to help you log your daily construction progress.\n\n" +
		"You can use the following commands:\n" +
		"/update - Start logging a new progress update.\n" +
		"/daily_report - Generate a report for today's updates.\n" +
		"/weekly_report - Generate a report for the last 7 days.\n" +
		"/help - Show this message again."
	textNoSession      = "There is no update in progress. Start one with /update."
	textNothingToStop  = "There is no update in progress to cancel."
	textUnknownCommand = "I don't know that command. Send /help to see what I can do."
	textEmptyDaily     = "No updates were logged today. Nothing to report."
	textEmptyWeekly    = "No updates were logged in the last 7 days."
	textFailed         = "Sorry, there was an error while generating the AI report. Please try again later."
	textPhotosHeader   = "*Submitted Photos for this period:*"
	textNoPhotos       = "No photos were submitted in this period."
)

// Event is one inbound user turn, already stripped of transport detail.
type Event struct {
	UserID  int64
	ChatID  int64
	Text    string
	Command string // without the leading slash; empty for plain messages
	// PhotoRef is the transport's handle for an attached photo, if any.
	PhotoRef string
}

// Transport sends replies to a chat.
type Transport interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendMarkdown(ctx context.Context, chatID int64, text string) error
	SendMediaBatch(ctx context.Context, chatID int64, items []aggregate.MediaItem) error
}

// Reporter generates reports.
type Reporter interface {
	GenerateNotify(ctx context.Context, w fieldreport.Window, started func(records int)) aggregate.Result
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Transport Transport
	Reporter  Reporter
	// Collect is handed to every new collection session.
	Collect collect.Deps
	Logger  *slog.Logger // optional; defaults to slog.Default()
}

type userSlot struct {
	mu      sync.Mutex
	session *collect.Session
	refs    int // guarded by Orchestrator.mu
}

// Orchestrator owns one collection session per user. Turns of the same user
// are serialized; different users proceed in parallel.
type Orchestrator struct {
	deps   Deps
	logger *slog.Logger

	mu    sync.Mutex
	users map[int64]*userSlot
}

// New creates an Orchestrator.
func New(deps Deps) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{deps: deps, logger: logger, users: make(map[int64]*userSlot)}
}

// lock returns the slot of userID with its mutex held. Every lock is paired
// with unlock.
func (o *Orchestrator) lock(userID int64) *userSlot {
	o.mu.Lock()
	s, ok := o.users[userID]
	if !ok {
		s = &userSlot{}
		o.users[userID] = s
	}
	s.refs++
	o.mu.Unlock()

	s.mu.Lock()
	return s
}

// unlock releases the slot and drops it once no turn holds or waits for it
// and no collection is in progress.
func (o *Orchestrator) unlock(userID int64, s *userSlot) {
	s.mu.Unlock()

	o.mu.Lock()
	defer o.mu.Unlock()
	s.refs--
	if s.refs == 0 && s.session == nil {
		delete(o.users, userID)
	}
}

// Active returns the number of users with a collection in progress.
func (o *Orchestrator) Active() int {
	o.mu.Lock()
	slots := make([]*userSlot, 0, len(o.users))
	for _, s := range o.users {
		slots = append(slots, s)
	}
	o.mu.Unlock()

	n := 0
	for _, s := range slots {
		s.mu.Lock()
		if s.session != nil {
			n++
		}
		s.mu.Unlock()
	}
	return n
}

// State returns the collection state of userID and whether one is active.
func (o *Orchestrator) State(userID int64) (collect.State, bool) {
	s := o.lock(userID)
	defer o.unlock(userID, s)
	if s.session == nil {
		return 0, false
	}
	return s.session.State(), true
}

// Handle processes one event. Failures are logged; nothing here ends
// another user's session.
func (o *Orchestrator) Handle(ctx context.Context, ev Event) {
	switch cmd := strings.ToLower(ev.Command); cmd {
	case "":
		o.handleInput(ctx, ev)
	case CmdStart, CmdHelp:
		o.send(ctx, ev, textWelcome)
	case CmdUpdate:
		o.startCollection(ctx, ev)
	case CmdCancel:
		o.cancelCollection(ctx, ev)
	case CmdDailyReport:
		o.report(ctx, ev, fieldreport.WindowDaily)
	case CmdWeeklyReport:
		o.report(ctx, ev, fieldreport.WindowWeekly)
	default:
		o.send(ctx, ev, textUnknownCommand)
	}
}

func (o *Orchestrator) startCollection(ctx context.Context, ev Event) {
	s := o.lock(ev.UserID)
	defer o.unlock(ev.UserID, s)

	if s.session != nil {
		o.logger.Debug("discarding previous collection", "user_id", ev.UserID, "state", s.session.State())
	}
	s.session = collect.NewSession(ev.UserID, o.deps.Collect)
	o.send(ctx, ev, collect.Prompt(collect.AwaitingName))
}

func (o *Orchestrator) cancelCollection(ctx context.Context, ev Event) {
	s := o.lock(ev.UserID)
	defer o.unlock(ev.UserID, s)

	if s.session == nil {
		o.send(ctx, ev, textNothingToStop)
		return
	}
	eff, err := s.session.Apply(ctx, collect.Cancel())
	s.session = nil
	if err != nil {
		o.logger.Warn("cancel failed", "user_id", ev.UserID, "error", err)
		return
	}
	o.send(ctx, ev, eff.Reply)
}

func (o *Orchestrator) handleInput(ctx context.Context, ev Event) {
	s := o.lock(ev.UserID)
	defer o.unlock(ev.UserID, s)

	if s.session == nil {
		o.send(ctx, ev, textNoSession)
		return
	}

	in := collect.Text(ev.Text)
	if ev.PhotoRef != "" {
		in = collect.Attachment(ev.PhotoRef)
	}

	eff, err := s.session.Apply(ctx, in)
	if err != nil {
		o.logger.Error("applying input", "user_id", ev.UserID, "state", s.session.State(), "error", err)
	}
	if s.session.State().Terminal() {
		o.logger.Info("collection finished", "user_id", ev.UserID, "state", s.session.State())
		s.session = nil
	}
	if eff.Reply != "" {
		o.send(ctx, ev, eff.Reply)
	}
}

// report does not take the user's lock so a slow summarizer never blocks
// that user's collection turns.
func (o *Orchestrator) report(ctx context.Context, ev Event, w fieldreport.Window) {
	if o.deps.Reporter == nil {
		o.send(ctx, ev, textFailed)
		return
	}
	res := o.deps.Reporter.GenerateNotify(ctx, w, func(int) {
		o.send(ctx, ev, fmt.Sprintf("Generating the %s Report... The AI is thinking, this may take a moment.", w.Title()))
	})
	o.Deliver(ctx, ev.ChatID, res)
}

// Deliver sends a generated report to chatID: the header, the body and the
// photo evidence in batches. Empty and failed results get their notice.
func (o *Orchestrator) Deliver(ctx context.Context, chatID int64, res aggregate.Result) {
	ev := Event{ChatID: chatID}
	switch res.Outcome {
	case aggregate.EmptyWindow:
		if res.Window == fieldreport.WindowWeekly {
			o.send(ctx, ev, textEmptyWeekly)
		} else {
			o.send(ctx, ev, textEmptyDaily)
		}
		return
	case aggregate.GenerationFailure:
		o.send(ctx, ev, textFailed)
		return
	}

	o.sendMarkdown(ctx, ev, fmt.Sprintf("--- *%s Report* ---", res.Window.Title()))
	o.sendMarkdown(ctx, ev, res.Body)
	o.sendMarkdown(ctx, ev, textPhotosHeader)
	if res.Media.Empty() {
		o.send(ctx, ev, textNoPhotos)
		return
	}
	for i, chunk := range res.Media.Chunks() {
		if err := o.deps.Transport.SendMediaBatch(ctx, chatID, chunk); err != nil {
			o.logger.Warn("sending media batch failed",
				"chat_id", chatID,
				"batch", i,
				"items", len(chunk),
				"error", err,
			)
		}
	}
}

func (o *Orchestrator) send(ctx context.Context, ev Event, text string) {
	if err := o.deps.Transport.SendText(ctx, ev.ChatID, text); err != nil {
		o.logger.Warn("sending reply failed", "user_id", ev.UserID, "chat_id", ev.ChatID, "error", err)
	}
}

func (o *Orchestrator) sendMarkdown(ctx context.Context, ev Event, text string) {
	if err := o.deps.Transport.SendMarkdown(ctx, ev.ChatID, text); err != nil {
		o.logger.Warn("sending reply failed", "user_id", ev.UserID, "chat_id", ev.ChatID, "error", err)
	}
}
