package telegram

import (
	"context"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bouwbuddy/bouwbuddy/internal/session"
)

type mockSource struct {
	ch      chan tgbotapi.Update
	stopped chan struct{}
	once    sync.Once
	cfg     tgbotapi.UpdateConfig
}

func newMockSource() *mockSource {
	return &mockSource{ch: make(chan tgbotapi.Update, 64), stopped: make(chan struct{})}
}

func (m *mockSource) GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	m.cfg = cfg
	return m.ch
}

func (m *mockSource) StopReceivingUpdates() {
	m.once.Do(func() { close(m.stopped) })
}

type recordingHandler struct {
	mu     sync.Mutex
	events []session.Event
	delay  time.Duration
	done   chan struct{}
	want   int
}

func (h *recordingHandler) Handle(_ context.Context, ev session.Event) {
	time.Sleep(h.delay)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
	if len(h.events) == h.want {
		close(h.done)
	}
}

func textUpdate(user int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: user},
		Chat: &tgbotapi.Chat{ID: user},
		Text: text,
	}}
}

func TestPoller_PreservesPerUserOrder(t *testing.T) {
	src := newMockSource()
	const perUser = 20
	h := &recordingHandler{delay: time.Millisecond, done: make(chan struct{}), want: 2 * perUser}
	p := NewPoller(src, h)

	for i := range perUser {
		src.ch <- textUpdate(1, string(rune('a'+i)))
		src.ch <- textUpdate(2, string(rune('a'+i)))
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- p.Run(ctx) }()

	select {
	case <-h.done:
	case <-time.After(5 * time.Second):
		t.Fatal("events were not all handled")
	}
	cancel()
	if err := <-errc; err != nil {
		t.Fatalf("Run: %v", err)
	}
	select {
	case <-src.stopped:
	default:
		t.Error("StopReceivingUpdates not called")
	}
	if src.cfg.Timeout != pollTimeout {
		t.Errorf("poll timeout = %d", src.cfg.Timeout)
	}

	next := map[int64]int{}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ev := range h.events {
		if want := string(rune('a' + next[ev.UserID])); ev.Text != want {
			t.Fatalf("user %d got %q, want %q", ev.UserID, ev.Text, want)
		}
		next[ev.UserID]++
	}
}

func TestEventFromUpdate(t *testing.T) {
	cmd := tgbotapi.Update{Message: &tgbotapi.Message{
		From:     &tgbotapi.User{ID: 7},
		Chat:     &tgbotapi.Chat{ID: 70},
		Text:     "/daily_report@BouwBuddyBot",
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 26}},
	}}
	ev, ok := EventFromUpdate(cmd)
	if !ok || ev.Command != "daily_report" || ev.UserID != 7 || ev.ChatID != 70 {
		t.Errorf("command event = %+v ok=%v", ev, ok)
	}

	pic := tgbotapi.Update{Message: &tgbotapi.Message{
		From:    &tgbotapi.User{ID: 7},
		Chat:    &tgbotapi.Chat{ID: 70},
		Caption: "west wall",
		Photo: []tgbotapi.PhotoSize{
			{FileID: "small", Width: 90, Height: 60},
			{FileID: "large", Width: 1280, Height: 960},
			{FileID: "medium", Width: 320, Height: 240},
		},
	}}
	ev, ok = EventFromUpdate(pic)
	if !ok || ev.PhotoRef != "large" || ev.Text != "west wall" || ev.Command != "" {
		t.Errorf("photo event = %+v ok=%v", ev, ok)
	}

	if _, ok := EventFromUpdate(tgbotapi.Update{}); ok {
		t.Error("update without a message was accepted")
	}
	if _, ok := EventFromUpdate(tgbotapi.Update{Message: &tgbotapi.Message{Text: "x"}}); ok {
		t.Error("message without a sender was accepted")
	}
}
