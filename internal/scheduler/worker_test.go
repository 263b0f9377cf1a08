package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bouwbuddy/bouwbuddy/internal/aggregate"
	"github.com/bouwbuddy/bouwbuddy/internal/fieldreport"
)

type mockGenerator struct {
	mu      sync.Mutex
	result  aggregate.Result
	windows []fieldreport.Window
}

func (m *mockGenerator) Generate(_ context.Context, w fieldreport.Window) aggregate.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.windows = append(m.windows, w)
	return m.result
}

func (m *mockGenerator) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}

type mockDeliverer struct {
	mu    sync.Mutex
	chats []int64
}

func (m *mockDeliverer) Deliver(_ context.Context, chatID int64, _ aggregate.Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chats = append(m.chats, chatID)
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		h, m    int
		wantErr bool
	}{
		{"18:00", 18, 0, false},
		{"07:30", 7, 30, false},
		{" 0:05 ", 0, 5, false},
		{"23:59", 23, 59, false},
		{"24:00", 0, 0, true},
		{"12:60", 0, 0, true},
		{"noon", 0, 0, true},
		{"12", 0, 0, true},
		{"", 0, 0, true},
	}
	for _, tt := range tests {
		h, m, err := ParseClock(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseClock(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && (h != tt.h || m != tt.m) {
			t.Errorf("ParseClock(%q) = %d:%d, want %d:%d", tt.in, h, m, tt.h, tt.m)
		}
	}
}

func TestNext(t *testing.T) {
	w, err := NewWorker(&mockGenerator{}, &mockDeliverer{}, []int64{1}, "18:00")
	if err != nil {
		t.Fatal(err)
	}
	loc := time.FixedZone("CET", 3600)
	tests := []struct {
		now, want time.Time
	}{
		{time.Date(2025, 3, 14, 9, 0, 0, 0, loc), time.Date(2025, 3, 14, 18, 0, 0, 0, loc)},
		{time.Date(2025, 3, 14, 18, 0, 0, 0, loc), time.Date(2025, 3, 15, 18, 0, 0, 0, loc)},
		{time.Date(2025, 3, 14, 22, 30, 0, 0, loc), time.Date(2025, 3, 15, 18, 0, 0, 0, loc)},
		{time.Date(2025, 12, 31, 19, 0, 0, 0, loc), time.Date(2026, 1, 1, 18, 0, 0, 0, loc)},
	}
	for _, tt := range tests {
		if got := w.Next(tt.now); !got.Equal(tt.want) {
			t.Errorf("Next(%v) = %v, want %v", tt.now, got, tt.want)
		}
	}
}

func TestNewWorker_BadTime(t *testing.T) {
	if _, err := NewWorker(&mockGenerator{}, &mockDeliverer{}, nil, "25:00"); err == nil {
		t.Error("expected error for 25:00")
	}
}

func TestRunOnce(t *testing.T) {
	tests := []struct {
		outcome   aggregate.Outcome
		wantChats int
	}{
		{aggregate.Generated, 2},
		{aggregate.EmptyWindow, 0},
		{aggregate.GenerationFailure, 0},
	}
	for _, tt := range tests {
		t.Run(tt.outcome.String(), func(t *testing.T) {
			gen := &mockGenerator{result: aggregate.Result{Outcome: tt.outcome}}
			out := &mockDeliverer{}
			w, _ := NewWorker(gen, out, []int64{10, 20}, "18:00")

			if got := w.RunOnce(context.Background()); got != tt.outcome {
				t.Errorf("outcome = %v", got)
			}
			if len(gen.windows) != 1 || gen.windows[0] != fieldreport.WindowDaily {
				t.Errorf("windows = %v, want [daily]", gen.windows)
			}
			if len(out.chats) != tt.wantChats {
				t.Errorf("deliveries = %v, want %d", out.chats, tt.wantChats)
			}
		})
	}
}

func TestRun_DisabledWithoutChats(t *testing.T) {
	gen := &mockGenerator{}
	w, _ := NewWorker(gen, &mockDeliverer{}, nil, "18:00")

	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background()) }()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return without chats")
	}
	if gen.calls() != 0 {
		t.Error("generated a report with no chats configured")
	}
}

func TestRun_FiresAndStops(t *testing.T) {
	gen := &mockGenerator{result: aggregate.Result{Outcome: aggregate.Generated}}
	out := &mockDeliverer{}
	w, _ := NewWorker(gen, out, []int64{5}, "18:00")

	now := time.Date(2025, 3, 14, 17, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return now }
	var waits []time.Duration
	var mu sync.Mutex
	w.after = func(d time.Duration) <-chan time.Time {
		mu.Lock()
		waits = append(waits, d)
		mu.Unlock()
		ch := make(chan time.Time, 1)
		ch <- now
		return ch
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	deadline := time.After(5 * time.Second)
	for gen.calls() < 3 {
		select {
		case <-deadline:
			t.Fatal("scheduler did not fire")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if waits[0] != time.Minute {
		t.Errorf("first wait = %v, want 1m", waits[0])
	}
}
