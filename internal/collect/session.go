package collect

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bouwbuddy/bouwbuddy/internal/fieldreport"
)

// Appender is the write side of the record store.
type Appender interface {
	Append(ctx context.Context, r fieldreport.Record) error
}

// AttachmentResolver turns a transport attachment handle into a stable
// reference that can be replayed later.
type AttachmentResolver interface {
	ResolveAttachment(ctx context.Context, ref string) (string, error)
}

// Deps are the collaborators a Session commits through.
type Deps struct {
	Store    Appender
	Resolver AttachmentResolver // optional; when nil the raw handle is stored
	Now      func() time.Time   // optional; defaults to time.Now
	NewID    func() string      // optional; defaults to a random UUID
}

// Session is one in-progress collection owned by one user. It is not safe
// for concurrent use; callers serialize turns per user.
type Session struct {
	userID  int64
	state   State
	partial fieldreport.Partial
	deps    Deps
}

// NewSession starts a collection at AwaitingName. The opening question is
// Prompt(AwaitingName).
func NewSession(userID int64, deps Deps) *Session {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = func() string { return uuid.New().String() }
	}
	return &Session{userID: userID, state: AwaitingName, deps: deps}
}

// State returns the current state.
func (s *Session) State() State { return s.state }

// Partial returns a copy of the fields collected so far.
func (s *Session) Partial() fieldreport.Partial { return s.partial }

// Apply feeds one user turn through the state machine. On the terminal
// transition it resolves the photo, stamps the submission time and appends
// the record exactly once. If resolving or appending fails the session stays
// in AwaitingPhoto so the user can resend; the returned error carries the
// cause and the Effect carries the reply for the user.
func (s *Session) Apply(ctx context.Context, in Input) (Effect, error) {
	next, partial, eff, err := Step(s.state, s.partial, in)
	if err != nil {
		return Effect{}, err
	}

	if !eff.Commit {
		s.state, s.partial = next, partial
		return eff, nil
	}

	if err := s.commit(ctx, partial); err != nil {
		return Effect{Reply: replySaveFailed, Retry: true}, err
	}

	s.state = Completed
	s.partial = fieldreport.Partial{}
	return eff, nil
}

func (s *Session) commit(ctx context.Context, p fieldreport.Partial) error {
	if s.deps.Resolver != nil {
		ref, err := s.deps.Resolver.ResolveAttachment(ctx, p.PhotoRef)
		if err != nil {
			return fmt.Errorf("resolving photo: %w", err)
		}
		p.PhotoRef = ref
	}

	rec, err := p.Record(s.deps.NewID(), s.userID, s.deps.Now())
	if err != nil {
		return err
	}
	if err := s.deps.Store.Append(ctx, rec); err != nil {
		return fmt.Errorf("appending record: %w", err)
	}
	return nil
}
