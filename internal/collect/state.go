// Package collect drives one user through the ordered field-report prompts,
// validating each answer and committing the finished record.
package collect

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/bouwbuddy/bouwbuddy/internal/fieldreport"
)

// ErrSessionClosed is returned for input on a completed or cancelled session.
var ErrSessionClosed = errors.New("collection session is closed")

// State is a position in the collection sequence.
type State int

const (
	AwaitingName State = iota
	AwaitingFunction
	AwaitingCompany
	AwaitingLocation
	AwaitingHours
	AwaitingTaskDescription
	AwaitingPlanningNotes
	AwaitingPhoto
	Completed
	Cancelled
)

var stateNames = [...]string{
	AwaitingName:            "awaiting_name",
	AwaitingFunction:        "awaiting_function",
	AwaitingCompany:         "awaiting_company",
	AwaitingLocation:        "awaiting_location",
	AwaitingHours:           "awaiting_hours",
	AwaitingTaskDescription: "awaiting_task_description",
	AwaitingPlanningNotes:   "awaiting_planning_notes",
	AwaitingPhoto:           "awaiting_photo",
	Completed:               "completed",
	Cancelled:               "cancelled",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further input is accepted.
func (s State) Terminal() bool {
	return s == Completed || s == Cancelled
}

// InputKind distinguishes the three kinds of user turn.
type InputKind int

const (
	InputText InputKind = iota
	InputAttachment
	InputCancel
)

// Input is one user turn fed to the state machine.
type Input struct {
	Kind InputKind
	// Text is the message body for InputText.
	Text string
	// Ref is the transport's attachment handle for InputAttachment.
	Ref string
}

// Text builds a free-form text input.
func Text(s string) Input { return Input{Kind: InputText, Text: s} }

// Attachment builds a media attachment input.
func Attachment(ref string) Input { return Input{Kind: InputAttachment, Ref: ref} }

// Cancel builds an explicit cancel input.
func Cancel() Input { return Input{Kind: InputCancel} }

// Effect is what a transition asks the caller to do.
type Effect struct {
	// Reply is the text to send back to the user.
	Reply string
	// Retry is set when the input was rejected and the state did not change.
	Retry bool
	// Commit is set on the terminal transition; the partial is ready to be
	// resolved, stamped and appended.
	Commit bool
}

const (
	replyStart      = "Let's log a new update. First, what is your full name?"
	replyBlank      = "I didn't catch that. Please send a non-empty answer."
	replyBadHours   = "That doesn't look like a valid number. Please enter the hours again."
	replyNeedPhoto  = "Please send one photo of your work. Text can't replace the photo."
	replyCommitted  = "Thank you! Your update has been logged successfully. Use /daily_report or /weekly_report to see the summary."
	replyCancelled  = "Update cancelled. You can start a new one with /update."
	replySaveFailed = "Sorry, I couldn't save your update. Please send the photo again."
)

// prompts holds the question asked on entering each awaiting state.
var prompts = map[State]string{
	AwaitingName:            replyStart,
	AwaitingFunction:        "Got it. What is your function or role? (e.g., Electrician, Plumber)",
	AwaitingCompany:         "Great. What company do you work for?",
	AwaitingLocation:        "Where on the site did you work today? (e.g., Second Floor, West Wing)",
	AwaitingHours:           "How many hours did you work?",
	AwaitingTaskDescription: "Thanks. Please describe the work you completed today.",
	AwaitingPlanningNotes:   "Any notes on planning? (e.g., 'Blocked by other team', 'Ready for inspection')",
	AwaitingPhoto:           "Perfect. Now, please send one photo of your work.",
}

// Prompt returns the question for an awaiting state, or "" for terminal states.
func Prompt(s State) string {
	return prompts[s]
}

// Step is the pure transition function. It returns the next state, the
// updated partial record and the effect for the caller. On a rejected input
// the returned state and partial equal the inputs.
func Step(state State, p fieldreport.Partial, in Input) (State, fieldreport.Partial, Effect, error) {
	if state.Terminal() {
		return state, p, Effect{}, ErrSessionClosed
	}

	if in.Kind == InputCancel {
		return Cancelled, fieldreport.Partial{}, Effect{Reply: replyCancelled}, nil
	}

	if state == AwaitingPhoto {
		if in.Kind != InputAttachment || strings.TrimSpace(in.Ref) == "" {
			return state, p, Effect{Reply: replyNeedPhoto, Retry: true}, nil
		}
		p.PhotoRef = in.Ref
		return Completed, p, Effect{Reply: replyCommitted, Commit: true}, nil
	}

	if in.Kind != InputText || strings.TrimSpace(in.Text) == "" {
		return state, p, Effect{Reply: replyBlank + "\n" + Prompt(state), Retry: true}, nil
	}

	switch state {
	case AwaitingName:
		p.Name = in.Text
	case AwaitingFunction:
		p.Function = in.Text
	case AwaitingCompany:
		p.Company = in.Text
	case AwaitingLocation:
		p.Location = in.Text
	case AwaitingHours:
		hours, ok := ParseHours(in.Text)
		if !ok {
			return state, p, Effect{Reply: replyBadHours, Retry: true}, nil
		}
		p.Hours = &hours
	case AwaitingTaskDescription:
		p.TaskDescription = in.Text
	case AwaitingPlanningNotes:
		p.PlanningNotes = in.Text
	}

	next := state + 1
	return next, p, Effect{Reply: Prompt(next)}, nil
}

// ParseHours accepts a non-negative decimal number, with either a decimal
// point or a decimal comma. Hexadecimal floats are rejected.
func ParseHours(s string) (float64, bool) {
	normalized := strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if strings.ContainsAny(normalized, "xX") {
		return 0, false
	}
	h, err := strconv.ParseFloat(normalized, 64)
	if err != nil || math.IsNaN(h) || math.IsInf(h, 0) || h < 0 {
		return 0, false
	}
	if h == 0 {
		h = 0 // drop the sign of "-0"
	}
	return h, true
}
