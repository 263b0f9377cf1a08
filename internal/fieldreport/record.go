// Package fieldreport holds the field-work report model shared by the
// collection state machine, the record stores and the report aggregator.
package fieldreport

import (
	"fmt"
	"time"
)

// Record is one committed field-work entry. Records are immutable once
// appended to a store.
type Record struct {
	ID              string    `json:"id"`
	UserID          int64     `json:"user_id"`
	Name            string    `json:"name"`
	Function        string    `json:"function"`
	Company         string    `json:"company"`
	Location        string    `json:"location"`
	Hours           float64   `json:"hours_worked"`
	TaskDescription string    `json:"task_description"`
	PlanningNotes   string    `json:"planning_notes"`
	PhotoRef        string    `json:"photo_ref"`
	SubmittedAt     time.Time `json:"submitted_at"`
}

// Partial is the in-progress set of fields collected during one session.
// Hours is nil until a valid number has been accepted.
type Partial struct {
	Name            string
	Function        string
	Company         string
	Location        string
	Hours           *float64
	TaskDescription string
	PlanningNotes   string
	PhotoRef        string
}

// Complete reports whether every field required for a commit is set.
func (p Partial) Complete() bool {
	return p.Name != "" && p.Function != "" && p.Company != "" && p.Location != "" &&
		p.Hours != nil && p.TaskDescription != "" && p.PlanningNotes != "" && p.PhotoRef != ""
}

// Record converts a complete partial into a Record stamped with id, user and
// submission time.
func (p Partial) Record(id string, userID int64, submittedAt time.Time) (Record, error) {
	if !p.Complete() {
		return Record{}, fmt.Errorf("partial record is incomplete")
	}
	return Record{
		ID:              id,
		UserID:          userID,
		Name:            p.Name,
		Function:        p.Function,
		Company:         p.Company,
		Location:        p.Location,
		Hours:           *p.Hours,
		TaskDescription: p.TaskDescription,
		PlanningNotes:   p.PlanningNotes,
		PhotoRef:        p.PhotoRef,
		SubmittedAt:     submittedAt,
	}, nil
}
