package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Summary is a generated report kept for history.
type Summary struct {
	ID          string    `json:"id"`
	Window      string    `json:"window"`
	CreatedAt   time.Time `json:"created_at"`
	RecordCount int       `json:"record_count"`
	Body        string    `json:"body"`
}
