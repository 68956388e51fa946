package filter

import (
	"time"

	"github.com/google/uuid"

	"dof_filter/internal/flight"
)

// Report describes one filter run for the history and notification sinks.
type Report struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Config    Config    `json:"config"`
	Samples   int       `json:"samples"`
	Matches   []Match   `json:"matches"`
}

// NewReport stamps a run with a fresh ID and the current time.
func NewReport(cfg Config, path flight.Path, matches []Match) Report {
	return Report{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Config:    cfg,
		Samples:   len(path),
		Matches:   matches,
	}
}
