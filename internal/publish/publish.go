// Package publish announces filter reports on a NATS subject.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"dof_filter/internal/filter"
)

// DefaultSubject is used when no subject is configured.
const DefaultSubject = "dof.filter.reports"

// Message is the JSON payload published for each report. Obstacles are
// referenced by ID to keep messages small.
type Message struct {
	ID              string    `json:"id"`
	CreatedAt       time.Time `json:"created_at"`
	Samples         int       `json:"samples"`
	RadiusDeg       float64   `json:"radius_deg"`
	AltitudeDeltaFt float64   `json:"altitude_delta_ft"`
	Count           int       `json:"count"`
	Obstacles       []string  `json:"obstacles"`
}

// NewMessage summarises rep.
func NewMessage(rep filter.Report) Message {
	ids := make([]string, len(rep.Matches))
	for i, m := range rep.Matches {
		ids[i] = m.Record.ID()
	}
	return Message{
		ID:              rep.ID,
		CreatedAt:       rep.CreatedAt,
		Samples:         rep.Samples,
		RadiusDeg:       rep.Config.RadiusDeg,
		AltitudeDeltaFt: rep.Config.AltitudeDeltaFt,
		Count:           len(rep.Matches),
		Obstacles:       ids,
	}
}

// Publisher sends report summaries to NATS.
type Publisher struct {
	nc      *nats.Conn
	subject string
}

// Connect dials the NATS server at url.
func Connect(url, subject string) (*Publisher, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	nc, err := nats.Connect(url,
		nats.Name("dof_filter"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Publisher{nc: nc, subject: subject}, nil
}

// Subject returns the subject reports are published on.
func (p *Publisher) Subject() string {
	return p.subject
}

// RecordReport publishes rep and waits for the server to acknowledge the
// flush, bounded by ctx.
func (p *Publisher) RecordReport(ctx context.Context, rep filter.Report) error {
	data, err := json.Marshal(NewMessage(rep))
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := p.nc.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish report: %w", err)
	}
	if err := p.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (p *Publisher) Close() error {
	return p.nc.Drain()
}
