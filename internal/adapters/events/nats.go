package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hylla/sgc/internal/domain"
	"github.com/nats-io/nats.go"
)

// DefaultSubjectPrefix prefixes every event subject when none is configured.
const DefaultSubjectPrefix = "sgc.events"

// publisher is the part of *nats.Conn the NATS adapter uses.
type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher publishes workflow events as JSON on "<prefix>.<event kind>".
type NATSPublisher struct {
	conn   publisher
	nc     *nats.Conn
	prefix string
}

// ConnectNATS dials url and returns a publisher using subjectPrefix.
func ConnectNATS(url, subjectPrefix string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url, nats.Name("sgc"), nats.MaxReconnects(5), nats.ReconnectWait(time.Second))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	p := newNATSPublisher(nc, subjectPrefix)
	p.nc = nc
	return p, nil
}

func newNATSPublisher(conn publisher, subjectPrefix string) *NATSPublisher {
	prefix := strings.Trim(strings.TrimSpace(subjectPrefix), ".")
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSPublisher{conn: conn, prefix: prefix}
}

// Subject returns the subject an event kind is published on.
func (p *NATSPublisher) Subject(kind domain.EventKind) string {
	return p.prefix + "." + string(kind)
}

// eventPayload is the wire form of a workflow event.
type eventPayload struct {
	Kind               string    `json:"kind"`
	ProcessID          string    `json:"process_id"`
	ProcessDescription string    `json:"process_description,omitempty"`
	SubprocessID       string    `json:"subprocess_id,omitempty"`
	UnitID             string    `json:"unit_id,omitempty"`
	RecipientUnitID    string    `json:"recipient_unit_id,omitempty"`
	UnitIDs            []string  `json:"unit_ids,omitempty"`
	ActorID            string    `json:"actor_id,omitempty"`
	Note               string    `json:"note,omitempty"`
	OccurredAt         time.Time `json:"occurred_at"`
}

// Publish sends event. NATS publishes are fire-and-forget, so the context is only checked
// before sending.
func (p *NATSPublisher) Publish(ctx context.Context, event domain.Event) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before publish: %w", err)
	}
	data, err := json.Marshal(eventPayload{
		Kind:               string(event.Kind),
		ProcessID:          event.ProcessID,
		ProcessDescription: event.ProcessDescription,
		SubprocessID:       event.SubprocessID,
		UnitID:             event.UnitID,
		RecipientUnitID:    event.RecipientUnitID,
		UnitIDs:            event.UnitIDs,
		ActorID:            event.ActorID,
		Note:               event.Note,
		OccurredAt:         event.OccurredAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.conn.Publish(p.Subject(event.Kind), data); err != nil {
		return fmt.Errorf("publish %s: %w", event.Kind, err)
	}
	return nil
}

// Close drains the connection opened by ConnectNATS.
func (p *NATSPublisher) Close() error {
	if p.nc == nil {
		return nil
	}
	return p.nc.Drain()
}
