// Package events publishes audit events for account lifecycle and security
// actions. Publishing is fire-and-forget: a broker outage is logged, never
// surfaced to the request that triggered the event.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pratyush314/acquisitions/internal/logging"
)

// Audit event types.
const (
	TypeUserRegistered = "user.registered"
	TypeUserSignedIn   = "user.signed_in"
	TypeUserUpdated    = "user.updated"
	TypeUserDeleted    = "user.deleted"
	TypeRequestBlocked = "request.blocked"
)

const (
	defaultChannel    = "acquisitions.audit"
	publishTimeout    = 5 * time.Second
	attrKeyEventType  = "event_type"
	attrKeyOccurredAt = "occurred_at"
)

// Event is a single audit record.
type Event struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Actor      string            `json:"actor,omitempty"`
	Subject    string            `json:"subject,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Backend defines the broker-agnostic publish operation.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Close() error
}

// Publisher wraps a backend with a stable API.
type Publisher struct {
	backend Backend
	channel string
	logger  logging.Logger
}

// NewPublisher constructs a Publisher for the provided backend.
func NewPublisher(backend Backend, logger logging.Logger) *Publisher {
	return &Publisher{backend: backend, channel: defaultChannel, logger: logger}
}

// Emit publishes an event asynchronously. The event ID and timestamp are
// filled in when unset.
func (p *Publisher) Emit(ctx context.Context, event Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()

		data, err := json.Marshal(event)
		if err != nil {
			p.logger.Error(ctx, "marshal audit event", "type", event.Type, "error", err)
			return
		}

		attrs := map[string]string{
			attrKeyEventType:  event.Type,
			attrKeyOccurredAt: event.OccurredAt.Format(time.RFC3339),
		}
		if _, err := p.backend.Publish(ctx, p.channel, data, attrs); err != nil {
			p.logger.Error(ctx, "publish audit event", "type", event.Type, "error", err)
		}
	}()
}

// Close closes the underlying backend.
func (p *Publisher) Close() error {
	return p.backend.Close()
}

// NoopBackend discards events. Used when no broker is configured.
type NoopBackend struct{}

func (NoopBackend) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	return "", nil
}

func (NoopBackend) Close() error { return nil }
