package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityInfo    Severity = "info"
)

// Event is one operator-visible audit entry: an action outcome, a policy
// hold, or a decision.
type Event struct {
	EventID    string    `json:"event_id"`
	Timestamp  time.Time `json:"ts"`
	UserID     string    `json:"user_id"`
	ThreadID   string    `json:"thread_id,omitempty"`
	ActionType string    `json:"action_type,omitempty"`
	ActionKey  string    `json:"action_key,omitempty"`
	OrderID    int64     `json:"order_id,omitempty"`
	Severity   Severity  `json:"severity"`
	Message    string    `json:"message"`
}

// NewEvent stamps an event with an id and the current time.
func NewEvent(userID string, sev Severity, msg string) Event {
	return Event{
		EventID:   "aev_" + uuid.NewString(),
		Timestamp: time.Now().UTC(),
		UserID:    userID,
		Severity:  sev,
		Message:   msg,
	}
}

type Sink interface {
	Emit(ctx context.Context, e Event) error
	Close() error
}

// MultiSink fans one event out to several sinks; the first error wins but
// every sink still sees the event.
type MultiSink []Sink

func (m MultiSink) Emit(ctx context.Context, e Event) error {
	var first error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Emit(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m MultiSink) Close() error {
	var first error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
