package ledger

import (
	"context"
	"time"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApplied  Status = "applied"
	StatusDeclined Status = "declined"
	StatusFailed   Status = "failed"
)

// Terminal reports whether s accepts no further transitions. A failed
// record may still be retried by re-submission, so failed is not terminal.
func (s Status) Terminal() bool {
	return s == StatusApplied || s == StatusDeclined
}

// Record is the ledger row for one proposed action on a thread.
type Record struct {
	ID          uint64
	UserID      string
	ThreadID    string
	ActionKey   string
	ActionType  string
	Status      Status
	Detail      string
	PayloadJSON string
	OrderID     int64
	OrderNumber string
	Error       string

	CreatedAt time.Time
	DecidedAt *time.Time
	AppliedAt *time.Time
	UpdatedAt time.Time
}

// Store is the durable ledger. The backing store must enforce uniqueness of
// (user, thread, action_key); the upsert semantics below rely on it.
type Store interface {
	// UpsertPending creates the pending row for an action, or returns the
	// existing row for the same key untouched when that row is already in a
	// terminal state. Re-proposing an identical action refreshes detail and
	// updated_at only.
	UpsertPending(ctx context.Context, rec Record) (Record, error)

	Get(ctx context.Context, userID, threadID, actionKey string) (Record, bool, error)
	GetByID(ctx context.Context, id uint64) (Record, bool, error)

	// LatestPending returns the most recently updated pending record for a
	// thread. Used when a decision arrives without an explicit action id.
	LatestPending(ctx context.Context, userID, threadID string) (Record, bool, error)

	// MarkApplied upserts the record to applied with execution timestamps.
	MarkApplied(ctx context.Context, rec Record) (Record, error)

	// MarkFailed upserts the record with the failure message; the row is
	// kept so the reviewer can see the error and retry.
	MarkFailed(ctx context.Context, rec Record, execErr string) (Record, error)

	// MarkDeclined resolves a pending record to declined. Idempotent when
	// the record is already declined.
	MarkDeclined(ctx context.Context, id uint64) (Record, error)
}
