// Package pipeline runs proposed actions through normalization, the policy
// gate, order resolution and platform execution, recording every outcome in
// the ledger. One invocation is one pass over a batch; actions execute
// strictly in order because later ones may depend on the side effects of
// earlier ones.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/replyloop/replyloop/action"
	"github.com/replyloop/replyloop/credentials"
	"github.com/replyloop/replyloop/ledger"
	"github.com/replyloop/replyloop/policy"
	"github.com/replyloop/replyloop/shopify"
)

var (
	ErrOrderUnresolved    = errors.New("could not resolve order reference")
	ErrPreviouslyDeclined = errors.New("action was previously declined")
)

// Deps is the per-batch context object: everything a pass needs, passed in
// explicitly. Lifecycle is one batch/request; nothing here is a process
// global.
type Deps struct {
	Credentials *credentials.Resolver
	Ledger      ledger.Store
	Audit       ledger.Sink
	APIVersion  string
	Timeout     time.Duration
	Log         *slog.Logger

	// NewClient builds the platform client for a resolved shop. Tests
	// override it to point at a fake server.
	NewClient func(shop credentials.Shop, apiVersion string) *shopify.Client
}

// Trigger is the inbound payload produced by the draft-generation side.
type Trigger struct {
	UserID      string            `json:"supabaseUserId"`
	WorkspaceID string            `json:"workspaceId,omitempty"`
	ThreadID    string            `json:"threadId"`
	Actions     []action.Proposed `json:"actions"`
	Automation  policy.Automation `json:"automation"`
	OrderIDMap  map[string]string `json:"orderIdMap,omitempty"`
	APIVersion  string            `json:"apiVersion,omitempty"`
}

type ResultStatus string

const (
	StatusSuccess         ResultStatus = "success"
	StatusPendingApproval ResultStatus = "pending_approval"
	StatusError           ResultStatus = "error"
)

// Result is the per-action outcome. Consumers match results by type and
// order id rather than list position.
type Result struct {
	Type    action.Type  `json:"type"`
	OK      bool         `json:"ok"`
	Status  ResultStatus `json:"status"`
	OrderID int64        `json:"orderId,omitempty"`
	Detail  string       `json:"detail,omitempty"`
	Error   string       `json:"error,omitempty"`
}

func (d *Deps) log() *slog.Logger {
	if d.Log != nil {
		return d.Log
	}
	return slog.Default()
}

func (d *Deps) client(shop credentials.Shop, apiVersion string) *shopify.Client {
	if d.NewClient != nil {
		return d.NewClient(shop, apiVersion)
	}
	return shopify.NewClient(shop, apiVersion, d.Timeout, d.log())
}

func (d *Deps) audit(ctx context.Context, e ledger.Event) {
	if d.Audit == nil {
		return
	}
	if err := d.Audit.Emit(ctx, e); err != nil {
		d.log().Warn("audit_emit_error", "error", err.Error())
	}
}

// ResolveOrderRef maps a loose order reference to the platform's numeric
// order id using the caller-provided map: leading "#" stripped, map lookup
// by stripped then raw key, numeric fallback.
func ResolveOrderRef(ref string, orderIDMap map[string]string) (int64, error) {
	raw := strings.TrimSpace(ref)
	stripped := strings.TrimPrefix(raw, "#")
	if stripped == "" {
		return 0, fmt.Errorf("%w: empty reference", ErrOrderUnresolved)
	}
	for _, key := range []string{stripped, raw} {
		if mapped, ok := orderIDMap[key]; ok {
			if n, ok := action.AsInt64(mapped); ok && n > 0 {
				return n, nil
			}
		}
	}
	if n, ok := action.AsInt64(stripped); ok && n > 0 {
		return n, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrOrderUnresolved, ref)
}

// Run executes one batch. Credential failure is the only batch-fatal case:
// every action gets the same error result. Everything else is per-action;
// exactly one result is produced per input action.
func (d *Deps) Run(ctx context.Context, t Trigger) []Result {
	results := make([]Result, 0, len(t.Actions))

	shop, err := d.Credentials.Resolve(ctx, t.UserID, t.WorkspaceID)
	if err != nil {
		msg := err.Error()
		d.log().Error("credentials_resolve_error", "user", t.UserID, "error", msg)
		ev := ledger.NewEvent(t.UserID, ledger.SeverityError, "credentials: "+msg)
		ev.ThreadID = t.ThreadID
		d.audit(ctx, ev)
		for _, p := range t.Actions {
			results = append(results, Result{Type: p.Type, OK: false, Status: StatusError, Error: msg})
		}
		return results
	}

	apiVersion := strings.TrimSpace(t.APIVersion)
	if apiVersion == "" {
		apiVersion = d.APIVersion
	}
	client := d.client(shop, apiVersion)
	for _, p := range t.Actions {
		results = append(results, d.runOne(ctx, client, t, p))
	}
	return results
}

func (d *Deps) runOne(ctx context.Context, client *shopify.Client, t Trigger, p action.Proposed) Result {
	n, err := action.Normalize(p)
	if err != nil {
		return d.fail(ctx, t, p.Type, 0, err)
	}

	key := ledger.Key(n.Type, n.OrderRef, n.Raw)
	detail := ledger.Summary(n)
	payloadJSON, _ := json.Marshal(n.Raw)

	verdict := policy.Evaluate(n.Type, t.Automation)
	if !verdict.Allowed {
		// Not discarded: queue for a human. Order resolution is best effort
		// here so the pending row carries an order id when it can.
		orderID, _ := ResolveOrderRef(n.OrderRef, t.OrderIDMap)
		rec, err := d.Ledger.UpsertPending(ctx, ledger.Record{
			UserID:      t.UserID,
			ThreadID:    t.ThreadID,
			ActionKey:   key,
			ActionType:  string(n.Type),
			Detail:      detail,
			PayloadJSON: string(payloadJSON),
			OrderID:     orderID,
			OrderNumber: strings.TrimPrefix(n.OrderRef, "#"),
		})
		if err != nil {
			return d.fail(ctx, t, n.Type, orderID, fmt.Errorf("queue for approval: %w", err))
		}
		if rec.Status == ledger.StatusApplied {
			// Identical action was approved and applied earlier; echo success.
			return d.applied(ctx, t, n, key, rec.OrderID)
		}
		if rec.Status == ledger.StatusDeclined {
			// Nothing is pending: the row stays declined, so reporting this
			// as queued would mislead the caller.
			return d.fail(ctx, t, n.Type, rec.OrderID, ErrPreviouslyDeclined)
		}

		ev := ledger.NewEvent(t.UserID, ledger.SeverityInfo, fmt.Sprintf("queued for approval (%s): %s", verdict.Reason, detail))
		ev.ThreadID, ev.ActionType, ev.ActionKey, ev.OrderID = t.ThreadID, string(n.Type), key, orderID
		d.audit(ctx, ev)
		return Result{Type: n.Type, OK: false, Status: StatusPendingApproval, OrderID: orderID, Detail: detail}
	}

	orderID, err := ResolveOrderRef(n.OrderRef, t.OrderIDMap)
	if err != nil {
		return d.fail(ctx, t, n.Type, 0, err)
	}

	if err := shopify.Execute(ctx, client, n.Type, orderID, n.Payload); err != nil {
		if _, mErr := d.Ledger.MarkFailed(ctx, ledger.Record{
			UserID:      t.UserID,
			ThreadID:    t.ThreadID,
			ActionKey:   key,
			ActionType:  string(n.Type),
			Detail:      detail,
			PayloadJSON: string(payloadJSON),
			OrderID:     orderID,
			OrderNumber: strings.TrimPrefix(n.OrderRef, "#"),
		}, err.Error()); mErr != nil {
			d.log().Error("ledger_mark_failed_error", "error", mErr.Error())
		}
		return d.fail(ctx, t, n.Type, orderID, err)
	}

	if _, err := d.Ledger.MarkApplied(ctx, ledger.Record{
		UserID:      t.UserID,
		ThreadID:    t.ThreadID,
		ActionKey:   key,
		ActionType:  string(n.Type),
		Detail:      detail,
		PayloadJSON: string(payloadJSON),
		OrderID:     orderID,
		OrderNumber: strings.TrimPrefix(n.OrderRef, "#"),
	}); err != nil {
		d.log().Error("ledger_mark_applied_error", "error", err.Error())
	}
	return d.applied(ctx, t, n, key, orderID)
}

func (d *Deps) applied(ctx context.Context, t Trigger, n action.Normalized, key string, orderID int64) Result {
	detail := ledger.Summary(n)
	ev := ledger.NewEvent(t.UserID, ledger.SeveritySuccess, detail)
	ev.ThreadID, ev.ActionType, ev.ActionKey, ev.OrderID = t.ThreadID, string(n.Type), key, orderID
	d.audit(ctx, ev)
	return Result{Type: n.Type, OK: true, Status: StatusSuccess, OrderID: orderID, Detail: detail}
}

func (d *Deps) fail(ctx context.Context, t Trigger, at action.Type, orderID int64, err error) Result {
	msg := err.Error()
	d.log().Error("action_error", "user", t.UserID, "action", string(at), "error", msg)
	ev := ledger.NewEvent(t.UserID, ledger.SeverityError, fmt.Sprintf("%s: %s", at, msg))
	ev.ThreadID, ev.ActionType, ev.OrderID = t.ThreadID, string(at), orderID
	d.audit(ctx, ev)
	return Result{Type: at, OK: false, Status: StatusError, OrderID: orderID, Error: msg}
}
