package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/replyloop/replyloop/action"
	"github.com/replyloop/replyloop/ledger"
	"github.com/replyloop/replyloop/shopify"
)

const (
	DecisionAccepted = "accepted"
	DecisionDeclined = "declined"
)

// DecisionRequest is the callback from the human review surface. The target
// record is located by explicit action id, by the thread's latest pending
// record, or by replaying a stored free-text proposal.
type DecisionRequest struct {
	ActionID     uint64 `json:"actionId,omitempty"`
	UserID       string `json:"supabaseUserId"`
	WorkspaceID  string `json:"workspaceId,omitempty"`
	ThreadID     string `json:"threadId,omitempty"`
	ProposalText string `json:"proposalText,omitempty"`
	Decision     string `json:"decision"`
}

type DecisionResponse struct {
	OK             bool   `json:"ok"`
	Decision       string `json:"decision"`
	Action         string `json:"action"`
	OrderID        int64  `json:"orderId,omitempty"`
	OrderNumber    string `json:"orderNumber,omitempty"`
	Detail         string `json:"detail,omitempty"`
	Error          string `json:"error,omitempty"`
	AlreadyApplied bool   `json:"alreadyApplied,omitempty"`
}

// Decide completes the approval state machine for one action record.
// Declining is terminal and idempotent. Accepting an already-applied record
// short-circuits with AlreadyApplied and performs no platform call;
// otherwise the order is re-resolved live and the action executed.
func (d *Deps) Decide(ctx context.Context, req DecisionRequest) (DecisionResponse, error) {
	decision := strings.ToLower(strings.TrimSpace(req.Decision))
	if decision != DecisionAccepted && decision != DecisionDeclined {
		return DecisionResponse{}, fmt.Errorf("invalid decision %q", req.Decision)
	}

	rec, err := d.locateRecord(ctx, req)
	if err != nil {
		return DecisionResponse{}, err
	}

	if decision == DecisionDeclined {
		declined, err := d.Ledger.MarkDeclined(ctx, rec.ID)
		if err != nil {
			return DecisionResponse{}, err
		}
		ev := ledger.NewEvent(rec.UserID, ledger.SeverityInfo, "declined: "+declined.Detail)
		ev.ThreadID, ev.ActionType, ev.ActionKey, ev.OrderID = declined.ThreadID, declined.ActionType, declined.ActionKey, declined.OrderID
		d.audit(ctx, ev)
		return DecisionResponse{
			OK:          true,
			Decision:    DecisionDeclined,
			Action:      declined.ActionType,
			OrderID:     declined.OrderID,
			OrderNumber: declined.OrderNumber,
			Detail:      declined.Detail,
		}, nil
	}

	if rec.Status == ledger.StatusApplied {
		return DecisionResponse{
			OK:             true,
			Decision:       DecisionAccepted,
			Action:         rec.ActionType,
			OrderID:        rec.OrderID,
			OrderNumber:    rec.OrderNumber,
			Detail:         rec.Detail,
			AlreadyApplied: true,
		}, nil
	}
	if rec.Status == ledger.StatusDeclined {
		return DecisionResponse{}, fmt.Errorf("action record %d was declined and cannot be accepted", rec.ID)
	}

	n, err := normalizedFromRecord(rec)
	if err != nil {
		return DecisionResponse{}, err
	}

	shop, err := d.Credentials.Resolve(ctx, req.UserID, req.WorkspaceID)
	if err != nil {
		return DecisionResponse{}, err
	}
	client := d.client(shop, d.APIVersion)

	orderRef := rec.OrderNumber
	if orderRef == "" {
		orderRef = keyOrderRef(rec.ActionKey)
	}
	if rec.OrderID != 0 {
		orderRef = fmt.Sprintf("%d", rec.OrderID)
	}
	order, err := client.LookupOrder(ctx, orderRef)
	if err != nil {
		return d.decideFailed(ctx, rec, err)
	}

	if err := shopify.Execute(ctx, client, n.Type, order.ID, n.Payload); err != nil {
		return d.decideFailed(ctx, rec, err)
	}

	rec.OrderID = order.ID
	rec.OrderNumber = order.Number
	applied, err := d.Ledger.MarkApplied(ctx, rec)
	if err != nil {
		return DecisionResponse{}, err
	}
	ev := ledger.NewEvent(applied.UserID, ledger.SeveritySuccess, "approved and applied: "+applied.Detail)
	ev.ThreadID, ev.ActionType, ev.ActionKey, ev.OrderID = applied.ThreadID, applied.ActionType, applied.ActionKey, applied.OrderID
	d.audit(ctx, ev)
	return DecisionResponse{
		OK:          true,
		Decision:    DecisionAccepted,
		Action:      applied.ActionType,
		OrderID:     applied.OrderID,
		OrderNumber: applied.OrderNumber,
		Detail:      applied.Detail,
	}, nil
}

func (d *Deps) decideFailed(ctx context.Context, rec ledger.Record, execErr error) (DecisionResponse, error) {
	msg := execErr.Error()
	failed, err := d.Ledger.MarkFailed(ctx, rec, msg)
	if err != nil {
		d.log().Error("ledger_mark_failed_error", "error", err.Error())
		failed = rec
	}
	ev := ledger.NewEvent(rec.UserID, ledger.SeverityError, "approved but failed: "+msg)
	ev.ThreadID, ev.ActionType, ev.ActionKey, ev.OrderID = rec.ThreadID, rec.ActionType, rec.ActionKey, rec.OrderID
	d.audit(ctx, ev)
	return DecisionResponse{
		OK:          false,
		Decision:    DecisionAccepted,
		Action:      failed.ActionType,
		OrderID:     failed.OrderID,
		OrderNumber: failed.OrderNumber,
		Detail:      failed.Detail,
		Error:       msg,
	}, nil
}

// locateRecord finds the record a decision refers to. When only a stored
// free-text proposal is available, the proposal is replayed through the
// normalizer to rebuild its action key, creating the pending row if the
// original pass never persisted one.
func (d *Deps) locateRecord(ctx context.Context, req DecisionRequest) (ledger.Record, error) {
	if req.ActionID != 0 {
		rec, found, err := d.Ledger.GetByID(ctx, req.ActionID)
		if err != nil {
			return ledger.Record{}, err
		}
		if !found {
			return ledger.Record{}, fmt.Errorf("action record %d not found", req.ActionID)
		}
		return rec, nil
	}

	if strings.TrimSpace(req.ProposalText) != "" {
		p, err := action.ParseProposalText(req.ProposalText)
		if err != nil {
			return ledger.Record{}, err
		}
		n, err := action.Normalize(p)
		if err != nil {
			return ledger.Record{}, err
		}
		key := ledger.Key(n.Type, n.OrderRef, n.Raw)
		if rec, found, err := d.Ledger.Get(ctx, req.UserID, req.ThreadID, key); err != nil {
			return ledger.Record{}, err
		} else if found {
			return rec, nil
		}
		payloadJSON, _ := json.Marshal(n.Raw)
		return d.Ledger.UpsertPending(ctx, ledger.Record{
			UserID:      req.UserID,
			ThreadID:    req.ThreadID,
			ActionKey:   key,
			ActionType:  string(n.Type),
			Detail:      ledger.Summary(n),
			PayloadJSON: string(payloadJSON),
			OrderNumber: strings.TrimPrefix(n.OrderRef, "#"),
		})
	}

	rec, found, err := d.Ledger.LatestPending(ctx, req.UserID, req.ThreadID)
	if err != nil {
		return ledger.Record{}, err
	}
	if !found {
		return ledger.Record{}, fmt.Errorf("no pending action for thread %q", req.ThreadID)
	}
	return rec, nil
}

// normalizedFromRecord rebuilds the canonical action from a persisted row.
func normalizedFromRecord(rec ledger.Record) (action.Normalized, error) {
	var payload map[string]any
	if strings.TrimSpace(rec.PayloadJSON) != "" {
		if err := json.Unmarshal([]byte(rec.PayloadJSON), &payload); err != nil {
			return action.Normalized{}, fmt.Errorf("decode stored payload: %w", err)
		}
	}
	return action.Normalize(action.Proposed{
		Type:     action.Type(rec.ActionType),
		OrderRef: keyOrderRef(rec.ActionKey),
		Payload:  payload,
	})
}

// keyOrderRef extracts the loose order reference embedded in an action key
// (type::orderRef::payload).
func keyOrderRef(key string) string {
	parts := strings.SplitN(key, "::", 3)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}
