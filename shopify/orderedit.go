package shopify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/replyloop/replyloop/action"
)

var ErrMutationFailed = errors.New("order edit mutation failed")

const (
	orderEditBeginQuery = `mutation orderEditBegin($id: ID!) {
  orderEditBegin(id: $id) {
    calculatedOrder { id }
    userErrors { field message }
  }
}`

	orderEditAddVariantQuery = `mutation orderEditAddVariant($id: ID!, $variantId: ID!, $quantity: Int!) {
  orderEditAddVariant(id: $id, variantId: $variantId, quantity: $quantity) {
    calculatedOrder { id }
    userErrors { field message }
  }
}`

	orderEditSetQuantityQuery = `mutation orderEditSetQuantity($id: ID!, $lineItemId: ID!, $quantity: Int!) {
  orderEditSetQuantity(id: $id, lineItemId: $lineItemId, quantity: $quantity) {
    calculatedOrder { id }
    userErrors { field message }
  }
}`

	orderEditCommitQuery = `mutation orderEditCommit($id: ID!, $notifyCustomer: Boolean, $staffNote: String) {
  orderEditCommit(id: $id, notifyCustomer: $notifyCustomer, staffNote: $staffNote) {
    order { id }
    userErrors { field message }
  }
}`
)

// EditLineItems runs the platform's three-phase order edit: begin an edit
// session, apply every operation in list order, then commit. Any phase
// reporting user errors aborts the remaining steps; there is no partial
// commit. The platform offers no rollback for an aborted session, so the
// calculated order id is logged for manual cleanup when the commit fails.
func EditLineItems(ctx context.Context, c *Client, orderID int64, pl action.LineItemEditPayload) error {
	if len(pl.Ops) == 0 {
		return fmt.Errorf("%w: no operations", ErrMutationFailed)
	}

	res, err := c.GraphQL(ctx, orderEditBeginQuery, map[string]any{
		"id": action.GID("Order", orderID),
	})
	if err != nil {
		return err
	}
	if err := userErrors(res, "data.orderEditBegin.userErrors"); err != nil {
		return err
	}
	sessionID := res.Get("data.orderEditBegin.calculatedOrder.id").String()
	if sessionID == "" {
		return fmt.Errorf("%w: begin returned no calculated order id", ErrMutationFailed)
	}

	for i, op := range pl.Ops {
		var (
			query string
			vars  map[string]any
			path  string
		)
		switch op.Kind {
		case action.OpAddVariant:
			query = orderEditAddVariantQuery
			vars = map[string]any{"id": sessionID, "variantId": op.GID, "quantity": op.Quantity}
			path = "data.orderEditAddVariant.userErrors"
		case action.OpSetQuantity, action.OpRemoveLineItem:
			query = orderEditSetQuantityQuery
			vars = map[string]any{"id": sessionID, "lineItemId": op.GID, "quantity": op.Quantity}
			path = "data.orderEditSetQuantity.userErrors"
		default:
			return fmt.Errorf("%w: unsupported operation %q", ErrMutationFailed, op.Kind)
		}

		res, err := c.GraphQL(ctx, query, vars)
		if err != nil {
			return err
		}
		if err := userErrors(res, path); err != nil {
			return fmt.Errorf("operation %d (%s): %w", i, op.Kind, err)
		}
	}

	res, err = c.GraphQL(ctx, orderEditCommitQuery, map[string]any{
		"id":             sessionID,
		"notifyCustomer": false,
		"staffNote":      pl.StaffNote,
	})
	if err != nil {
		c.Log.Warn("order_edit_commit_error", "calculated_order_id", sessionID, "error", err.Error())
		return err
	}
	if err := userErrors(res, "data.orderEditCommit.userErrors"); err != nil {
		c.Log.Warn("order_edit_commit_user_errors", "calculated_order_id", sessionID, "error", err.Error())
		return err
	}
	if res.Get("data.orderEditCommit.order.id").String() == "" {
		c.Log.Warn("order_edit_commit_no_order", "calculated_order_id", sessionID)
		return fmt.Errorf("%w: commit returned no order id", ErrMutationFailed)
	}
	return nil
}

func userErrors(res gjson.Result, path string) error {
	errs := res.Get(path)
	if !errs.Exists() || !errs.IsArray() || len(errs.Array()) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(errs.Array()))
	for _, e := range errs.Array() {
		msg := e.Get("message").String()
		if field := e.Get("field").String(); field != "" && msg != "" {
			msg = field + ": " + msg
		}
		if msg != "" {
			msgs = append(msgs, msg)
		}
	}
	return fmt.Errorf("%w: %s", ErrMutationFailed, strings.Join(msgs, "; "))
}
