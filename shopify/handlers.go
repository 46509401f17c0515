package shopify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/replyloop/replyloop/action"
)

var ErrNotFound = errors.New("platform resource not found")

// Handler executes one action type against the platform for a resolved
// order. Payloads arrive already normalized; a handler never sees a raw
// proposal map.
type Handler func(ctx context.Context, c *Client, orderID int64, p action.Payload) error

var handlers = map[action.Type]Handler{
	action.TypeUpdateShippingAddress:    updateShippingAddress,
	action.TypeCancelOrder:              cancelOrder,
	action.TypeRefundOrder:              refundOrder,
	action.TypeChangeShippingMethod:     changeShippingMethod,
	action.TypeHoldOrReleaseFulfillment: holdOrReleaseFulfillment,
	action.TypeEditLineItems:            editLineItems,
	action.TypeUpdateCustomerContact:    updateCustomerContact,
	action.TypeAddNote:                  addNote,
	action.TypeAddTag:                   addTag,
	action.TypeAddInternalNoteOrTag:     addInternalNoteOrTag,
	action.TypeResendConfirmation:       resendConfirmation,
}

// Execute dispatches one normalized action to its handler.
func Execute(ctx context.Context, c *Client, t action.Type, orderID int64, p action.Payload) error {
	h, ok := handlers[t]
	if !ok {
		return fmt.Errorf("no handler registered for action type %q", t)
	}
	return h(ctx, c, orderID, p)
}

// Supported reports whether an executor handler exists for t.
func Supported(t action.Type) bool {
	_, ok := handlers[t]
	return ok
}

// Money renders an amount the way the platform expects prices: two decimal
// places, no currency symbol.
func Money(amount float64) string {
	return decimal.NewFromFloat(amount).StringFixed(2)
}

func updateShippingAddress(ctx context.Context, c *Client, orderID int64, p action.Payload) error {
	pl, ok := p.(action.ShippingAddressPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for update_shipping_address", p)
	}
	addr := map[string]any{}
	set := func(k, v string) {
		if v != "" {
			addr[k] = v
		}
	}
	set("name", pl.Address.Name)
	set("address1", pl.Address.Address1)
	set("address2", pl.Address.Address2)
	set("zip", pl.Address.Zip)
	set("city", pl.Address.City)
	set("province", pl.Address.Province)
	set("country", pl.Address.Country)
	set("phone", pl.Address.Phone)

	body := map[string]any{"order": map[string]any{"id": orderID, "shipping_address": addr}}
	return c.putJSON(ctx, fmt.Sprintf("/orders/%d.json", orderID), body, nil)
}

func cancelOrder(ctx context.Context, c *Client, orderID int64, p action.Payload) error {
	pl, ok := p.(action.CancelPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for cancel_order", p)
	}
	body := map[string]any{}
	if pl.Reason != "" {
		body["reason"] = pl.Reason
	}
	if pl.Email {
		body["email"] = true
	}
	if pl.Refund {
		body["refund"] = true
	}
	if pl.Restock {
		body["restock"] = true
	}
	return c.postJSON(ctx, fmt.Sprintf("/orders/%d/cancel.json", orderID), body, nil)
}

func refundOrder(ctx context.Context, c *Client, orderID int64, p action.Payload) error {
	pl, ok := p.(action.RefundPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for refund_order", p)
	}
	refund := map[string]any{"notify": true}
	if pl.Note != "" {
		refund["note"] = pl.Note
	} else if pl.Reason != "" {
		refund["note"] = pl.Reason
	}
	if pl.Currency != "" {
		refund["currency"] = pl.Currency
	}
	if pl.Amount != nil {
		tx := map[string]any{
			"kind":   "refund",
			"amount": Money(*pl.Amount),
		}
		if pl.Currency != "" {
			tx["currency"] = pl.Currency
		}
		refund["transactions"] = []any{tx}
	}
	body := map[string]any{"refund": refund}
	return c.postJSON(ctx, fmt.Sprintf("/orders/%d/refunds.json", orderID), body, nil)
}

func changeShippingMethod(ctx context.Context, c *Client, orderID int64, p action.Payload) error {
	pl, ok := p.(action.ShippingMethodPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for change_shipping_method", p)
	}
	body := map[string]any{"order": map[string]any{
		"id": orderID,
		"shipping_lines": []any{map[string]any{
			"title": pl.Title,
			"price": Money(pl.Price),
		}},
	}}
	return c.putJSON(ctx, fmt.Sprintf("/orders/%d.json", orderID), body, nil)
}

func holdOrReleaseFulfillment(ctx context.Context, c *Client, orderID int64, p action.Payload) error {
	pl, ok := p.(action.FulfillmentHoldPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for hold_or_release_fulfillment", p)
	}

	foID := pl.FulfillmentOrderID
	if foID == 0 {
		id, err := c.findFulfillmentOrder(ctx, orderID, pl.Mode)
		if err != nil {
			return err
		}
		foID = id
	}

	if pl.Mode == "release" {
		return c.postJSON(ctx, fmt.Sprintf("/fulfillment_orders/%d/release_hold.json", foID), map[string]any{}, nil)
	}
	body := map[string]any{"fulfillment_hold": map[string]any{"reason": "other"}}
	return c.postJSON(ctx, fmt.Sprintf("/fulfillment_orders/%d/hold.json", foID), body, nil)
}

// findFulfillmentOrder picks the order's fulfillment order to act on: a held
// one when releasing, an active one when holding.
func (c *Client) findFulfillmentOrder(ctx context.Context, orderID int64, mode string) (int64, error) {
	var resp struct {
		FulfillmentOrders []struct {
			ID     int64  `json:"id"`
			Status string `json:"status"`
		} `json:"fulfillment_orders"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("/orders/%d/fulfillment_orders.json", orderID), &resp); err != nil {
		return 0, err
	}
	for _, fo := range resp.FulfillmentOrders {
		status := strings.ToLower(fo.Status)
		if mode == "release" && status == "on_hold" {
			return fo.ID, nil
		}
		if mode != "release" && (status == "open" || status == "scheduled" || status == "in_progress") {
			return fo.ID, nil
		}
	}
	if len(resp.FulfillmentOrders) > 0 {
		return resp.FulfillmentOrders[0].ID, nil
	}
	return 0, fmt.Errorf("%w: order %d has no fulfillment orders", ErrNotFound, orderID)
}

func editLineItems(ctx context.Context, c *Client, orderID int64, p action.Payload) error {
	pl, ok := p.(action.LineItemEditPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for edit_line_items", p)
	}
	return EditLineItems(ctx, c, orderID, pl)
}

func updateCustomerContact(ctx context.Context, c *Client, orderID int64, p action.Payload) error {
	pl, ok := p.(action.CustomerContactPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for update_customer_contact", p)
	}
	order := map[string]any{"id": orderID}
	if pl.Email != "" {
		order["email"] = pl.Email
	}
	if pl.Phone != "" {
		order["phone"] = pl.Phone
	}
	return c.putJSON(ctx, fmt.Sprintf("/orders/%d.json", orderID), map[string]any{"order": order}, nil)
}

func addNote(ctx context.Context, c *Client, orderID int64, p action.Payload) error {
	pl, ok := p.(action.NotePayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for add_note", p)
	}
	body := map[string]any{"order": map[string]any{"id": orderID, "note": pl.Note}}
	return c.putJSON(ctx, fmt.Sprintf("/orders/%d.json", orderID), body, nil)
}

// addTag appends the tag to the order's current comma-joined tag list. The
// read happens per call so that earlier actions in the same batch are
// visible here.
func addTag(ctx context.Context, c *Client, orderID int64, p action.Payload) error {
	pl, ok := p.(action.TagPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for add_tag", p)
	}

	var resp struct {
		Order struct {
			Tags string `json:"tags"`
		} `json:"order"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("/orders/%d.json?fields=id,tags", orderID), &resp); err != nil {
		return err
	}

	tags := splitTags(resp.Order.Tags)
	for _, t := range tags {
		if strings.EqualFold(t, pl.Tag) {
			return nil // already present
		}
	}
	tags = append(tags, pl.Tag)

	body := map[string]any{"order": map[string]any{"id": orderID, "tags": strings.Join(tags, ", ")}}
	return c.putJSON(ctx, fmt.Sprintf("/orders/%d.json", orderID), body, nil)
}

func addInternalNoteOrTag(ctx context.Context, c *Client, orderID int64, p action.Payload) error {
	pl, ok := p.(action.InternalNoteOrTagPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for add_internal_note_or_tag", p)
	}
	if pl.Tag != "" {
		return addTag(ctx, c, orderID, action.TagPayload{Tag: pl.Tag})
	}
	return addNote(ctx, c, orderID, action.NotePayload{Note: pl.Note})
}

func resendConfirmation(ctx context.Context, c *Client, orderID int64, p action.Payload) error {
	pl, ok := p.(action.ResendInvoicePayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for resend_confirmation_or_invoice", p)
	}
	invoice := map[string]any{}
	if pl.To != "" {
		invoice["to"] = pl.To
	}
	if pl.Message != "" {
		invoice["custom_message"] = pl.Message
	}
	body := map[string]any{"order_invoice": invoice}
	return c.postJSON(ctx, fmt.Sprintf("/orders/%d/send_invoice.json", orderID), body, nil)
}

func splitTags(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
