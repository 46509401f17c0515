package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/replyloop/replyloop/action"
)

// Summary builds the canned human-readable sentence for one normalized
// action. The same sentence is produced whether the action ends up pending
// approval or applied, so reviewers and timelines see consistent text.
func Summary(n action.Normalized) string {
	switch pl := n.Payload.(type) {
	case action.ShippingAddressPayload:
		parts := addressParts(pl.Address)
		if len(parts) == 0 {
			return "Changed shipping address."
		}
		return fmt.Sprintf("Changed shipping address to %s.", strings.Join(parts, ", "))

	case action.CancelPayload:
		return "Cancelled order."

	case action.RefundPayload:
		if pl.Amount != nil {
			return fmt.Sprintf("Refunded %s.", decimal.NewFromFloat(*pl.Amount).StringFixed(2))
		}
		return "Refunded order."

	case action.ShippingMethodPayload:
		return fmt.Sprintf("Changed shipping method to %s (%s).", pl.Title, decimal.NewFromFloat(pl.Price).StringFixed(2))

	case action.FulfillmentHoldPayload:
		if pl.Mode == "release" {
			return "Released fulfillment hold."
		}
		return "Placed fulfillment on hold."

	case action.LineItemEditPayload:
		if pl.StaffNote != "" {
			return fmt.Sprintf("Edited line items: %s.", strings.TrimRight(pl.StaffNote, "."))
		}
		if len(pl.Ops) == 1 {
			return "Edited 1 line item."
		}
		return fmt.Sprintf("Edited %d line items.", len(pl.Ops))

	case action.CustomerContactPayload:
		var fields []string
		if pl.Email != "" {
			fields = append(fields, "email")
		}
		if pl.Phone != "" {
			fields = append(fields, "phone")
		}
		return fmt.Sprintf("Updated customer %s.", strings.Join(fields, " and "))

	case action.NotePayload:
		return "Added order note."

	case action.TagPayload:
		return fmt.Sprintf("Added tag %q.", pl.Tag)

	case action.InternalNoteOrTagPayload:
		if pl.Tag != "" {
			return fmt.Sprintf("Added tag %q.", pl.Tag)
		}
		return "Added order note."

	case action.ResendInvoicePayload:
		return "Resent order confirmation."

	default:
		return fmt.Sprintf("Executed %s.", n.Type)
	}
}

// addressParts keeps up to four non-empty display segments: optional name,
// street line, zip+city, country.
func addressParts(a action.Address) []string {
	var parts []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" && len(parts) < 4 {
			parts = append(parts, s)
		}
	}
	add(a.Name)
	add(a.Address1)
	add(strings.TrimSpace(a.Zip + " " + a.City))
	add(a.Country)
	return parts
}
