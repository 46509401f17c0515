package action

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidPayload = errors.New("invalid action payload")
	ErrUnknownType    = errors.New("unknown action type")
)

// Normalized is a proposal after validation: the loose order reference plus
// one canonical typed payload. Raw keeps the original payload map for the
// ledger (action keys and audit rows are derived from it).
type Normalized struct {
	Type     Type
	OrderRef string
	Payload  Payload
	Raw      map[string]any
}

// Normalize validates a proposed action and produces its canonical form.
// Legacy and alternate payload shapes are folded into the canonical one
// here; a payload that cannot yield a valid canonical form is a validation
// failure, never silently dropped.
func Normalize(p Proposed) (Normalized, error) {
	t := Type(strings.ToLower(strings.TrimSpace(string(p.Type))))
	n := Normalized{
		Type:     t,
		OrderRef: strings.TrimSpace(p.OrderRef),
		Raw:      p.Payload,
	}
	pl := p.Payload
	if pl == nil {
		pl = map[string]any{}
	}

	switch t {
	case TypeUpdateShippingAddress:
		addr, err := normalizeAddress(pl)
		if err != nil {
			return Normalized{}, err
		}
		n.Payload = ShippingAddressPayload{Address: *addr}

	case TypeCancelOrder:
		n.Payload = CancelPayload{
			Reason:  AsString(pl["reason"]),
			Email:   AsBool(pl["email"]),
			Refund:  AsBool(pl["refund"]),
			Restock: AsBool(pl["restock"]),
		}

	case TypeRefundOrder:
		rp := RefundPayload{
			Currency: AsString(pl["currency"]),
			Reason:   AsString(pl["reason"]),
			Note:     AsString(pl["note"]),
		}
		if amt, ok := AsNumber(pl["amount"]); ok && amt > 0 {
			rp.Amount = &amt
		}
		n.Payload = rp

	case TypeChangeShippingMethod:
		title := AsString(pl["title"])
		price, okPrice := AsNumber(pl["price"])
		if title == "" || !okPrice {
			return Normalized{}, fmt.Errorf("%w: change_shipping_method requires title and price", ErrInvalidPayload)
		}
		n.Payload = ShippingMethodPayload{Title: title, Price: price}

	case TypeHoldOrReleaseFulfillment:
		mode := strings.ToLower(AsString(pl["mode"]))
		if mode == "" {
			mode = "hold"
		}
		if mode != "hold" && mode != "release" {
			return Normalized{}, fmt.Errorf("%w: mode must be hold or release, got %q", ErrInvalidPayload, mode)
		}
		foID, _ := AsInt64(pl["fulfillment_order_id"])
		n.Payload = FulfillmentHoldPayload{Mode: mode, FulfillmentOrderID: foID}

	case TypeEditLineItems:
		ops, err := NormalizeLineItemOps(pl)
		if err != nil {
			return Normalized{}, err
		}
		n.Payload = LineItemEditPayload{Ops: ops, StaffNote: editStaffNote(pl)}

	case TypeUpdateCustomerContact:
		email := AsString(pl["email"])
		phone := AsString(pl["phone"])
		if email == "" && phone == "" {
			return Normalized{}, fmt.Errorf("%w: update_customer_contact requires email or phone", ErrInvalidPayload)
		}
		n.Payload = CustomerContactPayload{Email: email, Phone: phone}

	case TypeAddNote:
		// An empty note is allowed (it clears the order note).
		n.Payload = NotePayload{Note: AsString(pl["note"])}

	case TypeAddTag:
		tag := AsString(pl["tag"])
		if tag == "" {
			return Normalized{}, fmt.Errorf("%w: add_tag requires a non-empty tag", ErrInvalidPayload)
		}
		n.Payload = TagPayload{Tag: tag}

	case TypeAddInternalNoteOrTag:
		n.Payload = InternalNoteOrTagPayload{
			Tag:  AsString(pl["tag"]),
			Note: AsString(pl["note"]),
		}

	case TypeResendConfirmation:
		n.Payload = ResendInvoicePayload{
			To:      AsString(pl["to"]),
			Message: AsString(pl["message"]),
		}

	default:
		return Normalized{}, fmt.Errorf("%w: %q", ErrUnknownType, p.Type)
	}

	return n, nil
}

// NormalizeLineItemOps expands an edit_line_items payload into an ordered
// operation list. A structured "operations" array wins; otherwise a single
// legacy operation is inferred from the flat shape (variantId => add,
// lineItemId+mode=remove => remove, lineItemId+quantity => set). Yielding
// zero operations is a validation failure.
func NormalizeLineItemOps(pl map[string]any) ([]LineItemOp, error) {
	if raw, ok := pl["operations"].([]any); ok && len(raw) > 0 {
		ops := make([]LineItemOp, 0, len(raw))
		for i, el := range raw {
			m, ok := el.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: operations[%d] is not an object", ErrInvalidPayload, i)
			}
			op, err := lineItemOpFromMap(m)
			if err != nil {
				return nil, fmt.Errorf("operations[%d]: %w", i, err)
			}
			ops = append(ops, op)
		}
		return ops, nil
	}

	if op, ok := legacyLineItemOp(pl); ok {
		return []LineItemOp{op}, nil
	}
	return nil, fmt.Errorf("%w: edit_line_items yielded no operations", ErrInvalidPayload)
}

func lineItemOpFromMap(m map[string]any) (LineItemOp, error) {
	kind := OpKind(strings.ToLower(AsString(m["type"])))
	variantGID := GID("ProductVariant", firstPresent(m, "variantId", "variant_id"))
	lineItemGID := GID("LineItem", firstPresent(m, "lineItemId", "line_item_id"))
	qty, qtyOK := AsInt64(m["quantity"])

	if kind == "" {
		// Infer from which identifier is present, matching the legacy shape.
		switch {
		case variantGID != "":
			kind = OpAddVariant
		case lineItemGID != "" && strings.EqualFold(AsString(m["mode"]), "remove"):
			kind = OpRemoveLineItem
		case lineItemGID != "" && qtyOK:
			kind = OpSetQuantity
		}
	}

	switch kind {
	case OpAddVariant:
		if variantGID == "" {
			return LineItemOp{}, fmt.Errorf("%w: add_variant requires a variant id", ErrInvalidPayload)
		}
		if !qtyOK || qty < 1 {
			qty = 1
		}
		return LineItemOp{Kind: OpAddVariant, GID: variantGID, Quantity: int(qty)}, nil
	case OpRemoveLineItem:
		if lineItemGID == "" {
			return LineItemOp{}, fmt.Errorf("%w: remove_line_item requires a line item id", ErrInvalidPayload)
		}
		return LineItemOp{Kind: OpRemoveLineItem, GID: lineItemGID, Quantity: 0}, nil
	case OpSetQuantity:
		if lineItemGID == "" {
			return LineItemOp{}, fmt.Errorf("%w: set_quantity requires a line item id", ErrInvalidPayload)
		}
		if !qtyOK || qty < 0 {
			return LineItemOp{}, fmt.Errorf("%w: set_quantity requires a non-negative quantity", ErrInvalidPayload)
		}
		return LineItemOp{Kind: OpSetQuantity, GID: lineItemGID, Quantity: int(qty)}, nil
	default:
		return LineItemOp{}, fmt.Errorf("%w: unsupported line item operation %q", ErrInvalidPayload, kind)
	}
}

func legacyLineItemOp(pl map[string]any) (LineItemOp, bool) {
	op, err := lineItemOpFromMap(pl)
	if err != nil {
		return LineItemOp{}, false
	}
	return op, true
}

func normalizeAddress(pl map[string]any) (*Address, error) {
	for _, key := range []string{"shipping_address", "address"} {
		if m, ok := pl[key].(map[string]any); ok {
			addr := addressFromMap(m)
			if addr.Empty() {
				return nil, fmt.Errorf("%w: shipping_address object has no usable fields", ErrInvalidPayload)
			}
			return &addr, nil
		}
	}
	for _, key := range []string{"address", "address_text", "text"} {
		if s := AsString(pl[key]); s != "" {
			if addr := ParseAddress(s); addr != nil {
				return addr, nil
			}
			return nil, fmt.Errorf("%w: could not infer an address from %q", ErrInvalidPayload, s)
		}
	}
	return nil, fmt.Errorf("%w: update_shipping_address requires a shipping_address object", ErrInvalidPayload)
}

func addressFromMap(m map[string]any) Address {
	name := AsString(m["name"])
	if name == "" {
		name = strings.TrimSpace(AsString(m["first_name"]) + " " + AsString(m["last_name"]))
	}
	return Address{
		Name:     name,
		Address1: AsString(m["address1"]),
		Address2: AsString(m["address2"]),
		Zip:      AsString(m["zip"]),
		City:     AsString(m["city"]),
		Province: AsString(m["province"]),
		Country:  AsString(m["country"]),
		Phone:    AsString(m["phone"]),
	}
}

func editStaffNote(pl map[string]any) string {
	for _, key := range []string{"edit_summary", "summary", "requested_changes"} {
		if s := AsString(pl[key]); s != "" {
			return s
		}
	}
	return ""
}

func firstPresent(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}
