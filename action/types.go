package action

// Type identifies one of the supported commerce mutations.
type Type string

const (
	TypeUpdateShippingAddress    Type = "update_shipping_address"
	TypeCancelOrder              Type = "cancel_order"
	TypeRefundOrder              Type = "refund_order"
	TypeChangeShippingMethod     Type = "change_shipping_method"
	TypeHoldOrReleaseFulfillment Type = "hold_or_release_fulfillment"
	TypeEditLineItems            Type = "edit_line_items"
	TypeUpdateCustomerContact    Type = "update_customer_contact"
	TypeAddNote                  Type = "add_note"
	TypeAddTag                   Type = "add_tag"
	TypeAddInternalNoteOrTag     Type = "add_internal_note_or_tag"
	TypeResendConfirmation       Type = "resend_confirmation_or_invoice"
)

// All returns every supported action type.
func All() []Type {
	return []Type{
		TypeUpdateShippingAddress,
		TypeCancelOrder,
		TypeRefundOrder,
		TypeChangeShippingMethod,
		TypeHoldOrReleaseFulfillment,
		TypeEditLineItems,
		TypeUpdateCustomerContact,
		TypeAddNote,
		TypeAddTag,
		TypeAddInternalNoteOrTag,
		TypeResendConfirmation,
	}
}

// Proposed is an intended mutation as emitted by the draft-generation step
// (or recovered from a stored free-text proposal). Payload is the raw
// type-specific map; it is never handed to the executor directly, every
// proposal goes through Normalize first.
type Proposed struct {
	Type     Type           `json:"type"`
	OrderRef string         `json:"orderId"`
	Payload  map[string]any `json:"payload,omitempty"`
}

type OpKind string

const (
	OpSetQuantity    OpKind = "set_quantity"
	OpRemoveLineItem OpKind = "remove_line_item"
	OpAddVariant     OpKind = "add_variant"
)

// LineItemOp is one step of an order line-item edit. GID is the fully
// qualified platform identifier (line item for set/remove, product variant
// for add). Quantity is 0 for removals and at least 1 for additions.
type LineItemOp struct {
	Kind     OpKind `json:"type"`
	GID      string `json:"gid"`
	Quantity int    `json:"quantity"`
}

type Address struct {
	Name     string `json:"name,omitempty"`
	Address1 string `json:"address1,omitempty"`
	Address2 string `json:"address2,omitempty"`
	Zip      string `json:"zip,omitempty"`
	City     string `json:"city,omitempty"`
	Province string `json:"province,omitempty"`
	Country  string `json:"country,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// Empty reports whether no field of the address is set.
func (a Address) Empty() bool {
	return a == Address{}
}
