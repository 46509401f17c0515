package action

// Payload is the canonical, typed form of one proposal's payload. The
// normalizer produces exactly one of the concrete types below; the executor
// never sees the raw map.
type Payload interface {
	actionPayload()
}

type ShippingAddressPayload struct {
	Address Address
}

type CancelPayload struct {
	Reason  string
	Email   bool
	Refund  bool
	Restock bool
}

type RefundPayload struct {
	Amount   *float64
	Currency string
	Reason   string
	Note     string
}

type ShippingMethodPayload struct {
	Title string
	Price float64
}

type FulfillmentHoldPayload struct {
	Mode               string // "hold" or "release"
	FulfillmentOrderID int64  // 0 = resolve from the order's fulfillment orders
}

type LineItemEditPayload struct {
	Ops       []LineItemOp
	StaffNote string
}

type CustomerContactPayload struct {
	Email string
	Phone string
}

type NotePayload struct {
	Note string
}

type TagPayload struct {
	Tag string
}

type InternalNoteOrTagPayload struct {
	Tag  string
	Note string
}

type ResendInvoicePayload struct {
	To      string
	Message string
}

func (ShippingAddressPayload) actionPayload()   {}
func (CancelPayload) actionPayload()            {}
func (RefundPayload) actionPayload()            {}
func (ShippingMethodPayload) actionPayload()    {}
func (FulfillmentHoldPayload) actionPayload()   {}
func (LineItemEditPayload) actionPayload()      {}
func (CustomerContactPayload) actionPayload()   {}
func (NotePayload) actionPayload()              {}
func (TagPayload) actionPayload()               {}
func (InternalNoteOrTagPayload) actionPayload() {}
func (ResendInvoicePayload) actionPayload()     {}
