// Package policy decides, per action type, whether a merchant allows
// autonomous execution or requires human approval.
package policy

import (
	"fmt"

	"github.com/replyloop/replyloop/action"
)

// Automation holds the per-merchant automation toggles. Loaded fresh for
// every batch; mutated only through merchant-facing settings.
type Automation struct {
	OrderUpdates        bool `json:"order_updates" yaml:"order_updates" mapstructure:"order_updates"`
	CancelOrders        bool `json:"cancel_orders" yaml:"cancel_orders" mapstructure:"cancel_orders"`
	AutomaticRefunds    bool `json:"automatic_refunds" yaml:"automatic_refunds" mapstructure:"automatic_refunds"`
	HistoricInboxAccess bool `json:"historic_inbox_access" yaml:"historic_inbox_access" mapstructure:"historic_inbox_access"`
}

type Verdict struct {
	Allowed bool
	Reason  string
}

// gates is the fixed action-type to toggle table. Types absent here carry
// no gate and are always allowed.
var gates = map[action.Type]string{
	action.TypeUpdateShippingAddress:    "order_updates",
	action.TypeChangeShippingMethod:     "order_updates",
	action.TypeHoldOrReleaseFulfillment: "order_updates",
	action.TypeEditLineItems:            "order_updates",
	action.TypeUpdateCustomerContact:    "order_updates",
	action.TypeResendConfirmation:       "order_updates",
	action.TypeAddNote:                  "order_updates",
	action.TypeAddTag:                   "order_updates",
	action.TypeAddInternalNoteOrTag:     "order_updates",
	action.TypeCancelOrder:              "cancel_orders",
	action.TypeRefundOrder:              "automatic_refunds",
}

// Evaluate reports whether the merchant allows t to run without approval.
func Evaluate(t action.Type, a Automation) Verdict {
	gate, ok := gates[t]
	if !ok {
		return Verdict{Allowed: true}
	}

	var enabled bool
	switch gate {
	case "order_updates":
		enabled = a.OrderUpdates
	case "cancel_orders":
		enabled = a.CancelOrders
	case "automatic_refunds":
		enabled = a.AutomaticRefunds
	}
	if enabled {
		return Verdict{Allowed: true}
	}
	return Verdict{
		Allowed: false,
		Reason:  fmt.Sprintf("automation toggle %q is disabled", gate),
	}
}
