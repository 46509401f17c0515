package shopify

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/replyloop/replyloop/action"
)

// OrderRef is a resolved order identity.
type OrderRef struct {
	ID     int64
	Number string
	Name   string
}

type orderJSON struct {
	ID          int64  `json:"id"`
	OrderNumber int64  `json:"order_number"`
	Name        string `json:"name"`
}

func (o orderJSON) ref() OrderRef {
	return OrderRef{ID: o.ID, Number: fmt.Sprintf("%d", o.OrderNumber), Name: o.Name}
}

// LookupOrder resolves a loose order reference against the live platform:
// a numeric value is tried as the platform order id first, then the
// reference is searched as an order name. Used on the decision path, where
// no precomputed order map is available.
func (c *Client) LookupOrder(ctx context.Context, ref string) (OrderRef, error) {
	ref = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(ref), "#"))
	if ref == "" {
		return OrderRef{}, fmt.Errorf("%w: empty order reference", ErrNotFound)
	}

	if n, ok := action.AsInt64(ref); ok && n > 0 {
		var resp struct {
			Order orderJSON `json:"order"`
		}
		err := c.getJSON(ctx, fmt.Sprintf("/orders/%d.json", n), &resp)
		if err == nil && resp.Order.ID != 0 {
			return resp.Order.ref(), nil
		}
		var httpErr *HTTPError
		if err != nil && !(errors.As(err, &httpErr) && httpErr.Status == 404) {
			return OrderRef{}, err
		}
		// Fall through: the number may be an order number, not a platform id.
	}

	var resp struct {
		Orders []orderJSON `json:"orders"`
	}
	q := url.Values{}
	q.Set("name", "#"+ref)
	q.Set("status", "any")
	if err := c.getJSON(ctx, "/orders.json?"+q.Encode(), &resp); err != nil {
		return OrderRef{}, err
	}
	for _, o := range resp.Orders {
		if strings.TrimPrefix(o.Name, "#") == ref || fmt.Sprintf("%d", o.OrderNumber) == ref {
			return o.ref(), nil
		}
	}
	if len(resp.Orders) == 1 {
		return resp.Orders[0].ref(), nil
	}
	return OrderRef{}, fmt.Errorf("%w: no order matches %q", ErrNotFound, ref)
}
