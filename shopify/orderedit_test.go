package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/replyloop/replyloop/action"
)

type gqlCall struct {
	Query     string
	Variables map[string]any
}

func (c gqlCall) mutation() string {
	for _, name := range []string{"orderEditBegin", "orderEditAddVariant", "orderEditSetQuantity", "orderEditCommit"} {
		if strings.Contains(c.Query, "mutation "+name) {
			return name
		}
	}
	return ""
}

func gqlServer(t *testing.T, respond func(call gqlCall) string) (*Client, *[]gqlCall) {
	t.Helper()
	var calls []gqlCall
	mux := http.NewServeMux()
	mux.HandleFunc(apiPrefix+"/graphql.json", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode graphql body: %v", err)
		}
		call := gqlCall{Query: body.Query, Variables: body.Variables}
		calls = append(calls, call)
		w.Write([]byte(respond(call)))
	})
	return testClient(t, mux), &calls
}

func okResponses(call gqlCall) string {
	switch call.mutation() {
	case "orderEditBegin":
		return `{"data":{"orderEditBegin":{"calculatedOrder":{"id":"gid://shopify/CalculatedOrder/77"},"userErrors":[]}}}`
	case "orderEditCommit":
		return `{"data":{"orderEditCommit":{"order":{"id":"gid://shopify/Order/1001"},"userErrors":[]}}}`
	case "orderEditAddVariant":
		return `{"data":{"orderEditAddVariant":{"calculatedOrder":{"id":"gid://shopify/CalculatedOrder/77"},"userErrors":[]}}}`
	default:
		return `{"data":{"orderEditSetQuantity":{"calculatedOrder":{"id":"gid://shopify/CalculatedOrder/77"},"userErrors":[]}}}`
	}
}

func TestEditLineItems_ThreePhase(t *testing.T) {
	c, calls := gqlServer(t, okResponses)

	err := EditLineItems(context.Background(), c, 1001, action.LineItemEditPayload{
		Ops: []action.LineItemOp{
			{Kind: action.OpAddVariant, GID: "gid://shopify/ProductVariant/123", Quantity: 2},
			{Kind: action.OpSetQuantity, GID: "gid://shopify/LineItem/9", Quantity: 0},
		},
		StaffNote: "swap requested by customer",
	})
	if err != nil {
		t.Fatal(err)
	}

	got := make([]string, len(*calls))
	for i, call := range *calls {
		got[i] = call.mutation()
	}
	want := []string{"orderEditBegin", "orderEditAddVariant", "orderEditSetQuantity", "orderEditCommit"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("mutations = %v, want %v", got, want)
	}

	begin := (*calls)[0]
	if begin.Variables["id"] != "gid://shopify/Order/1001" {
		t.Fatalf("begin variables = %v", begin.Variables)
	}
	add := (*calls)[1]
	if add.Variables["id"] != "gid://shopify/CalculatedOrder/77" || add.Variables["variantId"] != "gid://shopify/ProductVariant/123" {
		t.Fatalf("add variables = %v", add.Variables)
	}
	setQty := (*calls)[2]
	if setQty.Variables["lineItemId"] != "gid://shopify/LineItem/9" || setQty.Variables["quantity"] != float64(0) {
		t.Fatalf("set variables = %v", setQty.Variables)
	}
	commit := (*calls)[3]
	if commit.Variables["notifyCustomer"] != false || commit.Variables["staffNote"] != "swap requested by customer" {
		t.Fatalf("commit variables = %v", commit.Variables)
	}
}

// A remove operation travels as a set-quantity-to-zero mutation.
func TestEditLineItems_RemoveUsesSetQuantity(t *testing.T) {
	c, calls := gqlServer(t, okResponses)

	err := EditLineItems(context.Background(), c, 1001, action.LineItemEditPayload{
		Ops: []action.LineItemOp{{Kind: action.OpRemoveLineItem, GID: "gid://shopify/LineItem/9"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if (*calls)[1].mutation() != "orderEditSetQuantity" {
		t.Fatalf("mutation = %q", (*calls)[1].mutation())
	}
	if (*calls)[1].Variables["quantity"] != float64(0) {
		t.Fatalf("variables = %v", (*calls)[1].Variables)
	}
}

func TestEditLineItems_UserErrorAbortsBeforeCommit(t *testing.T) {
	c, calls := gqlServer(t, func(call gqlCall) string {
		if call.mutation() == "orderEditAddVariant" {
			return `{"data":{"orderEditAddVariant":{"calculatedOrder":null,"userErrors":[{"field":"variantId","message":"Variant not found"}]}}}`
		}
		return okResponses(call)
	})

	err := EditLineItems(context.Background(), c, 1001, action.LineItemEditPayload{
		Ops: []action.LineItemOp{{Kind: action.OpAddVariant, GID: "gid://shopify/ProductVariant/404", Quantity: 1}},
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "Variant not found") {
		t.Fatalf("error = %v", err)
	}
	for _, call := range *calls {
		if call.mutation() == "orderEditCommit" {
			t.Fatal("commit must not run after a failed operation")
		}
	}
}

func TestEditLineItems_BeginUserError(t *testing.T) {
	c, calls := gqlServer(t, func(call gqlCall) string {
		return `{"data":{"orderEditBegin":{"calculatedOrder":null,"userErrors":[{"field":"id","message":"Order is archived"}]}}}`
	})
	err := EditLineItems(context.Background(), c, 1001, action.LineItemEditPayload{
		Ops: []action.LineItemOp{{Kind: action.OpAddVariant, GID: "gid://shopify/ProductVariant/1", Quantity: 1}},
	})
	if err == nil || !strings.Contains(err.Error(), "Order is archived") {
		t.Fatalf("error = %v", err)
	}
	if len(*calls) != 1 {
		t.Fatalf("%d calls, want 1", len(*calls))
	}
}

func TestEditLineItems_NoOps(t *testing.T) {
	c, _ := gqlServer(t, okResponses)
	err := EditLineItems(context.Background(), c, 1001, action.LineItemEditPayload{})
	if err == nil {
		t.Fatal("expected an error for an empty operation list")
	}
}

func TestGraphQL_TopLevelErrors(t *testing.T) {
	c, _ := gqlServer(t, func(call gqlCall) string {
		return `{"errors":[{"message":"Throttled"}]}`
	})
	_, err := c.GraphQL(context.Background(), orderEditBeginQuery, map[string]any{"id": "x"})
	if err == nil || !strings.Contains(err.Error(), "Throttled") {
		t.Fatalf("error = %v", err)
	}
}
