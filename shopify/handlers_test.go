package shopify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/replyloop/replyloop/action"
	"github.com/replyloop/replyloop/credentials"
)

const apiPrefix = "/admin/api/" + DefaultAPIVersion

func testClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClient(credentials.Shop{Domain: "test.myshopify.com", AccessToken: "shpat_test"}, "", 0, discardLogger())
	c.BaseURL = srv.URL
	return c
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		t.Fatalf("decode request body: %v", err)
	}
	return m
}

func TestExecute_SendsAccessToken(t *testing.T) {
	var gotToken string
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Shopify-Access-Token")
		w.Write([]byte("{}"))
	}))
	err := Execute(context.Background(), c, action.TypeAddNote, 1001, action.NotePayload{Note: "hi"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if gotToken != "shpat_test" {
		t.Fatalf("token header = %q", gotToken)
	}
}

func TestRefundOrder_BodyShape(t *testing.T) {
	var (
		gotPath string
		gotBody map[string]any
	)
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotBody = decodeBody(t, r)
		w.Write([]byte("{}"))
	}))

	amt := 49.5
	err := Execute(context.Background(), c, action.TypeRefundOrder, 1001, action.RefundPayload{
		Amount: &amt, Currency: "DKK", Reason: "damaged item",
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if gotPath != apiPrefix+"/orders/1001/refunds.json" {
		t.Fatalf("path = %q", gotPath)
	}

	refund, _ := gotBody["refund"].(map[string]any)
	if refund == nil {
		t.Fatalf("body = %v", gotBody)
	}
	if refund["currency"] != "DKK" || refund["note"] != "damaged item" {
		t.Fatalf("refund = %v", refund)
	}
	txs, _ := refund["transactions"].([]any)
	if len(txs) != 1 {
		t.Fatalf("transactions = %v", refund["transactions"])
	}
	tx := txs[0].(map[string]any)
	if tx["kind"] != "refund" || tx["amount"] != "49.50" || tx["currency"] != "DKK" {
		t.Fatalf("transaction = %v", tx)
	}
}

func TestRefundOrder_NoAmountNoTransactions(t *testing.T) {
	var gotBody map[string]any
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody = decodeBody(t, r)
		w.Write([]byte("{}"))
	}))
	if err := Execute(context.Background(), c, action.TypeRefundOrder, 1001, action.RefundPayload{}); err != nil {
		t.Fatal(err)
	}
	refund := gotBody["refund"].(map[string]any)
	if _, present := refund["transactions"]; present {
		t.Fatalf("calculated refunds must not carry transactions: %v", refund)
	}
}

func TestCancelOrder(t *testing.T) {
	var (
		gotPath   string
		gotMethod string
		gotBody   map[string]any
	)
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.Path, r.Method
		gotBody = decodeBody(t, r)
		w.Write([]byte("{}"))
	}))
	err := Execute(context.Background(), c, action.TypeCancelOrder, 1001, action.CancelPayload{Reason: "customer", Refund: true})
	if err != nil {
		t.Fatal(err)
	}
	if gotMethod != http.MethodPost || gotPath != apiPrefix+"/orders/1001/cancel.json" {
		t.Fatalf("%s %s", gotMethod, gotPath)
	}
	if gotBody["reason"] != "customer" || gotBody["refund"] != true {
		t.Fatalf("body = %v", gotBody)
	}
	if _, present := gotBody["restock"]; present {
		t.Fatalf("unset flags must be omitted: %v", gotBody)
	}
}

// Two sequential add_tag actions against the same order must both land:
// the handler re-reads the tag list on every call, so the second call sees
// the first tag.
func TestAddTag_SequentialTagsAccumulate(t *testing.T) {
	var (
		mu   sync.Mutex
		tags = "wholesale"
	)
	mux := http.NewServeMux()
	mux.HandleFunc(apiPrefix+"/orders/1001.json", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(map[string]any{"order": map[string]any{"id": 1001, "tags": tags}})
		case http.MethodPut:
			body := decodeBody(t, r)
			tags = body["order"].(map[string]any)["tags"].(string)
			w.Write([]byte("{}"))
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	c := testClient(t, mux)

	ctx := context.Background()
	if err := Execute(ctx, c, action.TypeAddTag, 1001, action.TagPayload{Tag: "vip"}); err != nil {
		t.Fatal(err)
	}
	if err := Execute(ctx, c, action.TypeAddTag, 1001, action.TagPayload{Tag: "priority"}); err != nil {
		t.Fatal(err)
	}
	if tags != "wholesale, vip, priority" {
		t.Fatalf("tags = %q", tags)
	}
}

func TestAddTag_DedupeCaseInsensitive(t *testing.T) {
	var putCount int
	mux := http.NewServeMux()
	mux.HandleFunc(apiPrefix+"/orders/1001.json", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			putCount++
		}
		json.NewEncoder(w).Encode(map[string]any{"order": map[string]any{"id": 1001, "tags": "VIP"}})
	})
	c := testClient(t, mux)

	if err := Execute(context.Background(), c, action.TypeAddTag, 1001, action.TagPayload{Tag: "vip"}); err != nil {
		t.Fatal(err)
	}
	if putCount != 0 {
		t.Fatalf("existing tag must not trigger a write, got %d PUTs", putCount)
	}
}

func TestHoldFulfillment_FindsActiveFulfillmentOrder(t *testing.T) {
	var holdPath string
	mux := http.NewServeMux()
	mux.HandleFunc(apiPrefix+"/orders/1001/fulfillment_orders.json", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"fulfillment_orders": []any{
			map[string]any{"id": 5, "status": "closed"},
			map[string]any{"id": 6, "status": "open"},
		}})
	})
	mux.HandleFunc(apiPrefix+"/fulfillment_orders/6/hold.json", func(w http.ResponseWriter, r *http.Request) {
		holdPath = r.URL.Path
		w.Write([]byte("{}"))
	})
	c := testClient(t, mux)

	err := Execute(context.Background(), c, action.TypeHoldOrReleaseFulfillment, 1001, action.FulfillmentHoldPayload{Mode: "hold"})
	if err != nil {
		t.Fatal(err)
	}
	if holdPath == "" {
		t.Fatal("hold endpoint was not called")
	}
}

func TestReleaseFulfillment_PicksHeldOrder(t *testing.T) {
	var released bool
	mux := http.NewServeMux()
	mux.HandleFunc(apiPrefix+"/orders/1001/fulfillment_orders.json", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"fulfillment_orders": []any{
			map[string]any{"id": 5, "status": "open"},
			map[string]any{"id": 7, "status": "on_hold"},
		}})
	})
	mux.HandleFunc(apiPrefix+"/fulfillment_orders/7/release_hold.json", func(w http.ResponseWriter, r *http.Request) {
		released = true
		w.Write([]byte("{}"))
	})
	c := testClient(t, mux)

	err := Execute(context.Background(), c, action.TypeHoldOrReleaseFulfillment, 1001, action.FulfillmentHoldPayload{Mode: "release"})
	if err != nil {
		t.Fatal(err)
	}
	if !released {
		t.Fatal("release endpoint was not called")
	}
}

func TestResendConfirmation(t *testing.T) {
	var gotBody map[string]any
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != apiPrefix+"/orders/1001/send_invoice.json" {
			t.Errorf("path = %q", r.URL.Path)
		}
		gotBody = decodeBody(t, r)
		w.Write([]byte("{}"))
	}))
	err := Execute(context.Background(), c, action.TypeResendConfirmation, 1001, action.ResendInvoicePayload{To: "a@b.dk"})
	if err != nil {
		t.Fatal(err)
	}
	inv := gotBody["order_invoice"].(map[string]any)
	if inv["to"] != "a@b.dk" {
		t.Fatalf("invoice = %v", inv)
	}
}

func TestExecute_HTTPErrorMessageExtracted(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"errors":{"reason":["is invalid"]}}`))
	}))
	err := Execute(context.Background(), c, action.TypeCancelOrder, 1001, action.CancelPayload{Reason: "nope"})
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if httpErr.Status != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", httpErr.Status)
	}
	want := fmt.Sprintf("platform responded with status %d: reason: is invalid", http.StatusUnprocessableEntity)
	if httpErr.Error() != want {
		t.Fatalf("error = %q, want %q", httpErr.Error(), want)
	}
}

func TestExecute_UnknownType(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}))
	if err := Execute(context.Background(), c, action.Type("bogus"), 1, nil); err == nil {
		t.Fatal("expected an error for an unregistered type")
	}
}

func TestSupported_CoversAllActionTypes(t *testing.T) {
	for _, at := range action.All() {
		if !Supported(at) {
			t.Errorf("no executor handler for %q", at)
		}
	}
}
