package ledger

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/replyloop/replyloop/action"
)

func TestKey_Shape(t *testing.T) {
	key := Key(action.TypeAddTag, " #1001 ", map[string]any{"tag": "vip"})
	if !strings.HasPrefix(key, "add_tag::#1001::") {
		t.Fatalf("key = %q", key)
	}
}

func TestKey_InsensitiveToPayloadKeyOrder(t *testing.T) {
	// Decode the same object from two differently ordered documents; the
	// derived key must be byte-identical.
	var a, b map[string]any
	if err := json.Unmarshal([]byte(`{"reason":"customer","refund":true,"restock":false}`), &a); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(`{"restock":false,"refund":true,"reason":"customer"}`), &b); err != nil {
		t.Fatal(err)
	}
	ka := Key(action.TypeCancelOrder, "1001", a)
	kb := Key(action.TypeCancelOrder, "1001", b)
	if ka != kb {
		t.Fatalf("keys differ:\n%s\n%s", ka, kb)
	}
}

func TestKey_NestedObjectsCanonicalized(t *testing.T) {
	a := map[string]any{"address": map[string]any{"zip": "1620", "city": "København"}}
	b := map[string]any{"address": map[string]any{"city": "København", "zip": "1620"}}
	if Key(action.TypeUpdateShippingAddress, "7", a) != Key(action.TypeUpdateShippingAddress, "7", b) {
		t.Fatal("nested key order must not affect the key")
	}
}

func TestKey_ArrayOrderPreserved(t *testing.T) {
	a := map[string]any{"operations": []any{"x", "y"}}
	b := map[string]any{"operations": []any{"y", "x"}}
	if Key(action.TypeEditLineItems, "7", a) == Key(action.TypeEditLineItems, "7", b) {
		t.Fatal("array element order is significant and must change the key")
	}
}

func TestKey_TypeLowercasedRefTrimmed(t *testing.T) {
	if Key("Cancel_Order", "  1001 ", nil) != Key(action.TypeCancelOrder, "1001", nil) {
		t.Fatal("type case and ref whitespace must not affect the key")
	}
}

func TestKey_DistinctPayloadsDistinctKeys(t *testing.T) {
	a := Key(action.TypeAddTag, "1001", map[string]any{"tag": "vip"})
	b := Key(action.TypeAddTag, "1001", map[string]any{"tag": "fraud"})
	if a == b {
		t.Fatal("different payloads must produce different keys")
	}
}
