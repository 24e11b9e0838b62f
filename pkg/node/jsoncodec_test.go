package node

import "testing"

func TestDocStringChecksAliasesInOrder(t *testing.T) {
	doc := map[string]interface{}{"canonical_node_id": "c1", "resolved_node_id": "r1"}
	got := docString(doc, "node_id", "canonical_node_id", "resolved_node_id")
	if got != "c1" {
		t.Fatalf("got %q, want %q", got, "c1")
	}
}

func TestDocIntAcceptsStringOrFloat(t *testing.T) {
	doc := map[string]interface{}{"a": float64(10), "b": "20"}
	if v, ok := docInt(doc, "a"); !ok || v != 10 {
		t.Fatalf("float case: got (%d, %v)", v, ok)
	}
	if v, ok := docInt(doc, "b"); !ok || v != 20 {
		t.Fatalf("string case: got (%d, %v)", v, ok)
	}
}

func TestDecodeDocTruncatesOversizeBody(t *testing.T) {
	body := []byte(`{"a":1,"b":2}`)
	if _, err := decodeDoc(body, 4); err == nil {
		t.Fatal("expected truncated body to fail to parse")
	}
}

func TestEncodeDocRejectsOverBudget(t *testing.T) {
	v := map[string]string{"x": "0123456789"}
	if _, err := encodeDoc(v, 4); err == nil {
		t.Fatal("expected encode to reject an over-budget document")
	}
}

func TestRandomNonceIsEightHexDigits(t *testing.T) {
	n, err := randomNonce()
	if err != nil {
		t.Fatalf("randomNonce: %v", err)
	}
	if len(n) != 8 {
		t.Fatalf("length: got %d, want 8", len(n))
	}
}
