package validation

import (
	"encoding/json"
	"testing"

	"go.uber.org/zap"
)

func TestParseProductosValid(t *testing.T) {
	v := New()
	got := ParseProductos(`[{"nombre":"Leche","cantidad":2},{"nombre":"Pan","cantidad":1}]`, v, zap.NewNop())
	if len(got) != 2 {
		t.Fatalf("expected 2 products, got %d", len(got))
	}
	if got[0].Nombre != "Leche" || got[0].Cantidad != 2 {
		t.Fatalf("unexpected first product: %+v", got[0])
	}
}

func TestParseProductosMalformedFallsBackToEmpty(t *testing.T) {
	v := New()
	for _, raw := range []string{"not-json", `{"nombre":"Leche"}`, `[{`} {
		got := ParseProductos(raw, v, zap.NewNop())
		if len(got) != 0 {
			t.Fatalf("expected empty list for %q, got %+v", raw, got)
		}
	}
}

func TestParseProductosEmptyInputs(t *testing.T) {
	v := New()
	if got := ParseProductos("", v, zap.NewNop()); len(got) != 0 {
		t.Fatalf("expected empty list for blank input")
	}
	if got := ParseProductos("[]", v, zap.NewNop()); len(got) != 0 {
		t.Fatalf("expected empty list for []")
	}
}

func TestParseProductosDoubleEncoded(t *testing.T) {
	v := New()
	got := ParseProductos("%5B%7B%22nombre%22%3A%22Leche%22%2C%22cantidad%22%3A2%7D%5D", v, zap.NewNop())
	if len(got) != 1 || got[0].Nombre != "Leche" {
		t.Fatalf("expected double-encoded payload to parse, got %+v", got)
	}
}

func TestParseProductosDropsInvalidItems(t *testing.T) {
	v := New()
	got := ParseProductos(`[{"nombre":"Leche","cantidad":2},{"nombre":"","cantidad":1},{"nombre":"Pan","cantidad":0}]`, v, zap.NewNop())
	if len(got) != 1 || got[0].Nombre != "Leche" {
		t.Fatalf("expected only the valid product, got %+v", got)
	}
}

func TestTimestampAcceptsNumberAndString(t *testing.T) {
	var req ConfirmRequest
	if err := json.Unmarshal([]byte(`{"mainToken":"t","subToken":"s","timestamp":1700000000000}`), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	millis, ok := req.Timestamp.Int64()
	if !ok || millis != 1700000000000 {
		t.Fatalf("expected numeric timestamp, got %d/%v", millis, ok)
	}

	// string timestamps also work (JS clients)
	if err := json.Unmarshal([]byte(`{"timestamp":"1700000000000"}`), &req); err != nil {
		t.Fatalf("unmarshal string timestamp: %v", err)
	}
	if millis, ok := req.Timestamp.Int64(); !ok || millis != 1700000000000 {
		t.Fatalf("expected string timestamp to parse, got %d/%v", millis, ok)
	}

	if err := json.Unmarshal([]byte(`{"timestamp":"abc"}`), &req); err != nil {
		t.Fatalf("unmarshal garbage timestamp: %v", err)
	}
	if _, ok := req.Timestamp.Int64(); ok {
		t.Fatalf("expected garbage timestamp to fail")
	}
	if req.Timestamp.String() != "abc" {
		t.Fatalf("raw value should survive as received, got %q", req.Timestamp.String())
	}
}

func TestTimestampMarshalStaysValidJSON(t *testing.T) {
	for raw, want := range map[string]string{
		`{"timestamp":1700000000000}`:   `1700000000000`,
		`{"timestamp":"1700000000000"}`: `1700000000000`,
		`{"timestamp":"abc"}`:           `"abc"`,
		`{}`:                            `""`,
	} {
		var req ConfirmRequest
		if err := json.Unmarshal([]byte(raw), &req); err != nil {
			t.Fatalf("unmarshal %q: %v", raw, err)
		}
		out, err := json.Marshal(req.Timestamp)
		if err != nil {
			t.Fatalf("marshal timestamp from %q: %v", raw, err)
		}
		if string(out) != want {
			t.Fatalf("marshal of %q = %s, want %s", raw, out, want)
		}
		if !json.Valid(out) {
			t.Fatalf("marshal of %q produced invalid JSON: %s", raw, out)
		}
	}
}
