package core

import "testing"

func TestRedactSensitiveMap(t *testing.T) {
	input := map[string]any{
		"event_type":     "user.create",
		"delivery_id":    "d1",
		"signing_secret": "hunter2",
		"signature":      "sha256=deadbeef",
		"nested": map[string]any{
			"api_key": "k",
			"safe":    "value",
		},
	}

	out := RedactSensitiveMap(input)
	if out["event_type"] != "user.create" || out["delivery_id"] != "d1" {
		t.Fatalf("expected traceability keys to pass through, got %#v", out)
	}
	if out["signing_secret"] != RedactedValue {
		t.Fatalf("expected signing_secret to be redacted")
	}
	if out["signature"] != RedactedValue {
		t.Fatalf("expected signature to be redacted")
	}
	nested, ok := out["nested"].(map[string]any)
	if !ok {
		t.Fatalf("expected nested map, got %T", out["nested"])
	}
	if nested["api_key"] != RedactedValue || nested["safe"] != "value" {
		t.Fatalf("expected nested redaction, got %#v", nested)
	}
	if input["signing_secret"] != "hunter2" {
		t.Fatalf("expected input map to be untouched")
	}
}
