package logging

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestRedactingHandlerMasksSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "debug")

	logger.Info("pin check", "pin", "1234", "phone", "08031234567", "stage", "login")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if rec["pin"] != redacted {
		t.Fatalf("expected pin redacted, got %v", rec["pin"])
	}
	if rec["phone"] != "0803*****67" {
		t.Fatalf("expected masked phone, got %v", rec["phone"])
	}
	if rec["stage"] != "login" {
		t.Fatalf("expected stage untouched, got %v", rec["stage"])
	}
}

func TestMaskPhoneShortValues(t *testing.T) {
	if got := MaskPhone("1234"); got != "****" {
		t.Fatalf("expected fully masked, got %s", got)
	}
}
