package notification

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/congo-pay/ussd_gateway/internal/logging"
)

func TestLoggerNotifierMasksDestination(t *testing.T) {
	var buf bytes.Buffer
	n := NewLoggerNotifier(logging.NewWithWriter(&buf, "info"))

	err := n.Send(context.Background(), Message{
		Kind:        KindTransferReceived,
		Destination: "08031234567",
		Reference:   "ussd-s1-transfer",
		Body:        "You have received NGN 500 from 08051112222.",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "08031234567") {
		t.Fatalf("destination logged in clear: %s", out)
	}
	if !strings.Contains(out, `"reference":"ussd-s1-transfer"`) {
		t.Fatalf("reference missing: %s", out)
	}
}

func TestRecorderFiltersByDestination(t *testing.T) {
	var r Recorder
	ctx := context.Background()
	_ = r.Send(ctx, Message{Kind: KindAirtimePurchased, Destination: "08031234567"})
	_ = r.Send(ctx, Message{Kind: KindBillPaid, Destination: "08051112222"})

	if got := r.To("08051112222"); len(got) != 1 || got[0].Kind != KindBillPaid {
		t.Fatalf("unexpected messages: %+v", got)
	}
	if len(r.Sent()) != 2 {
		t.Fatalf("expected 2 recorded messages, got %d", len(r.Sent()))
	}
}
