// Package notification delivers out-of-dialog messages, such as an SMS to
// the recipient of a transfer, after an operation completes.
package notification

import (
	"context"
	"log/slog"
	"sync"
)

// Kind identifies the event a message reports.
type Kind string

const (
	KindTransferReceived Kind = "transfer_received"
	KindAirtimePurchased Kind = "airtime_purchased"
	KindBillPaid         Kind = "bill_paid"
)

// Message is addressed to a phone number. Reference ties it to the ledger
// entry it reports.
type Message struct {
	Kind        Kind
	Destination string
	Reference   string
	Body        string
}

// Notifier delivers messages to a downstream channel (SMS gateway, push).
// Delivery is best effort; callers never undo money movement on failure.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes messages to the structured logger in place of an
// SMS gateway.
type LoggerNotifier struct {
	logger *slog.Logger
}

func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

func (n *LoggerNotifier) Send(ctx context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.LogAttrs(ctx, slog.LevelInfo, "notification queued",
		slog.String("kind", string(message.Kind)),
		slog.String("destination_phone", message.Destination),
		slog.String("reference", message.Reference),
		slog.Int("body_length", len(message.Body)),
	)
	return nil
}

// Recorder keeps every message in memory. Tests use it to assert what a
// flow sent.
type Recorder struct {
	mu   sync.Mutex
	sent []Message
}

func (r *Recorder) Send(_ context.Context, message Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, message)
	return nil
}

// Sent returns a copy of the recorded messages.
func (r *Recorder) Sent() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.sent...)
}

// To returns the messages addressed to phone.
func (r *Recorder) To(phone string) []Message {
	var out []Message
	for _, m := range r.Sent() {
		if m.Destination == phone {
			out = append(out, m)
		}
	}
	return out
}
