package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInsufficientFunds occurs when the source account lacks available balance
	// to cover a requested debit.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrDuplicateEntry indicates an entry with the same reference already exists
	// and therefore the operation should be treated as already recorded.
	ErrDuplicateEntry = errors.New("duplicate ledger entry")

	// ErrAccountNotFound is returned for operations on an account that was never opened.
	ErrAccountNotFound = errors.New("ledger account not found")

	// ErrEntryNotFound is returned when a status update names an unknown reference.
	ErrEntryNotFound = errors.New("ledger entry not found")

	// ErrInvalidTransition is returned when an entry is no longer pending.
	ErrInvalidTransition = errors.New("invalid ledger status transition")

	// ErrInvalidAmount is returned for zero or negative amounts.
	ErrInvalidAmount = errors.New("amount must be positive")
)

// Kind classifies a ledger entry.
type Kind string

const (
	KindTransfer    Kind = "transfer"
	KindAirtime     Kind = "airtime"
	KindBillPayment Kind = "bill_payment"
)

// Status is the lifecycle state of an entry.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Entry is an append-only record of a balance-affecting operation. Amounts
// are whole currency units.
type Entry struct {
	Reference   string
	Kind        Kind
	Status      Status
	SenderID    string
	RecipientID string
	Target      string
	Amount      int64
	Metadata    map[string]string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Ledger defines the contract implemented by ledger backends. Debit is an
// atomic conditional update: it never drives a balance below zero.
type Ledger interface {
	EnsureAccount(ctx context.Context, code string) error
	Balance(ctx context.Context, code string) (int64, error)
	Debit(ctx context.Context, code string, amount int64) (int64, error)
	Credit(ctx context.Context, code string, amount int64) (int64, error)
	AppendEntry(ctx context.Context, entry Entry) (Entry, error)
	UpdateEntryStatus(ctx context.Context, reference string, status Status) error
	Entry(ctx context.Context, reference string) (Entry, error)
	Entries(ctx context.Context, ownerID string, limit int) ([]Entry, error)
}

func validTransition(from, to Status) bool {
	return from == StatusPending && (to == StatusCompleted || to == StatusFailed)
}
