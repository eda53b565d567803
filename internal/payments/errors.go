package payments

import (
	"context"
	"errors"
)

var (
	// ErrInsufficientBalance is returned when the payer cannot cover the amount.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrRecipientNotFound is returned when a transfer names an unregistered phone.
	ErrRecipientNotFound = errors.New("recipient not found")
	// ErrUnsupportedProvider is returned when no airtime vendor serves the target network.
	ErrUnsupportedProvider = errors.New("unsupported provider")
	// ErrLedgerWriteFailed is returned when a balance or ledger write fails after
	// money started moving. Any applied debit has been reversed.
	ErrLedgerWriteFailed = errors.New("ledger write failed")
	// ErrDuplicateOperation is returned when the operation reference is already recorded.
	ErrDuplicateOperation = errors.New("operation already recorded")
	// ErrVendorFailed is returned when an airtime vendor or biller rejects the request.
	ErrVendorFailed = errors.New("vendor rejected operation")
	// ErrInvalidAmount is returned for zero or negative amounts.
	ErrInvalidAmount = errors.New("amount must be positive")
)

// IsInfrastructure reports whether err came from an unreachable or slow
// dependency rather than a business rule.
func IsInfrastructure(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	for _, known := range []error{
		ErrInsufficientBalance,
		ErrRecipientNotFound,
		ErrUnsupportedProvider,
		ErrDuplicateOperation,
		ErrVendorFailed,
		ErrInvalidAmount,
	} {
		if errors.Is(err, known) {
			return false
		}
	}
	return true
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrRecipientNotFound):
		return "recipient_not_found"
	case errors.Is(err, ErrUnsupportedProvider):
		return "unsupported_provider"
	case errors.Is(err, ErrDuplicateOperation):
		return "duplicate"
	case errors.Is(err, ErrVendorFailed):
		return "vendor_failed"
	case errors.Is(err, ErrLedgerWriteFailed):
		return "rolled_back"
	default:
		return "error"
	}
}
