package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/congo-pay/ussd_gateway/internal/ledger"
	"github.com/congo-pay/ussd_gateway/internal/notification"
	"github.com/congo-pay/ussd_gateway/internal/telco"
	"github.com/congo-pay/ussd_gateway/internal/wallet"
)

// AirtimeInput captures a confirmed airtime purchase.
type AirtimeInput struct {
	Reference  string
	OwnerID    string
	OwnerPhone string
	Phone      string
	// Provider is the network the dialog arrived on, used when the target
	// number's prefix is not recognised.
	Provider telco.Provider
	Amount   int64
}

// AirtimeResult describes a completed purchase.
type AirtimeResult struct {
	Reference string
	Network   telco.Provider
	Balance   int64
}

// Airtime debits the buyer and tops up the target phone through the vendor
// registered for its network. Carrier settlement happens outside the ledger.
func (s *Service) Airtime(ctx context.Context, in AirtimeInput) (res AirtimeResult, err error) {
	started := time.Now()
	defer func() { s.observe("airtime", started, err) }()

	if in.Amount <= 0 {
		return AirtimeResult{}, ErrInvalidAmount
	}
	network, ok := telco.Detect(in.Phone)
	if !ok {
		network = in.Provider
	}
	vendor, ok := s.vendors[network]
	if !ok {
		return AirtimeResult{}, ErrUnsupportedProvider
	}
	if err := s.ensureNew(ctx, in.Reference); err != nil {
		return AirtimeResult{}, err
	}

	account := wallet.AccountCode(in.OwnerID)
	if err := s.requireBalance(ctx, account, in.Amount); err != nil {
		return AirtimeResult{}, err
	}
	balance, err := s.debit(ctx, account, in.Amount)
	if err != nil {
		return AirtimeResult{}, err
	}

	vctx, cancel := s.detached(ctx)
	receipt, err := vendor.TopUp(vctx, TopUpRequest{
		Reference: in.Reference,
		Phone:     in.Phone,
		Network:   network,
		Amount:    in.Amount,
	})
	cancel()
	if err != nil {
		s.refund(ctx, in.Reference, account, in.Amount)
		return AirtimeResult{}, fmt.Errorf("%w: %w", ErrVendorFailed, err)
	}

	if err := s.appendCompleted(ctx, ledger.Entry{
		Reference: in.Reference,
		Kind:      ledger.KindAirtime,
		SenderID:  in.OwnerID,
		Target:    in.Phone,
		Amount:    in.Amount,
		Metadata: map[string]string{
			"network":          network.String(),
			"vendor_reference": receipt.Reference,
		},
	}); err != nil {
		s.refund(ctx, in.Reference, account, in.Amount)
		return AirtimeResult{}, err
	}

	s.notify(ctx, notification.Message{
		Kind:        notification.KindAirtimePurchased,
		Reference:   in.Reference,
		Destination: in.OwnerPhone,
		Body: fmt.Sprintf("%s %s airtime sent to %s.",
			wallet.FormatAmount(s.currency, in.Amount), network.Label(), in.Phone),
	})
	return AirtimeResult{Reference: in.Reference, Network: network, Balance: balance}, nil
}

// appendCompleted records an entry for an operation whose debit has already
// been applied.
func (s *Service) appendCompleted(ctx context.Context, entry ledger.Entry) error {
	entry.Status = ledger.StatusCompleted
	cctx, cancel := s.detached(ctx)
	defer cancel()
	_, err := s.ledger.AppendEntry(cctx, entry)
	if errors.Is(err, ledger.ErrDuplicateEntry) {
		return ErrDuplicateOperation
	}
	if err != nil {
		return fmt.Errorf("%w: append entry: %w", ErrLedgerWriteFailed, err)
	}
	return nil
}
