package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/congo-pay/ussd_gateway/internal/ledger"
	"github.com/congo-pay/ussd_gateway/internal/notification"
	"github.com/congo-pay/ussd_gateway/internal/wallet"
)

// BillInput captures a confirmed bill payment.
type BillInput struct {
	Reference  string
	OwnerID    string
	OwnerPhone string
	BillType   BillType
	MeterID    string
	Amount     int64
}

// BillResult describes a settled bill.
type BillResult struct {
	Reference string
	Balance   int64
}

// PayBill debits the payer, settles with the biller and records the bill
// type and meter id on the entry.
func (s *Service) PayBill(ctx context.Context, in BillInput) (res BillResult, err error) {
	started := time.Now()
	defer func() { s.observe("bill_payment", started, err) }()

	if in.Amount <= 0 {
		return BillResult{}, ErrInvalidAmount
	}
	if err := s.ensureNew(ctx, in.Reference); err != nil {
		return BillResult{}, err
	}

	account := wallet.AccountCode(in.OwnerID)
	if err := s.requireBalance(ctx, account, in.Amount); err != nil {
		return BillResult{}, err
	}
	balance, err := s.debit(ctx, account, in.Amount)
	if err != nil {
		return BillResult{}, err
	}

	bctx, cancel := s.detached(ctx)
	receipt, err := s.biller.Pay(bctx, BillRequest{
		Reference: in.Reference,
		BillType:  in.BillType,
		MeterID:   in.MeterID,
		Amount:    in.Amount,
	})
	cancel()
	if err != nil {
		s.refund(ctx, in.Reference, account, in.Amount)
		return BillResult{}, fmt.Errorf("%w: %w", ErrVendorFailed, err)
	}

	if err := s.appendCompleted(ctx, ledger.Entry{
		Reference: in.Reference,
		Kind:      ledger.KindBillPayment,
		SenderID:  in.OwnerID,
		Target:    in.MeterID,
		Amount:    in.Amount,
		Metadata: map[string]string{
			"bill_type":        string(in.BillType),
			"meter_id":         in.MeterID,
			"biller_reference": receipt.Reference,
		},
	}); err != nil {
		s.refund(ctx, in.Reference, account, in.Amount)
		return BillResult{}, err
	}

	s.notify(ctx, notification.Message{
		Kind:        notification.KindBillPaid,
		Reference:   in.Reference,
		Destination: in.OwnerPhone,
		Body: fmt.Sprintf("%s bill of %s paid for %s.",
			in.BillType.Label(), wallet.FormatAmount(s.currency, in.Amount), in.MeterID),
	})
	return BillResult{Reference: in.Reference, Balance: balance}, nil
}
