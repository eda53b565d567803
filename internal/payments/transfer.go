package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/congo-pay/ussd_gateway/internal/identity"
	"github.com/congo-pay/ussd_gateway/internal/ledger"
	"github.com/congo-pay/ussd_gateway/internal/notification"
	"github.com/congo-pay/ussd_gateway/internal/wallet"
)

// TransferInput captures a confirmed wallet-to-wallet transfer.
type TransferInput struct {
	Reference      string
	SenderID       string
	SenderPhone    string
	RecipientPhone string
	Amount         int64
}

// TransferResult describes a completed transfer.
type TransferResult struct {
	Reference     string
	RecipientName string
	Balance       int64
}

// Transfer moves funds between two registered wallets. The pending entry,
// debit, credit and completion run as one unit: a failure after the debit
// reverses every applied leg and marks the entry failed.
func (s *Service) Transfer(ctx context.Context, in TransferInput) (res TransferResult, err error) {
	started := time.Now()
	defer func() { s.observe("transfer", started, err) }()

	if in.Amount <= 0 {
		return TransferResult{}, ErrInvalidAmount
	}
	senderAccount := wallet.AccountCode(in.SenderID)
	if err := s.requireBalance(ctx, senderAccount, in.Amount); err != nil {
		return TransferResult{}, err
	}

	recipient, err := s.findRecipient(ctx, in.RecipientPhone)
	if err != nil {
		return TransferResult{}, err
	}
	if recipient.ID == in.SenderID {
		return TransferResult{}, ErrRecipientNotFound
	}
	recipientAccount := wallet.AccountCode(recipient.ID)

	if err := s.appendPending(ctx, ledger.Entry{
		Reference:   in.Reference,
		Kind:        ledger.KindTransfer,
		Status:      ledger.StatusPending,
		SenderID:    in.SenderID,
		RecipientID: recipient.ID,
		Target:      recipient.Phone,
		Amount:      in.Amount,
	}); err != nil {
		return TransferResult{}, err
	}

	balance, err := s.debit(ctx, senderAccount, in.Amount)
	if err != nil {
		s.markFailed(ctx, in.Reference)
		return TransferResult{}, err
	}

	wctx, cancel := s.detached(ctx)
	_, err = s.ledger.Credit(wctx, recipientAccount, in.Amount)
	cancel()
	if err != nil {
		s.refund(ctx, in.Reference, senderAccount, in.Amount)
		s.markFailed(ctx, in.Reference)
		return TransferResult{}, fmt.Errorf("%w: credit recipient: %w", ErrLedgerWriteFailed, err)
	}

	wctx, cancel = s.detached(ctx)
	err = s.ledger.UpdateEntryStatus(wctx, in.Reference, ledger.StatusCompleted)
	cancel()
	if err != nil {
		s.reverseCredit(ctx, in.Reference, recipientAccount, in.Amount)
		s.refund(ctx, in.Reference, senderAccount, in.Amount)
		s.markFailed(ctx, in.Reference)
		return TransferResult{}, fmt.Errorf("%w: complete entry: %w", ErrLedgerWriteFailed, err)
	}

	s.notify(ctx, notification.Message{
		Kind:        notification.KindTransferReceived,
		Reference:   in.Reference,
		Destination: recipient.Phone,
		Body: fmt.Sprintf("You have received %s from %s.",
			wallet.FormatAmount(s.currency, in.Amount), in.SenderPhone),
	})

	return TransferResult{Reference: in.Reference, RecipientName: recipient.Name, Balance: balance}, nil
}

func (s *Service) findRecipient(ctx context.Context, phone string) (identity.User, error) {
	cctx, cancel := s.bounded(ctx)
	defer cancel()
	user, err := s.directory.FindByPhone(cctx, phone)
	if errors.Is(err, identity.ErrNotFound) {
		return identity.User{}, ErrRecipientNotFound
	}
	if err != nil {
		return identity.User{}, fmt.Errorf("lookup recipient: %w", err)
	}
	if err := s.ledger.EnsureAccount(cctx, wallet.AccountCode(user.ID)); err != nil {
		return identity.User{}, fmt.Errorf("open recipient account: %w", err)
	}
	return user, nil
}

func (s *Service) appendPending(ctx context.Context, entry ledger.Entry) error {
	cctx, cancel := s.bounded(ctx)
	defer cancel()
	_, err := s.ledger.AppendEntry(cctx, entry)
	if errors.Is(err, ledger.ErrDuplicateEntry) {
		return ErrDuplicateOperation
	}
	if err != nil {
		return fmt.Errorf("append entry: %w", err)
	}
	return nil
}

// reverseCredit takes back a recipient credit. The recipient may have spent
// the funds through another channel; that case is logged for reconciliation.
func (s *Service) reverseCredit(ctx context.Context, reference, account string, amount int64) {
	cctx, cancel := s.detached(ctx)
	defer cancel()
	if _, err := s.ledger.Debit(cctx, account, amount); err != nil {
		s.logger.Error("reverse credit failed",
			"reference", reference,
			"amount", amount,
			"error", err,
			"error_class", "infrastructure",
		)
	}
}
