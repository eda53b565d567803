package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/congo-pay/ussd_gateway/internal/ledger"
)

// Service exposes balance views over the ledger, keyed by identity.
type Service struct {
	ledger ledger.Ledger
}

// NewService builds a wallet service instance.
func NewService(ledger ledger.Ledger) *Service {
	return &Service{ledger: ledger}
}

// Open provisions the ledger account for a newly registered identity.
func (s *Service) Open(ctx context.Context, ownerID string) error {
	return s.ledger.EnsureAccount(ctx, AccountCode(ownerID))
}

// Balance returns the ledger balance for the owner. An identity whose
// account was never opened gets it opened with a zero balance.
func (s *Service) Balance(ctx context.Context, ownerID string) (Balance, error) {
	amount, err := s.ledger.Balance(ctx, AccountCode(ownerID))
	if errors.Is(err, ledger.ErrAccountNotFound) {
		if err = s.Open(ctx, ownerID); err == nil {
			amount, err = s.ledger.Balance(ctx, AccountCode(ownerID))
		}
	}
	if err != nil {
		return Balance{}, err
	}
	return Balance{OwnerID: ownerID, Amount: amount, AsOf: time.Now().UTC()}, nil
}

// History returns the owner's most recent ledger entries, newest first.
func (s *Service) History(ctx context.Context, ownerID string, limit int) ([]ledger.Entry, error) {
	return s.ledger.Entries(ctx, ownerID, limit)
}
