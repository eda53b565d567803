// Package payments executes the financial operations a USSD dialog can
// confirm: wallet transfers, airtime purchases and bill payments.
package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/congo-pay/ussd_gateway/internal/identity"
	"github.com/congo-pay/ussd_gateway/internal/ledger"
	"github.com/congo-pay/ussd_gateway/internal/logging"
	"github.com/congo-pay/ussd_gateway/internal/metrics"
	"github.com/congo-pay/ussd_gateway/internal/notification"
	"github.com/congo-pay/ussd_gateway/internal/telco"
)

const defaultOperationTimeout = 5 * time.Second

// Directory resolves phone numbers to registered identities.
type Directory interface {
	FindByPhone(ctx context.Context, phone string) (identity.User, error)
}

// Dependencies bundles the collaborators of the payment service. Ledger and
// Directory are required.
type Dependencies struct {
	Ledger    ledger.Ledger
	Directory Directory
	Vendors   map[telco.Provider]AirtimeVendor
	Biller    Biller
	Notifier  notification.Notifier
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	Currency  string
	// Timeout bounds every call to the ledger, directory and vendors.
	Timeout time.Duration
}

// Service applies balance mutations and ledger postings.
type Service struct {
	ledger    ledger.Ledger
	directory Directory
	vendors   map[telco.Provider]AirtimeVendor
	biller    Biller
	notifier  notification.Notifier
	metrics   *metrics.Metrics
	logger    *slog.Logger
	currency  string
	timeout   time.Duration
}

// NewService constructs a payment service.
func NewService(deps Dependencies) *Service {
	s := &Service{
		ledger:    deps.Ledger,
		directory: deps.Directory,
		vendors:   deps.Vendors,
		biller:    deps.Biller,
		notifier:  deps.Notifier,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		currency:  deps.Currency,
		timeout:   deps.Timeout,
	}
	if s.vendors == nil {
		s.vendors = map[telco.Provider]AirtimeVendor{}
	}
	if s.biller == nil {
		s.biller = StaticBiller{}
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	if s.currency == "" {
		s.currency = "NGN"
	}
	if s.timeout <= 0 {
		s.timeout = defaultOperationTimeout
	}
	return s
}

// Reference derives the ledger reference for a confirmed operation. A
// session confirms each flow at most once, so replays collide on it.
func Reference(sessionID, flow string) string {
	return fmt.Sprintf("ussd-%s-%s", sessionID, flow)
}

// SupportsNetwork reports whether an airtime vendor is registered for p.
func (s *Service) SupportsNetwork(p telco.Provider) bool {
	_, ok := s.vendors[p]
	return ok
}

func (s *Service) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// detached returns a bounded context that survives cancellation of ctx. Once
// a debit has been applied the remaining steps must reach a terminal state.
func (s *Service) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
}

// ensureNew fails with ErrDuplicateOperation when reference is already recorded.
func (s *Service) ensureNew(ctx context.Context, reference string) error {
	cctx, cancel := s.bounded(ctx)
	defer cancel()
	_, err := s.ledger.Entry(cctx, reference)
	switch {
	case err == nil:
		return ErrDuplicateOperation
	case errors.Is(err, ledger.ErrEntryNotFound):
		return nil
	default:
		return fmt.Errorf("lookup entry: %w", err)
	}
}

func (s *Service) requireBalance(ctx context.Context, account string, amount int64) error {
	cctx, cancel := s.bounded(ctx)
	defer cancel()
	balance, err := s.ledger.Balance(cctx, account)
	if err != nil {
		return fmt.Errorf("read balance: %w", err)
	}
	if balance < amount {
		return ErrInsufficientBalance
	}
	return nil
}

// debit applies the conditional debit. The precheck in requireBalance can
// race with another channel; the ledger refuses to overdraw either way.
func (s *Service) debit(ctx context.Context, account string, amount int64) (int64, error) {
	cctx, cancel := s.bounded(ctx)
	defer cancel()
	balance, err := s.ledger.Debit(cctx, account, amount)
	if errors.Is(err, ledger.ErrInsufficientFunds) {
		return balance, ErrInsufficientBalance
	}
	if err != nil {
		return 0, fmt.Errorf("%w: debit: %w", ErrLedgerWriteFailed, err)
	}
	return balance, nil
}

// refund credits amount back to account after a failed operation.
func (s *Service) refund(ctx context.Context, reference, account string, amount int64) {
	cctx, cancel := s.detached(ctx)
	defer cancel()
	if _, err := s.ledger.Credit(cctx, account, amount); err != nil {
		s.logger.Error("refund failed",
			"reference", reference,
			"amount", amount,
			"error", err,
			"error_class", "infrastructure",
		)
		return
	}
	s.logger.Warn("debit refunded", "reference", reference, "amount", amount)
}

func (s *Service) markFailed(ctx context.Context, reference string) {
	cctx, cancel := s.detached(ctx)
	defer cancel()
	if err := s.ledger.UpdateEntryStatus(cctx, reference, ledger.StatusFailed); err != nil {
		s.logger.Error("mark entry failed",
			"reference", reference,
			"error", err,
			"error_class", "infrastructure",
		)
	}
}

func (s *Service) notify(ctx context.Context, msg notification.Message) {
	if s.notifier == nil {
		return
	}
	cctx, cancel := s.detached(ctx)
	defer cancel()
	if err := s.notifier.Send(cctx, msg); err != nil {
		s.logger.Warn("notification failed", "kind", msg.Kind, "error", err)
	}
}

func (s *Service) observe(operation string, started time.Time, err error) {
	s.metrics.Operation(operation, outcome(err), started)
	if err == nil {
		return
	}
	if IsInfrastructure(err) {
		s.logger.Error("operation failed", "operation", operation, "error", err, "error_class", "infrastructure")
		return
	}
	s.logger.Info("operation rejected", "operation", operation, "reason", outcome(err))
}
