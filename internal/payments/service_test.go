package payments

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/congo-pay/ussd_gateway/internal/identity"
	"github.com/congo-pay/ussd_gateway/internal/ledger"
	"github.com/congo-pay/ussd_gateway/internal/metrics"
	"github.com/congo-pay/ussd_gateway/internal/notification"
	"github.com/congo-pay/ussd_gateway/internal/telco"
	"github.com/congo-pay/ussd_gateway/internal/wallet"
)

// flakyLedger fails selected writes on top of the in-memory ledger.
type flakyLedger struct {
	ledger.Ledger
	failCredit   bool
	failComplete bool
	failAppend   bool
}

func (l *flakyLedger) Credit(ctx context.Context, code string, amount int64) (int64, error) {
	if l.failCredit {
		l.failCredit = false
		return 0, errors.New("connection reset")
	}
	return l.Ledger.Credit(ctx, code, amount)
}

func (l *flakyLedger) UpdateEntryStatus(ctx context.Context, ref string, status ledger.Status) error {
	if l.failComplete && status == ledger.StatusCompleted {
		return errors.New("connection reset")
	}
	return l.Ledger.UpdateEntryStatus(ctx, ref, status)
}

func (l *flakyLedger) AppendEntry(ctx context.Context, entry ledger.Entry) (ledger.Entry, error) {
	if l.failAppend {
		return ledger.Entry{}, errors.New("connection reset")
	}
	return l.Ledger.AppendEntry(ctx, entry)
}

type failingVendor struct{}

func (failingVendor) TopUp(context.Context, TopUpRequest) (Receipt, error) {
	return Receipt{}, errors.New("vendor unavailable")
}

type fixture struct {
	ledger   *flakyLedger
	users    *identity.Service
	svc      *Service
	notifier *notification.Recorder
	registry *prometheus.Registry
	sender   identity.User
	receiver identity.User
}

func newFixture(t *testing.T, senderBalance int64) *fixture {
	t.Helper()
	ctx := context.Background()
	mem := ledger.NewInMemory()
	reg := prometheus.NewRegistry()
	f := &fixture{
		ledger:   &flakyLedger{Ledger: mem},
		users:    identity.NewService(identity.NewMemoryRepository(), identity.PINHasher{}),
		notifier: &notification.Recorder{},
		registry: reg,
	}
	f.sender = f.register(t, "08031234567", "Amina Bello")
	f.receiver = f.register(t, "08051234567", "Chidi Okafor")
	ledger.SeedBalance(mem, wallet.AccountCode(f.sender.ID), senderBalance)
	if err := mem.EnsureAccount(ctx, wallet.AccountCode(f.receiver.ID)); err != nil {
		t.Fatalf("open receiver account: %v", err)
	}

	f.svc = NewService(Dependencies{
		Ledger:    f.ledger,
		Directory: f.users,
		Vendors:   StaticVendors([]string{"mtn", "airtel", "glo"}),
		Notifier:  f.notifier,
		Metrics:   metrics.New(reg),
	})
	return f
}

func (f *fixture) register(t *testing.T, phone, name string) identity.User {
	t.Helper()
	user, err := f.users.Register(context.Background(), identity.NewUser{Phone: phone, Name: name, PINHash: []byte("digest")})
	if err != nil {
		t.Fatalf("register %s: %v", phone, err)
	}
	return user
}

func (f *fixture) balance(t *testing.T, ownerID string) int64 {
	t.Helper()
	b, err := f.ledger.Balance(context.Background(), wallet.AccountCode(ownerID))
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return b
}

func (f *fixture) entry(t *testing.T, ref string) ledger.Entry {
	t.Helper()
	e, err := f.ledger.Entry(context.Background(), ref)
	if err != nil {
		t.Fatalf("entry %s: %v", ref, err)
	}
	return e
}

func TestTransferConservesBalances(t *testing.T) {
	f := newFixture(t, 10_000)
	ref := Reference("sess-1", "transfer")

	res, err := f.svc.Transfer(context.Background(), TransferInput{
		Reference:      ref,
		SenderID:       f.sender.ID,
		SenderPhone:    f.sender.Phone,
		RecipientPhone: f.receiver.Phone,
		Amount:         2_500,
	})
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if res.Balance != 7_500 || res.RecipientName != "Chidi Okafor" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if got := f.balance(t, f.sender.ID) + f.balance(t, f.receiver.ID); got != 10_000 {
		t.Fatalf("money not conserved, total %d", got)
	}
	if e := f.entry(t, ref); e.Status != ledger.StatusCompleted || e.Kind != ledger.KindTransfer {
		t.Fatalf("unexpected entry: %+v", e)
	}
	if sent := f.notifier.To(f.receiver.Phone); len(sent) != 1 || sent[0].Reference != ref {
		t.Fatalf("expected recipient notification, got %+v", f.notifier.Sent())
	}
	if n, err := testutil.GatherAndCount(f.registry, "ussd_operations_total"); err != nil || n != 1 {
		t.Fatalf("expected one operation series, got %d (%v)", n, err)
	}
}

func TestTransferInsufficientBalanceLeavesBalanceUnchanged(t *testing.T) {
	f := newFixture(t, 300)

	_, err := f.svc.Transfer(context.Background(), TransferInput{
		Reference:      Reference("sess-1", "transfer"),
		SenderID:       f.sender.ID,
		RecipientPhone: f.receiver.Phone,
		Amount:         500,
	})
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if b := f.balance(t, f.sender.ID); b != 300 {
		t.Fatalf("balance changed to %d", b)
	}
	if ledger.EntryCount(f.ledger.Ledger) != 0 {
		t.Fatal("no entry should be recorded")
	}
}

func TestTransferUnknownRecipient(t *testing.T) {
	f := newFixture(t, 1_000)

	_, err := f.svc.Transfer(context.Background(), TransferInput{
		Reference:      Reference("sess-1", "transfer"),
		SenderID:       f.sender.ID,
		RecipientPhone: "08099999999",
		Amount:         100,
	})
	if !errors.Is(err, ErrRecipientNotFound) {
		t.Fatalf("expected ErrRecipientNotFound, got %v", err)
	}
	if IsInfrastructure(err) {
		t.Fatal("recipient not found is a business error")
	}
}

func TestTransferRollsBackWhenCreditFails(t *testing.T) {
	f := newFixture(t, 1_000)
	f.ledger.failCredit = true
	ref := Reference("sess-1", "transfer")

	_, err := f.svc.Transfer(context.Background(), TransferInput{
		Reference:      ref,
		SenderID:       f.sender.ID,
		RecipientPhone: f.receiver.Phone,
		Amount:         400,
	})
	if !errors.Is(err, ErrLedgerWriteFailed) {
		t.Fatalf("expected ErrLedgerWriteFailed, got %v", err)
	}
	if !IsInfrastructure(err) {
		t.Fatal("ledger write failures are logged as infrastructure")
	}
	if b := f.balance(t, f.sender.ID); b != 1_000 {
		t.Fatalf("sender debit survived failure, balance %d", b)
	}
	if b := f.balance(t, f.receiver.ID); b != 0 {
		t.Fatalf("receiver credited despite failure, balance %d", b)
	}
	if e := f.entry(t, ref); e.Status != ledger.StatusFailed {
		t.Fatalf("expected failed entry, got %s", e.Status)
	}
}

func TestTransferReversesBothLegsWhenCompletionFails(t *testing.T) {
	f := newFixture(t, 1_000)
	f.ledger.failComplete = true
	ref := Reference("sess-1", "transfer")

	_, err := f.svc.Transfer(context.Background(), TransferInput{
		Reference:      ref,
		SenderID:       f.sender.ID,
		RecipientPhone: f.receiver.Phone,
		Amount:         400,
	})
	if !errors.Is(err, ErrLedgerWriteFailed) {
		t.Fatalf("expected ErrLedgerWriteFailed, got %v", err)
	}
	if f.balance(t, f.sender.ID) != 1_000 || f.balance(t, f.receiver.ID) != 0 {
		t.Fatal("balances not restored")
	}
	if e := f.entry(t, ref); e.Status != ledger.StatusFailed {
		t.Fatalf("expected failed entry, got %s", e.Status)
	}
}

func TestTransferDuplicateReference(t *testing.T) {
	f := newFixture(t, 1_000)
	in := TransferInput{
		Reference:      Reference("sess-1", "transfer"),
		SenderID:       f.sender.ID,
		RecipientPhone: f.receiver.Phone,
		Amount:         100,
	}
	if _, err := f.svc.Transfer(context.Background(), in); err != nil {
		t.Fatalf("first transfer: %v", err)
	}
	if _, err := f.svc.Transfer(context.Background(), in); !errors.Is(err, ErrDuplicateOperation) {
		t.Fatalf("expected ErrDuplicateOperation, got %v", err)
	}
	if b := f.balance(t, f.sender.ID); b != 900 {
		t.Fatalf("replay debited twice, balance %d", b)
	}
}

func TestAirtimePurchase(t *testing.T) {
	f := newFixture(t, 1_000)
	ref := Reference("sess-1", "airtime")

	res, err := f.svc.Airtime(context.Background(), AirtimeInput{
		Reference:  ref,
		OwnerID:    f.sender.ID,
		OwnerPhone: f.sender.Phone,
		Phone:      "08031112222",
		Provider:   telco.Glo,
		Amount:     200,
	})
	if err != nil {
		t.Fatalf("airtime failed: %v", err)
	}
	if res.Network != telco.MTN || res.Balance != 800 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if b := f.balance(t, f.sender.ID); b != 800 {
		t.Fatalf("expected balance 800, got %d", b)
	}
	e := f.entry(t, ref)
	if e.Kind != ledger.KindAirtime || e.Status != ledger.StatusCompleted || e.Amount != 200 {
		t.Fatalf("unexpected entry: %+v", e)
	}
	if e.Metadata["network"] != "mtn" || e.Metadata["vendor_reference"] == "" {
		t.Fatalf("unexpected metadata: %v", e.Metadata)
	}
	if ledger.EntryCount(f.ledger.Ledger) != 1 {
		t.Fatal("expected exactly one entry")
	}
}

func TestAirtimeUnsupportedNetwork(t *testing.T) {
	f := newFixture(t, 1_000)

	_, err := f.svc.Airtime(context.Background(), AirtimeInput{
		Reference: Reference("sess-1", "airtime"),
		OwnerID:   f.sender.ID,
		Phone:     "08091112222",
		Provider:  telco.MTN,
		Amount:    200,
	})
	if !errors.Is(err, ErrUnsupportedProvider) {
		t.Fatalf("expected ErrUnsupportedProvider, got %v", err)
	}
	if b := f.balance(t, f.sender.ID); b != 1_000 {
		t.Fatalf("balance changed to %d", b)
	}
}

func TestAirtimeRefundsWhenVendorFails(t *testing.T) {
	f := newFixture(t, 1_000)
	f.svc.vendors[telco.MTN] = failingVendor{}

	_, err := f.svc.Airtime(context.Background(), AirtimeInput{
		Reference: Reference("sess-1", "airtime"),
		OwnerID:   f.sender.ID,
		Phone:     "08031112222",
		Amount:    200,
	})
	if !errors.Is(err, ErrVendorFailed) {
		t.Fatalf("expected ErrVendorFailed, got %v", err)
	}
	if b := f.balance(t, f.sender.ID); b != 1_000 {
		t.Fatalf("debit not refunded, balance %d", b)
	}
}

func TestBillPaymentRecordsMetadata(t *testing.T) {
	f := newFixture(t, 5_000)
	ref := Reference("sess-1", "bill")

	res, err := f.svc.PayBill(context.Background(), BillInput{
		Reference:  ref,
		OwnerID:    f.sender.ID,
		OwnerPhone: f.sender.Phone,
		BillType:   BillElectricity,
		MeterID:    "45012345678",
		Amount:     3_000,
	})
	if err != nil {
		t.Fatalf("bill failed: %v", err)
	}
	if res.Balance != 2_000 {
		t.Fatalf("unexpected balance %d", res.Balance)
	}
	e := f.entry(t, ref)
	if e.Kind != ledger.KindBillPayment || e.Status != ledger.StatusCompleted {
		t.Fatalf("unexpected entry: %+v", e)
	}
	if e.Metadata["bill_type"] != "electricity" || e.Metadata["meter_id"] != "45012345678" {
		t.Fatalf("unexpected metadata: %v", e.Metadata)
	}
}

func TestBillPaymentRefundsWhenAppendFails(t *testing.T) {
	f := newFixture(t, 5_000)
	f.ledger.failAppend = true

	_, err := f.svc.PayBill(context.Background(), BillInput{
		Reference: Reference("sess-1", "bill"),
		OwnerID:   f.sender.ID,
		BillType:  BillWater,
		MeterID:   "WTR-001",
		Amount:    1_000,
	})
	if !errors.Is(err, ErrLedgerWriteFailed) {
		t.Fatalf("expected ErrLedgerWriteFailed, got %v", err)
	}
	if b := f.balance(t, f.sender.ID); b != 5_000 {
		t.Fatalf("debit not refunded, balance %d", b)
	}
}

func TestBillTypeFromOption(t *testing.T) {
	cases := map[string]BillType{"1": BillElectricity, "2": BillCableTV, "3": BillWater, "4": BillInternet}
	for opt, want := range cases {
		got, ok := BillTypeFromOption(opt)
		if !ok || got != want {
			t.Fatalf("option %s: got %q ok=%v", opt, got, ok)
		}
	}
	for _, opt := range []string{"", "0", "5", "12", "a"} {
		if _, ok := BillTypeFromOption(opt); ok {
			t.Fatalf("option %q should be rejected", opt)
		}
	}
}
