package session

import (
	"testing"
	"time"

	"github.com/congo-pay/ussd_gateway/internal/telco"
)

func TestEnterInstallsFreshDraft(t *testing.T) {
	s := New("id", "08031234567", telco.MTN, time.Now())
	s.Enter(StageSendMoney)
	s.Draft = TransferDraft{Step: TransferStepAmount, Recipient: "08051234567"}

	s.Enter(StageBuyAirtime)
	d, ok := s.Draft.(AirtimeDraft)
	if !ok {
		t.Fatalf("expected airtime draft, got %T", s.Draft)
	}
	if d != (AirtimeDraft{}) {
		t.Fatalf("expected empty draft, got %+v", d)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	s.Enter(StageMain)
	if s.Draft != nil {
		t.Fatalf("main menu must not carry a draft, got %T", s.Draft)
	}
}

func TestValidateRejectsCrossFlowDraft(t *testing.T) {
	s := New("id", "08031234567", telco.MTN, time.Now())
	s.Stage = StagePayBills
	s.Draft = TransferDraft{}
	if err := s.Validate(); err == nil {
		t.Fatal("expected mismatch between stage and draft to be rejected")
	}

	s.Stage = Stage("bogus")
	if err := s.Validate(); err == nil {
		t.Fatal("expected unknown stage to be rejected")
	}
}
