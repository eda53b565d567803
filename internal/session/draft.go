package session

import (
	"encoding/json"
	"fmt"
)

// Flow tags the draft variant a session carries.
type Flow string

const (
	FlowNone         Flow = ""
	FlowRegistration Flow = "registration"
	FlowLogin        Flow = "login"
	FlowBalance      Flow = "balance"
	FlowTransfer     Flow = "transfer"
	FlowAirtime      Flow = "airtime"
	FlowBill         Flow = "bill"
	FlowChangePIN    Flow = "change_pin"
)

// Draft is the partial input of one multi-step flow. Each variant belongs to
// exactly one flow, so stage code can only read fields of its own flow.
// Variants are plain values and safe to copy.
type Draft interface {
	Flow() Flow
}

// Step is the position inside a multi-step flow.
type Step int

const (
	RegStepName Step = iota
	RegStepEmail
	RegStepPIN
	RegStepConfirm
)

// RegistrationDraft accumulates name, email and PIN for a new identity.
type RegistrationDraft struct {
	Step    Step   `json:"step"`
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	PINHash string `json:"pin_hash,omitempty"`
}

func (RegistrationDraft) Flow() Flow { return FlowRegistration }

// LoginDraft carries no fields; login is a single PIN prompt.
type LoginDraft struct{}

func (LoginDraft) Flow() Flow { return FlowLogin }

// BalanceDraft records whether the balance has been shown this visit.
type BalanceDraft struct {
	Shown bool `json:"shown"`
}

func (BalanceDraft) Flow() Flow { return FlowBalance }

const (
	TransferStepRecipient Step = iota
	TransferStepAmount
	TransferStepPIN
)

// TransferDraft accumulates a send-money request.
type TransferDraft struct {
	Step      Step   `json:"step"`
	Recipient string `json:"recipient,omitempty"`
	Amount    int64  `json:"amount,omitempty"`
}

func (TransferDraft) Flow() Flow { return FlowTransfer }

const (
	AirtimeStepPhone Step = iota
	AirtimeStepAmount
	AirtimeStepPIN
)

// AirtimeDraft accumulates an airtime purchase.
type AirtimeDraft struct {
	Step   Step   `json:"step"`
	Phone  string `json:"phone,omitempty"`
	Amount int64  `json:"amount,omitempty"`
}

func (AirtimeDraft) Flow() Flow { return FlowAirtime }

const (
	BillStepType Step = iota
	BillStepMeter
	BillStepAmount
	BillStepPIN
)

// BillDraft accumulates a bill payment.
type BillDraft struct {
	Step     Step   `json:"step"`
	BillType string `json:"bill_type,omitempty"`
	MeterID  string `json:"meter_id,omitempty"`
	Amount   int64  `json:"amount,omitempty"`
}

func (BillDraft) Flow() Flow { return FlowBill }

const (
	ChangePINStepCurrent Step = iota
	ChangePINStepNew
	ChangePINStepConfirm
)

// ChangePINDraft accumulates a PIN change.
type ChangePINDraft struct {
	Step       Step   `json:"step"`
	NewPINHash string `json:"new_pin_hash,omitempty"`
}

func (ChangePINDraft) Flow() Flow { return FlowChangePIN }

func emptyDraft(flow Flow) Draft {
	switch flow {
	case FlowRegistration:
		return RegistrationDraft{}
	case FlowLogin:
		return LoginDraft{}
	case FlowBalance:
		return BalanceDraft{}
	case FlowTransfer:
		return TransferDraft{}
	case FlowAirtime:
		return AirtimeDraft{}
	case FlowBill:
		return BillDraft{}
	case FlowChangePIN:
		return ChangePINDraft{}
	}
	return nil
}

func decodeDraft(flow Flow, raw json.RawMessage) (Draft, error) {
	if flow == FlowNone {
		return nil, nil
	}
	var (
		d   Draft
		err error
	)
	switch flow {
	case FlowRegistration:
		var v RegistrationDraft
		err = json.Unmarshal(raw, &v)
		d = v
	case FlowLogin:
		d = LoginDraft{}
	case FlowBalance:
		var v BalanceDraft
		err = json.Unmarshal(raw, &v)
		d = v
	case FlowTransfer:
		var v TransferDraft
		err = json.Unmarshal(raw, &v)
		d = v
	case FlowAirtime:
		var v AirtimeDraft
		err = json.Unmarshal(raw, &v)
		d = v
	case FlowBill:
		var v BillDraft
		err = json.Unmarshal(raw, &v)
		d = v
	case FlowChangePIN:
		var v ChangePINDraft
		err = json.Unmarshal(raw, &v)
		d = v
	default:
		return nil, fmt.Errorf("unknown draft flow %q", flow)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s draft: %w", flow, err)
	}
	return d, nil
}
