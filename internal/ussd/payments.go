package ussd

import (
	"context"
	"fmt"

	"github.com/congo-pay/ussd_gateway/internal/payments"
	"github.com/congo-pay/ussd_gateway/internal/session"
	"github.com/congo-pay/ussd_gateway/internal/telco"
)

const (
	promptRecipient    = "Enter recipient phone number:"
	promptAmount       = "Enter amount:"
	promptAirtimePhone = "Enter phone number:\n1. My number"
)

func (e *Engine) onSendMoney(ctx context.Context, s *session.Session, input string) reply {
	d, _ := s.Draft.(session.TransferDraft)

	switch d.Step {
	case session.TransferStepRecipient:
		phone, err := telco.NormalizePhone(input)
		if err != nil {
			return retry("Please enter a valid phone number.", promptRecipient)
		}
		if phone == s.Phone {
			return retry("You cannot send money to yourself.", promptRecipient)
		}
		d.Recipient, d.Step = phone, session.TransferStepAmount
		s.Draft = d
		return prompt(promptAmount)

	case session.TransferStepAmount:
		amount, ok := parseAmount(input)
		if !ok {
			return retry(msgInvalidInput+" Amount must be a whole number above 0.", promptAmount)
		}
		d.Amount, d.Step = amount, session.TransferStepPIN
		s.Draft = d
		return prompt(e.transferConfirm(d))

	case session.TransferStepPIN:
		user, r, ok := e.verifyStep(ctx, s, input, e.transferConfirm(d))
		if !ok {
			return r
		}
		res, err := e.payments.Transfer(ctx, payments.TransferInput{
			Reference:      payments.Reference(s.ID, string(session.FlowTransfer)),
			SenderID:       user.ID,
			SenderPhone:    user.Phone,
			RecipientPhone: d.Recipient,
			Amount:         d.Amount,
		})
		if err != nil {
			return e.failure(err)
		}
		s.Enter(session.StageMain)
		return finish(fmt.Sprintf("You sent %s to %s. New balance: %s.",
			e.money(d.Amount), res.RecipientName, e.money(res.Balance)))

	default:
		s.Enter(session.StageSendMoney)
		return prompt(promptRecipient)
	}
}

func (e *Engine) transferConfirm(d session.TransferDraft) string {
	return fmt.Sprintf("Send %s to %s\nEnter PIN to confirm:", e.money(d.Amount), d.Recipient)
}

func (e *Engine) onBuyAirtime(ctx context.Context, s *session.Session, input string) reply {
	d, _ := s.Draft.(session.AirtimeDraft)

	switch d.Step {
	case session.AirtimeStepPhone:
		phone := s.Phone
		if input != "1" {
			var err error
			if phone, err = telco.NormalizePhone(input); err != nil {
				return retry("Please enter a valid phone number.", promptAirtimePhone)
			}
		}
		d.Phone, d.Step = phone, session.AirtimeStepAmount
		s.Draft = d
		return prompt(e.airtimeAmountPrompt())

	case session.AirtimeStepAmount:
		amount, ok := parseAmount(input)
		if !ok || amount < e.opts.AirtimeMin || amount > e.opts.AirtimeMax {
			return retry(fmt.Sprintf("Amount must be between %s and %s.",
				e.money(e.opts.AirtimeMin), e.money(e.opts.AirtimeMax)), e.airtimeAmountPrompt())
		}
		d.Amount, d.Step = amount, session.AirtimeStepPIN
		s.Draft = d
		return prompt(e.airtimeConfirm(d))

	case session.AirtimeStepPIN:
		user, r, ok := e.verifyStep(ctx, s, input, e.airtimeConfirm(d))
		if !ok {
			return r
		}
		res, err := e.payments.Airtime(ctx, payments.AirtimeInput{
			Reference:  payments.Reference(s.ID, string(session.FlowAirtime)),
			OwnerID:    user.ID,
			OwnerPhone: user.Phone,
			Phone:      d.Phone,
			Provider:   s.Provider,
			Amount:     d.Amount,
		})
		if err != nil {
			return e.failure(err)
		}
		s.Enter(session.StageMain)
		return finish(fmt.Sprintf("%s %s airtime sent to %s. New balance: %s.",
			e.money(d.Amount), res.Network.Label(), d.Phone, e.money(res.Balance)))

	default:
		s.Enter(session.StageBuyAirtime)
		return prompt(promptAirtimePhone)
	}
}

func (e *Engine) airtimeAmountPrompt() string {
	return fmt.Sprintf("Enter amount (%d - %d):", e.opts.AirtimeMin, e.opts.AirtimeMax)
}

func (e *Engine) airtimeConfirm(d session.AirtimeDraft) string {
	return fmt.Sprintf("Buy %s airtime for %s\nEnter PIN to confirm:", e.money(d.Amount), d.Phone)
}

func billMenu() string {
	text := "Select bill type:"
	for i, b := range payments.BillTypes {
		text += fmt.Sprintf("\n%d. %s", i+1, b.Label())
	}
	return text
}

func (e *Engine) onPayBills(ctx context.Context, s *session.Session, input string) reply {
	d, _ := s.Draft.(session.BillDraft)
	billType := payments.BillType(d.BillType)

	switch d.Step {
	case session.BillStepType:
		bt, ok := payments.BillTypeFromOption(input)
		if !ok {
			return retry(msgInvalidOption, billMenu())
		}
		d.BillType, d.Step = string(bt), session.BillStepMeter
		s.Draft = d
		return prompt(meterPrompt(bt))

	case session.BillStepMeter:
		if !validAccountID(input) {
			return retry(fmt.Sprintf("Please enter a valid %s.", billType.AccountLabel()), meterPrompt(billType))
		}
		d.MeterID, d.Step = input, session.BillStepAmount
		s.Draft = d
		return prompt(promptAmount)

	case session.BillStepAmount:
		amount, ok := parseAmount(input)
		if !ok {
			return retry(msgInvalidInput+" Amount must be a whole number above 0.", promptAmount)
		}
		d.Amount, d.Step = amount, session.BillStepPIN
		s.Draft = d
		return prompt(e.billConfirm(d))

	case session.BillStepPIN:
		user, r, ok := e.verifyStep(ctx, s, input, e.billConfirm(d))
		if !ok {
			return r
		}
		res, err := e.payments.PayBill(ctx, payments.BillInput{
			Reference:  payments.Reference(s.ID, string(session.FlowBill)),
			OwnerID:    user.ID,
			OwnerPhone: user.Phone,
			BillType:   billType,
			MeterID:    d.MeterID,
			Amount:     d.Amount,
		})
		if err != nil {
			return e.failure(err)
		}
		s.Enter(session.StageMain)
		return finish(fmt.Sprintf("%s bill of %s paid for %s. New balance: %s.",
			billType.Label(), e.money(d.Amount), d.MeterID, e.money(res.Balance)))

	default:
		s.Enter(session.StagePayBills)
		return prompt(billMenu())
	}
}

func meterPrompt(b payments.BillType) string {
	return fmt.Sprintf("Enter %s:", b.AccountLabel())
}

func (e *Engine) billConfirm(d session.BillDraft) string {
	bt := payments.BillType(d.BillType)
	return fmt.Sprintf("Pay %s %s bill for %s\nEnter PIN to confirm:", e.money(d.Amount), bt.Label(), d.MeterID)
}
