package ussd

import (
	"context"
	"fmt"
	"strings"

	"github.com/congo-pay/ussd_gateway/internal/identity"
	"github.com/congo-pay/ussd_gateway/internal/ledger"
	"github.com/congo-pay/ussd_gateway/internal/session"
)

const (
	accountMenu      = "My account\n1. Change PIN\n2. Profile\n3. Transaction history\n4. Back"
	promptCurrentPIN = "Enter your current PIN:"
	promptNewPIN     = "Enter new 4-digit PIN:"
	promptConfirmNew = "Confirm new PIN:"
	screenFooter     = "0. Back"
)

func (e *Engine) onAccount(ctx context.Context, s *session.Session, input string) reply {
	switch input {
	case "1":
		s.Enter(session.StageChangePIN)
		return prompt(promptCurrentPIN)
	case "2":
		user, err := e.currentUser(ctx, s)
		if err != nil {
			return finish(msgUnavailable)
		}
		s.Enter(session.StageProfile)
		return prompt(profileScreen(user))
	case "3":
		cctx, cancel := e.bounded(ctx)
		defer cancel()
		entries, err := e.wallets.History(cctx, s.IdentityID, e.opts.HistoryLimit)
		if err != nil {
			e.infra(s, "read history", err)
			return finish(msgUnavailable)
		}
		s.Enter(session.StageHistory)
		return prompt(e.historyScreen(s.IdentityID, entries))
	case "4":
		s.Enter(session.StageMain)
		return prompt(menuText)
	default:
		return retry(msgInvalidOption, accountMenu)
	}
}

// onAccountScreen handles the read-only profile and history screens.
func (e *Engine) onAccountScreen(s *session.Session, input string) reply {
	if input == "0" {
		s.Enter(session.StageAccount)
		return prompt(accountMenu)
	}
	return finish(e.goodbye())
}

func profileScreen(u identity.User) string {
	email := u.Email
	if email == "" {
		email = "-"
	}
	return fmt.Sprintf("Name: %s\nPhone: %s\nEmail: %s\nSince: %s\n%s",
		u.Name, u.Phone, email, u.CreatedAt.Format("02 Jan 2006"), screenFooter)
}

func (e *Engine) historyScreen(ownerID string, entries []ledger.Entry) string {
	if len(entries) == 0 {
		return "No transactions yet.\n" + screenFooter
	}
	var b strings.Builder
	b.WriteString("Recent transactions")
	for _, entry := range entries {
		sign := "-"
		if entry.Kind == ledger.KindTransfer && entry.RecipientID == ownerID {
			sign = "+"
		}
		fmt.Fprintf(&b, "\n%s %s%s %s", entry.CreatedAt.Format("02/01"), sign, e.money(entry.Amount), entryLabel(entry.Kind))
		if entry.Status != ledger.StatusCompleted {
			fmt.Fprintf(&b, " (%s)", entry.Status)
		}
	}
	b.WriteString("\n" + screenFooter)
	return b.String()
}

func entryLabel(k ledger.Kind) string {
	switch k {
	case ledger.KindTransfer:
		return "Transfer"
	case ledger.KindAirtime:
		return "Airtime"
	case ledger.KindBillPayment:
		return "Bill"
	default:
		return string(k)
	}
}

// onChangePIN verifies the current PIN, then collects and confirms a new one.
func (e *Engine) onChangePIN(ctx context.Context, s *session.Session, input string) reply {
	d, _ := s.Draft.(session.ChangePINDraft)

	switch d.Step {
	case session.ChangePINStepCurrent:
		if _, r, ok := e.verifyStep(ctx, s, input, promptCurrentPIN); !ok {
			return r
		}
		d.Step = session.ChangePINStepNew
		s.Draft = d
		return prompt(promptNewPIN)

	case session.ChangePINStepNew:
		if !identity.ValidPIN(input) {
			return retry(msgPINFormat, promptNewPIN)
		}
		digest, err := e.identities.HashPIN(input)
		if err != nil {
			e.infra(s, "hash pin", err)
			return finish(msgUnavailable)
		}
		d.NewPINHash, d.Step = string(digest), session.ChangePINStepConfirm
		s.Draft = d
		return prompt(promptConfirmNew)

	case session.ChangePINStepConfirm:
		if !e.identities.VerifyDigest(input, []byte(d.NewPINHash)) {
			d.NewPINHash, d.Step = "", session.ChangePINStepNew
			s.Draft = d
			return retry(msgPINMismatch, promptNewPIN)
		}
		cctx, cancel := e.bounded(ctx)
		defer cancel()
		if err := e.identities.ChangePIN(cctx, s.IdentityID, []byte(d.NewPINHash)); err != nil {
			e.infra(s, "change pin", err)
			return finish(msgUnavailable)
		}
		e.logger.Info("pin changed", "session_id", s.ID, "identity_id", s.IdentityID)
		s.Enter(session.StageMain)
		return finish("Your PIN has been changed. Use the new PIN next time you dial.")

	default:
		s.Enter(session.StageChangePIN)
		return prompt(promptCurrentPIN)
	}
}
