package ussd

import (
	"context"
	"fmt"

	"github.com/congo-pay/ussd_gateway/internal/identity"
	"github.com/congo-pay/ussd_gateway/internal/session"
)

func (e *Engine) onLogin(ctx context.Context, s *session.Session, input string) reply {
	if !identity.ValidPIN(input) {
		return retry(msgPINFormat, promptPIN)
	}
	user, found, err := e.lookupPhone(ctx, s)
	if err != nil {
		return finish(msgUnavailable)
	}
	if !found {
		return finish(msgNotRegistered)
	}

	switch e.checkPIN(ctx, s, user, input) {
	case pinAccepted:
	case pinRejected:
		return retry(msgWrongPIN, promptPIN)
	case pinLocked:
		return finish(msgLocked)
	default:
		return finish(msgUnavailable)
	}

	cctx, cancel := e.bounded(ctx)
	defer cancel()
	if err := e.wallets.Open(cctx, user.ID); err != nil {
		e.infra(s, "open wallet", err)
	}

	s.IdentityID = user.ID
	s.Enter(session.StageMain)
	e.logger.Info("login", "session_id", s.ID, "identity_id", user.ID)
	return prompt(fmt.Sprintf("Welcome back, %s\n%s", firstName(user.Name), menuText))
}

const balanceOptions = "1. Main menu\n2. Exit"

// onBalance asks for the PIN once, shows the balance, then only navigates.
func (e *Engine) onBalance(ctx context.Context, s *session.Session, input string) reply {
	d, _ := s.Draft.(session.BalanceDraft)
	if d.Shown {
		switch input {
		case "1":
			s.Enter(session.StageMain)
			return prompt(menuText)
		case "2":
			return finish(e.goodbye())
		default:
			return retry(msgInvalidOption, balanceOptions)
		}
	}

	user, r, ok := e.verifyStep(ctx, s, input, "Enter PIN to view your balance:")
	if !ok {
		return r
	}
	cctx, cancel := e.bounded(ctx)
	defer cancel()
	balance, err := e.wallets.Balance(cctx, user.ID)
	if err != nil {
		e.infra(s, "read balance", err)
		return finish(msgUnavailable)
	}
	d.Shown = true
	s.Draft = d
	return prompt(fmt.Sprintf("Your balance is %s\n%s", e.money(balance.Amount), balanceOptions))
}
