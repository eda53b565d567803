package ussd

import (
	"context"
	"errors"
	"fmt"

	"github.com/congo-pay/ussd_gateway/internal/identity"
	"github.com/congo-pay/ussd_gateway/internal/session"
)

// dispatch applies input to the session's current stage. It mutates s in
// place and never touches the store.
func (e *Engine) dispatch(ctx context.Context, s *session.Session, input string) reply {
	if requiresIdentity(s.Stage) && !s.Authenticated() {
		e.logger.Warn("stage reached without identity", "session_id", s.ID, "stage", string(s.Stage))
		s.Enter(session.StageMain)
		return prompt(e.mainMenu(*s))
	}

	switch s.Stage {
	case session.StageMain:
		if s.Authenticated() {
			return e.onMenu(ctx, s, input)
		}
		return e.onWelcome(ctx, s, input)
	case session.StageRegister:
		return e.onRegister(ctx, s, input)
	case session.StageLogin:
		return e.onLogin(ctx, s, input)
	case session.StageBalance:
		return e.onBalance(ctx, s, input)
	case session.StageSendMoney:
		return e.onSendMoney(ctx, s, input)
	case session.StageBuyAirtime:
		return e.onBuyAirtime(ctx, s, input)
	case session.StagePayBills:
		return e.onPayBills(ctx, s, input)
	case session.StageAccount:
		return e.onAccount(ctx, s, input)
	case session.StageChangePIN:
		return e.onChangePIN(ctx, s, input)
	case session.StageProfile, session.StageHistory:
		return e.onAccountScreen(s, input)
	case session.StageHelp:
		return e.onHelp(s, input)
	default:
		e.logger.Error("unknown stage", "session_id", s.ID, "stage", string(s.Stage))
		s.Enter(session.StageMain)
		return prompt(e.mainMenu(*s))
	}
}

func requiresIdentity(stage session.Stage) bool {
	switch stage {
	case session.StageBalance, session.StageSendMoney, session.StageBuyAirtime, session.StagePayBills,
		session.StageAccount, session.StageChangePIN, session.StageProfile, session.StageHistory:
		return true
	default:
		return false
	}
}

func (e *Engine) mainMenu(s session.Session) string {
	if s.Authenticated() {
		return menuText
	}
	return fmt.Sprintf("Welcome to %s\n1. Register\n2. Login\n3. Help", e.opts.AppName)
}

const menuText = "Main menu\n1. Check balance\n2. Send money\n3. Buy airtime\n4. Pay bills\n5. My account\n6. Help"

// onWelcome handles the unauthenticated main menu.
func (e *Engine) onWelcome(ctx context.Context, s *session.Session, input string) reply {
	switch input {
	case "1":
		_, found, err := e.lookupPhone(ctx, s)
		if err != nil {
			return finish(msgUnavailable)
		}
		if found {
			return finish(msgAlreadyRegister)
		}
		s.Enter(session.StageRegister)
		return prompt("Enter your full name:")
	case "2":
		_, found, err := e.lookupPhone(ctx, s)
		if err != nil {
			return finish(msgUnavailable)
		}
		if !found {
			return finish(msgNotRegistered)
		}
		locked, err := e.guard.Locked(ctx, s.Phone)
		if err != nil {
			e.infra(s, "pin guard", err)
			return finish(msgUnavailable)
		}
		if locked {
			return finish(msgLocked)
		}
		s.Enter(session.StageLogin)
		return prompt(promptPIN)
	case "3":
		s.Enter(session.StageHelp)
		return prompt(helpMenu)
	default:
		return retry(msgInvalidOption, e.mainMenu(*s))
	}
}

// onMenu handles the authenticated main menu.
func (e *Engine) onMenu(_ context.Context, s *session.Session, input string) reply {
	switch input {
	case "1":
		s.Enter(session.StageBalance)
		return prompt("Enter PIN to view your balance:")
	case "2":
		s.Enter(session.StageSendMoney)
		return prompt(promptRecipient)
	case "3":
		s.Enter(session.StageBuyAirtime)
		return prompt(promptAirtimePhone)
	case "4":
		s.Enter(session.StagePayBills)
		return prompt(billMenu())
	case "5":
		s.Enter(session.StageAccount)
		return prompt(accountMenu)
	case "6":
		s.Enter(session.StageHelp)
		return prompt(helpMenu)
	default:
		return retry(msgInvalidOption, menuText)
	}
}

const helpMenu = "Help\n1. Contact support\n2. FAQ\n3. Back"

func (e *Engine) onHelp(s *session.Session, input string) reply {
	switch input {
	case "1":
		return finish(fmt.Sprintf("Call %s or email %s for support.", e.opts.SupportPhone, e.opts.SupportEmail))
	case "2":
		return finish("Register once with a 4-digit PIN, then log in to send money, buy airtime and pay bills. " +
			"Every payment asks for your PIN. Never share your PIN with anyone.")
	case "3":
		s.Enter(session.StageMain)
		return prompt(e.mainMenu(*s))
	default:
		return retry(msgInvalidOption, helpMenu)
	}
}

// lookupPhone resolves the session's phone in the directory.
func (e *Engine) lookupPhone(ctx context.Context, s *session.Session) (identity.User, bool, error) {
	cctx, cancel := e.bounded(ctx)
	defer cancel()
	user, err := e.identities.FindByPhone(cctx, s.Phone)
	if errors.Is(err, identity.ErrNotFound) {
		return identity.User{}, false, nil
	}
	if err != nil {
		e.infra(s, "directory lookup", err)
		return identity.User{}, false, err
	}
	return user, true, nil
}

// currentUser loads the logged-in identity.
func (e *Engine) currentUser(ctx context.Context, s *session.Session) (identity.User, error) {
	cctx, cancel := e.bounded(ctx)
	defer cancel()
	user, err := e.identities.FindByID(cctx, s.IdentityID)
	if err != nil {
		e.infra(s, "directory lookup", err)
	}
	return user, err
}

func (e *Engine) infra(s *session.Session, op string, err error) {
	e.logger.Error(op,
		"session_id", s.ID,
		"stage", string(s.Stage),
		"error", err,
		"error_class", "infrastructure",
	)
}

type pinOutcome int

const (
	pinAccepted pinOutcome = iota
	pinRejected
	pinLocked
	pinUnavailable
)

// checkPIN verifies pin for user and feeds the lockout guard.
func (e *Engine) checkPIN(ctx context.Context, s *session.Session, user identity.User, pin string) pinOutcome {
	locked, err := e.guard.Locked(ctx, s.Phone)
	if err != nil {
		e.infra(s, "pin guard", err)
		return pinUnavailable
	}
	if locked {
		return pinLocked
	}
	if e.identities.VerifyPIN(user, pin) {
		if err := e.guard.Reset(ctx, s.Phone); err != nil {
			e.logger.Warn("reset pin guard", "session_id", s.ID, "error", err)
		}
		return pinAccepted
	}
	locked, err = e.guard.Fail(ctx, s.Phone)
	if err != nil {
		e.infra(s, "pin guard", err)
		return pinUnavailable
	}
	e.logger.Info("wrong pin", "session_id", s.ID, "stage", string(s.Stage), "locked", locked)
	if locked {
		return pinLocked
	}
	return pinRejected
}

// verifyStep runs the final PIN step of an authenticated flow. When ok is
// false the returned reply must be sent and the flow must not proceed.
func (e *Engine) verifyStep(ctx context.Context, s *session.Session, pin, again string) (user identity.User, r reply, ok bool) {
	if !identity.ValidPIN(pin) {
		return identity.User{}, retry(msgPINFormat, again), false
	}
	user, err := e.currentUser(ctx, s)
	if err != nil {
		return identity.User{}, finish(msgUnavailable), false
	}
	switch e.checkPIN(ctx, s, user, pin) {
	case pinAccepted:
		return user, reply{}, true
	case pinRejected:
		return identity.User{}, retry(msgWrongPIN, again), false
	case pinLocked:
		return identity.User{}, finish(msgLocked), false
	default:
		return identity.User{}, finish(msgUnavailable), false
	}
}
