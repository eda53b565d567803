package ussd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/congo-pay/ussd_gateway/internal/identity"
	"github.com/congo-pay/ussd_gateway/internal/session"
)

const (
	promptName  = "Enter your full name:"
	promptEmail = "Enter your email address:"
)

// onRegister collects name, email and a confirmed PIN, then creates the
// identity and its wallet. A confirmation mismatch returns to the PIN step.
func (e *Engine) onRegister(ctx context.Context, s *session.Session, input string) reply {
	d, _ := s.Draft.(session.RegistrationDraft)

	switch d.Step {
	case session.RegStepName:
		if !validName(input) {
			return retry("Please enter a valid name.", promptName)
		}
		d.Name, d.Step = input, session.RegStepEmail
		s.Draft = d
		return prompt(promptEmail)

	case session.RegStepEmail:
		email := strings.ToLower(input)
		if !validEmail(email) {
			return retry("Please enter a valid email address.", promptEmail)
		}
		d.Email, d.Step = email, session.RegStepPIN
		s.Draft = d
		return prompt(promptCreatePIN)

	case session.RegStepPIN:
		if !identity.ValidPIN(input) {
			return retry(msgPINFormat, promptCreatePIN)
		}
		digest, err := e.identities.HashPIN(input)
		if err != nil {
			e.infra(s, "hash pin", err)
			return finish(msgUnavailable)
		}
		d.PINHash, d.Step = string(digest), session.RegStepConfirm
		s.Draft = d
		return prompt(promptConfirm)

	case session.RegStepConfirm:
		if !e.identities.VerifyDigest(input, []byte(d.PINHash)) {
			d.PINHash, d.Step = "", session.RegStepPIN
			s.Draft = d
			return retry(msgPINMismatch, promptCreatePIN)
		}
		return e.completeRegistration(ctx, s, d)

	default:
		s.Enter(session.StageRegister)
		return prompt(promptName)
	}
}

func (e *Engine) completeRegistration(ctx context.Context, s *session.Session, d session.RegistrationDraft) reply {
	cctx, cancel := e.bounded(ctx)
	defer cancel()

	user, err := e.identities.Register(cctx, identity.NewUser{
		Phone:   s.Phone,
		Name:    d.Name,
		Email:   d.Email,
		PINHash: []byte(d.PINHash),
	})
	if errors.Is(err, identity.ErrExists) {
		return finish(msgAlreadyRegister)
	}
	if err != nil {
		e.infra(s, "register identity", err)
		return finish(msgUnavailable)
	}
	if err := e.wallets.Open(cctx, user.ID); err != nil {
		// Login opens the account again.
		e.infra(s, "open wallet", err)
	}

	e.logger.Info("identity registered", "session_id", s.ID, "identity_id", user.ID, "phone", user.Phone)
	s.Enter(session.StageMain)
	return finish(fmt.Sprintf("Registration successful. Welcome, %s! Dial again and choose Login to use your wallet.",
		firstName(user.Name)))
}
