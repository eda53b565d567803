// Package ussd turns carrier dialog turns into menu screens. Each turn is
// looked up in the session store, dispatched on the session's stage and
// answered with a screen plus a continue or end signal.
package ussd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/congo-pay/ussd_gateway/internal/identity"
	"github.com/congo-pay/ussd_gateway/internal/logging"
	"github.com/congo-pay/ussd_gateway/internal/metrics"
	"github.com/congo-pay/ussd_gateway/internal/payments"
	"github.com/congo-pay/ussd_gateway/internal/pinguard"
	"github.com/congo-pay/ussd_gateway/internal/session"
	"github.com/congo-pay/ussd_gateway/internal/telco"
	"github.com/congo-pay/ussd_gateway/internal/wallet"
)

// Status tells the carrier whether to keep the dialog open.
type Status string

const (
	StatusContinue Status = "CON"
	StatusEnd      Status = "END"
)

// ErrInvalidRequest is returned for turns missing a session id or carrying an
// unusable phone number. Every other failure is rendered as a screen.
var ErrInvalidRequest = errors.New("invalid ussd request")

// TextMode says what a relay puts in a turn's text.
type TextMode string

const (
	// TextAccumulated relays send every keystroke of the dialog joined by
	// '*'. A turn repeating the previous text is a retransmission.
	TextAccumulated TextMode = "accumulated"
	// TextLatest relays send only the keystroke entered on the current
	// screen, so equal texts on consecutive turns are distinct inputs.
	TextLatest TextMode = "latest"
)

// Request is one inbound dialog turn. Text carries the keystrokes in the
// relay's TextMode; an empty Text opens the dialog.
type Request struct {
	SessionID string
	Phone     string
	Provider  telco.Provider
	Text      string
}

// Response is the screen to show and whether the dialog continues.
type Response struct {
	Message string
	Status  Status
}

// Options holds presentation and policy settings.
type Options struct {
	AppName      string
	Currency     string
	SupportPhone string
	SupportEmail string
	AirtimeMin   int64
	AirtimeMax   int64
	HistoryLimit int
	TextMode     TextMode
	// Timeout bounds directory and balance lookups made while rendering.
	Timeout time.Duration
}

// Dependencies bundles the engine's collaborators.
type Dependencies struct {
	Sessions   session.Store
	Identities *identity.Service
	Wallets    *wallet.Service
	Payments   *payments.Service
	Guard      pinguard.Guard
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	Options    Options
}

// Engine is the menu state machine bound to its stores.
type Engine struct {
	sessions   session.Store
	identities *identity.Service
	wallets    *wallet.Service
	payments   *payments.Service
	guard      pinguard.Guard
	metrics    *metrics.Metrics
	logger     *slog.Logger
	opts       Options
}

// NewEngine constructs an engine, filling unset options with defaults.
func NewEngine(deps Dependencies) *Engine {
	opts := deps.Options
	if opts.AppName == "" {
		opts.AppName = "USSD Wallet"
	}
	if opts.Currency == "" {
		opts.Currency = "NGN"
	}
	if opts.AirtimeMin <= 0 {
		opts.AirtimeMin = 50
	}
	if opts.AirtimeMax < opts.AirtimeMin {
		opts.AirtimeMax = 10_000
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 5
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.TextMode != TextLatest {
		opts.TextMode = TextAccumulated
	}
	e := &Engine{
		sessions:   deps.Sessions,
		identities: deps.Identities,
		wallets:    deps.Wallets,
		payments:   deps.Payments,
		guard:      deps.Guard,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		opts:       opts,
	}
	if e.guard == nil {
		e.guard = pinguard.NewMemory(3, 15*time.Minute, nil)
	}
	if e.logger == nil {
		e.logger = logging.Discard()
	}
	return e
}

// Handle processes one dialog turn.
func (e *Engine) Handle(ctx context.Context, req Request) (Response, error) {
	if strings.TrimSpace(req.SessionID) == "" {
		return Response{}, fmt.Errorf("%w: missing session id", ErrInvalidRequest)
	}
	phone, err := telco.NormalizePhone(req.Phone)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	s, err := e.load(ctx, req, phone)
	if err != nil {
		return e.sessionFailure(req.SessionID, err), nil
	}
	if err := e.sessions.Touch(ctx, s.ID); err != nil {
		return e.sessionFailure(s.ID, err), nil
	}

	if e.retransmitted(s, req.Text) {
		e.logger.Debug("replayed turn", "session_id", s.ID, "stage", string(s.Stage))
		return Response{Message: s.LastMessage, Status: StatusContinue}, nil
	}

	var r reply
	if req.Text == "" {
		s.Enter(session.StageMain)
		r = prompt(e.mainMenu(s))
	} else {
		r = e.dispatch(ctx, &s, lastSegment(req.Text))
	}
	message := fitScreen(r.text)

	if r.end {
		if err := e.sessions.Remove(ctx, s.ID); err != nil {
			e.logger.Warn("remove session", "session_id", s.ID, "error", err)
		}
		e.metrics.Turn(string(s.Stage), string(StatusEnd))
		return Response{Message: message, Status: StatusEnd}, nil
	}

	if err := s.Validate(); err != nil {
		e.logger.Error("inconsistent session state", "session_id", s.ID, "error", err)
		_ = e.sessions.Remove(ctx, s.ID)
		return Response{Message: msgUnavailable, Status: StatusEnd}, nil
	}
	s.LastText, s.LastMessage = req.Text, message
	if err := e.sessions.Save(ctx, s); err != nil {
		return e.sessionFailure(s.ID, err), nil
	}
	e.metrics.Turn(string(s.Stage), string(StatusContinue))
	return Response{Message: message, Status: StatusContinue}, nil
}

// load starts a dialog on empty text and otherwise requires a live session
// owned by the calling phone.
func (e *Engine) load(ctx context.Context, req Request, phone string) (session.Session, error) {
	var (
		s   session.Session
		err error
	)
	if req.Text == "" {
		var created bool
		s, created, err = e.sessions.GetOrCreate(ctx, req.SessionID, phone, req.Provider)
		if err == nil && created {
			e.logger.Info("session started",
				"session_id", s.ID,
				"phone", phone,
				"provider", req.Provider.String(),
			)
		}
	} else {
		s, err = e.sessions.Get(ctx, req.SessionID)
	}
	if err != nil {
		return session.Session{}, err
	}
	if s.Phone != phone {
		e.logger.Warn("session phone mismatch", "session_id", s.ID, "phone", phone)
		return session.Session{}, session.ErrSessionExpired
	}
	return s, nil
}

// retransmitted reports whether text repeats the turn already answered.
// Only accumulated text identifies a retry; in latest-keystroke mode money
// movement stays idempotent through per-session ledger references.
func (e *Engine) retransmitted(s session.Session, text string) bool {
	if e.opts.TextMode != TextAccumulated {
		return false
	}
	return s.LastMessage != "" && s.LastText == text
}

func (e *Engine) sessionFailure(id string, err error) Response {
	if errors.Is(err, session.ErrSessionExpired) {
		e.metrics.Turn("expired", string(StatusEnd))
		return Response{Message: msgSessionExpired, Status: StatusEnd}
	}
	e.logger.Error("session store", "session_id", id, "error", err, "error_class", "infrastructure")
	e.metrics.Turn("unavailable", string(StatusEnd))
	return Response{Message: msgUnavailable, Status: StatusEnd}
}

func (e *Engine) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.opts.Timeout)
}

// lastSegment returns the keystrokes entered on the current screen.
func lastSegment(text string) string {
	if i := strings.LastIndexByte(text, '*'); i >= 0 {
		text = text[i+1:]
	}
	return strings.TrimSpace(text)
}
