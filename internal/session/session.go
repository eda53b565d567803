// Package session holds the ephemeral state of in-progress USSD dialogs.
package session

import (
	"fmt"
	"time"

	"github.com/congo-pay/ussd_gateway/internal/telco"
)

// Stage is a session's position in the menu state machine.
type Stage string

const (
	StageMain       Stage = "main"
	StageRegister   Stage = "register"
	StageLogin      Stage = "login"
	StageBalance    Stage = "balance"
	StageSendMoney  Stage = "send_money"
	StageBuyAirtime Stage = "buy_airtime"
	StagePayBills   Stage = "pay_bills"
	StageAccount    Stage = "account"
	StageChangePIN  Stage = "change_pin"
	StageProfile    Stage = "profile"
	StageHistory    Stage = "history"
	StageHelp       Stage = "help"
)

// stageFlows maps every valid stage to the flow whose draft it carries.
// Menus without state map to FlowNone.
var stageFlows = map[Stage]Flow{
	StageMain:       FlowNone,
	StageRegister:   FlowRegistration,
	StageLogin:      FlowLogin,
	StageBalance:    FlowBalance,
	StageSendMoney:  FlowTransfer,
	StageBuyAirtime: FlowAirtime,
	StagePayBills:   FlowBill,
	StageAccount:    FlowNone,
	StageChangePIN:  FlowChangePIN,
	StageProfile:    FlowNone,
	StageHistory:    FlowNone,
	StageHelp:       FlowNone,
}

// Valid reports whether s is one of the enumerated stages.
func (s Stage) Valid() bool {
	_, ok := stageFlows[s]
	return ok
}

// Session is one in-progress dialog.
type Session struct {
	ID         string
	Phone      string
	Provider   telco.Provider
	IdentityID string
	Stage      Stage
	Draft      Draft

	// LastText and LastMessage remember the previous turn so a relay
	// retransmission is answered without being dispatched again.
	LastText    string
	LastMessage string

	CreatedAt      time.Time
	LastActivityAt time.Time
}

// New returns a fresh unauthenticated session at the main menu.
func New(id, phone string, provider telco.Provider, now time.Time) Session {
	return Session{
		ID:             id,
		Phone:          phone,
		Provider:       provider,
		Stage:          StageMain,
		CreatedAt:      now,
		LastActivityAt: now,
	}
}

// Authenticated reports whether login has resolved an identity.
func (s Session) Authenticated() bool {
	return s.IdentityID != ""
}

// Enter moves the session to stage with a fresh draft for that stage's flow,
// discarding whatever the previous flow accumulated.
func (s *Session) Enter(stage Stage) {
	s.Stage = stage
	s.Draft = emptyDraft(stageFlows[stage])
}

// Expired reports whether the session has been idle longer than idle at now.
func (s Session) Expired(now time.Time, idle time.Duration) bool {
	return now.Sub(s.LastActivityAt) > idle
}

// Validate checks the stage and draft invariants.
func (s Session) Validate() error {
	flow, ok := stageFlows[s.Stage]
	if !ok {
		return fmt.Errorf("unknown stage %q", s.Stage)
	}
	if flow == FlowNone {
		if s.Draft != nil {
			return fmt.Errorf("stage %s carries stray %s draft", s.Stage, s.Draft.Flow())
		}
		return nil
	}
	if s.Draft == nil || s.Draft.Flow() != flow {
		return fmt.Errorf("stage %s requires a %s draft", s.Stage, flow)
	}
	return nil
}

// Summary is the operational view of a session. It never carries drafts.
type Summary struct {
	Phone          string         `json:"phone"`
	Provider       telco.Provider `json:"provider"`
	Stage          Stage          `json:"stage"`
	CreatedAt      time.Time      `json:"created_at"`
	LastActivityAt time.Time      `json:"last_activity_at"`
}

func (s Session) summary() Summary {
	return Summary{
		Phone:          s.Phone,
		Provider:       s.Provider,
		Stage:          s.Stage,
		CreatedAt:      s.CreatedAt,
		LastActivityAt: s.LastActivityAt,
	}
}
