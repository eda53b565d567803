package session

import (
	"context"
	"errors"
	"time"

	"github.com/congo-pay/ussd_gateway/internal/telco"
)

// DefaultIdleTimeout is how long a dialog may sit without a turn.
const DefaultIdleTimeout = 5 * time.Minute

// ErrSessionExpired is returned for unknown sessions and sessions idle past
// the timeout. Callers must not dispatch the turn.
var ErrSessionExpired = errors.New("session expired")

// Store is the keyed session table shared by concurrent turns. Sessions are
// returned by value; changes only take effect through Save.
type Store interface {
	// GetOrCreate returns the live session for id, or creates one at the
	// unauthenticated main menu. created is true for new sessions.
	GetOrCreate(ctx context.Context, id, phone string, provider telco.Provider) (s Session, created bool, err error)
	// Get returns the live session for id or ErrSessionExpired.
	Get(ctx context.Context, id string) (Session, error)
	// Touch refreshes the session's last activity time.
	Touch(ctx context.Context, id string) error
	// Save replaces a live session. A session that expired meanwhile is not
	// resurrected.
	Save(ctx context.Context, s Session) error
	// Remove deletes the session; removing an unknown id is not an error.
	Remove(ctx context.Context, id string) error
	// Count returns the number of live sessions.
	Count(ctx context.Context) (int, error)
	// Snapshot lists live sessions without draft data.
	Snapshot(ctx context.Context) ([]Summary, error)
	// Sweep evicts idle sessions and returns how many were removed.
	Sweep(ctx context.Context) (int, error)
}

// Clock returns the current time. Tests substitute a controllable clock.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }
