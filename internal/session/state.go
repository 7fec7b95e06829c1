package session

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/otpkeeper/internal/cryptox"
)

// MaxDuration is the hard cap on a session's lifetime.
const MaxDuration = 120 * time.Second

// ErrAlreadyLoggedIn is returned by Login during an active session.
var ErrAlreadyLoggedIn = errors.New("already logged in")

type State int

const (
	StateLoggedOut State = iota
	StateSettingPin
	StateLoggedIn
)

func (s State) String() string {
	switch s {
	case StateLoggedOut:
		return "LoggedOut"
	case StateSettingPin:
		return "SettingPin"
	case StateLoggedIn:
		return "LoggedIn"
	default:
		return "Unknown"
	}
}

// Reason says why a session ended.
type Reason string

const (
	ReasonLogout  Reason = "logout"
	ReasonExpired Reason = "expired"
	ReasonError   Reason = "error"
	ReasonReset   Reason = "reset"
	ReasonClosed  Reason = "closed"
)

// Session is the state that exists only between login and logout: the
// derived key and the login instant.
type Session struct {
	key     *cryptox.Key
	loginAt time.Time
}

// newSession strips the monotonic reading from loginAt so elapsed time is
// measured on the wall clock, which keeps advancing across suspension.
func newSession(key *cryptox.Key, loginAt time.Time) *Session {
	return &Session{key: key, loginAt: loginAt.Round(0)}
}

func (s *Session) LoginAt() time.Time { return s.loginAt }

func (s *Session) Elapsed(now time.Time) time.Duration {
	return now.Round(0).Sub(s.loginAt)
}

func (s *Session) Expired(now time.Time) bool {
	return s.Elapsed(now) >= MaxDuration
}

func (s *Session) Remaining(now time.Time) time.Duration {
	left := MaxDuration - s.Elapsed(now)
	if left < 0 {
		return 0
	}
	return left
}

func (s *Session) clear() {
	s.key = nil
}
