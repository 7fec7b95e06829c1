package session

import (
	"time"

	"github.com/dmitrijs2005/otpkeeper/internal/models"
)

// Listener receives the controller's display events. Methods are called
// from worker goroutines, never with the controller's lock held, and must
// not call Logout, ResetVault, SetVisible or Close: those wait for the
// workers to finish.
type Listener interface {
	// CodesRefreshed carries every account's code for one window.
	CodesRefreshed(views []models.CodeView)
	// Countdown fires every second with the session time left and each
	// account's seconds left in its window.
	Countdown(sessionLeft time.Duration, remaining map[models.AccountID]int)
	// LoggedOut fires once per ended session, after its workers stopped.
	LoggedOut(reason Reason, err error)
}

// NopListener ignores every event.
type NopListener struct{}

func (NopListener) CodesRefreshed([]models.CodeView)                  {}
func (NopListener) Countdown(time.Duration, map[models.AccountID]int) {}
func (NopListener) LoggedOut(Reason, error)                           {}
