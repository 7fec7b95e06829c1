package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/otpkeeper/internal/session"
	"github.com/dmitrijs2005/otpkeeper/internal/timex"
)

// Time prints the reconciled time; "time sync" resynchronizes first.
func (a *App) Time(ctx context.Context, args []string) error {
	if len(args) > 0 && args[0] == "sync" {
		if err := a.clock.Sync(ctx); err != nil {
			a.out.Println("Time sync failed, using the local clock:", err)
		}
		a.refreshCodes(ctx)
	}

	summer := "off"
	if a.clock.SummerTime() {
		summer = "on"
	}
	last := "never"
	if ls := a.clock.LastSync(); !ls.IsZero() {
		last = timex.FormatTimeOfDay(ls)
	}

	a.out.Printf("Time: %s (%s, offset %s, last sync %s, summer time %s)\n",
		a.clock.Now().Format(time.DateTime), a.clock.Status(), a.clock.Offset().Round(time.Millisecond), last, summer)
	return nil
}

// Summer sets the manual one-hour adjustment, or toggles it without an
// argument, and recomputes codes at once.
func (a *App) Summer(ctx context.Context, args []string) error {
	on := !a.clock.SummerTime()
	if len(args) > 0 {
		switch args[0] {
		case "on":
			on = true
		case "off":
			on = false
		default:
			return fmt.Errorf("usage: summer [on|off]")
		}
	}

	a.clock.SetSummerTime(on)
	if on {
		a.out.Println("Summer time on (+1h).")
	} else {
		a.out.Println("Summer time off.")
	}
	a.refreshCodes(ctx)
	return nil
}

func (a *App) refreshCodes(ctx context.Context) {
	if a.ctrl.State() != session.StateLoggedIn {
		return
	}
	if err := a.ctrl.Refresh(ctx); err != nil {
		a.log.Warn(ctx, "code refresh failed", "error", err)
	}
}
