package cli

import (
	"context"

	"github.com/dmitrijs2005/otpkeeper/internal/session"
)

// getSimpleText, getPIN and confirm are indirections used to facilitate
// testing. They point to interactive input helpers and can be swapped in tests.
var (
	getSimpleText = GetSimpleText
	getPIN        = GetPIN
	confirm       = Confirm
)

// SetPin asks for a new PIN twice and stores it.
func (a *App) SetPin(ctx context.Context) error {
	pin, err := getPIN(a.reader, "New PIN (4 digits)", a.out.Writer())
	if err != nil {
		return err
	}
	again, err := getPIN(a.reader, "Repeat PIN", a.out.Writer())
	if err != nil {
		return err
	}
	if pin != again {
		return errPINMismatch
	}

	if err := a.ctrl.SetPin(ctx, pin); err != nil {
		return err
	}
	a.out.Println("PIN set. Use 'login' to open the vault.")
	return nil
}

// Login opens a session and lists the codes.
func (a *App) Login(ctx context.Context) error {
	pin, err := getPIN(a.reader, "PIN", a.out.Writer())
	if err != nil {
		return err
	}
	if err := a.ctrl.Login(ctx, pin); err != nil {
		return err
	}

	a.out.Printf("Logged in. Automatic logout in %s.\n", formatClock(session.MaxDuration))
	return a.List(ctx)
}

func (a *App) Logout(ctx context.Context) error {
	if a.ctrl.State() != session.StateLoggedIn {
		a.out.Println("Not logged in.")
		return nil
	}
	a.ctrl.Logout(ctx)
	return nil
}

// Reset wipes the vault after confirmation.
func (a *App) Reset(ctx context.Context) error {
	ok, err := confirm(a.reader, "This deletes the PIN and every account. Continue?", a.out.Writer())
	if err != nil || !ok {
		return err
	}
	if err := a.ctrl.ResetVault(ctx); err != nil {
		return err
	}
	a.out.Println("Vault reset. Use 'setpin' to create a new PIN.")
	return nil
}
