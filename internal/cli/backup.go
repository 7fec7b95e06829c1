package cli

import (
	"context"
	"time"

	"github.com/dmitrijs2005/otpkeeper/internal/session"
)

// Backup uploads the encrypted vault snapshot.
func (a *App) Backup(ctx context.Context) error {
	if a.backups == nil {
		return errBackupDisabled
	}
	snap, err := a.backups.Backup(ctx)
	if err != nil {
		return err
	}
	a.out.Printf("Backup stored (%d keys, %s).\n", len(snap.Data), snap.CreatedAt.Format(time.DateTime))
	return nil
}

// Restore replaces the local vault with the stored snapshot. It is refused
// while a session is open.
func (a *App) Restore(ctx context.Context) error {
	if a.backups == nil {
		return errBackupDisabled
	}
	if a.ctrl.State() == session.StateLoggedIn {
		return errLogoutFirst
	}

	ok, err := confirm(a.reader, "Replace the local PIN and accounts with the backup?", a.out.Writer())
	if err != nil || !ok {
		return err
	}
	snap, err := a.backups.Restore(ctx)
	if err != nil {
		return err
	}
	if _, err := a.ctrl.Init(ctx); err != nil {
		return err
	}
	a.out.Printf("Vault restored from the backup of %s. Use 'login' with that backup's PIN.\n", snap.CreatedAt.Format(time.DateTime))
	return nil
}
