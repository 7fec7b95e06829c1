package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/otpkeeper/internal/backup"
	"github.com/dmitrijs2005/otpkeeper/internal/logging"
	"github.com/dmitrijs2005/otpkeeper/internal/session"
	"github.com/dmitrijs2005/otpkeeper/internal/timesource"
)

var (
	errBackupDisabled = errors.New("backup is not configured")
	errLogoutFirst    = errors.New("log out before restoring a backup")
	errPINMismatch    = errors.New("PINs do not match")
)

// TimeSource is the reconciled clock the REPL reports and adjusts.
type TimeSource interface {
	Now() time.Time
	Status() timesource.Status
	Offset() time.Duration
	LastSync() time.Time
	SummerTime() bool
	SetSummerTime(on bool)
	Sync(ctx context.Context) error
}

// BackupService exports and imports the vault snapshot.
type BackupService interface {
	Backup(ctx context.Context) (*backup.Snapshot, error)
	Restore(ctx context.Context) (*backup.Snapshot, error)
}

type App struct {
	ctrl    *session.Controller
	clock   TimeSource
	backups BackupService
	out     *Printer
	log     logging.Logger
	reader  *bufio.Reader
}

// NewApp builds the REPL. out must be the Printer registered as the
// controller's listener. backups may be nil when no bucket is configured.
func NewApp(ctrl *session.Controller, clock TimeSource, backups BackupService, out *Printer, log logging.Logger, in io.Reader) *App {
	return &App{
		ctrl:    ctrl,
		clock:   clock,
		backups: backups,
		out:     out,
		log:     log.With("component", "cli"),
		reader:  bufio.NewReader(in),
	}
}

// Run blocks until the user exits. The controller is closed on return.
func (a *App) Run(ctx context.Context) error {
	defer a.ctrl.Close(context.WithoutCancel(ctx))

	st, err := a.ctrl.Init(ctx)
	if err != nil {
		return fmt.Errorf("init vault: %w", err)
	}

	a.out.Println("Welcome to OTPKeeper (type 'help' for commands)")
	if st == session.StateSettingPin {
		a.out.Println("No PIN is set yet. Use 'setpin' to create one.")
	}

	runREPL(ctx, a, a.status, a.reader, a.out)
	return nil
}

func (a *App) state() session.State {
	return a.ctrl.State()
}

// status is shown in the prompt.
func (a *App) status() string {
	switch a.ctrl.State() {
	case session.StateSettingPin:
		return "set pin"
	case session.StateLoggedOut:
		return "locked"
	default:
		return fmt.Sprintf("%s left, %s", formatClock(a.ctrl.SessionRemaining()), a.clock.Status())
	}
}
