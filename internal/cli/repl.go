package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/dmitrijs2005/otpkeeper/internal/common"
	"github.com/dmitrijs2005/otpkeeper/internal/otp"
	"github.com/dmitrijs2005/otpkeeper/internal/session"
)

// execIface defines the command surface the REPL dispatches to.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	state() session.State
	SetPin(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Reset(ctx context.Context) error
	Add(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	List(ctx context.Context) error
	QR(ctx context.Context, args []string) error
	Watch(ctx context.Context) error
	SetVisible(ctx context.Context, visible bool) error
	Time(ctx context.Context, args []string) error
	Summer(ctx context.Context, args []string) error
	Backup(ctx context.Context) error
	Restore(ctx context.Context) error
}

// runREPL reads commands line by line and dispatches them to a. The loop
// exits on EOF, on "exit" or "quit", or once ctx is done. Handler errors
// are printed and the loop goes on.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader, out *Printer) {
	for ctx.Err() == nil {
		out.Printf("otpkeeper (%s)> ", statusFn())
		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			out.Println()
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		if cmd == "exit" || cmd == "quit" {
			out.Println("Bye!")
			return
		}
		if err := dispatch(ctx, a, cmd, args, out); err != nil {
			out.Println("Error:", describe(err))
		}
	}
}

func dispatch(ctx context.Context, a execIface, cmd string, args []string, out *Printer) error {
	switch cmd {
	case "help":
		printHelp(a.state(), out)
		return nil
	case "setpin":
		return a.SetPin(ctx)
	case "login":
		return a.Login(ctx)
	case "logout":
		return a.Logout(ctx)
	case "reset":
		return a.Reset(ctx)
	case "add":
		return a.Add(ctx, args)
	case "delete", "rm":
		return a.Delete(ctx, args)
	case "l", "list", "codes":
		return a.List(ctx)
	case "qr":
		return a.QR(ctx, args)
	case "watch":
		return a.Watch(ctx)
	case "hide":
		return a.SetVisible(ctx, false)
	case "show":
		return a.SetVisible(ctx, true)
	case "time":
		return a.Time(ctx, args)
	case "summer":
		return a.Summer(ctx, args)
	case "backup":
		return a.Backup(ctx)
	case "restore":
		return a.Restore(ctx)
	default:
		out.Println("Unknown command:", cmd)
		return nil
	}
}

func printHelp(st session.State, out *Printer) {
	switch st {
	case session.StateSettingPin:
		out.Println("Available commands: setpin, restore, time, summer, exit")
	case session.StateLoggedOut:
		out.Println("Available commands: login, reset, backup, restore, time, summer, exit")
	default:
		out.Println("Available commands: (l)ist, add, delete, qr, watch, hide, show, time, summer, logout, reset, exit")
	}
}

// describe turns well-known errors into short user-facing messages.
func describe(err error) string {
	switch {
	case errors.Is(err, common.ErrUnauthorized):
		return "wrong PIN"
	case errors.Is(err, common.ErrNotLoggedIn):
		return "log in first"
	case errors.Is(err, common.ErrPINNotSet):
		return "set a PIN first with 'setpin'"
	case errors.Is(err, otp.ErrInvalidBase32):
		return "the secret is not valid Base32"
	default:
		return err.Error()
	}
}
