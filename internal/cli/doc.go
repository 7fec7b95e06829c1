// Package cli provides the interactive OTPKeeper terminal front end.
//
// It drives a session.Controller from a line-based REPL. The PIN is read
// without echo when stdin is a terminal. Codes are listed on demand, or
// streamed by 'watch' together with the logout countdown.
//
// Commands:
//   - setpin, login, logout, reset
//   - add [name], delete <id>, list, qr <id>, watch, hide, show
//   - time [sync], summer [on|off]
//   - backup, restore (when an S3 bucket is configured)
//   - help, exit
//
// Account ids may be abbreviated to any unique prefix.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits
// or input ends.
package cli
