// Package session drives the vault's login lifecycle.
//
// A Controller moves between three states:
//
//	SettingPin --SetPin--> LoggedOut --Login--> LoggedIn
//	                           ^                  |
//	                           +--Logout/expiry---+
//
// While logged in, two workers run. The watchdog polls every second and
// ends the session once wall-clock time since login reaches MaxDuration; it
// compares timestamps rather than counting ticks, so time spent suspended
// still counts. The generator recomputes every account's code at each
// 30-second boundary and emits a per-second countdown; it is stopped while
// the front end is hidden and restarted, with an immediate recomputation,
// when it becomes visible again.
package session
