// Package otp implements the one-time password primitives of OTPKeeper:
// a lenient RFC 4648 Base32 decoder for typed secrets, HMAC-SHA1, the
// RFC 6238 TOTP generator with a fixed 30 second step and 6 digits, window
// arithmetic used by the refresh scheduler, and otpauth:// URI import/export.
//
// All functions take the point in time explicitly; nothing here reads the
// wall clock.
package otp
