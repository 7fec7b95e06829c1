// Package common defines shared sentinel errors and small helpers used across
// OTPKeeper components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// PIN / authentication errors.
	ErrInvalidPIN    = errors.New("PIN must be exactly 4 numeric digits")
	ErrPINNotSet     = errors.New("PIN is not set")
	ErrPINAlreadySet = errors.New("PIN is already set")
	ErrUnauthorized  = errors.New("unauthorized")

	// Session errors.
	ErrNotLoggedIn           = errors.New("not logged in")
	ErrSessionExpired        = errors.New("session expired")
	ErrEncryptionSaltMissing = errors.New("encryption salt missing")

	// Account validation errors.
	ErrEmptyName   = errors.New("account name is required")
	ErrEmptySecret = errors.New("secret key is required")
	ErrWeakSecret  = errors.New("secret key format seems invalid or too short")
)
