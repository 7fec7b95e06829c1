package services

import "errors"

// ErrLocked marks an account whose secret could not be decrypted with the
// session key.
var ErrLocked = errors.New("account is locked")
