package otp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

const (
	// Digits is the length of every generated code.
	Digits = 6
	// Step is the TOTP time step.
	Step = 30 * time.Second

	stepSeconds = int64(Step / time.Second)
	modulo      = 1_000_000
)

// ErrTruncation is returned when the dynamic truncation offset points past
// the end of the HMAC digest.
var ErrTruncation = errors.New("truncation offset out of range")

// Counter returns the RFC 6238 moving factor for t: floor(unix(t) / 30).
func Counter(t time.Time) uint64 {
	return uint64(floorDiv(t.Unix(), stepSeconds))
}

// GenerateCode computes the 6-digit TOTP code of a Base32 secret at t.
func GenerateCode(secret string, t time.Time) (string, error) {
	key, err := DecodeBase32(secret)
	if err != nil {
		return "", fmt.Errorf("decode secret: %w", err)
	}
	return HOTP(key, Counter(t))
}

// HOTP computes the RFC 4226 code of key for the given counter.
func HOTP(key []byte, counter uint64) (string, error) {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)

	value, err := truncate(HMACSHA1(key, msg[:]))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", Digits, value%modulo), nil
}

// truncate applies RFC 4226 dynamic truncation and returns a 31-bit value.
func truncate(mac []byte) (uint32, error) {
	if len(mac) == 0 {
		return 0, ErrTruncation
	}
	offset := int(mac[len(mac)-1] & 0x0f)
	if offset+4 > len(mac) {
		return 0, ErrTruncation
	}
	return binary.BigEndian.Uint32(mac[offset:offset+4]) & 0x7fffffff, nil
}

// WindowStart returns the beginning of the 30 second window containing t.
func WindowStart(t time.Time) time.Time {
	return time.Unix(floorDiv(t.Unix(), stepSeconds)*stepSeconds, 0).In(t.Location())
}

// UntilNextWindow returns how long after t the next window begins.
// The result is in (0, Step].
func UntilNextWindow(t time.Time) time.Duration {
	return WindowStart(t).Add(Step).Sub(t)
}

// RemainingSeconds returns the whole seconds left in the window containing t,
// in the range [1, 30].
func RemainingSeconds(t time.Time) int {
	return int(stepSeconds - (t.Unix() - floorDiv(t.Unix(), stepSeconds)*stepSeconds))
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
