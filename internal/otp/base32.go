package otp

import (
	"errors"
	"fmt"
	"strings"
)

const base32Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"

// ErrInvalidBase32 is returned when a secret contains a character outside
// the RFC 4648 alphabet.
var ErrInvalidBase32 = errors.New("invalid base32 character")

// DecodeBase32 decodes s into raw bytes. Trailing '=' padding is ignored and
// bits that do not complete a byte are dropped, so secrets of any length are
// accepted. Lowercase input is folded to uppercase.
func DecodeBase32(s string) ([]byte, error) {
	s = strings.TrimRight(strings.ToUpper(s), "=")

	out := make([]byte, 0, len(s)*5/8)
	var acc uint32
	var bits uint
	for i := 0; i < len(s); i++ {
		v := strings.IndexByte(base32Alphabet, s[i])
		if v < 0 {
			return nil, fmt.Errorf("%w %q at position %d", ErrInvalidBase32, s[i], i)
		}
		acc = acc<<5 | uint32(v)
		bits += 5
		if bits >= 8 {
			bits -= 8
			out = append(out, byte(acc>>bits))
			acc &= 1<<bits - 1
		}
	}
	return out, nil
}
