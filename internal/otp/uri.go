package otp

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	pqotp "github.com/pquerna/otp"
)

// ErrUnsupportedURI is returned for otpauth URIs this vault cannot serve:
// HOTP keys, non-SHA1 algorithms, digit counts other than 6 or periods
// other than 30 seconds.
var ErrUnsupportedURI = errors.New("unsupported otpauth URI")

// KeyInfo is the subset of an otpauth:// URI the vault keeps.
type KeyInfo struct {
	Issuer      string
	AccountName string
	Secret      string
}

// Label returns the display name of the key ("Issuer (account)" or just the
// account when no issuer is set).
func (k KeyInfo) Label() string {
	switch {
	case k.Issuer == "":
		return k.AccountName
	case k.AccountName == "":
		return k.Issuer
	default:
		return fmt.Sprintf("%s (%s)", k.Issuer, k.AccountName)
	}
}

// IsURI reports whether s looks like an otpauth:// URI rather than a bare
// Base32 secret.
func IsURI(s string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(s)), "otpauth://")
}

// ParseURI parses an otpauth://totp/ URI.
func ParseURI(raw string) (KeyInfo, error) {
	key, err := pqotp.NewKeyFromURL(strings.TrimSpace(raw))
	if err != nil {
		return KeyInfo{}, fmt.Errorf("%w: %v", ErrUnsupportedURI, err)
	}
	if key.Type() != "totp" {
		return KeyInfo{}, fmt.Errorf("%w: type %q", ErrUnsupportedURI, key.Type())
	}
	if key.Algorithm() != pqotp.AlgorithmSHA1 {
		return KeyInfo{}, fmt.Errorf("%w: algorithm %s", ErrUnsupportedURI, key.Algorithm())
	}
	if key.Digits() != pqotp.DigitsSix {
		return KeyInfo{}, fmt.Errorf("%w: %d digits", ErrUnsupportedURI, key.Digits().Length())
	}
	if key.Period() != uint64(stepSeconds) {
		return KeyInfo{}, fmt.Errorf("%w: period %ds", ErrUnsupportedURI, key.Period())
	}

	secret := strings.ToUpper(key.Secret())
	if secret == "" {
		return KeyInfo{}, fmt.Errorf("%w: missing secret", ErrUnsupportedURI)
	}
	return KeyInfo{Issuer: key.Issuer(), AccountName: key.AccountName(), Secret: secret}, nil
}

// FormatURI builds the otpauth:// URI authenticator apps expect for k.
func FormatURI(k KeyInfo) string {
	label := k.AccountName
	if k.Issuer != "" {
		label = k.Issuer + ":" + k.AccountName
	}

	q := url.Values{}
	q.Set("secret", strings.TrimRight(k.Secret, "="))
	if k.Issuer != "" {
		q.Set("issuer", k.Issuer)
	}
	q.Set("algorithm", "SHA1")
	q.Set("digits", "6")
	q.Set("period", "30")

	u := url.URL{Scheme: "otpauth", Host: "totp", Path: "/" + label, RawQuery: q.Encode()}
	return u.String()
}
