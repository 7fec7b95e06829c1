package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// AccountID identifies an account. New ids are UUIDv7 strings; vaults
// written by older versions used numeric creation timestamps, which are
// accepted on load and kept in their decimal form.
type AccountID string

// NewAccountID returns a fresh time-ordered id.
func NewAccountID() (AccountID, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate account id: %w", err)
	}
	return AccountID(id.String()), nil
}

func (id AccountID) String() string { return string(id) }

func (id *AccountID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = AccountID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("account id: %w", err)
	}
	*id = AccountID(n.String())
	return nil
}

// Account is one TOTP registration. The Base32 seed is only ever stored as
// AES-GCM ciphertext with its IV, both hex-encoded.
type Account struct {
	ID              AccountID `json:"id"`
	Name            string    `json:"name"`
	EncryptedSecret string    `json:"encryptedSecret"`
	IV              string    `json:"iv"`
}
