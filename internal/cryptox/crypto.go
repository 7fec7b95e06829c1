// Package cryptox holds the vault's cryptography: the salted PIN hash used
// for authentication, PBKDF2 derivation of the AES-256 session key, and
// AES-GCM sealing of TOTP secrets.
//
// Authentication and encryption deliberately use different salts and
// different derivations: the PIN hash is a single SHA-256 pass and can never
// be used as key material.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/otpkeeper/internal/common"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// SaltSize is the number of random bytes in a salt (hex-encoded on disk).
	SaltSize = 16
	// IVSize is the AES-GCM nonce length.
	IVSize = 12
	// KeyIterations is the PBKDF2 iteration count.
	KeyIterations = 100_000
	// KeySize is the derived key length (AES-256).
	KeySize = 32
)

var (
	// ErrDecrypt covers every way opening a sealed secret can fail: wrong
	// key, tampered ciphertext or IV, malformed hex.
	ErrDecrypt = errors.New("unable to decrypt secret")
	// ErrNoKey is returned when sealing or opening with a nil key.
	ErrNoKey = errors.New("encryption key is not available")
)

// GenerateSalt returns SaltSize random bytes, hex-encoded.
func GenerateSalt() (string, error) {
	return common.MakeRandHexString(SaltSize)
}

// HashPIN returns hex(SHA-256(salt || pin)). The salt is used in its
// hex-encoded string form.
func HashPIN(pin, salt string) string {
	sum := sha256.Sum256([]byte(salt + pin))
	return hex.EncodeToString(sum[:])
}

// VerifyPIN compares the hash of pin against an expected hash in constant time.
func VerifyPIN(pin, salt, expectedHash string) bool {
	candidate := HashPIN(pin, salt)
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(expectedHash)) == 1
}

// Key is a session encryption key. The raw key bytes are wiped right after
// the cipher is built and are never exposed; a Key can only seal and open.
type Key struct {
	aead cipher.AEAD
}

// DeriveKey derives the AES-256-GCM session key from pin and the encryption
// salt with PBKDF2-HMAC-SHA256.
func DeriveKey(pin, salt string) (*Key, error) {
	raw := deriveKeyBytes([]byte(pin), []byte(salt), KeyIterations)
	defer common.WipeByteArray(raw)

	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	return &Key{aead: aead}, nil
}

func deriveKeyBytes(pin, salt []byte, iterations int) []byte {
	return pbkdf2.Key(pin, salt, iterations, KeySize, sha256.New)
}

// Sealed is an encrypted secret as persisted: hex IV and hex ciphertext
// (GCM tag appended).
type Sealed struct {
	IV         string
	Ciphertext string
}

// Seal encrypts plaintext under a fresh random 12-byte IV.
func (k *Key) Seal(plaintext string) (Sealed, error) {
	if k == nil || k.aead == nil {
		return Sealed{}, ErrNoKey
	}

	iv := make([]byte, IVSize)
	if _, err := rand.Read(iv); err != nil {
		return Sealed{}, fmt.Errorf("generate iv: %w", err)
	}

	ciphertext := k.aead.Seal(nil, iv, []byte(plaintext), nil)
	return Sealed{IV: hex.EncodeToString(iv), Ciphertext: hex.EncodeToString(ciphertext)}, nil
}

// Open reverses Seal. Any failure is reported as ErrDecrypt.
func (k *Key) Open(s Sealed) (string, error) {
	if k == nil || k.aead == nil {
		return "", ErrNoKey
	}

	iv, err := hex.DecodeString(s.IV)
	if err != nil || len(iv) != IVSize {
		return "", fmt.Errorf("%w: bad iv", ErrDecrypt)
	}
	ciphertext, err := hex.DecodeString(s.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: bad ciphertext", ErrDecrypt)
	}

	plaintext, err := k.aead.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return string(plaintext), nil
}
