package models

// Storage keys. Each is an independent entry in the key-value store.
const (
	KeyPIN                = "pin"
	KeyPINSalt            = "pinSalt"
	KeyEncryptionSalt     = "encryptionSalt"
	KeyAccounts           = "otpAccounts"
	KeyLoginTime          = "loginTime"
	KeyLastUsedPIN        = "lastUsedPin"
	KeyWebAuthnCredential = "webauthnCredential"

	// KeyLastGenerationPrefix is followed by the account id.
	KeyLastGenerationPrefix = "lastOtpGenerationTime-"
)

// LastGenerationKey is the key holding the start of the last window a code
// was generated for account id.
func LastGenerationKey(id AccountID) string {
	return KeyLastGenerationPrefix + string(id)
}

// SnapshotKeys are the keys that make up a portable copy of the vault.
var SnapshotKeys = []string{KeyPIN, KeyPINSalt, KeyEncryptionSalt, KeyAccounts}
