// Package backup copies the vault's persistent state to S3-compatible object
// storage and back. A snapshot holds only what is needed to reopen the vault
// with the same PIN: the PIN hash, both salts and the encrypted account
// list. Secrets stay AES-GCM ciphertext; the object store never sees a key.
package backup
