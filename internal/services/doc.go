// Package services holds the vault's application logic on top of the
// key-value store: PIN management and authentication (AuthService) and
// the encrypted account list with its codes (VaultService).
package services
