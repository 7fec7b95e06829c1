// Package kv is the vault's local key-value store: independent string keys
// with opaque values, backed by the SQLite "storage" table.
package kv

import "context"

// Store is the key-value contract. Get returns (nil, nil) for a missing key;
// Delete and DeletePrefix of absent keys are not errors.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
	List(ctx context.Context) (map[string][]byte, error)
	Clear(ctx context.Context) error

	// Atomically runs fn against a Store whose writes take effect together
	// or not at all.
	Atomically(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}
