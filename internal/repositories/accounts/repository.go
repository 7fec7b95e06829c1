// Package accounts persists the vault: the ordered list of accounts stored as
// one JSON array under a single key.
package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/otpkeeper/internal/logging"
	"github.com/dmitrijs2005/otpkeeper/internal/models"
	"github.com/dmitrijs2005/otpkeeper/internal/repositories/kv"
)

type Repository interface {
	Load(ctx context.Context) ([]models.Account, error)
	Save(ctx context.Context, accounts []models.Account) error
}

type KVRepository struct {
	store kv.Store
	log   logging.Logger
}

func NewKVRepository(store kv.Store, log logging.Logger) *KVRepository {
	return &KVRepository{store: store, log: log}
}

// Load returns the stored accounts in insertion order. A missing key, a
// payload that does not parse or one that is not an array all load as an
// empty vault. Array elements that are not readable accounts are skipped
// with a warning and stay in storage; only storage read errors are returned.
func (r *KVRepository) Load(ctx context.Context) ([]models.Account, error) {
	raw, err := r.store.Get(ctx, models.KeyAccounts)
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}

	list, unreadable, err := decode(raw)
	if err != nil {
		r.log.Warn(ctx, "stored accounts are unreadable, treating vault as empty", "error", err)
		return []models.Account{}, nil
	}
	for _, u := range unreadable {
		r.log.Warn(ctx, "skipping unreadable account record", "index", u.index, "error", u.err)
	}
	return list, nil
}

// Save replaces the stored list. Unreadable records already in storage are
// kept after the given accounts, so a damaged entry never takes the others
// down with it.
func (r *KVRepository) Save(ctx context.Context, accounts []models.Account) error {
	return r.store.Atomically(ctx, func(ctx context.Context, tx kv.Store) error {
		current, err := tx.Get(ctx, models.KeyAccounts)
		if err != nil {
			return fmt.Errorf("save accounts: %w", err)
		}
		_, unreadable, _ := decode(current)

		out := make([]json.RawMessage, 0, len(accounts)+len(unreadable))
		for _, acc := range accounts {
			b, err := json.Marshal(acc)
			if err != nil {
				return fmt.Errorf("encode account %s: %w", acc.ID, err)
			}
			out = append(out, b)
		}
		for _, u := range unreadable {
			out = append(out, u.raw)
		}

		raw, err := json.Marshal(out)
		if err != nil {
			return fmt.Errorf("encode accounts: %w", err)
		}
		if err := tx.Set(ctx, models.KeyAccounts, raw); err != nil {
			return fmt.Errorf("save accounts: %w", err)
		}
		return nil
	})
}

type unreadableRecord struct {
	index int
	raw   json.RawMessage
	err   error
}

var (
	errNotList   = errors.New("accounts payload is not a list")
	errMissingID = errors.New("account record has no id")
)

// decode splits a stored payload into readable accounts and the raw
// elements that are not. An empty payload is an empty vault.
func decode(raw []byte) ([]models.Account, []unreadableRecord, error) {
	list := []models.Account{}
	if len(raw) == 0 {
		return list, nil, nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return list, nil, err
	}
	if elems == nil {
		return list, nil, errNotList
	}

	var bad []unreadableRecord
	for i, e := range elems {
		var acc models.Account
		err := json.Unmarshal(e, &acc)
		if err == nil && acc.ID == "" {
			err = errMissingID
		}
		if err != nil {
			bad = append(bad, unreadableRecord{index: i, raw: e, err: err})
			continue
		}
		list = append(list, acc)
	}
	return list, bad, nil
}
