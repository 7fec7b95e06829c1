package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/otpkeeper/internal/logging"
	"github.com/dmitrijs2005/otpkeeper/internal/models"
	"github.com/dmitrijs2005/otpkeeper/internal/repositories/kv"
	"github.com/dmitrijs2005/otpkeeper/internal/timex"
)

const snapshotVersion = 1

var (
	// ErrEmptyVault is returned by Backup when there is no PIN to save.
	ErrEmptyVault = errors.New("nothing to back up: no PIN set")
	// ErrBadSnapshot is returned by Restore for an object that is not a
	// usable snapshot.
	ErrBadSnapshot = errors.New("invalid backup snapshot")
)

// Snapshot is the stored backup document.
type Snapshot struct {
	Version   int               `json:"version"`
	CreatedAt time.Time         `json:"createdAt"`
	Data      map[string]string `json:"data"`
}

// Service moves snapshots between the local store and an ObjectStore.
// Callers must make sure no session is open while restoring.
type Service struct {
	store   kv.Store
	objects ObjectStore
	object  string
	clock   timex.Clock
	log     logging.Logger
}

func NewService(store kv.Store, objects ObjectStore, object string, clock timex.Clock, log logging.Logger) *Service {
	return &Service{store: store, objects: objects, object: object, clock: clock, log: log}
}

// Backup uploads the current snapshot and returns it.
func (s *Service) Backup(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{
		Version:   snapshotVersion,
		CreatedAt: s.clock.Now().UTC(),
		Data:      make(map[string]string, len(models.SnapshotKeys)),
	}
	for _, k := range models.SnapshotKeys {
		v, err := s.store.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		if v != nil {
			snap.Data[k] = string(v)
		}
	}
	if snap.Data[models.KeyPIN] == "" {
		return nil, ErrEmptyVault
	}

	body, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.objects.Put(ctx, s.object, body); err != nil {
		return nil, err
	}

	s.log.Info(ctx, "vault backed up", "object", s.object, "bytes", len(body))
	return snap, nil
}

// Restore replaces the local vault with the stored snapshot in one
// transaction. Per-account window timestamps and the login time are
// dropped with it.
func (s *Service) Restore(ctx context.Context) (*Snapshot, error) {
	body, err := s.objects.Get(ctx, s.object)
	if err != nil {
		return nil, err
	}

	var snap Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("%w: version %d", ErrBadSnapshot, snap.Version)
	}
	for _, k := range []string{models.KeyPIN, models.KeyPINSalt, models.KeyEncryptionSalt} {
		if snap.Data[k] == "" {
			return nil, fmt.Errorf("%w: missing %s", ErrBadSnapshot, k)
		}
	}

	err = s.store.Atomically(ctx, func(ctx context.Context, tx kv.Store) error {
		if err := tx.DeletePrefix(ctx, models.KeyLastGenerationPrefix); err != nil {
			return err
		}
		if err := tx.Delete(ctx, models.KeyLoginTime); err != nil {
			return err
		}
		for _, k := range models.SnapshotKeys {
			v, ok := snap.Data[k]
			if !ok {
				if err := tx.Delete(ctx, k); err != nil {
					return err
				}
				continue
			}
			if err := tx.Set(ctx, k, []byte(v)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("restore snapshot: %w", err)
	}

	s.log.Info(ctx, "vault restored", "object", s.object, "created_at", snap.CreatedAt)
	return &snap, nil
}
