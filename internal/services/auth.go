package services

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/dmitrijs2005/otpkeeper/internal/common"
	"github.com/dmitrijs2005/otpkeeper/internal/cryptox"
	"github.com/dmitrijs2005/otpkeeper/internal/logging"
	"github.com/dmitrijs2005/otpkeeper/internal/models"
	"github.com/dmitrijs2005/otpkeeper/internal/repositories/kv"
	"github.com/dmitrijs2005/otpkeeper/internal/timex"
)

var pinPattern = regexp.MustCompile(`^[0-9]{4}$`)

// ValidatePIN checks the PIN format: exactly four digits.
func ValidatePIN(pin string) error {
	if !pinPattern.MatchString(pin) {
		return common.ErrInvalidPIN
	}
	return nil
}

// AuthService manages the stored PIN record and turns a correct PIN into the
// session encryption key.
//
//   - HasPIN reports whether a usable PIN record exists. A legacy record
//     without a salt is discarded.
//   - SetPIN stores a new PIN with fresh auth and encryption salts.
//   - Authenticate verifies a PIN and derives the session key.
//   - RecordLogin stores the login time of day.
//   - Reset removes every piece of vault state.
type AuthService interface {
	HasPIN(ctx context.Context) (bool, error)
	SetPIN(ctx context.Context, pin string) error
	Authenticate(ctx context.Context, pin string) (*cryptox.Key, error)
	RecordLogin(ctx context.Context, at time.Time) error
	Reset(ctx context.Context) error
}

type authService struct {
	store kv.Store
	log   logging.Logger
}

func NewAuthService(store kv.Store, log logging.Logger) AuthService {
	return &authService{store: store, log: log}
}

func (a *authService) pinRecord(ctx context.Context) (models.PinRecord, error) {
	hash, err := a.store.Get(ctx, models.KeyPIN)
	if err != nil {
		return models.PinRecord{}, fmt.Errorf("read pin: %w", err)
	}
	salt, err := a.store.Get(ctx, models.KeyPINSalt)
	if err != nil {
		return models.PinRecord{}, fmt.Errorf("read pin salt: %w", err)
	}
	return models.PinRecord{Hash: string(hash), Salt: string(salt)}, nil
}

func (a *authService) HasPIN(ctx context.Context) (bool, error) {
	rec, err := a.pinRecord(ctx)
	if err != nil {
		return false, err
	}
	if rec.Legacy() {
		a.log.Warn(ctx, "discarding legacy PIN record without salt, a new PIN must be set")
		if err := a.store.Delete(ctx, models.KeyPIN); err != nil {
			return false, fmt.Errorf("discard legacy pin: %w", err)
		}
		return false, nil
	}
	return rec.Hash != "", nil
}

func (a *authService) SetPIN(ctx context.Context, pin string) error {
	if err := ValidatePIN(pin); err != nil {
		return err
	}

	exists, err := a.HasPIN(ctx)
	if err != nil {
		return err
	}
	if exists {
		return common.ErrPINAlreadySet
	}

	pinSalt, err := cryptox.GenerateSalt()
	if err != nil {
		return fmt.Errorf("generate pin salt: %w", err)
	}
	encSalt, err := cryptox.GenerateSalt()
	if err != nil {
		return fmt.Errorf("generate encryption salt: %w", err)
	}

	err = a.store.Atomically(ctx, func(ctx context.Context, tx kv.Store) error {
		if err := tx.Set(ctx, models.KeyPINSalt, []byte(pinSalt)); err != nil {
			return err
		}
		if err := tx.Set(ctx, models.KeyEncryptionSalt, []byte(encSalt)); err != nil {
			return err
		}
		return tx.Set(ctx, models.KeyPIN, []byte(cryptox.HashPIN(pin, pinSalt)))
	})
	if err != nil {
		return fmt.Errorf("store pin: %w", err)
	}

	a.log.Info(ctx, "PIN set")
	return nil
}

func (a *authService) Authenticate(ctx context.Context, pin string) (*cryptox.Key, error) {
	if err := ValidatePIN(pin); err != nil {
		return nil, err
	}

	exists, err := a.HasPIN(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, common.ErrPINNotSet
	}

	rec, err := a.pinRecord(ctx)
	if err != nil {
		return nil, err
	}
	if !cryptox.VerifyPIN(pin, rec.Salt, rec.Hash) {
		return nil, common.ErrUnauthorized
	}

	encSalt, err := a.store.Get(ctx, models.KeyEncryptionSalt)
	if err != nil {
		return nil, fmt.Errorf("read encryption salt: %w", err)
	}
	if len(encSalt) == 0 {
		a.log.Error(ctx, "encryption salt missing after successful PIN check")
		return nil, common.ErrEncryptionSaltMissing
	}

	key, err := cryptox.DeriveKey(pin, string(encSalt))
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

func (a *authService) RecordLogin(ctx context.Context, at time.Time) error {
	if err := a.store.Set(ctx, models.KeyLoginTime, []byte(timex.FormatTimeOfDay(at))); err != nil {
		return fmt.Errorf("record login time: %w", err)
	}
	return nil
}

func (a *authService) Reset(ctx context.Context) error {
	keys := []string{
		models.KeyPIN,
		models.KeyPINSalt,
		models.KeyEncryptionSalt,
		models.KeyAccounts,
		models.KeyLoginTime,
		models.KeyLastUsedPIN,
		models.KeyWebAuthnCredential,
	}

	err := a.store.Atomically(ctx, func(ctx context.Context, tx kv.Store) error {
		for _, k := range keys {
			if err := tx.Delete(ctx, k); err != nil {
				return err
			}
		}
		return tx.DeletePrefix(ctx, models.KeyLastGenerationPrefix)
	})
	if err != nil {
		return fmt.Errorf("reset vault: %w", err)
	}

	a.log.Info(ctx, "vault reset")
	return nil
}
