package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/otpkeeper/internal/common"
	"github.com/dmitrijs2005/otpkeeper/internal/cryptox"
	"github.com/dmitrijs2005/otpkeeper/internal/logging"
	"github.com/dmitrijs2005/otpkeeper/internal/models"
	"github.com/dmitrijs2005/otpkeeper/internal/otp"
	"github.com/dmitrijs2005/otpkeeper/internal/repositories/accounts"
	"github.com/dmitrijs2005/otpkeeper/internal/repositories/kv"
)

// MinSecretLength is the length below which a secret is accepted only on
// explicit confirmation.
const MinSecretLength = 16

var secretPattern = regexp.MustCompile(`^[A-Z2-7]+=*$`)

// NormalizeSecret uppercases s and drops the spaces and dashes that
// providers use to group a secret for reading.
func NormalizeSecret(s string) string {
	s = strings.ToUpper(s)
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' || r == '\t' {
			return -1
		}
		return r
	}, s)
}

// ValidateSecret checks a normalized secret. A malformed secret is a hard
// error; a short one returns common.ErrWeakSecret unless allowWeak is set.
func ValidateSecret(secret string, allowWeak bool) error {
	if secret == "" {
		return common.ErrEmptySecret
	}
	if !secretPattern.MatchString(secret) {
		return fmt.Errorf("secret: %w", otp.ErrInvalidBase32)
	}
	if len(strings.TrimRight(secret, "=")) < MinSecretLength && !allowWeak {
		return common.ErrWeakSecret
	}
	return nil
}

// VaultService owns the account list. Every operation that touches a secret
// takes the session key explicitly; the service never holds one.
type VaultService interface {
	List(ctx context.Context) ([]models.Account, error)
	Add(ctx context.Context, key *cryptox.Key, name, secret string, allowWeak bool) (models.Account, error)
	Delete(ctx context.Context, id models.AccountID) error
	Secret(ctx context.Context, key *cryptox.Key, id models.AccountID) (string, error)
	Code(ctx context.Context, key *cryptox.Key, id models.AccountID, at time.Time) (string, error)
	Codes(ctx context.Context, key *cryptox.Key, at time.Time) ([]models.CodeView, error)
	MarkWindow(ctx context.Context, ids []models.AccountID, windowStart time.Time) error
	RemainingSeconds(ctx context.Context, id models.AccountID, at time.Time) (int, error)
}

type vaultService struct {
	repo  accounts.Repository
	store kv.Store
	log   logging.Logger
}

func NewVaultService(repo accounts.Repository, store kv.Store, log logging.Logger) VaultService {
	return &vaultService{repo: repo, store: store, log: log}
}

func (s *vaultService) List(ctx context.Context) ([]models.Account, error) {
	return s.repo.Load(ctx)
}

// Add accepts either a bare Base32 secret or an otpauth://totp/ URI. For a
// URI an empty name falls back to the URI's label.
func (s *vaultService) Add(ctx context.Context, key *cryptox.Key, name, secret string, allowWeak bool) (models.Account, error) {
	name = strings.TrimSpace(name)

	if otp.IsURI(secret) {
		info, err := otp.ParseURI(secret)
		if err != nil {
			return models.Account{}, err
		}
		if name == "" {
			name = info.Label()
		}
		secret = info.Secret
	}

	if name == "" {
		return models.Account{}, common.ErrEmptyName
	}
	secret = NormalizeSecret(secret)
	if err := ValidateSecret(secret, allowWeak); err != nil {
		return models.Account{}, err
	}

	sealed, err := key.Seal(secret)
	if err != nil {
		return models.Account{}, fmt.Errorf("encrypt secret: %w", err)
	}
	id, err := models.NewAccountID()
	if err != nil {
		return models.Account{}, err
	}

	list, err := s.repo.Load(ctx)
	if err != nil {
		return models.Account{}, err
	}
	acc := models.Account{ID: id, Name: name, EncryptedSecret: sealed.Ciphertext, IV: sealed.IV}
	if err := s.repo.Save(ctx, append(list, acc)); err != nil {
		return models.Account{}, err
	}

	s.log.Info(ctx, "account added", "id", id, "name", name)
	return acc, nil
}

func (s *vaultService) Delete(ctx context.Context, id models.AccountID) error {
	list, err := s.repo.Load(ctx)
	if err != nil {
		return err
	}

	idx := indexOf(list, id)
	if idx < 0 {
		return fmt.Errorf("account %s: %w", id, common.ErrNotFound)
	}
	list = append(list[:idx], list[idx+1:]...)

	if err := s.repo.Save(ctx, list); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, models.LastGenerationKey(id)); err != nil {
		s.log.Warn(ctx, "failed to drop generation timestamp", "id", id, "error", err)
	}

	s.log.Info(ctx, "account deleted", "id", id)
	return nil
}

func (s *vaultService) find(ctx context.Context, id models.AccountID) (models.Account, error) {
	list, err := s.repo.Load(ctx)
	if err != nil {
		return models.Account{}, err
	}
	idx := indexOf(list, id)
	if idx < 0 {
		return models.Account{}, fmt.Errorf("account %s: %w", id, common.ErrNotFound)
	}
	return list[idx], nil
}

func (s *vaultService) Secret(ctx context.Context, key *cryptox.Key, id models.AccountID) (string, error) {
	acc, err := s.find(ctx, id)
	if err != nil {
		return "", err
	}
	return open(key, acc)
}

func (s *vaultService) Code(ctx context.Context, key *cryptox.Key, id models.AccountID, at time.Time) (string, error) {
	secret, err := s.Secret(ctx, key, id)
	if err != nil {
		return "", err
	}
	return otp.GenerateCode(secret, at)
}

// Codes computes a view for every account at the same instant. A failing
// account is reported in its own view and never stops the others.
func (s *vaultService) Codes(ctx context.Context, key *cryptox.Key, at time.Time) ([]models.CodeView, error) {
	list, err := s.repo.Load(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]models.CodeView, 0, len(list))
	for _, acc := range list {
		v := models.CodeView{ID: acc.ID, Name: acc.Name, Remaining: otp.RemainingSeconds(at)}
		if r, err := s.RemainingSeconds(ctx, acc.ID, at); err == nil {
			v.Remaining = r
		}

		secret, err := open(key, acc)
		if err != nil {
			s.log.Warn(ctx, "cannot decrypt account", "id", acc.ID, "error", err)
			v.Status, v.Err = models.CodeLocked, err
			views = append(views, v)
			continue
		}

		code, err := otp.GenerateCode(secret, at)
		if err != nil {
			s.log.Warn(ctx, "cannot generate code", "id", acc.ID, "error", err)
			v.Status, v.Err = models.CodeError, err
			views = append(views, v)
			continue
		}

		v.Status, v.Code = models.CodeOK, code
		views = append(views, v)
	}
	return views, nil
}

// MarkWindow records windowStart as the last generation time of each id,
// in Unix milliseconds.
func (s *vaultService) MarkWindow(ctx context.Context, ids []models.AccountID, windowStart time.Time) error {
	value := []byte(strconv.FormatInt(windowStart.UnixMilli(), 10))
	return s.store.Atomically(ctx, func(ctx context.Context, tx kv.Store) error {
		for _, id := range ids {
			if err := tx.Set(ctx, models.LastGenerationKey(id), value); err != nil {
				return fmt.Errorf("mark window: %w", err)
			}
		}
		return nil
	})
}

// RemainingSeconds is 30 minus the whole seconds elapsed since the stored
// generation time, modulo the step. Without a usable timestamp it is 30.
func (s *vaultService) RemainingSeconds(ctx context.Context, id models.AccountID, at time.Time) (int, error) {
	step := int64(otp.Step / time.Second)

	raw, err := s.store.Get(ctx, models.LastGenerationKey(id))
	if err != nil {
		return int(step), err
	}
	if len(raw) == 0 {
		return int(step), nil
	}
	lastMs, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		s.log.Warn(ctx, "ignoring malformed generation timestamp", "id", id)
		return int(step), nil
	}

	elapsed := floorDiv(at.UnixMilli()-lastMs, 1000)
	return int(step - ((elapsed%step)+step)%step), nil
}

func open(key *cryptox.Key, acc models.Account) (string, error) {
	secret, err := key.Open(cryptox.Sealed{IV: acc.IV, Ciphertext: acc.EncryptedSecret})
	if err != nil {
		if errors.Is(err, cryptox.ErrNoKey) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", ErrLocked, err)
	}
	return secret, nil
}

func indexOf(list []models.Account, id models.AccountID) int {
	for i, a := range list {
		if a.ID == id {
			return i
		}
	}
	return -1
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
