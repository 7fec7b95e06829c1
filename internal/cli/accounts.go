package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/otpkeeper/internal/common"
	"github.com/dmitrijs2005/otpkeeper/internal/models"
)

// Add prompts for a name (unless given as arguments) and a secret, which
// may be Base32 or an otpauth:// URI. A short secret needs confirmation.
func (a *App) Add(ctx context.Context, args []string) error {
	if _, err := a.ctrl.ListAccounts(ctx); err != nil {
		return err
	}

	name := strings.Join(args, " ")
	if name == "" {
		var err error
		name, err = getSimpleText(a.reader, "Account name (empty to take it from an otpauth:// URI)", a.out.Writer())
		if err != nil {
			return err
		}
	}
	secret, err := getSimpleText(a.reader, "Secret key (Base32 or otpauth:// URI)", a.out.Writer())
	if err != nil {
		return err
	}

	acc, err := a.ctrl.AddAccount(ctx, name, secret, false)
	if errors.Is(err, common.ErrWeakSecret) {
		ok, cerr := confirm(a.reader, "The secret is shorter than usual. Add it anyway?", a.out.Writer())
		if cerr != nil || !ok {
			return cerr
		}
		acc, err = a.ctrl.AddAccount(ctx, name, secret, true)
	}
	if err != nil {
		return err
	}

	a.out.Printf("Added %s (%s).\n", acc.Name, acc.ID)
	return nil
}

func (a *App) Delete(ctx context.Context, args []string) error {
	acc, err := a.pickAccount(ctx, args, "Account id to delete")
	if err != nil {
		return err
	}

	ok, err := confirm(a.reader, fmt.Sprintf("Delete %s?", acc.Name), a.out.Writer())
	if err != nil || !ok {
		return err
	}
	if err := a.ctrl.DeleteAccount(ctx, acc.ID); err != nil {
		return err
	}
	a.out.Printf("Deleted %s.\n", acc.Name)
	return nil
}

// List prints every account with its current code.
func (a *App) List(ctx context.Context) error {
	views, err := a.ctrl.Codes(ctx)
	if err != nil {
		return err
	}
	writeCodes(a.out.Writer(), views)
	return nil
}

// Watch streams codes and the countdown until Enter is pressed.
func (a *App) Watch(ctx context.Context) error {
	if _, err := a.ctrl.ListAccounts(ctx); err != nil {
		return err
	}
	if !a.ctrl.Visible() {
		a.out.Println("Code generation is paused; use 'show' to resume.")
	}

	a.out.SetLive(true)
	defer a.out.SetLive(false)
	a.out.Println("Watching codes, press Enter to stop.")
	if err := a.ctrl.Refresh(ctx); err != nil {
		return err
	}
	_, _ = a.reader.ReadString('\n')
	return nil
}

func (a *App) SetVisible(ctx context.Context, visible bool) error {
	a.ctrl.SetVisible(visible)
	if visible {
		a.out.Println("Code generation resumed.")
	} else {
		a.out.Println("Code generation paused; the session timer keeps running.")
	}
	return nil
}

// pickAccount resolves args[0], or a prompted id, to an account. Any
// unique id prefix is accepted.
func (a *App) pickAccount(ctx context.Context, args []string, prompt string) (models.Account, error) {
	list, err := a.ctrl.ListAccounts(ctx)
	if err != nil {
		return models.Account{}, err
	}

	var ref string
	if len(args) > 0 {
		ref = args[0]
	} else if ref, err = getSimpleText(a.reader, prompt, a.out.Writer()); err != nil {
		return models.Account{}, err
	}
	return findAccount(list, ref)
}

func findAccount(list []models.Account, ref string) (models.Account, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return models.Account{}, fmt.Errorf("account id is required")
	}

	var found []models.Account
	for _, acc := range list {
		if string(acc.ID) == ref {
			return acc, nil
		}
		if strings.HasPrefix(string(acc.ID), ref) {
			found = append(found, acc)
		}
	}
	switch len(found) {
	case 0:
		return models.Account{}, fmt.Errorf("account %q: %w", ref, common.ErrNotFound)
	case 1:
		return found[0], nil
	default:
		return models.Account{}, fmt.Errorf("account id %q is ambiguous, %d matches", ref, len(found))
	}
}
