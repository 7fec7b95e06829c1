package cli

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/otpkeeper/internal/otp"
	"github.com/skip2/go-qrcode"
)

// QR prints an account's otpauth:// URI as a terminal QR code so it can be
// scanned into another authenticator.
func (a *App) QR(ctx context.Context, args []string) error {
	acc, err := a.pickAccount(ctx, args, "Account id to export")
	if err != nil {
		return err
	}
	secret, err := a.ctrl.Secret(ctx, acc.ID)
	if err != nil {
		return err
	}

	uri := otp.FormatURI(otp.KeyInfo{Issuer: "OTPKeeper", AccountName: acc.Name, Secret: secret})
	art, err := renderQR(uri)
	if err != nil {
		return err
	}

	a.out.Println("Anyone who sees this code can copy the secret.")
	a.out.Println(art)
	return nil
}

// renderQR draws the code with half-block characters, two modules per
// character row.
func renderQR(content string) (string, error) {
	q, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return "", err
	}
	bitmap := q.Bitmap()

	var sb strings.Builder
	for y := 0; y < len(bitmap); y += 2 {
		for x := range bitmap[y] {
			top := bitmap[y][x]
			bottom := y+1 < len(bitmap) && bitmap[y+1][x]
			switch {
			case top && bottom:
				sb.WriteRune('█')
			case top:
				sb.WriteRune('▀')
			case bottom:
				sb.WriteRune('▄')
			default:
				sb.WriteRune(' ')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}
