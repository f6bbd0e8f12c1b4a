// Package mfa implements TOTP second-factor enrollment (SPEC_FULL §2):
// generating a per-account secret and rendering it as both an otpauth://
// URL and a scannable QR code, and validating the confirmation code that
// flips an account's TOTPEnabled flag.
package mfa

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// qrSizePixels is the rendered QR code's edge length. Large enough for a
// phone camera to scan off a terminal or thin client comfortably.
const qrSizePixels = 256

// Enrollment is the reply payload for ENABLE_MFA (spec §6).
type Enrollment struct {
	Secret     string
	OTPAuthURL string
	QRPNGBase64 string
}

// Begin generates a new TOTP secret for username under issuer and renders
// it as a QR-encoded PNG. The secret is not yet active: callers must
// persist it via Catalog.SetTOTPSecret and only flip TOTPEnabled once the
// client proves possession of it through Confirm.
func Begin(issuer, username string) (Enrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: username,
	})
	if err != nil {
		return Enrollment{}, fmt.Errorf("mfa: generate key: %w", err)
	}

	png, err := renderQR(key)
	if err != nil {
		return Enrollment{}, err
	}

	return Enrollment{
		Secret:      key.Secret(),
		OTPAuthURL:  key.String(),
		QRPNGBase64: png,
	}, nil
}

func renderQR(key *otp.Key) (string, error) {
	code, err := qr.Encode(key.String(), qr.M, qr.Auto)
	if err != nil {
		return "", fmt.Errorf("mfa: encode qr: %w", err)
	}
	code, err = barcode.Scale(code, qrSizePixels, qrSizePixels)
	if err != nil {
		return "", fmt.Errorf("mfa: scale qr: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, code); err != nil {
		return "", fmt.Errorf("mfa: render png: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Confirm validates a client-submitted code against secret, the check
// CONFIRM_MFA applies before flipping TOTPEnabled.
func Confirm(secret, code string) bool {
	if secret == "" || code == "" {
		return false
	}
	return totp.Validate(code, secret)
}
