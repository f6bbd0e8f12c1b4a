package catalog

import "github.com/pquerna/otp/totp"

// verifyTOTPCode checks a client-submitted code against an account's
// enrolled TOTP secret. It lives here (rather than only in internal/mfa) so
// Login can gate on it without the catalog depending back on the endpoint
// layer that drives enrollment.
func verifyTOTPCode(secret, code string) (bool, error) {
	if secret == "" || code == "" {
		return false, nil
	}
	return totp.Validate(code, secret), nil
}
