// Package security hashes and verifies account password credentials. The
// teacher's own roadmap calls out "implement bcrypt password hashing and
// validation" as the first item under core authentication; this wires that
// already-declared dependency in instead of leaving it a TODO.
package security

import "golang.org/x/crypto/bcrypt"

// HashPassword produces a bcrypt hash of a plaintext password suitable for
// storage as Account.PasswordHash.
func HashPassword(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether plaintext matches the stored bcrypt hash.
func VerifyPassword(hash, plaintext string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
