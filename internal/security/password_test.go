package security

import "testing"

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("p1")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !VerifyPassword(hash, "p1") {
		t.Fatal("VerifyPassword should accept the original password")
	}
	if VerifyPassword(hash, "p2") {
		t.Fatal("VerifyPassword should reject a wrong password")
	}
}

func TestVerifyPasswordRejectsEmptyHash(t *testing.T) {
	if VerifyPassword("", "anything") {
		t.Fatal("VerifyPassword should reject an empty stored hash")
	}
}
