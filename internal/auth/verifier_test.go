package auth

import (
	"testing"
	"time"

	"roomcoordinator/pkg/types"
)

func TestJWTVerifier_ValidToken(t *testing.T) {
	secret := "test-secret"
	token, err := IssueForTesting(secret, "doctor-123", "doc@example.com", "doctor", time.Hour)
	if err != nil {
		t.Fatalf("IssueForTesting() error = %v", err)
	}

	v := NewJWTVerifier(secret)
	p, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if p.ID != "doctor-123" || p.Email != "doc@example.com" || p.Kind != "doctor" {
		t.Errorf("Verify() = %+v, unexpected fields", p)
	}
}

func TestJWTVerifier_ExpiredToken(t *testing.T) {
	secret := "test-secret"
	token, err := IssueForTesting(secret, "doctor-123", "doc@example.com", "doctor", -time.Hour)
	if err != nil {
		t.Fatalf("IssueForTesting() error = %v", err)
	}

	v := NewJWTVerifier(secret)
	_, err = v.Verify(token)
	if err == nil {
		t.Fatal("expected error for expired token")
	}
	if types.KindOf(err) != types.KindUnauthenticated {
		t.Errorf("KindOf(err) = %v, want %v", types.KindOf(err), types.KindUnauthenticated)
	}
}

func TestJWTVerifier_WrongSecret(t *testing.T) {
	token, err := IssueForTesting("secret-a", "doctor-123", "doc@example.com", "doctor", time.Hour)
	if err != nil {
		t.Fatalf("IssueForTesting() error = %v", err)
	}

	v := NewJWTVerifier("secret-b")
	if _, err := v.Verify(token); err == nil {
		t.Fatal("expected error for token signed with a different secret")
	}
}

func TestJWTVerifier_MalformedToken(t *testing.T) {
	v := NewJWTVerifier("test-secret")
	if _, err := v.Verify("not-a-jwt"); err == nil {
		t.Fatal("expected error for malformed token")
	}
}
