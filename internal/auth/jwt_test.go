package auth

import (
	"testing"
	"time"
)

func TestIssueAndParse(t *testing.T) {
	tokens, err := Issue("Pat Teacher", "pteacher@example.edu", "elderpass", "secret", time.Hour, 24*time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := Parse(tokens.AccessToken, "secret", "elderpass")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Name != "Pat Teacher" || claims.Email != "pteacher@example.edu" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestParseRejectsWrongKey(t *testing.T) {
	tokens, err := Issue("Pat Teacher", "pteacher@example.edu", "elderpass", "secret", time.Hour, 24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Parse(tokens.AccessToken, "other-secret", "elderpass"); err == nil {
		t.Fatal("expected signature verification failure")
	}
}

func TestParseRejectsIssuerMismatch(t *testing.T) {
	tokens, err := Issue("Pat Teacher", "pteacher@example.edu", "someone-else", "secret", time.Hour, 24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Parse(tokens.AccessToken, "secret", "elderpass"); err == nil {
		t.Fatal("expected issuer mismatch")
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	tokens, err := Issue("Pat Teacher", "pteacher@example.edu", "elderpass", "secret", -time.Minute, 24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Parse(tokens.AccessToken, "secret", "elderpass"); err == nil {
		t.Fatal("expected expiry failure")
	}
}
