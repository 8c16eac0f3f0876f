package core

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestIdentityString(t *testing.T) {
	i := Identity{Name: "Test", Email: "test@test.com"}
	if got := i.String(); got != "Test <test@test.com>" {
		t.Fatalf("got %q", got)
	}
}

func TestAuditTouch(t *testing.T) {
	alice := Identity{Name: "Alice", Email: "alice@test.com"}
	bob := Identity{Name: "Bob", Email: "bob@test.com"}
	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	var a Audit
	a.Touch(alice, t1)
	if a.CreatedBy != alice.String() || !a.CreatedAt.Equal(t1) {
		t.Fatalf("first touch did not stamp creator: %+v", a)
	}

	a.Touch(bob, t2)
	if a.CreatedBy != alice.String() || !a.CreatedAt.Equal(t1) {
		t.Fatalf("second touch must not overwrite creator: %+v", a)
	}
	if a.UpdatedBy != bob.String() || !a.UpdatedAt.Equal(t2) {
		t.Fatalf("second touch did not stamp updater: %+v", a)
	}
}

func TestParseIdentityToken(t *testing.T) {
	secret := "test-secret"
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"name":  "Alice",
		"email": "alice@test.com",
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}

	identity, err := ParseIdentityToken(signed, secret)
	if err != nil {
		t.Fatalf("ParseIdentityToken: %v", err)
	}
	if identity.Name != "Alice" || identity.Email != "alice@test.com" {
		t.Fatalf("got %+v", identity)
	}
}

func TestParseIdentityTokenRejectsBadSecret(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"name": "Alice"})
	signed, err := token.SignedString([]byte("right-secret"))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	if _, err := ParseIdentityToken(signed, "wrong-secret"); err == nil {
		t.Fatal("expected signature validation to fail")
	}
}

func TestParseIdentityTokenFallsBackToSubject(t *testing.T) {
	secret := "test-secret"
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "svc-account"})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	identity, err := ParseIdentityToken(signed, secret)
	if err != nil {
		t.Fatalf("ParseIdentityToken: %v", err)
	}
	if identity.Name != "svc-account" {
		t.Fatalf("got %q, want sub fallback", identity.Name)
	}
}

func TestParseIdentityTokenRequiresSecret(t *testing.T) {
	if _, err := ParseIdentityToken("whatever", ""); err != ErrTokenNotConfigured {
		t.Fatalf("got %v, want ErrTokenNotConfigured", err)
	}
}
