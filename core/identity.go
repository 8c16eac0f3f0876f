package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity identifies the author of a commit or working-commit edit.
// It plays the same role as a Git commit author: {Name, Email}.
type Identity struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// String renders the identity in "Name <email>" form, matching the author
// format used throughout the persistence layer.
func (i Identity) String() string {
	return fmt.Sprintf("%s <%s>", i.Name, i.Email)
}

// Audit records who created and last updated a schema or instance object
// and when. Every schema class and instance carries one.
type Audit struct {
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedBy string    `json:"updated_by"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Touch stamps Audit for a new edit made by identity at now.
func (a *Audit) Touch(identity Identity, now time.Time) {
	if a.CreatedBy == "" {
		a.CreatedBy = identity.String()
		a.CreatedAt = now
	}
	a.UpdatedBy = identity.String()
	a.UpdatedAt = now
}

var ErrTokenNotConfigured = errors.New("identity token parsing is not configured")

// identityClaims is the minimal set of claims ParseIdentityToken reads out
// of a bearer token. Unknown/extra claims are ignored.
type identityClaims struct {
	jwt.RegisteredClaims
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ParseIdentityToken validates an HS256 JWT against secret and resolves it
// into an Identity. It is a standalone adaptation of the token-validation
// step an authenticated transport would perform before handing control to
// the core; no transport is implied or required here.
func ParseIdentityToken(tokenString, secret string) (Identity, error) {
	if secret == "" {
		return Identity{}, ErrTokenNotConfigured
	}

	claims := &identityClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Method)
		}
		return []byte(secret), nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("parse identity token: %w", err)
	}
	if !token.Valid {
		return Identity{}, fmt.Errorf("parse identity token: token invalid")
	}

	name := claims.Name
	if name == "" {
		name = claims.Subject
	}
	if name == "" {
		return Identity{}, fmt.Errorf("parse identity token: missing name/sub claim")
	}

	return Identity{Name: name, Email: claims.Email}, nil
}
