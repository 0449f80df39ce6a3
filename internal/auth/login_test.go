package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"quoteflow/internal/apperr"
	"quoteflow/internal/models"
	"quoteflow/internal/store"
)

const testPassword = "Quote-Flow-2026"

func newAuthenticator(t *testing.T) *Authenticator {
	t.Helper()
	s := store.NewMemory()
	hash, err := HashPassword(testPassword)
	if err != nil {
		t.Fatal(err)
	}
	err = s.InTx(context.Background(), func(tx store.Tx) error {
		if err := tx.CreateUser(context.Background(), &models.User{ID: "u1", Username: "ada", PasswordHash: hash, Role: models.RoleAdmin, Active: true}); err != nil {
			return err
		}
		return tx.CreateUser(context.Background(), &models.User{ID: "u2", Username: "gone", PasswordHash: hash, Role: models.RoleUser, Active: false})
	})
	if err != nil {
		t.Fatal(err)
	}
	ti, err := NewTokenIssuer("a-test-secret-of-some-length", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return NewAuthenticator(s, ti, NewLockout(), zerolog.Nop())
}

func TestLoginIssuesToken(t *testing.T) {
	a := newAuthenticator(t)
	ctx := context.Background()

	res, err := a.Login(ctx, "ada", testPassword)
	if err != nil {
		t.Fatal(err)
	}
	if res.Token == "" || res.User.Username != "ada" {
		t.Fatalf("Expected token for ada, got %+v", res)
	}

	p, err := a.Authenticate(ctx, res.Token)
	if err != nil {
		t.Fatal(err)
	}
	if p.UserID != "u1" || p.Role != models.RoleAdmin {
		t.Errorf("Expected admin principal u1, got %+v", p)
	}

	me, err := a.Me(ctx, p)
	if err != nil {
		t.Fatal(err)
	}
	if me.Username != "ada" {
		t.Errorf("Expected ada, got %s", me.Username)
	}
	if _, err := a.Me(ctx, nil); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Errorf("Expected unauthenticated, got %v", err)
	}
}

func TestLoginFailures(t *testing.T) {
	a := newAuthenticator(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		username string
		password string
		target   error
	}{
		{"wrong password", "ada", "nope", apperr.ErrUnauthenticated},
		{"unknown user", "nobody", testPassword, apperr.ErrUnauthenticated},
		{"inactive user", "gone", testPassword, apperr.ErrUnauthenticated},
		{"missing fields", "", "", apperr.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Login(ctx, tt.username, tt.password)
			if !errors.Is(err, tt.target) {
				t.Errorf("Expected %v, got %v", tt.target, err)
			}
		})
	}
}

func TestAuthenticateRereadsUser(t *testing.T) {
	a := newAuthenticator(t)
	ctx := context.Background()

	tests := []struct {
		name string
		user *models.User
	}{
		{"inactive user", &models.User{ID: "u2", Username: "gone", Role: models.RoleUser}},
		{"deleted user", &models.User{ID: "u9", Username: "ghost", Role: models.RoleAdmin}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok, _, err := a.tokens.Issue(tt.user)
			if err != nil {
				t.Fatal(err)
			}
			if _, err := a.Authenticate(ctx, tok); !errors.Is(err, apperr.ErrUnauthenticated) {
				t.Errorf("Expected unauthenticated, got %v", err)
			}
		})
	}

	// The stored role wins over the role baked into the token.
	tok, _, err := a.tokens.Issue(&models.User{ID: "u1", Username: "ada", Role: models.RoleViewer})
	if err != nil {
		t.Fatal(err)
	}
	p, err := a.Authenticate(ctx, tok)
	if err != nil {
		t.Fatal(err)
	}
	if p.Role != models.RoleAdmin {
		t.Errorf("Expected stored role admin, got %s", p.Role)
	}
}

func TestLoginLockout(t *testing.T) {
	a := newAuthenticator(t)
	ctx := context.Background()
	for i := 0; i < MaxFailedLoginAttempts; i++ {
		a.Login(ctx, "ada", "wrong-password")
	}
	if _, err := a.Login(ctx, "ada", testPassword); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Errorf("Expected locked account to be refused, got %v", err)
	}
}
