package auth

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"quoteflow/internal/apperr"
	"quoteflow/internal/audit"
	"quoteflow/internal/models"
	"quoteflow/internal/store"
)

// Authenticator checks credentials against stored users and issues tokens.
type Authenticator struct {
	store   store.Store
	tokens  *TokenIssuer
	lockout *Lockout
	log     zerolog.Logger
}

func NewAuthenticator(s store.Store, tokens *TokenIssuer, lockout *Lockout, log zerolog.Logger) *Authenticator {
	if lockout == nil {
		lockout = NewLockout()
	}
	return &Authenticator{store: s, tokens: tokens, lockout: lockout, log: log.With().Str("component", "auth").Logger()}
}

type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

var errBadCredentials = apperr.New(apperr.KindUnauthenticated, "invalid username or password")

// Login verifies username and password. Unknown users, wrong passwords and
// inactive accounts fail the same way.
func (a *Authenticator) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperr.Validation("username", "username and password are required")
	}
	if a.lockout.IsLocked(username) {
		a.log.Warn().Str("username", username).Msg("login attempt on locked account")
		return nil, apperr.New(apperr.KindUnauthenticated, "account temporarily locked, try again later")
	}

	var user *models.User
	err := a.store.InTx(ctx, func(tx store.Tx) error {
		u, err := tx.GetUserByUsername(ctx, username)
		if err != nil {
			return err
		}
		if !u.Active || !CheckPassword(u.PasswordHash, password) {
			return errBadCredentials
		}
		user = u
		return audit.Log(ctx, tx, u.Principal(), audit.ActionLogin, audit.ModuleAuth, u.ID, "logged in")
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound || apperr.KindOf(err) == apperr.KindUnauthenticated {
			a.lockout.Fail(username)
			a.log.Info().Str("username", username).Msg("failed login")
			return nil, errBadCredentials
		}
		return nil, err
	}
	a.lockout.Reset(username)

	token, exp, err := a.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	a.log.Info().Str("username", user.Username).Str("role", string(user.Role)).Msg("login")
	return &LoginResult{Token: token, ExpiresAt: exp, User: user}, nil
}

// Me returns the stored user behind p.
func (a *Authenticator) Me(ctx context.Context, p *models.Principal) (*models.User, error) {
	if p == nil {
		return nil, apperr.Unauthenticated()
	}
	var user *models.User
	err := a.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		user, err = tx.GetUser(ctx, p.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !user.Active {
		return nil, apperr.Unauthenticated()
	}
	return user, nil
}

// Authenticate turns a bearer token into a principal. The user is re-read so
// deactivation and role changes apply before the token expires.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (*models.Principal, error) {
	claims, err := a.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	var user *models.User
	err = a.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		user, err = tx.GetUser(ctx, claims.UserID)
		return err
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, apperr.Unauthenticated()
		}
		return nil, err
	}
	if !user.Active {
		a.log.Info().Str("username", user.Username).Msg("token of inactive user rejected")
		return nil, apperr.Unauthenticated()
	}
	return user.Principal(), nil
}
