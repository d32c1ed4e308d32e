// Package auth is the single source of truth for who is signed in and
// whether they are an admin.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakhistudio/gallery-service/internal/model"
	"github.com/sakhistudio/gallery-service/internal/repository"
)

// MinPasswordLen is enforced by callers before SignUp is invoked.
const MinPasswordLen = 6

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
)

// UserSource is the account storage the gate depends on.
type UserSource interface {
	Create(ctx context.Context, email, passwordHash string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	Role(ctx context.Context, userID string) (string, error)
	RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

// Gate authenticates users and derives their admin status. All session state
// mutations flow through it so IsAdmin is never read stale relative to the
// identity.
type Gate struct {
	users       UserSource
	tokens      *TokenIssuer
	roleTimeout time.Duration
	log         *zap.SugaredLogger
	sessions    *Tracker
}

// NewGate constructs a Gate.
func NewGate(users UserSource, tokens *TokenIssuer, roleTimeout time.Duration, log *zap.SugaredLogger) *Gate {
	if roleTimeout <= 0 {
		roleTimeout = 10 * time.Second
	}
	return &Gate{
		users:       users,
		tokens:      tokens,
		roleTimeout: roleTimeout,
		log:         log,
		sessions:    NewTracker(),
	}
}

// Sessions exposes the session tracker for subscribers.
func (g *Gate) Sessions() *Tracker {
	return g.sessions
}

// SignIn verifies credentials, derives the admin flag, and issues a token.
// The admin lookup happens before returning so callers never observe a
// signed-in identity with a stale flag.
func (g *Gate) SignIn(ctx context.Context, email, password string) (*Session, error) {
	user, err := g.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("look up user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	isAdmin := g.IsAdmin(ctx, user.ID)
	token, expiresAt, err := g.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	session := &Session{
		UserID:    user.ID,
		Email:     user.Email,
		IsAdmin:   isAdmin,
		Token:     token,
		ExpiresAt: expiresAt,
	}
	g.sessions.SignedIn(session)
	return session, nil
}

// SignUp creates a new account. It never grants admin rights; roles are
// assigned out of band via galleryctl.
func (g *Gate) SignUp(ctx context.Context, email, password string) error {
	if _, err := g.users.GetByEmail(ctx, email); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("look up user: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if _, err := g.users.Create(ctx, email, string(hash)); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// SignOut revokes the token best effort and clears the tracked session
// unconditionally. A failed revocation write never blocks local sign-out.
func (g *Gate) SignOut(ctx context.Context, claims *Claims) {
	if claims != nil {
		if err := g.users.RevokeToken(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
			g.log.Warnf("revoke token: %v", err)
		}
	}
	g.sessions.SignedOut()
}

// IsAdmin performs the fail-closed role lookup: true iff the user_roles row
// exists and its role equals "admin". Missing rows, query errors, and
// timeouts all yield false, never an error.
func (g *Gate) IsAdmin(ctx context.Context, userID string) bool {
	ctx, cancel := context.WithTimeout(ctx, g.roleTimeout)
	defer cancel()

	role, err := g.users.Role(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			g.log.Warnf("role lookup for %s: %v", userID, err)
		}
		return false
	}
	return role == model.RoleAdmin
}

// Verify parses a bearer token and rejects revoked ones. Denylist read
// errors are logged and treated as not revoked; the token signature and
// expiry checks already happened by then.
func (g *Gate) Verify(ctx context.Context, token string) (*Claims, error) {
	claims, err := g.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	revoked, err := g.users.IsTokenRevoked(ctx, claims.ID)
	if err != nil {
		g.log.Warnf("revocation check: %v", err)
	} else if revoked {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// Close releases every session subscription. Call on shutdown.
func (g *Gate) Close() {
	g.sessions.Close()
}
