package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sakhistudio/gallery-service/internal/model"
)

// UserRepository persists accounts and the user_roles lookup table.
type UserRepository struct {
	db DB
}

// NewUserRepository constructs a repository.
func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new account with an already-hashed password.
func (r *UserRepository) Create(ctx context.Context, email, passwordHash string) (*model.User, error) {
	user := &model.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, created_at)
		VALUES ($1,$2,$3,$4)
	`, user.ID, user.Email, user.PasswordHash, user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

// GetByEmail returns the account for an email address.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	row := r.db.QueryRow(ctx, `
		SELECT id, email, password_hash, created_at FROM users WHERE email=$1
	`, email)
	if err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select user: %w", err)
	}
	return &user, nil
}

// Role returns the role row for a user, or ErrNotFound when none exists.
// Callers decide what a missing row means; the admin gate treats every
// failure here as "not admin".
func (r *UserRepository) Role(ctx context.Context, userID string) (string, error) {
	var role string
	row := r.db.QueryRow(ctx, `SELECT role FROM user_roles WHERE user_id=$1`, userID)
	if err := row.Scan(&role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("select role: %w", err)
	}
	return role, nil
}

// SetRole grants or replaces a user's role. Used by the ops CLI, never by the
// API surface.
func (r *UserRepository) SetRole(ctx context.Context, userID, role string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO user_roles (user_id, role) VALUES ($1,$2)
		ON CONFLICT (user_id) DO UPDATE SET role=EXCLUDED.role
	`, userID, role)
	if err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	return nil
}

// RevokeToken records a signed-out token ID until its natural expiry.
func (r *UserRepository) RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO revoked_tokens (jti, expires_at) VALUES ($1,$2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, expiresAt)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// IsTokenRevoked reports whether a token ID was signed out early.
func (r *UserRepository) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var found string
	row := r.db.QueryRow(ctx, `SELECT jti FROM revoked_tokens WHERE jti=$1 AND expires_at > now()`, jti)
	if err := row.Scan(&found); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return true, nil
}

// ClearRole revokes a user's role.
func (r *UserRepository) ClearRole(ctx context.Context, userID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM user_roles WHERE user_id=$1`, userID)
	if err != nil {
		return fmt.Errorf("clear role: %w", err)
	}
	return nil
}
