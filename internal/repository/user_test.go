package repository

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakhistudio/gallery-service/internal/model"
)

func newUserMock(t *testing.T) (pgxmock.PgxPoolIface, *UserRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewUserRepository(mock)
}

func TestUserCreate(t *testing.T) {
	mock, repo := newUserMock(t)

	mock.ExpectExec("INSERT INTO users").
		WithArgs(pgxmock.AnyArg(), "owner@sakhi.test", "hashed", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	user, err := repo.Create(context.Background(), "owner@sakhi.test", "hashed")
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "owner@sakhi.test", user.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserGetByEmail(t *testing.T) {
	mock, repo := newUserMock(t)

	now := time.Now()
	mock.ExpectQuery("SELECT id, email, password_hash").
		WithArgs("owner@sakhi.test").
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "password_hash", "created_at"}).
			AddRow("u-1", "owner@sakhi.test", "hashed", now))

	user, err := repo.GetByEmail(context.Background(), "owner@sakhi.test")
	require.NoError(t, err)
	assert.Equal(t, "u-1", user.ID)

	mock.ExpectQuery("SELECT id, email, password_hash").
		WithArgs("nobody@sakhi.test").
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "password_hash", "created_at"}))

	_, err = repo.GetByEmail(context.Background(), "nobody@sakhi.test")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserRole(t *testing.T) {
	mock, repo := newUserMock(t)

	mock.ExpectQuery("SELECT role FROM user_roles").
		WithArgs("u-1").
		WillReturnRows(pgxmock.NewRows([]string{"role"}).AddRow(model.RoleAdmin))

	role, err := repo.Role(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, role)

	mock.ExpectQuery("SELECT role FROM user_roles").
		WithArgs("u-2").
		WillReturnRows(pgxmock.NewRows([]string{"role"}))

	_, err = repo.Role(context.Background(), "u-2")
	assert.ErrorIs(t, err, ErrNotFound,
		"a user without a role row is indistinguishable from a regular user")
}

func TestUserSetAndClearRole(t *testing.T) {
	mock, repo := newUserMock(t)

	mock.ExpectExec("INSERT INTO user_roles").
		WithArgs("u-1", model.RoleAdmin).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, repo.SetRole(context.Background(), "u-1", model.RoleAdmin))

	mock.ExpectExec("DELETE FROM user_roles").
		WithArgs("u-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, repo.ClearRole(context.Background(), "u-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRevocation(t *testing.T) {
	mock, repo := newUserMock(t)
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO revoked_tokens").
		WithArgs("jti-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, repo.RevokeToken(ctx, "jti-1", time.Now().Add(time.Hour)))

	mock.ExpectQuery("SELECT jti FROM revoked_tokens").
		WithArgs("jti-1").
		WillReturnRows(pgxmock.NewRows([]string{"jti"}).AddRow("jti-1"))
	revoked, err := repo.IsTokenRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	mock.ExpectQuery("SELECT jti FROM revoked_tokens").
		WithArgs("jti-2").
		WillReturnRows(pgxmock.NewRows([]string{"jti"}))
	revoked, err = repo.IsTokenRevoked(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)
}
