package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/shared-session-control/internal/model"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

var userRows = []string{
	"id", "email", "password_hash", "role", "status", "current_session_token",
	"last_login_at", "last_login_ip", "is_trial_active", "is_billing_active",
	"trial_start_date", "trial_end_date", "billing_cycle", "billing_cycle_start_date",
	"billing_cycle_end_date", "created_at", "updated_at",
}

func aliceRow() *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(userRows).AddRow(
		1, "alice@x", "$2a$04$hash", model.RoleUser, model.StatusActive, nil,
		nil, nil, false, false, nil, nil, nil, nil, nil, now, now)
}

func TestGetByEmailNormalizes(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepo(db)

	mock.ExpectQuery("FROM users WHERE email=").
		WithArgs("alice@x").
		WillReturnRows(aliceRow())

	u, err := repo.GetByEmail(context.Background(), "  Alice@X ")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), u.ID)
	assert.Nil(t, u.CurrentSessionToken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByEmailNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepo(db)

	mock.ExpectQuery("FROM users WHERE email=").
		WithArgs("ghost@x").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByEmail(context.Background(), "ghost@x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateDuplicateEmail(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepo(db)

	mock.ExpectExec("INSERT INTO users").
		WillReturnError(errors.New("Error 1062 (23000): Duplicate entry"))

	_, err := repo.Create(context.Background(), "alice@x", "pw", model.RoleUser, 4)
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestDisableExpiredGuard(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepo(db)

	// First call flips the row.
	mock.ExpectExec("UPDATE users SET status=").
		WithArgs(model.StatusDisabled, 7, model.StatusDisabled).
		WillReturnResult(sqlmock.NewResult(0, 1))
	flipped, err := repo.DisableExpired(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, flipped)

	// A second call matches zero rows: the guard reports no flip.
	mock.ExpectExec("UPDATE users SET status=").
		WithArgs(model.StatusDisabled, 7, model.StatusDisabled).
		WillReturnResult(sqlmock.NewResult(0, 0))
	flipped, err = repo.DisableExpired(context.Background(), 7)
	require.NoError(t, err)
	assert.False(t, flipped)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateRoleProtectsLastRoot(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepo(db)

	now := time.Now().UTC()
	rootRow := sqlmock.NewRows(userRows).AddRow(
		1, "root@x", "$2a$04$hash", model.RoleOperatorRoot, model.StatusActive, nil,
		nil, nil, false, false, nil, nil, nil, nil, nil, now, now)

	mock.ExpectQuery("FROM users WHERE id=").WithArgs(uint64(1)).WillReturnRows(rootRow)
	mock.ExpectQuery("SELECT COUNT").WithArgs(model.RoleOperatorRoot).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))

	err := repo.UpdateRole(context.Background(), 1, model.RoleOperator)
	assert.ErrorIs(t, err, ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}
