package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/shared-session-control/internal/model"
	"github.com/iliyamo/shared-session-control/internal/utils"
)

// UserRepo persists users and the billing projection columns.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = `id,email,password_hash,role,status,current_session_token,
last_login_at,last_login_ip,is_trial_active,is_billing_active,
trial_start_date,trial_end_date,billing_cycle,billing_cycle_start_date,
billing_cycle_end_date,created_at,updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (model.User, error) {
	var (
		u          model.User
		token      sql.NullString
		lastLogin  sql.NullTime
		lastIP     sql.NullString
		trialStart sql.NullTime
		trialEnd   sql.NullTime
		cycle      sql.NullString
		cycleStart sql.NullTime
		cycleEnd   sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.Status, &token,
		&lastLogin, &lastIP, &u.IsTrialActive, &u.IsBillingActive,
		&trialStart, &trialEnd, &cycle, &cycleStart, &cycleEnd,
		&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return model.User{}, err
	}
	if token.Valid {
		u.CurrentSessionToken = &token.String
	}
	if lastLogin.Valid {
		u.LastLoginAt = &lastLogin.Time
	}
	if lastIP.Valid {
		u.LastLoginIP = &lastIP.String
	}
	if trialStart.Valid {
		u.TrialStartDate = &trialStart.Time
	}
	if trialEnd.Valid {
		u.TrialEndDate = &trialEnd.Time
	}
	if cycle.Valid {
		u.BillingCycle = &cycle.String
	}
	if cycleStart.Valid {
		u.BillingCycleStart = &cycleStart.Time
	}
	if cycleEnd.Valid {
		u.BillingCycleEnd = &cycleEnd.Time
	}
	return u, nil
}

// Create inserts a user and returns its ID. The password is hashed here so
// callers never handle plaintext past this boundary.
func (r *UserRepo) Create(ctx context.Context, email, password, role string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, role) VALUES (?,?,?)",
		email, hash, role)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// isDuplicate detects the MySQL duplicate-key error (1062).
func isDuplicate(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "1062")
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
	if err == sql.ErrNoRows {
		return model.User{}, ErrNotFound
	}
	return u, err
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
	if err == sql.ErrNoRows {
		return model.User{}, ErrNotFound
	}
	return u, err
}

// GetByIDForUpdate loads a user inside tx holding a row lock. The login
// pipeline serializes concurrent logins for the same user on this lock.
func (r *UserRepo) GetByIDForUpdate(ctx context.Context, tx *sql.Tx, id uint64) (model.User, error) {
	u, err := scanUser(tx.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1 FOR UPDATE", id))
	if err == sql.ErrNoRows {
		return model.User{}, ErrNotFound
	}
	return u, err
}

// List returns all users ordered by creation time.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users ORDER BY created_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateEmail changes the user's email, enforcing uniqueness.
func (r *UserRepo) UpdateEmail(ctx context.Context, id uint64, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	_, err := r.DB.ExecContext(ctx, "UPDATE users SET email=? WHERE id=?", email, id)
	if isDuplicate(err) {
		return ErrEmailExists
	}
	return err
}

// CountOperatorRoots counts operator-root accounts.
func (r *UserRepo) CountOperatorRoots(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE role=?", model.RoleOperatorRoot).Scan(&n)
	return n, err
}

// UpdateRole changes a user's role. Demoting the final operator-root is
// forbidden and returns ErrConflict.
func (r *UserRepo) UpdateRole(ctx context.Context, id uint64, role string) error {
	u, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if u.Role == model.RoleOperatorRoot && role != model.RoleOperatorRoot {
		n, err := r.CountOperatorRoots(ctx)
		if err != nil {
			return err
		}
		if n <= 1 {
			return ErrConflict
		}
	}
	_, err = r.DB.ExecContext(ctx, "UPDATE users SET role=? WHERE id=?", role, id)
	return err
}

// UpdateStatus sets the account status.
func (r *UserRepo) UpdateStatus(ctx context.Context, id uint64, status string) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE users SET status=? WHERE id=?", status, id)
	return err
}

// SetPassword hashes and stores a new password.
func (r *UserRepo) SetPassword(ctx context.Context, id uint64, password string, cost int) error {
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, "UPDATE users SET password_hash=? WHERE id=?", hash, id)
	return err
}

// Delete removes a user. Deleting the final operator-root returns
// ErrConflict.
func (r *UserRepo) Delete(ctx context.Context, id uint64) error {
	u, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if u.Role == model.RoleOperatorRoot {
		n, err := r.CountOperatorRoots(ctx)
		if err != nil {
			return err
		}
		if n <= 1 {
			return ErrConflict
		}
	}
	_, err = r.DB.ExecContext(ctx, "DELETE FROM users WHERE id=?", id)
	return err
}

// CommitLoginTx stamps the successful-login state inside the login
// transaction: last login time and IP plus the new current session token.
func (r *UserRepo) CommitLoginTx(ctx context.Context, tx *sql.Tx, id uint64, ip, accessToken string, at time.Time) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE users SET last_login_at=?, last_login_ip=?, current_session_token=? WHERE id=?",
		at, ip, accessToken, id)
	return err
}

// SetCurrentSessionToken replaces the user's current session token. Passing
// nil clears it (logout / force logout).
func (r *UserRepo) SetCurrentSessionToken(ctx context.Context, id uint64, token *string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET current_session_token=? WHERE id=?", token, id)
	return err
}

// UpdateCycleFields materializes a billing cycle onto the user row and
// clears trial fields.
func (r *UserRepo) UpdateCycleFields(ctx context.Context, id uint64, cycle string, start, end time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE users SET billing_cycle=?, billing_cycle_start_date=?, billing_cycle_end_date=?,
		 is_billing_active=1, is_trial_active=0, trial_start_date=NULL, trial_end_date=NULL
		 WHERE id=?`,
		cycle, start, end, id)
	return err
}

// UpdateTrialFields materializes a trial window onto the user row and clears
// cycle fields.
func (r *UserRepo) UpdateTrialFields(ctx context.Context, id uint64, start, end time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE users SET trial_start_date=?, trial_end_date=?,
		 is_trial_active=1, is_billing_active=0,
		 billing_cycle=NULL, billing_cycle_start_date=NULL, billing_cycle_end_date=NULL
		 WHERE id=?`,
		start, end, id)
	return err
}

// ListExpired returns users whose active trial or cycle ended before now and
// whose account is not already disabled. The sweeper disables each hit.
func (r *UserRepo) ListExpired(ctx context.Context, now time.Time) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+userColumns+` FROM users
		 WHERE status <> ?
		   AND ((is_billing_active=1 AND billing_cycle_end_date < ?)
		     OR (is_trial_active=1 AND trial_end_date < ?))`,
		model.StatusDisabled, now, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// DisableExpired flips one expired user to DISABLED and clears the active
// flags. The status guard makes the sweep idempotent under overlap: the
// update reports zero affected rows when another run got there first.
func (r *UserRepo) DisableExpired(ctx context.Context, id uint64) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET status=?, is_billing_active=0, is_trial_active=0
		 WHERE id=? AND status <> ?`,
		model.StatusDisabled, id, model.StatusDisabled)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
