package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/shared-session-control/internal/model"
)

// SessionRepo persists session_activity rows, one per successful login.
type SessionRepo struct{ DB *sql.DB }

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{DB: db} }

const sessionColumns = `id,user_id,session_token,ip,city,country,latitude,longitude,
device_fingerprint,login_at,last_activity_at,is_active,logout_at,logout_reason`

func scanSession(row rowScanner) (model.SessionActivity, error) {
	var (
		s       model.SessionActivity
		city    sql.NullString
		country sql.NullString
		lat     sql.NullFloat64
		lon     sql.NullFloat64
		outAt   sql.NullTime
		reason  sql.NullString
	)
	err := row.Scan(&s.ID, &s.UserID, &s.SessionToken, &s.IP, &city, &country, &lat, &lon,
		&s.DeviceFingerprint, &s.LoginAt, &s.LastActivityAt, &s.IsActive, &outAt, &reason)
	if err != nil {
		return model.SessionActivity{}, err
	}
	if city.Valid {
		s.City = &city.String
	}
	if country.Valid {
		s.Country = &country.String
	}
	if lat.Valid {
		s.Latitude = &lat.Float64
	}
	if lon.Valid {
		s.Longitude = &lon.Float64
	}
	if outAt.Valid {
		s.LogoutAt = &outAt.Time
	}
	if reason.Valid {
		s.LogoutReason = &reason.String
	}
	return s, nil
}

// ActiveByUserTx returns the user's active sessions inside the login
// transaction, most recent login first.
func (r *SessionRepo) ActiveByUserTx(ctx context.Context, tx *sql.Tx, userID uint64) ([]model.SessionActivity, error) {
	rows, err := tx.QueryContext(ctx,
		"SELECT "+sessionColumns+" FROM session_activity WHERE user_id=? AND is_active=1 ORDER BY login_at DESC",
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sessions []model.SessionActivity
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// InvalidateTx closes every active session of the user with the given
// reason. Called from the login pipeline (NEW_LOGIN), logout (MANUAL) and
// force-logout (FORCED_BY_ADMIN).
func (r *SessionRepo) InvalidateTx(ctx context.Context, tx *sql.Tx, userID uint64, reason string, at time.Time) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE session_activity SET is_active=0, logout_at=?, logout_reason=? WHERE user_id=? AND is_active=1",
		at, reason, userID)
	return err
}

// CreateTx inserts a new active session row and populates its ID.
func (r *SessionRepo) CreateTx(ctx context.Context, tx *sql.Tx, s *model.SessionActivity) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO session_activity
		 (user_id, session_token, ip, city, country, latitude, longitude, device_fingerprint, login_at, last_activity_at, is_active)
		 VALUES (?,?,?,?,?,?,?,?,?,?,1)`,
		s.UserID, s.SessionToken, s.IP, s.City, s.Country, s.Latitude, s.Longitude,
		s.DeviceFingerprint, s.LoginAt, s.LastActivityAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	return nil
}

// UpdateToken rewrites the active session's token after a refresh so the
// activity row's identity survives rotation.
func (r *SessionRepo) UpdateToken(ctx context.Context, userID uint64, newToken string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE session_activity SET session_token=? WHERE user_id=? AND is_active=1",
		newToken, userID)
	return err
}

// TouchActivity bumps last_activity_at on the user's active session. Called
// best-effort from the auth middleware.
func (r *SessionRepo) TouchActivity(ctx context.Context, userID uint64, at time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE session_activity SET last_activity_at=? WHERE user_id=? AND is_active=1",
		at, userID)
	return err
}

// Invalidate closes the user's active sessions outside a transaction.
func (r *SessionRepo) Invalidate(ctx context.Context, userID uint64, reason string, at time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE session_activity SET is_active=0, logout_at=?, logout_reason=? WHERE user_id=? AND is_active=1",
		at, reason, userID)
	return err
}

// ListByUser returns the user's sessions, most recent first.
func (r *SessionRepo) ListByUser(ctx context.Context, userID uint64, limit int) ([]model.SessionActivity, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+sessionColumns+" FROM session_activity WHERE user_id=? ORDER BY login_at DESC LIMIT ?",
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sessions []model.SessionActivity
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// ListActive returns every currently active session in the deployment.
func (r *SessionRepo) ListActive(ctx context.Context) ([]model.SessionActivity, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+sessionColumns+" FROM session_activity WHERE is_active=1 ORDER BY login_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sessions []model.SessionActivity
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
