package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/shared-session-control/internal/model"
)

// HistoryRepo appends and queries login_history rows. Writes are best-effort
// from the caller's perspective; a failed insert must never fail a login.
type HistoryRepo struct{ DB *sql.DB }

func NewHistoryRepo(db *sql.DB) *HistoryRepo { return &HistoryRepo{DB: db} }

const historyColumns = `id,user_id,email,ip,city,country,latitude,longitude,
device_fingerprint,success,failure_reason,created_at`

func scanHistory(row rowScanner) (model.LoginHistory, error) {
	var (
		h       model.LoginHistory
		userID  sql.NullInt64
		city    sql.NullString
		country sql.NullString
		lat     sql.NullFloat64
		lon     sql.NullFloat64
		reason  sql.NullString
	)
	err := row.Scan(&h.ID, &userID, &h.Email, &h.IP, &city, &country, &lat, &lon,
		&h.DeviceFingerprint, &h.Success, &reason, &h.CreatedAt)
	if err != nil {
		return model.LoginHistory{}, err
	}
	if userID.Valid {
		uid := uint64(userID.Int64)
		h.UserID = &uid
	}
	if city.Valid {
		h.City = &city.String
	}
	if country.Valid {
		h.Country = &country.String
	}
	if lat.Valid {
		h.Latitude = &lat.Float64
	}
	if lon.Valid {
		h.Longitude = &lon.Float64
	}
	if reason.Valid {
		h.FailureReason = &reason.String
	}
	return h, nil
}

// Create appends one attempt row.
func (r *HistoryRepo) Create(ctx context.Context, h *model.LoginHistory) error {
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO login_history
		 (user_id, email, ip, city, country, latitude, longitude, device_fingerprint, success, failure_reason)
		 VALUES (?,?,?,?,?,?,?,?,?,?)`,
		h.UserID, h.Email, h.IP, h.City, h.Country, h.Latitude, h.Longitude,
		h.DeviceFingerprint, h.Success, h.FailureReason)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	h.ID = uint64(id)
	return nil
}

// CountRecentFailures counts failed attempts for the user since the cutoff.
// Drives the escalating severity of FAILED_LOGIN alerts.
func (r *HistoryRepo) CountRecentFailures(ctx context.Context, userID uint64, since time.Time) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM login_history WHERE user_id=? AND success=0 AND created_at >= ?",
		userID, since).Scan(&n)
	return n, err
}

// ListByUser returns the user's attempts, most recent first.
func (r *HistoryRepo) ListByUser(ctx context.Context, userID uint64, limit int) ([]model.LoginHistory, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+historyColumns+" FROM login_history WHERE user_id=? ORDER BY created_at DESC LIMIT ?",
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectHistory(rows)
}

// ListRecent returns the latest attempts across all users.
func (r *HistoryRepo) ListRecent(ctx context.Context, limit int) ([]model.LoginHistory, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+historyColumns+" FROM login_history ORDER BY created_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectHistory(rows)
}

func collectHistory(rows *sql.Rows) ([]model.LoginHistory, error) {
	var items []model.LoginHistory
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, h)
	}
	return items, rows.Err()
}
