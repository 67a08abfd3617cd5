package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/shared-session-control/internal/model"
)

// AlertRepo appends and queries security_alerts. Both flags are monotonic:
// the UPDATE statements only ever set them to 1.
type AlertRepo struct{ DB *sql.DB }

func NewAlertRepo(db *sql.DB) *AlertRepo { return &AlertRepo{DB: db} }

const alertColumns = `id,user_id,alert_type,severity,message,metadata,is_read,is_dismissed,created_at`

func scanAlert(row rowScanner) (model.SecurityAlert, error) {
	var (
		a      model.SecurityAlert
		userID sql.NullInt64
		meta   []byte
	)
	err := row.Scan(&a.ID, &userID, &a.AlertType, &a.Severity, &a.Message, &meta,
		&a.IsRead, &a.IsDismissed, &a.CreatedAt)
	if err != nil {
		return model.SecurityAlert{}, err
	}
	if userID.Valid {
		uid := uint64(userID.Int64)
		a.UserID = &uid
	}
	a.Metadata = meta
	return a, nil
}

// Create appends one alert row and populates its ID.
func (r *AlertRepo) Create(ctx context.Context, a *model.SecurityAlert) error {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO security_alerts (user_id, alert_type, severity, message, metadata) VALUES (?,?,?,?,?)",
		a.UserID, a.AlertType, a.Severity, a.Message, nullableJSON(a.Metadata))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = uint64(id)
	return nil
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

// AlertFilter narrows List results. Zero values mean "no filter".
type AlertFilter struct {
	UserID     *uint64
	AlertType  string
	Severity   string
	UnreadOnly bool
	Limit      int
}

// List returns alerts matching the filter, most recent first.
func (r *AlertRepo) List(ctx context.Context, f AlertFilter) ([]model.SecurityAlert, error) {
	q := "SELECT " + alertColumns + " FROM security_alerts WHERE 1=1"
	args := []any{}
	if f.UserID != nil {
		q += " AND user_id=?"
		args = append(args, *f.UserID)
	}
	if f.AlertType != "" {
		q += " AND alert_type=?"
		args = append(args, f.AlertType)
	}
	if f.Severity != "" {
		q += " AND severity=?"
		args = append(args, f.Severity)
	}
	if f.UnreadOnly {
		q += " AND is_read=0 AND is_dismissed=0"
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	q += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var alerts []model.SecurityAlert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// UnreadCount serves the admin UI badge.
func (r *AlertRepo) UnreadCount(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM security_alerts WHERE is_read=0 AND is_dismissed=0").Scan(&n)
	return n, err
}

// CountBySeverity aggregates alert counts for the admin stats endpoint.
func (r *AlertRepo) CountBySeverity(ctx context.Context) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT severity, COUNT(*) FROM security_alerts GROUP BY severity")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[string]int{}
	for rows.Next() {
		var sev string
		var n int
		if err := rows.Scan(&sev, &n); err != nil {
			return nil, err
		}
		counts[sev] = n
	}
	return counts, rows.Err()
}

// MarkRead flips is_read to true. Idempotent: re-marking a read alert is a
// no-op, not an error.
func (r *AlertRepo) MarkRead(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE security_alerts SET is_read=1 WHERE id=?", id)
	return err
}

// Dismiss flips is_dismissed to true. Idempotent like MarkRead.
func (r *AlertRepo) Dismiss(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE security_alerts SET is_dismissed=1 WHERE id=?", id)
	return err
}
