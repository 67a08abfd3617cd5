package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/shared-session-control/internal/model"
)

// AuditRepo appends and queries the privileged-action journal.
type AuditRepo struct{ DB *sql.DB }

func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{DB: db} }

// Create appends one journal row.
func (r *AuditRepo) Create(ctx context.Context, a *model.AuditLog) error {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO audit_log (actor_id, action, target_type, target_id, metadata) VALUES (?,?,?,?,?)",
		a.ActorID, a.Action, a.TargetType, a.TargetID, nullableJSON(a.Metadata))
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

// ListRecent returns the latest journal rows.
func (r *AuditRepo) ListRecent(ctx context.Context, limit int) ([]model.AuditLog, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id,actor_id,action,target_type,target_id,metadata,created_at
		 FROM audit_log ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []model.AuditLog
	for rows.Next() {
		var (
			a     model.AuditLog
			actor sql.NullInt64
			meta  []byte
		)
		if err := rows.Scan(&a.ID, &actor, &a.Action, &a.TargetType, &a.TargetID, &meta, &a.CreatedAt); err != nil {
			return nil, err
		}
		if actor.Valid {
			id := uint64(actor.Int64)
			a.ActorID = &id
		}
		a.Metadata = meta
		items = append(items, a)
	}
	return items, rows.Err()
}
