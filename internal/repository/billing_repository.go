package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/shared-session-control/internal/model"
)

// BillingRepo persists the append-only payments ledger and the billing
// history audit. Neither table is ever updated after insert.
type BillingRepo struct{ DB *sql.DB }

func NewBillingRepo(db *sql.DB) *BillingRepo { return &BillingRepo{DB: db} }

// CreatePayment appends one ledger row and populates its ID.
func (r *BillingRepo) CreatePayment(ctx context.Context, p *model.Payment) error {
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO payments
		 (user_id, amount, cycle, payment_date, cycle_start_date, cycle_end_date, memo, created_by)
		 VALUES (?,?,?,?,?,?,?,?)`,
		p.UserID, p.Amount, p.Cycle, p.PaymentDate, p.CycleStartDate, p.CycleEndDate, p.Memo, p.CreatedBy)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

// ListPaymentsByUser returns the user's ledger, most recent first.
func (r *BillingRepo) ListPaymentsByUser(ctx context.Context, userID uint64) ([]model.Payment, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id,user_id,amount,cycle,payment_date,cycle_start_date,cycle_end_date,memo,created_by
		 FROM payments WHERE user_id=? ORDER BY payment_date DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var payments []model.Payment
	for rows.Next() {
		var (
			p         model.Payment
			memo      sql.NullString
			createdBy sql.NullInt64
		)
		if err := rows.Scan(&p.ID, &p.UserID, &p.Amount, &p.Cycle, &p.PaymentDate,
			&p.CycleStartDate, &p.CycleEndDate, &memo, &createdBy); err != nil {
			return nil, err
		}
		if memo.Valid {
			p.Memo = &memo.String
		}
		if createdBy.Valid {
			cb := uint64(createdBy.Int64)
			p.CreatedBy = &cb
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// CreateHistory appends one billing-state transition record.
func (r *BillingRepo) CreateHistory(ctx context.Context, h *model.BillingHistory) error {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO billing_history (user_id, event, details) VALUES (?,?,?)",
		h.UserID, h.Event, nullableJSON(h.Details))
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

// ListHistoryByUser returns the user's billing transitions in insertion
// order.
func (r *BillingRepo) ListHistoryByUser(ctx context.Context, userID uint64) ([]model.BillingHistory, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id,user_id,event,details,created_at FROM billing_history WHERE user_id=? ORDER BY created_at",
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []model.BillingHistory
	for rows.Next() {
		var h model.BillingHistory
		var details []byte
		if err := rows.Scan(&h.ID, &h.UserID, &h.Event, &details, &h.CreatedAt); err != nil {
			return nil, err
		}
		h.Details = details
		items = append(items, h)
	}
	return items, rows.Err()
}
