package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/shared-session-control/internal/model"
)

// BundleRepo persists the single shared bundle row, the per-caller upload
// grants and the client-reported event log.
type BundleRepo struct{ DB *sql.DB }

func NewBundleRepo(db *sql.DB) *BundleRepo { return &BundleRepo{DB: db} }

const bundleColumns = `id,name,status,bundle_key,checksum,file_size_bytes,bundle_version,
domain_id,proxy_id,last_synced_at,created_at,updated_at`

func scanBundle(row rowScanner) (model.SharedBundle, error) {
	var (
		b        model.SharedBundle
		key      sql.NullString
		checksum sql.NullString
		size     sql.NullInt64
		domainID sql.NullInt64
		proxyID  sql.NullInt64
		synced   sql.NullTime
	)
	err := row.Scan(&b.ID, &b.Name, &b.Status, &key, &checksum, &size, &b.BundleVersion,
		&domainID, &proxyID, &synced, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return model.SharedBundle{}, err
	}
	if key.Valid {
		b.BundleKey = &key.String
	}
	if checksum.Valid {
		b.Checksum = &checksum.String
	}
	if size.Valid {
		sz := uint64(size.Int64)
		b.FileSizeBytes = &sz
	}
	if domainID.Valid {
		d := uint64(domainID.Int64)
		b.DomainID = &d
	}
	if proxyID.Valid {
		p := uint64(proxyID.Int64)
		b.ProxyID = &p
	}
	if synced.Valid {
		b.LastSyncedAt = &synced.Time
	}
	return b, nil
}

// GetOrCreateShared returns the well-known shared bundle row, lazily
// creating a PENDING one on first read.
func (r *BundleRepo) GetOrCreateShared(ctx context.Context) (model.SharedBundle, error) {
	b, err := r.GetByName(ctx, model.SharedBundleName)
	if err == nil {
		return b, nil
	}
	if err != ErrNotFound {
		return model.SharedBundle{}, err
	}
	_, err = r.DB.ExecContext(ctx,
		"INSERT INTO shared_bundles (name, status) VALUES (?,?)",
		model.SharedBundleName, model.BundlePending)
	if err != nil && !isDuplicate(err) {
		// A concurrent first read may have inserted the row already.
		return model.SharedBundle{}, err
	}
	return r.GetByName(ctx, model.SharedBundleName)
}

// GetByName fetches a bundle row by its well-known name.
func (r *BundleRepo) GetByName(ctx context.Context, name string) (model.SharedBundle, error) {
	b, err := scanBundle(r.DB.QueryRowContext(ctx,
		"SELECT "+bundleColumns+" FROM shared_bundles WHERE name=? LIMIT 1", name))
	if err == sql.ErrNoRows {
		return model.SharedBundle{}, ErrNotFound
	}
	return b, err
}

// GetByID fetches a bundle row by id.
func (r *BundleRepo) GetByID(ctx context.Context, id uint64) (model.SharedBundle, error) {
	b, err := scanBundle(r.DB.QueryRowContext(ctx,
		"SELECT "+bundleColumns+" FROM shared_bundles WHERE id=? LIMIT 1", id))
	if err == sql.ErrNoRows {
		return model.SharedBundle{}, ErrNotFound
	}
	return b, err
}

// List returns all bundle rows (admin CRUD surface; normally one row).
func (r *BundleRepo) List(ctx context.Context) ([]model.SharedBundle, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+bundleColumns+" FROM shared_bundles ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var bundles []model.SharedBundle
	for rows.Next() {
		b, err := scanBundle(rows)
		if err != nil {
			return nil, err
		}
		bundles = append(bundles, b)
	}
	return bundles, rows.Err()
}

// UpdateStatus sets the bundle status.
func (r *BundleRepo) UpdateStatus(ctx context.Context, id uint64, status string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE shared_bundles SET status=? WHERE id=?", status, id)
	return err
}

// UpdateAnnotations points the bundle at catalog entries.
func (r *BundleRepo) UpdateAnnotations(ctx context.Context, id uint64, domainID, proxyID *uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE shared_bundles SET domain_id=?, proxy_id=? WHERE id=?", domainID, proxyID, id)
	return err
}

// CompleteUpload atomically publishes a finished upload: the caller's issued
// key becomes the current bundle key, the version bumps by one and the
// bundle transitions to READY. Last completer wins by construction.
func (r *BundleRepo) CompleteUpload(ctx context.Context, id uint64, key, checksum string, fileSize uint64, at time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE shared_bundles
		 SET status=?, bundle_key=?, checksum=?, file_size_bytes=?,
		     bundle_version=bundle_version+1, last_synced_at=?
		 WHERE id=?`,
		model.BundleReady, key, checksum, fileSize, at, id)
	return err
}

// Delete removes a bundle row.
func (r *BundleRepo) Delete(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM shared_bundles WHERE id=?", id)
	return err
}

// CreateGrant records the key issued to a caller at request-upload time.
func (r *BundleRepo) CreateGrant(ctx context.Context, g *model.BundleUploadGrant) error {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO bundle_upload_grants (bundle_id, user_id, bundle_key) VALUES (?,?,?)",
		g.BundleID, g.UserID, g.BundleKey)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	g.ID = uint64(id)
	return nil
}

// LatestGrant resolves the most recent key issued to this caller for this
// bundle. complete-upload publishes that key.
func (r *BundleRepo) LatestGrant(ctx context.Context, bundleID, userID uint64) (model.BundleUploadGrant, error) {
	var g model.BundleUploadGrant
	err := r.DB.QueryRowContext(ctx,
		`SELECT id,bundle_id,user_id,bundle_key,created_at FROM bundle_upload_grants
		 WHERE bundle_id=? AND user_id=? ORDER BY created_at DESC, id DESC LIMIT 1`,
		bundleID, userID).Scan(&g.ID, &g.BundleID, &g.UserID, &g.BundleKey, &g.CreatedAt)
	if err == sql.ErrNoRows {
		return model.BundleUploadGrant{}, ErrNotFound
	}
	return g, err
}

// CreateEvent appends a client-reported status line.
func (r *BundleRepo) CreateEvent(ctx context.Context, e *model.BundleEvent) error {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO bundle_events (bundle_id, user_id, level, message, context) VALUES (?,?,?,?,?)",
		e.BundleID, e.UserID, e.Level, e.Message, nullableJSON(e.Context))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	return nil
}

// ListEvents returns the bundle's event log, most recent first.
func (r *BundleRepo) ListEvents(ctx context.Context, bundleID uint64, limit int) ([]model.BundleEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id,bundle_id,user_id,level,message,context,created_at FROM bundle_events
		 WHERE bundle_id=? ORDER BY created_at DESC LIMIT ?`, bundleID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var events []model.BundleEvent
	for rows.Next() {
		var (
			e      model.BundleEvent
			userID sql.NullInt64
			blob   []byte
		)
		if err := rows.Scan(&e.ID, &e.BundleID, &userID, &e.Level, &e.Message, &blob, &e.CreatedAt); err != nil {
			return nil, err
		}
		if userID.Valid {
			uid := uint64(userID.Int64)
			e.UserID = &uid
		}
		e.Context = blob
		events = append(events, e)
	}
	return events, rows.Err()
}

// CountEventsByMessage counts event rows with the given message, serving the
// shared-stats endpoint (completed-upload and download-URL counters).
func (r *BundleRepo) CountEventsByMessage(ctx context.Context, bundleID uint64, message string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM bundle_events WHERE bundle_id=? AND message=?",
		bundleID, message).Scan(&n)
	return n, err
}
