package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/shared-session-control/internal/model"
)

// CatalogRepo manages the domain and proxy configuration catalog used to
// annotate the shared bundle.
type CatalogRepo struct{ DB *sql.DB }

func NewCatalogRepo(db *sql.DB) *CatalogRepo { return &CatalogRepo{DB: db} }

// UpsertDomain inserts a domain by name or returns the existing row's id.
func (r *CatalogRepo) UpsertDomain(ctx context.Context, name, baseURL string) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO domains (name, base_url) VALUES (?,?) ON DUPLICATE KEY UPDATE base_url=VALUES(base_url)",
		name, baseURL)
	if err != nil {
		return 0, err
	}
	if id, err := res.LastInsertId(); err == nil && id > 0 {
		return uint64(id), nil
	}
	var id uint64
	err = r.DB.QueryRowContext(ctx, "SELECT id FROM domains WHERE name=?", name).Scan(&id)
	return id, err
}

// ListDomains returns the catalog of upstream applications.
func (r *CatalogRepo) ListDomains(ctx context.Context) ([]model.Domain, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id,name,base_url,created_at FROM domains ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var domains []model.Domain
	for rows.Next() {
		var d model.Domain
		if err := rows.Scan(&d.ID, &d.Name, &d.BaseURL, &d.CreatedAt); err != nil {
			return nil, err
		}
		domains = append(domains, d)
	}
	return domains, rows.Err()
}

// UpsertProxy inserts an egress proxy by host:port or returns the existing
// row's id.
func (r *CatalogRepo) UpsertProxy(ctx context.Context, host, port string, username, password *string) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO proxies (host, port, username, password) VALUES (?,?,?,?)
		 ON DUPLICATE KEY UPDATE username=VALUES(username), password=VALUES(password)`,
		host, port, username, password)
	if err != nil {
		return 0, err
	}
	if id, err := res.LastInsertId(); err == nil && id > 0 {
		return uint64(id), nil
	}
	var id uint64
	err = r.DB.QueryRowContext(ctx, "SELECT id FROM proxies WHERE host=? AND port=?", host, port).Scan(&id)
	return id, err
}

// ListProxies returns the proxy catalog. Passwords stay server-side; the
// handler strips them before responding.
func (r *CatalogRepo) ListProxies(ctx context.Context) ([]model.Proxy, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id,host,port,username,password,created_at FROM proxies ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var proxies []model.Proxy
	for rows.Next() {
		var (
			p        model.Proxy
			username sql.NullString
			password sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.Host, &p.Port, &username, &password, &p.CreatedAt); err != nil {
			return nil, err
		}
		if username.Valid {
			p.Username = &username.String
		}
		if password.Valid {
			p.Password = &password.String
		}
		proxies = append(proxies, p)
	}
	return proxies, rows.Err()
}
