package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/pressly/goose/v3"

	"github.com/iliyamo/shared-session-control/migrations"
)

// Open connects to MySQL and verifies the connection with a bounded ping.
// The DSN is assembled through the driver's own config type; ParseTime and
// the UTC location matter here because every timestamp in the schema is
// stored and compared in UTC (billing end dates are exclusive bounds).
func Open(user, pass, host, port, name string) (*sql.DB, error) {
	dsn := mysql.NewConfig()
	dsn.User = user
	dsn.Passwd = pass
	dsn.Net = "tcp"
	dsn.Addr = host + ":" + port
	dsn.DBName = name
	dsn.ParseTime = true
	dsn.Loc = time.UTC
	dsn.Params = map[string]string{"charset": "utf8mb4"}

	db, err := sql.Open("mysql", dsn.FormatDSN())
	if err != nil {
		return nil, err
	}

	// The whole surface is short transactional requests plus one background
	// sweeper; a modest pool with recycled connections covers it.
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// migrationsFS is a seam so tests can point goose at an alternate set.
var migrationsFS embed.FS = migrations.Migrations

// Migrate applies all pending goose migrations embedded in the binary.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("mysql"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
