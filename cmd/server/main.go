package main // Entry point package

import (
	"context"
	"errors"
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/shared-session-control/internal/config"
	"github.com/iliyamo/shared-session-control/internal/database"
	"github.com/iliyamo/shared-session-control/internal/geo"
	"github.com/iliyamo/shared-session-control/internal/handler"
	"github.com/iliyamo/shared-session-control/internal/model"
	"github.com/iliyamo/shared-session-control/internal/objectstore"
	"github.com/iliyamo/shared-session-control/internal/queue"
	"github.com/iliyamo/shared-session-control/internal/repository"
	"github.com/iliyamo/shared-session-control/internal/router"
	"github.com/iliyamo/shared-session-control/internal/service"
)

func main() {
	_ = godotenv.Load() // local .env in development; real env wins
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	ctx := context.Background()
	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; geo cache and login rate limit disabled")
	}

	signer, err := objectstore.NewS3Signer(cfg.S3Endpoint, cfg.S3Bucket, cfg.S3Region, cfg.S3AccessKey, cfg.S3SecretKey)
	if err != nil {
		log.Fatalf("object store: %v", err)
	}

	var resolver geo.Resolver = geo.NoopResolver{}
	if cfg.GeoProviderURL != "" {
		resolver = geo.NewHTTPResolver(cfg.GeoProviderURL, rdb)
	}

	users := repository.NewUserRepo(db)
	sessions := repository.NewSessionRepo(db)
	history := repository.NewHistoryRepo(db)
	alerts := repository.NewAlertRepo(db)
	bundles := repository.NewBundleRepo(db)
	billing := repository.NewBillingRepo(db)
	audits := repository.NewAuditRepo(db)
	catalog := repository.NewCatalogRepo(db)

	alertSvc := service.NewAlertService(alerts)
	authSvc := service.NewAuthService(db, cfg, users, sessions, history, alertSvc, resolver)
	billingSvc := service.NewBillingService(users, billing)
	bundleSvc := service.NewBundleService(bundles, signer)

	bootstrap(ctx, cfg, users, catalog)

	sweeper := service.NewExpirationSweeper(users, billing)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	go func() {
		if err := queue.StartAlertConsumer(); err != nil {
			log.Printf("alert consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	router.RegisterRoutes(e, cfg, rdb, router.Handlers{
		Auth:    handler.NewAuthHandler(authSvc),
		Users:   handler.NewUserHandler(cfg, users, authSvc, audits),
		Bundle:  handler.NewBundleHandler(bundleSvc, bundles, audits),
		Billing: handler.NewBillingHandler(billingSvc, billing, audits),
		Admin:   handler.NewAdminHandler(alerts, history, sessions, audits, catalog),
	}, users, sessions)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}

// bootstrap ensures the operator-root account exists and seeds the catalog
// from the environment. Runs on every boot; all operations are idempotent.
// When the account already exists its password is reset from the env, so a
// locked-out deployment recovers by redeploying with a fresh secret.
func bootstrap(ctx context.Context, cfg config.Config, users *repository.UserRepo, catalog *repository.CatalogRepo) {
	root, err := users.GetByEmail(ctx, cfg.BootstrapRootEmail)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		id, err := users.Create(ctx, cfg.BootstrapRootEmail, cfg.BootstrapRootPassword, model.RoleOperatorRoot, cfg.BcryptCost)
		if err != nil {
			log.Fatalf("bootstrap: create root: %v", err)
		}
		log.Printf("bootstrap: created operator-root %s (id=%d)", cfg.BootstrapRootEmail, id)
	case err != nil:
		log.Fatalf("bootstrap: lookup root: %v", err)
	default:
		if err := users.SetPassword(ctx, root.ID, cfg.BootstrapRootPassword, cfg.BcryptCost); err != nil {
			log.Fatalf("bootstrap: reset root password: %v", err)
		}
	}

	if cfg.ProxyHost != "" && cfg.ProxyPort != "" {
		var user, pass *string
		if cfg.ProxyUser != "" {
			user = &cfg.ProxyUser
		}
		if cfg.ProxyPass != "" {
			pass = &cfg.ProxyPass
		}
		if _, err := catalog.UpsertProxy(ctx, cfg.ProxyHost, cfg.ProxyPort, user, pass); err != nil {
			log.Printf("bootstrap: proxy seed failed: %v", err)
		}
	}
}
