// Package main provides the NCR service entry point: the HTTP API for the
// non-conformance lifecycle engine plus the in-process notification
// dispatcher.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang/glog"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/juggajay/site-proof-sub003/pkg/actor"
	"github.com/juggajay/site-proof-sub003/pkg/audit"
	"github.com/juggajay/site-proof-sub003/pkg/authz"
	"github.com/juggajay/site-proof-sub003/pkg/docstore"
	"github.com/juggajay/site-proof-sub003/pkg/lots"
	"github.com/juggajay/site-proof-sub003/pkg/ncr"
	"github.com/juggajay/site-proof-sub003/pkg/notify"
	"github.com/juggajay/site-proof-sub003/pkg/reporting"
)

func main() {
	var (
		listenAddr     string
		databaseType   string
		databaseDSN    string
		notifyWorkers  int
		authzMode      string
		jwtKeyPath     string
		jwtIssuer      string
		auditRetention int
	)

	flag.StringVar(&listenAddr, "listen", ":8080", "Address to listen on")
	flag.StringVar(&databaseType, "db-type", "postgres", "Database type (postgres, mysql or sqlite)")
	flag.StringVar(&databaseDSN, "db-dsn", "", "Database connection string")
	flag.IntVar(&notifyWorkers, "notify-workers", 2, "Notification dispatcher worker count")
	flag.IntVar(&auditRetention, "audit-retention-days", 0, "Delete audit events older than this many days (0 keeps everything)")
	flag.StringVar(&authzMode, "authz-mode", "", "Authorization mode (db or none; default from NCR_AUTHZ_MODE or db)")
	flag.StringVar(&jwtKeyPath, "jwt-public-key", "", "Path to RSA public key for JWT verification")
	flag.StringVar(&jwtIssuer, "jwt-issuer", "", "Expected JWT issuer")
	flag.Parse()

	_ = flag.Set("logtostderr", "true")

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting ncr server", "listen", listenAddr, "dbType", databaseType)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	db, err := setupDatabase(databaseType, databaseDSN)
	if err != nil {
		glog.Fatalf("Failed to connect to database: %v", err)
	}

	ncrStore := ncr.NewStore(db)
	auditStore := audit.NewStore(db)
	notifyStore := notify.NewStore(db)
	docStore := docstore.NewStore(db)
	lotStore := lots.NewStore(db)
	membershipStore := authz.NewMembershipStore(db)
	for name, migrate := range map[string]func() error{
		"ncr":         ncrStore.AutoMigrate,
		"audit":       auditStore.AutoMigrate,
		"notify":      notifyStore.AutoMigrate,
		"documents":   docStore.AutoMigrate,
		"lots":        lotStore.AutoMigrate,
		"memberships": membershipStore.AutoMigrate,
	} {
		if err := migrate(); err != nil {
			glog.Fatalf("Failed to migrate %s tables: %v", name, err)
		}
	}

	if authzMode == "" {
		authzMode = envOrDefault("NCR_AUTHZ_MODE", "db")
	}
	var authorizer authz.Authorizer
	switch authzMode {
	case "db":
		authorizer = authz.NewCachedAuthorizer(membershipStore, authz.DefaultCacheTTL)
	case "none":
		logger.Warn("authorization disabled, every actor is allowed everything")
		authorizer = authz.AllowAll{}
	default:
		glog.Fatalf("Unknown authz mode: %q (expected db or none)", authzMode)
	}

	dispatcher := notify.NewDispatcher(notifyStore, notifyWorkers, 256, logger)
	dispatcherDone := make(chan struct{})
	go func() {
		dispatcher.Run(ctx)
		close(dispatcherDone)
	}()

	if auditRetention > 0 {
		retention := audit.NewRetention(auditStore, time.Duration(auditRetention)*24*time.Hour, time.Hour, logger)
		go retention.Run(ctx)
	}

	engine := ncr.NewEngine(db, authorizer, dispatcher, auditStore, logger)

	actorMiddleware, err := actor.Middleware(actor.Config{
		PublicKeyPath: jwtKeyPath,
		Issuer:        jwtIssuer,
		Logger:        logger,
	})
	if err != nil {
		glog.Fatalf("Failed to set up actor middleware: %v", err)
	}

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-User-Principal"},
	}))
	router.Use(actorMiddleware)

	router.Route("/api/v1", func(r chi.Router) {
		r.Mount("/projects/{projectID}/reports", reporting.NewRouter(reporting.NewStore(db), authorizer))
		r.Mount("/projects/{projectID}/access", authz.NewRouter(membershipStore))
		r.Mount("/inbox", notify.NewRouter(notifyStore))
		r.Mount("/", ncr.NewRouter(engine, auditStore))
	})
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	httpServer := &http.Server{
		Addr:    listenAddr,
		Handler: router,
	}

	go func() {
		logger.Info("ncr server ready", "listen", listenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			glog.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	select {
	case <-dispatcherDone:
	case <-shutdownCtx.Done():
		logger.Error("notification dispatcher did not drain in time")
	}

	logger.Info("ncr server stopped")
}

func setupDatabase(dbType, dsn string) (*gorm.DB, error) {
	if dsn == "" {
		dsn = os.Getenv("DATABASE_DSN")
		if dsn == "" {
			return nil, fmt.Errorf("database DSN is required (use -db-dsn flag or DATABASE_DSN environment variable)")
		}
	}
	if dbType == "" {
		dbType = envOrDefault("DATABASE_TYPE", "postgres")
	}

	switch dbType {
	case "postgres":
		return gorm.Open(postgres.Open(dsn), &gorm.Config{})
	case "mysql":
		return gorm.Open(mysql.Open(dsn), &gorm.Config{})
	case "sqlite":
		return gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	default:
		return nil, fmt.Errorf("unknown database type %q (expected postgres, mysql or sqlite)", dbType)
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
