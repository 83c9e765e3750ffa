package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dipendra-mule/conducky-sub002/internal/audit"
	"github.com/dipendra-mule/conducky-sub002/internal/auth"
	"github.com/dipendra-mule/conducky-sub002/internal/config"
	"github.com/dipendra-mule/conducky-sub002/internal/directory"
	"github.com/dipendra-mule/conducky-sub002/internal/fieldcrypt"
	"github.com/dipendra-mule/conducky-sub002/internal/httpapi"
	"github.com/dipendra-mule/conducky-sub002/internal/incidents"
	"github.com/dipendra-mule/conducky-sub002/internal/obs"
	"github.com/dipendra-mule/conducky-sub002/internal/rbac"
	"github.com/dipendra-mule/conducky-sub002/internal/settings"
)

var (
	version = "0.1.0"
	commit  = "unknown"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	var db *sql.DB
	if cfg.DatabaseDSN != "" {
		db, err = sql.Open("pgx", cfg.DatabaseDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	}
	if db == nil {
		log.Fatalf("DATABASE_URL is required")
	}

	codec, err := fieldcrypt.New(cfg.EncryptionKey, cfg.IsTest())
	if err != nil {
		log.Fatalf("field encryption: %v", err)
	}
	sessions, err := auth.NewSessions(cfg.AuthSecret, cfg.SessionTTL)
	if err != nil {
		log.Fatalf("sessions: %v", err)
	}

	recorder, err := audit.NewRecorder(audit.NewPGStore(db))
	if err != nil {
		log.Fatalf("audit: %v", err)
	}

	dirStore := directory.NewPGStore(db)
	dirSvc, err := directory.NewService(dirStore)
	if err != nil {
		log.Fatalf("directory: %v", err)
	}
	ownership, err := directory.NewEventOwnership(dirStore)
	if err != nil {
		log.Fatalf("directory: %v", err)
	}

	resolver, err := rbac.NewResolver(rbac.NewPGStore(db), ownership)
	if err != nil {
		log.Fatalf("rbac: %v", err)
	}

	incidentSvc, err := incidents.NewService(incidents.NewPGStore(db), resolver, codec, recorder)
	if err != nil {
		log.Fatalf("incidents: %v", err)
	}
	settingsSvc, err := settings.NewService(settings.NewPGStore(db), codec, recorder)
	if err != nil {
		log.Fatalf("settings: %v", err)
	}

	api := httpapi.New(httpapi.Options{
		Sessions:           sessions,
		Resolver:           resolver,
		Directory:          dirSvc,
		Incidents:          incidentSvc,
		Settings:           settingsSvc,
		Audit:              recorder,
		ReadyProbe:         httpapi.ReadyProbe{DB: db},
		Version:            version,
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		RateLimitBurst:     cfg.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting conducky-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = db.Close()
	log.Println("Stopped")
}
