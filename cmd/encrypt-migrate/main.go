// Command encrypt-migrate re-encrypts legacy-format setting secrets with
// the per-value-salt format. Safe to run repeatedly.
package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dipendra-mule/conducky-sub002/internal/audit"
	"github.com/dipendra-mule/conducky-sub002/internal/fieldcrypt"
	"github.com/dipendra-mule/conducky-sub002/internal/settings"
)

func main() {
	log.SetFlags(0)
	dsn := flag.String("dsn", os.Getenv("DATABASE_URL"), "PostgreSQL DSN")
	flag.Parse()

	if *dsn == "" {
		log.Fatal("missing DSN: provide via -dsn or DATABASE_URL")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	codec, err := fieldcrypt.FromEnv()
	if err != nil {
		log.Fatalf("field encryption: %v", err)
	}
	recorder, err := audit.NewRecorder(audit.NewPGStore(db))
	if err != nil {
		log.Fatalf("audit: %v", err)
	}
	svc, err := settings.NewService(settings.NewPGStore(db), codec, recorder)
	if err != nil {
		log.Fatalf("settings: %v", err)
	}

	migrated, err := svc.MigrateLegacySecrets(ctx)
	if err != nil {
		log.Fatalf("migrate secrets: %v", err)
	}
	log.Printf("re-encrypted %d secret field(s)", migrated)
}
