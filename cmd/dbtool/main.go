package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/PortNumber53/membership-metrics/internal/config"
	"github.com/PortNumber53/membership-metrics/internal/migrations"
	"github.com/PortNumber53/membership-metrics/internal/models"
	"github.com/PortNumber53/membership-metrics/internal/store"
)

const usage = "Usage: %s [migrate|status|fix|force <version>|set-baseline <YYYY-MM> <amount> [note]|baselines]"

func main() {
	// Load environment variables
	_ = godotenv.Load(
		"../.env",
		"../.dev.vars",
		".env",
	)

	dsn, err := config.LoadDatabaseURL()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping database: %v", err)
	}

	command := "migrate"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "migrate":
		log.Printf("Applying migrations...")
		if err := migrations.Up(db); err != nil {
			log.Fatalf("failed to apply migrations: %v", err)
		}
		log.Printf("Migrations applied successfully")

	case "status":
		version, dirty, err := migrations.Status(db)
		if err != nil {
			log.Fatalf("failed to read migration status: %v", err)
		}
		if version == 0 {
			log.Printf("No migrations applied")
			return
		}
		log.Printf("Schema version %d (dirty: %t)", version, dirty)

	case "fix":
		log.Printf("Attempting to fix dirty database...")
		if err := migrations.FixDirtyDatabase(db); err != nil {
			log.Fatalf("failed to fix dirty database: %v", err)
		}
		log.Printf("Database fixed successfully")

	case "force":
		if len(os.Args) < 3 {
			log.Fatalf("usage: %s force <version>", os.Args[0])
		}
		version := os.Args[2]
		var v uint
		if _, err := fmt.Sscanf(version, "%d", &v); err != nil {
			log.Fatalf("invalid version number: %s", version)
		}

		log.Printf("Forcing database version to %d...", v)
		if err := migrations.ForceVersion(db, v); err != nil {
			log.Fatalf("failed to force version: %v", err)
		}
		log.Printf("Database version forced to %d", v)

	case "set-baseline":
		if len(os.Args) < 4 {
			log.Fatalf("usage: %s set-baseline <YYYY-MM> <amount> [note]", os.Args[0])
		}
		month, err := models.ParseMonth(os.Args[2])
		if err != nil {
			log.Fatalf("invalid month: %v", err)
		}
		amount, err := decimal.NewFromString(os.Args[3])
		if err != nil || amount.IsNegative() {
			log.Fatalf("invalid amount: %s", os.Args[3])
		}
		note := strings.Join(os.Args[4:], " ")

		s := mustStore(db)
		if err := s.SetBaseline(ctx, month, amount, note); err != nil {
			log.Fatalf("failed to set baseline: %v", err)
		}

	case "baselines":
		s := mustStore(db)
		baselines, err := s.ListBaselines(ctx, 0)
		if err != nil {
			log.Fatalf("failed to list baselines: %v", err)
		}
		if len(baselines) == 0 {
			log.Printf("No baselines stored")
			return
		}
		for _, b := range baselines {
			fmt.Printf("%s\t%s\t%s\t%s\n", b.Month, b.Amount.StringFixed(2), b.UpdatedAt.Format(time.RFC3339), b.Note)
		}

	default:
		log.Printf(usage, os.Args[0])
		os.Exit(1)
	}
}

func mustStore(db *sql.DB) *store.Store {
	s, err := store.New(db)
	if err != nil {
		log.Fatalf("failed to create store: %v", err)
	}
	return s
}
