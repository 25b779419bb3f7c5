package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/PortNumber53/membership-metrics/internal/config"
	"github.com/PortNumber53/membership-metrics/internal/handlers"
	"github.com/PortNumber53/membership-metrics/internal/httpserver"
	"github.com/PortNumber53/membership-metrics/internal/memberful"
	"github.com/PortNumber53/membership-metrics/internal/metrics"
	"github.com/PortNumber53/membership-metrics/internal/migrations"
	"github.com/PortNumber53/membership-metrics/internal/snapshot"
	"github.com/PortNumber53/membership-metrics/internal/store"
)

const refreshTimeout = 5 * time.Minute

func main() {
	// Best-effort: load environment variables from .env-style files in local
	// development. These calls are safe to ignore in production environments.
	_ = godotenv.Load(
		"../.env",
		".env",
	)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	var baselines store.BaselineReader
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		logDBTarget("baselines", cfg.DatabaseURL)
		configureDB(db)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			log.Fatalf("failed to ping database: %v", err)
		}

		if err := runMigrationsWithDirtyFix(db, "baselines"); err != nil {
			log.Fatalf("failed to apply database migrations: %v", err)
		}

		st, err := store.New(db)
		if err != nil {
			log.Fatalf("failed to create store: %v", err)
		}
		baselines = st
	} else {
		log.Printf("db: DATABASE_URL not set, using configured baseline MRR %s", cfg.BaselineMRR.StringFixed(2))
	}

	client := memberful.NewClient(cfg.MemberfulAPIKey, cfg.MemberfulGraphQLURL)
	builder := snapshot.NewBuilder(client, metrics.ClassifierFor(cfg.EducationActivityRule), cfg.ActivityMonths)
	cache := snapshot.NewCache(builder, cfg.CacheTTL)

	var (
		scheduler *snapshot.Scheduler
		stats     handlers.RefreshStats
	)
	if cfg.RefreshSchedule != "" {
		scheduler, err = snapshot.NewScheduler(cache, cfg.RefreshSchedule, refreshTimeout)
		if err != nil {
			log.Fatalf("failed to create refresh scheduler: %v", err)
		}
		stats = scheduler
		go scheduler.RunOnce()
	} else {
		log.Printf("[server] Background refresh disabled; snapshots build on demand")
	}

	dashboard := handlers.NewDashboardHandler(cache, store.NewBaselineResolver(baselines, cfg.BaselineMRR), stats)
	srv := httpserver.New(cfg, dashboard, scheduler)

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-shutdownCtx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("graceful shutdown failed: %v", err)
		}
	}()

	log.Printf("membership metrics starting on %s", cfg.ServerAddress)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("server exited with error: %v", err)
		os.Exit(1)
	}
}

func configureDB(db *sql.DB) {
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
}

func runMigrationsWithDirtyFix(db *sql.DB, name string) error {
	if err := migrations.Up(db); err != nil {
		log.Printf("migrations(%s): error detected: %v (type: %T)", name, err, err)
		if strings.Contains(err.Error(), "Dirty database version") {
			log.Printf("migrations(%s): dirty database detected, attempting to fix...", name)
			if fixErr := migrations.FixDirtyDatabase(db); fixErr != nil {
				log.Printf("migrations(%s): failed to fix dirty database: %v", name, fixErr)
				return err
			}
			return migrations.Up(db)
		}
		return err
	}
	return nil
}

func logDBTarget(name, dsn string) {
	// Avoid logging secrets: only log hostname + database path.
	u, err := url.Parse(dsn)
	if err != nil {
		log.Printf("db(%s): configured (dsn parse error: %v)", name, err)
		return
	}
	log.Printf("db(%s): host=%s db=%s", name, u.Hostname(), strings.TrimPrefix(u.Path, "/"))
}
