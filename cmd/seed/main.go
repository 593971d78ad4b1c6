package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/clinicretail/internal/adapters/database"
	"github.com/zatekoja/clinicretail/internal/infrastructure/clients/sqldb"
	"github.com/zatekoja/clinicretail/internal/infrastructure/observability"
	"github.com/zatekoja/clinicretail/pkg/config"
)

func main() {
	var schemaOnly bool
	flag.BoolVar(&schemaOnly, "schema-only", false, "Create tables without inserting demo rows")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	observability.InitLogger(cfg.OTEL.ServiceName+"-seed", cfg.Server.Env)

	dbClient, err := sqldb.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbClient.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	start := time.Now()
	if err := database.EnsureSchema(ctx, dbClient); err != nil {
		log.Fatal().Err(err).Msg("Failed to create schema")
	}
	if schemaOnly {
		log.Info().Dur("took", time.Since(start)).Msg("Schema ready")
		return
	}

	if err := database.SeedDemoData(ctx, dbClient); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed demo data")
	}
	log.Info().Str("driver", cfg.Database.Driver).Dur("took", time.Since(start)).Msg("Demo data seeded")
}
