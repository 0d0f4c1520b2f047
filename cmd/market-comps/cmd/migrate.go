package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/donaldgifford/market-comps/internal/config"
	"github.com/donaldgifford/market-comps/internal/kv"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply PostgreSQL schema migrations",
		Long:  "Applies pending migrations for the postgres storage backend. Other backends need no schema.",
		RunE:  runMigrate,
	}
}

func runMigrate(_ *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	if cfg.Storage.Backend != config.StoragePostgres {
		log.Info("nothing to migrate", "storage", cfg.Storage.Backend)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	s, err := kv.NewPostgresStore(ctx, cfg.Storage.Postgres.DSN())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer s.Close()

	log.Info("running migrations", "host", cfg.Storage.Postgres.Host)

	if err := s.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	log.Info("migrations complete")
	return nil
}
