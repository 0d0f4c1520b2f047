// Package cmd implements the CLI commands for market-comps.
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/donaldgifford/market-comps/internal/config"
	"github.com/donaldgifford/market-comps/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:   "market-comps",
	Short: "Price items against comparable marketplace listings",
	Long: "market-comps looks up comparable listings for an item by title and photo, " +
		"normalizes their prices to USD, and serves the curated average and the " +
		"available and sold partitions over HTTP.",
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "config.yaml", "config file path")
	rootCmd.PersistentFlags().String("log-level", "", "override logging.level (debug, info, warn, error)")

	cobra.CheckErr(viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config")))
	cobra.CheckErr(viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level")))

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(versionCmd())
}

// initConfig loads .env for local runs and binds MARKET_COMPS_* variables,
// e.g. MARKET_COMPS_CONFIG and MARKET_COMPS_LOG_LEVEL.
func initConfig() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("reading .env", "error", err)
	}

	viper.SetEnvPrefix("MARKET_COMPS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// Root returns the root cobra command.
func Root() *cobra.Command {
	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads the config file and applies flag overrides, returning
// the config and a logger built from it.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if lvl := viper.GetString("log-level"); lvl != "" {
		cfg.Logging.Level = lvl
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(log)
	return cfg, log, nil
}
