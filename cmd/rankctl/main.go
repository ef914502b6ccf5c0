// Command rankctl imports product catalogs, runs ranked searches, tunes
// fusion parameters and serves the HTTP search API.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dshills/productrank-mcp/internal/config"
	"github.com/dshills/productrank-mcp/internal/logging"
	"github.com/dshills/productrank-mcp/internal/service"
)

var (
	// Global flags
	cfgFile    string
	outputJSON bool
	verbose    bool
	noColor    bool

	cfg       *config.Config
	logger    zerolog.Logger
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "rankctl",
	Short: "Product catalog ranking: import, search, tune and serve",
	Long: `rankctl manages a product catalog and ranks it against natural language queries.

Ranking fuses a BM25 lexical score with vector similarity and boosts products
whose category matches the categories inferred from the query.

Configuration comes from --config, then .env, then PRODUCTRANK_* variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logCfg := cfg.Log.LoggingConfig("rankctl")
		if !outputJSON && logCfg.Output == "stderr" {
			logCfg.Format = logging.FormatConsole
		}
		if verbose {
			logCfg.Level = "debug"
		}
		logger, logCloser, err = logging.New(logCfg)
		if err != nil {
			return err
		}

		if noColor || outputJSON {
			color.NoColor = true
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logCloser != nil {
			return logCloser.Close()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: env vars only)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(newImportCmd())
	rootCmd.AddCommand(newSearchCmd())
	rootCmd.AddCommand(newTuneCmd())
	rootCmd.AddCommand(newSyncCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newStatusCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openService opens the catalog with the loaded configuration. The caller
// closes the returned Service.
func openService(ctx context.Context) (*service.Service, error) {
	svc, err := service.Open(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	return svc, nil
}

func closeService(svc *service.Service) {
	if err := svc.Close(); err != nil {
		logger.Warn().Err(err).Msg("close failed")
	}
}
