package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dshills/productrank-mcp/internal/httpapi"
	"github.com/dshills/productrank-mcp/internal/indexer"
	"github.com/dshills/productrank-mcp/internal/searcher"
	"github.com/dshills/productrank-mcp/pkg/types"
)

// newImportCmd creates the import subcommand
func newImportCmd() *cobra.Command {
	var (
		prune     bool
		workers   int
		batchSize int
	)

	cmd := &cobra.Command{
		Use:   "import <catalog.json>",
		Short: "Import a JSON product catalog",
		Long: `Import reads a JSON array of products, splits each product into features,
use-case and spec chunks, stores them and embeds every chunk that has no
embedding for the configured provider. Unchanged products are skipped.

Accepted product fields: product_id|id, name|product_name, category,
features, description, price.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, err := openService(ctx)
			if err != nil {
				return err
			}
			defer closeService(svc)

			stats, err := svc.Indexer.IndexFile(ctx, args[0], &indexer.Config{
				Workers:   workers,
				BatchSize: batchSize,
				Prune:     prune,
			})
			if err != nil {
				return err
			}

			if outputJSON {
				return printJSON(cmd.OutOrStdout(), stats)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s Imported %s\n", successMark, args[0])
			fmt.Fprintf(out, "  records indexed:    %d\n", stats.RecordsIndexed)
			fmt.Fprintf(out, "  records unchanged:  %d\n", stats.RecordsSkipped)
			if prune {
				fmt.Fprintf(out, "  records deleted:    %d\n", stats.RecordsDeleted)
			}
			if stats.Duplicates > 0 {
				warnColor.Fprintf(out, "  duplicate ids:      %d (first entry kept)\n", stats.Duplicates)
			}
			fmt.Fprintf(out, "  chunks created:     %d\n", stats.ChunksCreated)
			fmt.Fprintf(out, "  embeddings created: %d\n", stats.EmbeddingsCreated)
			fmt.Fprintf(out, "  duration:           %s\n", stats.Duration.Round(time.Millisecond))
			for _, msg := range stats.ErrorMessages {
				warnColor.Fprintf(out, "  ! %s\n", msg)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&prune, "prune", false, "delete stored products missing from the file")
	cmd.Flags().IntVar(&workers, "workers", 0, "chunking and embedding workers (default: number of CPUs)")
	cmd.Flags().IntVar(&batchSize, "batch", 0, "products per transaction (default: 20)")
	return cmd
}

// newSearchCmd creates the search subcommand
func newSearchCmd() *cobra.Command {
	var (
		limit      int
		lexWeight  float64
		vecWeight  float64
		threshold  float64
		noCategory bool
		prefer     string
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Rank the catalog against a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := openService(ctx)
			if err != nil {
				return err
			}
			defer closeService(svc)

			p := svc.Params()
			flags := cmd.Flags()
			if flags.Changed("limit") {
				p.Limit = limit
			}
			if flags.Changed("lexical-weight") {
				p.LexicalWeight = lexWeight
			}
			if flags.Changed("vector-weight") {
				p.VectorWeight = vecWeight
			}
			if flags.Changed("threshold") {
				p.ScoreThreshold = threshold
			}
			if flags.Changed("vector-timeout") {
				p.VectorTimeout = timeout
			}
			if noCategory {
				p.EnableCategoryWeight = false
			}
			if prefer != "" {
				p.PreferChunk = types.ChunkType(prefer)
			}

			resp, err := svc.Searcher.Search(ctx, args[0], p)
			if err != nil {
				return err
			}
			if outputJSON {
				return printJSON(cmd.OutOrStdout(), httpapi.NewSearchResponse(args[0], resp))
			}
			printResults(cmd.OutOrStdout(), args[0], resp)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "k", searcher.DefaultLimit, "number of products to return")
	cmd.Flags().Float64Var(&lexWeight, "lexical-weight", searcher.DefaultLexicalWeight, "weight of the lexical score")
	cmd.Flags().Float64Var(&vecWeight, "vector-weight", searcher.DefaultVectorWeight, "weight of the vector score")
	cmd.Flags().Float64Var(&threshold, "threshold", searcher.DefaultScoreThreshold, "minimum final score")
	cmd.Flags().BoolVar(&noCategory, "no-category-weight", false, "disable category weighting")
	cmd.Flags().StringVar(&prefer, "prefer-chunk", "", "chunk text to show: features, usecases or specs")
	cmd.Flags().DurationVar(&timeout, "vector-timeout", searcher.DefaultVectorTimeout, "vector source timeout")
	return cmd
}

// newTuneCmd creates the tune subcommand
func newTuneCmd() *cobra.Command {
	var (
		casesFile   string
		parallelism int
		limit       int
	)

	cmd := &cobra.Command{
		Use:   "tune",
		Short: "Pick fusion weights and threshold against labelled queries",
		Long: `Tune runs every preset of a weight and threshold grid over a file of
labelled queries and reports the mean reciprocal rank of each. The cases
file is YAML or JSON:

  - query: 防水藍牙喇叭
    expected: [SP-1]
  - query: 人體工學椅
    expected: [CH-1, CH-2]`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cases, err := loadCases(casesFile)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			svc, err := openService(ctx)
			if err != nil {
				return err
			}
			defer closeService(svc)

			base := svc.Params()
			base.Limit = limit
			res, err := svc.Searcher.Tune(ctx, cases, searcher.DefaultGrid(base), parallelism)
			if err != nil {
				return err
			}

			if outputJSON {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"best":            res.Best.Name,
					"lexical_weight":  res.Best.Params.LexicalWeight,
					"vector_weight":   res.Best.Params.VectorWeight,
					"score_threshold": res.Best.Params.ScoreThreshold,
					"mrr":             res.Score,
					"scores":          res.Scores,
				})
			}

			names := make([]string, 0, len(res.Scores))
			for name := range res.Scores {
				names = append(names, name)
			}
			sort.Slice(names, func(i, j int) bool {
				if res.Scores[names[i]] != res.Scores[names[j]] {
					return res.Scores[names[i]] > res.Scores[names[j]]
				}
				return names[i] < names[j]
			})
			out := cmd.OutOrStdout()
			for _, name := range names {
				line := fmt.Sprintf("  %-24s MRR %.4f", name, res.Scores[name])
				if name == res.Best.Name {
					scoreColor.Fprintln(out, line+"  ← best")
				} else {
					fmt.Fprintln(out, line)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&casesFile, "cases", "", "labelled queries file (required)")
	cmd.Flags().IntVar(&parallelism, "parallel", 4, "presets evaluated concurrently")
	cmd.Flags().IntVarP(&limit, "limit", "k", searcher.DefaultLimit, "ranking depth per query")
	_ = cmd.MarkFlagRequired("cases")
	return cmd
}

func loadCases(path string) ([]searcher.EvalCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cases: %w", err)
	}
	var cases []searcher.EvalCase
	if err := yaml.Unmarshal(data, &cases); err != nil {
		return nil, fmt.Errorf("parse cases: %w", err)
	}
	return cases, nil
}

// newSyncCmd creates the sync-pgvector subcommand
func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync-pgvector",
		Short: "Copy stored embeddings to Postgres for the pgvector source",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cfg.PGVector.Enabled {
				return fmt.Errorf("pgvector is not enabled: set pgvector.dsn or PRODUCTRANK_PG_DSN")
			}
			ctx := cmd.Context()
			svc, err := openService(ctx)
			if err != nil {
				return err
			}
			defer closeService(svc)

			n, err := svc.PGVector.Sync(ctx, svc.Storage)
			if err != nil {
				return err
			}
			if outputJSON {
				return printJSON(cmd.OutOrStdout(), map[string]int{"vectors": n})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Synced %d vectors (%s/%s)\n",
				successMark, n, svc.Embedder.Provider(), svc.Embedder.Model())
			return nil
		},
	}
}

// newServeCmd creates the serve subcommand
func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve GET /search and GET /healthz over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, err := openService(ctx)
			if err != nil {
				return err
			}
			defer closeService(svc)

			if addr == "" {
				addr = cfg.HTTP.Addr
			}
			health := func(ctx context.Context) error {
				_, err := svc.Storage.GetStatus(ctx)
				return err
			}
			h := httpapi.NewHandler(svc.Searcher, svc.Params(), health, logger)

			logger.Info().Str("addr", addr).Msg("http search api listening")
			return httpapi.ListenAndServe(ctx, addr, h.Router(cfg.HTTP.WriteTimeout),
				cfg.HTTP.ReadTimeout, cfg.HTTP.WriteTimeout, cfg.HTTP.ShutdownTimeout)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	return cmd
}

// newStatusCmd creates the status subcommand
func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show catalog and embedding coverage",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := openService(ctx)
			if err != nil {
				return err
			}
			defer closeService(svc)

			status, err := svc.Storage.GetStatus(ctx)
			if err != nil {
				return err
			}
			if outputJSON {
				return printJSON(cmd.OutOrStdout(), status)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "records:    %d\n", status.RecordsCount)
			fmt.Fprintf(out, "chunks:     %d\n", status.ChunksCount)
			fmt.Fprintf(out, "embeddings: %d (%s/%s)\n", status.EmbeddingsCount, svc.Embedder.Provider(), svc.Embedder.Model())
			fmt.Fprintf(out, "size:       %.2f MB, schema %s\n", status.SizeMB, status.SchemaVersion)
			if !status.Health.EmbeddingsComplete && status.ChunksCount > 0 {
				warnColor.Fprintln(out, "! some chunks have no embedding; run import again")
			}
			if imp := status.LastImport; imp != nil {
				fmt.Fprintf(out, "last import: %s at %s\n", imp.Source, imp.CompletedAt.Format(time.RFC3339))
			}
			return nil
		},
	}
}
