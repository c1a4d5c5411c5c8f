package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/quantyard/trendrank/internal/cache"
	"github.com/quantyard/trendrank/internal/config"
	"github.com/quantyard/trendrank/internal/engine"
	atomicio "github.com/quantyard/trendrank/internal/io"
	applog "github.com/quantyard/trendrank/internal/log"
	"github.com/quantyard/trendrank/internal/metrics"
	"github.com/quantyard/trendrank/internal/oracle"
	"github.com/quantyard/trendrank/internal/output"
	"github.com/quantyard/trendrank/internal/persistence"
	"github.com/quantyard/trendrank/internal/persistence/postgres"
	"github.com/quantyard/trendrank/internal/retry"
)

var (
	rankLimit       int
	rankFormat      string
	rankOut         string
	rankInvalidOut  string
	rankRetries     int
	rankCachePath   string
	rankRedisAddr   string
	rankTimeframe   string
	rankCategory    int
	rankProperty    string
	rankGeo         string
	rankProxy       string
	rankToken       string
	rankStoreDSN    string
	rankMetricsAddr string
)

var rankCmd = &cobra.Command{
	Use:   "rank <input-file>",
	Short: "Rank the items listed in the input file",
	Long: `Rank reads a header-less, one-column list of items, separates the ones the
oracle has data for, orders them by relative magnitude, and writes the
resolved per-date value table plus the invalid-item list.

The query cache makes the run resumable: interrupt it at any point and the
next invocation picks up where it left off, re-issuing nothing that was
already answered.`,
	Args: cobra.ExactArgs(1),
	RunE: runRank,
}

func init() {
	rootCmd.AddCommand(rankCmd)

	rankCmd.Flags().IntVar(&rankLimit, "limit", 0, "cap on input rows (0 = all)")
	rankCmd.Flags().StringVar(&rankFormat, "format", "wide", "output layout: wide or long")
	rankCmd.Flags().StringVar(&rankOut, "out", "ranking.csv", "output table path")
	rankCmd.Flags().StringVar(&rankInvalidOut, "invalid-out", "invalid.txt", "invalid-item list path")
	rankCmd.Flags().IntVar(&rankRetries, "retries", -1, "rate-limit retries, 0-4 (-1 = config value)")
	rankCmd.Flags().StringVar(&rankCachePath, "cache", "", "cache snapshot path")
	rankCmd.Flags().StringVar(&rankRedisAddr, "redis", "", "redis address for the query cache")
	rankCmd.Flags().StringVar(&rankTimeframe, "timeframe", "", "oracle time window")
	rankCmd.Flags().IntVar(&rankCategory, "category", -1, "oracle category filter")
	rankCmd.Flags().StringVar(&rankProperty, "property", "", "oracle property filter")
	rankCmd.Flags().StringVar(&rankGeo, "geo", "", "oracle geography filter")
	rankCmd.Flags().StringVar(&rankProxy, "proxy", "", "proxy URL for oracle requests")
	rankCmd.Flags().StringVar(&rankToken, "token", "", "oracle API token")
	rankCmd.Flags().StringVar(&rankStoreDSN, "store-dsn", "", "postgres DSN for persisting results")
	rankCmd.Flags().StringVar(&rankMetricsAddr, "metrics-addr", "", "address for the Prometheus endpoint")
}

func runRank(cmd *cobra.Command, args []string) error {
	logChangedFlags(cmd)
	log := applog.Setup(flagVerbose)

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	applyRankFlags(&cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	if rankFormat != "wide" && rankFormat != "long" {
		return fmt.Errorf("unknown format %q, want wide or long", rankFormat)
	}

	items, err := readInput(args[0], rankLimit)
	if err != nil {
		return err
	}
	log.Info().Int("items", len(items)).Str("input", args[0]).Msg("input loaded")

	var m *metrics.Metrics
	if cfg.Metrics.Addr != "" {
		m = metrics.New()
		metrics.Serve(cfg.Metrics.Addr, m, log)
	}

	store, err := openCache(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	eng, err := buildEngine(cfg, store, log, m)
	if err != nil {
		return err
	}

	// Interrupt handling is checkpoint-based: every answered query is
	// durably cached before the engine proceeds, so cancelling loses at
	// most the in-flight call.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	started := time.Now()
	result, err := eng.Run(ctx, items)
	if err != nil {
		return fmt.Errorf("run aborted (cache preserved for resume): %w", err)
	}

	if err := writeArtifacts(result); err != nil {
		return err
	}
	if cfg.Store.DSN != "" {
		if err := persistRun(ctx, cfg, result, started); err != nil {
			// Losing the DB copy does not invalidate the files on disk.
			log.Error().Err(err).Msg("persisting run to postgres failed")
		}
	}

	fmt.Print(output.Summary(result))
	return nil
}

// applyRankFlags lets explicit flags override the config file.
func applyRankFlags(cfg *config.Config) {
	if rankRetries >= 0 {
		cfg.Engine.Retries = rankRetries
	}
	if rankCachePath != "" {
		cfg.Cache.Path = rankCachePath
	}
	if rankRedisAddr != "" {
		cfg.Cache.RedisAddr = rankRedisAddr
	}
	if rankTimeframe != "" {
		cfg.Params.Timeframe = rankTimeframe
	}
	if rankCategory >= 0 {
		cfg.Params.Category = rankCategory
	}
	if rankProperty != "" {
		cfg.Params.Property = rankProperty
	}
	if rankGeo != "" {
		cfg.Params.Geo = rankGeo
	}
	if rankProxy != "" {
		cfg.Oracle.Proxy = rankProxy
	}
	if rankToken != "" {
		cfg.Oracle.Token = rankToken
	}
	if rankStoreDSN != "" {
		cfg.Store.DSN = rankStoreDSN
	}
	if rankMetricsAddr != "" {
		cfg.Metrics.Addr = rankMetricsAddr
	}
}

func readInput(path string, limit int) ([]oracle.Item, error) {
	lines, err := atomicio.ReadItems(path, limit)
	if err != nil {
		return nil, err
	}
	items := make([]oracle.Item, len(lines))
	for i, line := range lines {
		items[i] = oracle.Item(line)
	}
	return items, nil
}

func openCache(cfg config.Config) (cache.Store, error) {
	if cfg.Cache.RedisAddr != "" {
		return cache.NewRedisStore(cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB), nil
	}
	return cache.OpenFileStore(cfg.Cache.Path)
}

func buildEngine(cfg config.Config, store cache.Store, log zerolog.Logger, m *metrics.Metrics) (*engine.Engine, error) {
	client, err := oracle.NewClient(oracle.ClientConfig{
		BaseURL:        cfg.Oracle.BaseURL,
		Token:          cfg.Oracle.Token,
		Proxy:          cfg.Oracle.Proxy,
		RequestTimeout: time.Duration(cfg.Oracle.RequestTimeoutMS) * time.Millisecond,
		RateLimitRPS:   cfg.Oracle.RateLimitRPS,
		RateLimitBurst: cfg.Oracle.RateLimitBurst,
	}, log)
	if err != nil {
		return nil, err
	}

	retrier, err := retry.NewController(cfg.Engine.Retries,
		time.Duration(cfg.Engine.BackoffMS)*time.Millisecond, log)
	if err != nil {
		return nil, err
	}
	retrier.OnRetry(m.IncRateLimited)

	return engine.New(client, store, retrier, cfg.Params, engine.Config{
		BucketCount:     cfg.Engine.BucketCount,
		GroupWidth:      cfg.Engine.GroupWidth,
		RefineThreshold: cfg.Engine.RefineThreshold,
	}, log, m)
}

func writeArtifacts(result *engine.Result) error {
	var err error
	if rankFormat == "long" {
		err = output.WriteLong(rankOut, result)
	} else {
		err = output.WriteWide(rankOut, result)
	}
	if err != nil {
		return fmt.Errorf("write table: %w", err)
	}
	if err := output.WriteInvalid(rankInvalidOut, result.Invalid); err != nil {
		return fmt.Errorf("write invalid list: %w", err)
	}
	return nil
}

func persistRun(ctx context.Context, cfg config.Config, result *engine.Result, started time.Time) error {
	repo, err := postgres.NewRankingsRepo(cfg.Store.DSN, 30*time.Second)
	if err != nil {
		return err
	}
	defer repo.Close()

	run, rankings := persistence.FromResult(result, cfg.Params, started, time.Now())
	return repo.SaveRun(ctx, run, rankings)
}
