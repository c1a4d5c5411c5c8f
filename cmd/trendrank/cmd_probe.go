package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	applog "github.com/quantyard/trendrank/internal/log"

	"github.com/quantyard/trendrank/internal/config"
)

var (
	probeLimit     int
	probeCachePath string
)

var probeCmd = &cobra.Command{
	Use:   "probe <input-file>",
	Short: "Check which input items the oracle has data for",
	Long: `Probe runs only the validity filter: each item gets a minimal single-item
query, and items with no data at any date are reported as invalid. Probes go
through the same cache as full runs, so a later rank run re-spends nothing.`,
	Args: cobra.ExactArgs(1),
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().IntVar(&probeLimit, "limit", 0, "cap on input rows (0 = all)")
	probeCmd.Flags().StringVar(&probeCachePath, "cache", "", "cache snapshot path")
}

func runProbe(cmd *cobra.Command, args []string) error {
	log := applog.Setup(flagVerbose)

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	if probeCachePath != "" {
		cfg.Cache.Path = probeCachePath
	}

	items, err := readInput(args[0], probeLimit)
	if err != nil {
		return err
	}

	store, err := openCache(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	eng, err := buildEngine(cfg, store, log, nil)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	comparable, invalid, err := eng.Probe(ctx, items)
	if err != nil {
		return fmt.Errorf("probe aborted (cache preserved for resume): %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "comparable\t%d\n", len(comparable))
	fmt.Fprintf(w, "invalid\t%d\n", len(invalid))
	w.Flush()

	for _, item := range invalid {
		fmt.Println(item)
	}
	return nil
}
