package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantyard/trendrank/internal/cache"
	"github.com/quantyard/trendrank/internal/config"
)

var cacheCachePath string

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the query cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show how many answered queries the cache holds",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openCacheForMaintenance()
		if err != nil {
			return err
		}
		defer store.Close()
		fmt.Printf("cached queries: %d\n", store.Len())
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop every cached query",
	Long: `Clear is the only supported cache invalidation: responses are immutable
once stored, so a stale cache (for example, a still-open time window that
has since moved) is discarded whole and rebuilt by the next run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openCacheForMaintenance()
		if err != nil {
			return err
		}
		defer store.Close()

		n := store.Len()
		if err := clearStore(store); err != nil {
			return err
		}
		fmt.Printf("dropped %d cached queries\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd)
	cacheCmd.PersistentFlags().StringVar(&cacheCachePath, "cache", "", "cache snapshot path")
}

func openCacheForMaintenance() (cache.Store, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if cacheCachePath != "" {
		cfg.Cache.Path = cacheCachePath
	}
	return openCache(cfg)
}

func clearStore(store cache.Store) error {
	type clearer interface{ Clear() error }
	if c, ok := store.(clearer); ok {
		return c.Clear()
	}
	return fmt.Errorf("cache backend does not support clearing")
}
