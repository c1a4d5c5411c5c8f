// Command trendrank reconstructs a magnitude-aware ranking over a list of
// search terms from a relative-popularity oracle that only answers grouped
// queries of at most five terms.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	applog "github.com/quantyard/trendrank/internal/log"
)

var (
	flagConfig  string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "trendrank",
	Short: "Rank search terms by relative popularity",
	Long: `trendrank reconstructs an approximate total ordering over a large set of
terms from an oracle that only reveals relative popularity among groups of
at most five, caching every answered query so interrupted runs resume
without re-spending network quota.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// logChangedFlags records every flag the user overrode, so a run's exact
// invocation can be reconstructed from its log.
func logChangedFlags(cmd *cobra.Command) {
	log := applog.Setup(flagVerbose)
	cmd.Flags().Visit(func(f *pflag.Flag) {
		log.Debug().Str("flag", f.Name).Str("value", f.Value.String()).Msg("flag override")
	})
}
