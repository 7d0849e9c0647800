package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillctl/pkg/cache"
	"github.com/jingkaihe/skillctl/pkg/config"
	"github.com/jingkaihe/skillctl/pkg/presenter"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the scan cache",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache entry counts and size",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := openCache()
		if err != nil {
			return err
		}
		stats := c.Stats()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(cmd, stats)
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Path:     %s\n", stats.Path)
		fmt.Fprintf(w, "Entries:  %d (%d valid, %d invalid)\n", stats.Entries, stats.Valid, stats.Invalid)
		fmt.Fprintf(w, "Size:     %s\n", formatBytes(stats.FileSize))
		return nil
	},
}

var cacheCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Drop entries whose skill directory no longer exists",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		c, err := openCache()
		if err != nil {
			return err
		}
		n, suffix := plural(c.CleanStale())
		presenter.Success(fmt.Sprintf("Removed %d stale cache entr%s", n, suffix))
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop every cache entry",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		c, err := openCache()
		if err != nil {
			return err
		}
		c.Clear()
		presenter.Success("Cleared " + c.Path())
		return nil
	},
}

func init() {
	cacheStatsCmd.Flags().Bool("json", false, "Print statistics as JSON")

	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheCleanCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

func openCache() (*cache.Cache, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return cache.New(cfg.Cache.Path), nil
}

func plural(n int) (int, string) {
	if n == 1 {
		return n, "y"
	}
	return n, "ies"
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
