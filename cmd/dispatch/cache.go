package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var flagPruneOlderThan string

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the local article cache",
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove old articles from the cache",
	Long: `Delete cached articles older than the retention period.

Uses the retention value from config (default: 7d) unless overridden with --older-than.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		retention := a.cfg.Cache.Retention
		if flagPruneOlderThan != "" {
			d, err := parseOlderThan(flagPruneOlderThan)
			if err != nil {
				return fmt.Errorf("invalid --older-than value: %w", err)
			}
			retention = d
		}

		deleted, err := a.cache.Prune(cmd.Context(), time.Now().Add(-retention))
		if err != nil {
			return fmt.Errorf("pruning: %w", err)
		}
		if a.index != nil {
			if err := a.index.Remove(deleted); err != nil {
				return fmt.Errorf("removing pruned articles from index: %w", err)
			}
		}

		if len(deleted) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Nothing to prune.")
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d article(s) older than %s.\n", len(deleted), formatDuration(retention))
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Database: %s\n", a.cfg.Database.Path)
		fmt.Fprintf(out, "Backend: %s\n", a.cfg.Cache.Backend)

		if a.redis == nil {
			articles, batches, err := a.store.Stats()
			if err != nil {
				return fmt.Errorf("reading stats: %w", err)
			}
			fmt.Fprintf(out, "Articles: %d\n", articles)
			fmt.Fprintf(out, "Batches: %d\n", batches)
		}

		if a.index != nil {
			docs, err := a.index.DocCount()
			if err != nil {
				return fmt.Errorf("reading index stats: %w", err)
			}
			fmt.Fprintf(out, "Indexed: %d\n", docs)
		}
		return nil
	},
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the offline search index from cached articles",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if a.index == nil {
			return fmt.Errorf("search index is not available")
		}
		articles, err := a.cache.RecentArticles(cmd.Context(), reindexLimit)
		if err != nil {
			return fmt.Errorf("loading cached articles: %w", err)
		}
		if err := a.index.Reindex(articles); err != nil {
			return fmt.Errorf("reindexing: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d article(s).\n", len(articles))
		return nil
	},
}

const reindexLimit = 10000

func registerCacheCommands(root *cobra.Command) {
	pruneCmd.Flags().StringVar(&flagPruneOlderThan, "older-than", "", "override retention period (e.g., 30d, 720h)")
	cacheCmd.AddCommand(pruneCmd, statsCmd, reindexCmd)
	root.AddCommand(cacheCmd)
}

// parseOlderThan accepts time.ParseDuration values plus a day suffix ("7d").
func parseOlderThan(s string) (time.Duration, error) {
	if len(s) > 1 && s[len(s)-1] == 'd' {
		var days int
		if _, err := fmt.Sscanf(s, "%dd", &days); err == nil && days > 0 {
			return time.Duration(days) * 24 * time.Hour, nil
		}
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive: %s", s)
	}
	return d, nil
}

func formatDuration(d time.Duration) string {
	if days := int(d.Hours() / 24); days > 0 {
		return fmt.Sprintf("%dd", days)
	}
	return fmt.Sprintf("%dh", int(d.Hours()))
}
