package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pders01/dispatch/internal/media"
	"github.com/pders01/dispatch/internal/storage"
)

var (
	flagRefresh        bool
	flagOffline        bool
	flagSearchCategory string
	flagLimit          int
	flagWidth          int
	flagOpen           bool
)

var headlinesCmd = &cobra.Command{
	Use:   "headlines",
	Short: "Show featured and latest headlines",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		load := a.repo.NewsData
		if flagRefresh {
			load = a.repo.Refresh
		}
		data, err := load(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		renderList(out, "Featured", data.FeaturedArticles)
		renderList(out, "Latest", limit(data.Articles, flagLimit))
		if len(data.BookmarkedArticles) > 0 {
			renderList(out, "Bookmarked", data.BookmarkedArticles)
		}
		if len(data.SearchSuggestions) > 0 {
			fmt.Fprintln(out, mutedStyle.Render("\nSources: "+strings.Join(data.SearchSuggestions, ", ")))
		}
		return nil
	},
}

var categoryCmd = &cobra.Command{
	Use:   "category <name>",
	Short: "Show headlines for one category",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		articles, err := a.repo.ArticlesByCategory(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		renderList(cmd.OutOrStdout(), args[0], limit(articles, flagLimit))
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search articles",
	Long: `Search the news service for articles matching the query. When the service
is rate limited the local cache is searched instead. With --offline the
local full-text index is queried without touching the network.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		query := strings.Join(args, " ")
		out := cmd.OutOrStdout()

		if flagOffline {
			if a.index == nil {
				return errors.New("search index is not available")
			}
			results, err := a.index.Search(query, flagLimit)
			if err != nil {
				return err
			}
			articles := make([]storage.Article, len(results))
			for i, r := range results {
				articles[i] = *r.Article
			}
			renderList(out, fmt.Sprintf("Offline results for %q", query), articles)
			return nil
		}

		articles, err := a.repo.SearchArticles(cmd.Context(), query, flagSearchCategory)
		if err != nil {
			return err
		}
		renderList(out, fmt.Sprintf("Results for %q", query), limit(articles, flagLimit))
		return nil
	},
}

var articleCmd = &cobra.Command{
	Use:   "article <id>",
	Short: "Read one article",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		article, err := a.repo.ArticleByID(cmd.Context(), id)
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("article %d not found", id)
		}
		if err != nil {
			return err
		}
		if flagOpen {
			if article.URL == "" {
				return fmt.Errorf("article %d has no URL", id)
			}
			return media.NewLauncher(a.cfg.UI.Opener).Open(article.URL)
		}
		return renderArticle(cmd.OutOrStdout(), article, flagWidth)
	},
}

var bookmarksCmd = &cobra.Command{
	Use:   "bookmarks",
	Short: "List bookmarked articles",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		articles, err := a.repo.Bookmarks(cmd.Context())
		if err != nil {
			return err
		}
		renderList(cmd.OutOrStdout(), "Bookmarks", articles)
		return nil
	},
}

var bookmarkCmd = &cobra.Command{
	Use:   "bookmark <id>",
	Short: "Toggle the bookmark on an article",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		on, err := a.repo.ToggleBookmark(cmd.Context(), id)
		if err != nil {
			return err
		}
		if on {
			fmt.Fprintf(cmd.OutOrStdout(), "Bookmarked %d\n", id)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Removed bookmark %d\n", id)
		}
		return nil
	},
}

var invalidateCmd = &cobra.Command{
	Use:   "invalidate",
	Short: "Forget the multi-category fetch time so the next run refetches",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		a.repo.InvalidateCache()
		fmt.Fprintln(cmd.OutOrStdout(), "Cache invalidated.")
		return nil
	},
}

func registerNewsCommands(root *cobra.Command) {
	headlinesCmd.Flags().BoolVar(&flagRefresh, "refresh", false, "ignore the cached feed and fetch again")
	searchCmd.Flags().BoolVar(&flagOffline, "offline", false, "query the local index only")
	searchCmd.Flags().StringVar(&flagSearchCategory, "category", "", "label results with this category")
	articleCmd.Flags().IntVar(&flagWidth, "width", 80, "word wrap width")
	articleCmd.Flags().BoolVar(&flagOpen, "open", false, "open the article in the system browser")
	root.PersistentFlags().IntVar(&flagLimit, "limit", 20, "maximum number of articles to list")

	root.AddCommand(headlinesCmd, categoryCmd, searchCmd, articleCmd, bookmarksCmd, bookmarkCmd, invalidateCmd)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid article id %q", s)
	}
	return id, nil
}

func limit(articles []storage.Article, n int) []storage.Article {
	if n > 0 && len(articles) > n {
		return articles[:n]
	}
	return articles
}
