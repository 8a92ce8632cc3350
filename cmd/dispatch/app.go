package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pders01/dispatch/internal/config"
	"github.com/pders01/dispatch/internal/debuglog"
	"github.com/pders01/dispatch/internal/feed"
	"github.com/pders01/dispatch/internal/news"
	"github.com/pders01/dispatch/internal/newsapi"
	"github.com/pders01/dispatch/internal/search"
	"github.com/pders01/dispatch/internal/storage"
)

// articleCache is what the CLI needs from either cache backend.
type articleCache interface {
	news.ArticleCache
	Prune(ctx context.Context, cutoff time.Time) ([]int64, error)
}

// app owns every resource a command touches.
type app struct {
	cfg   *config.Config
	store *storage.Store
	cache articleCache
	redis *storage.RedisCache
	index *search.Index
	repo  *news.Repository
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagDB != "" {
		cfg.Database.Path = flagDB
	}
	if err := debuglog.Setup(debuglog.ParseLogLevel(cfg.Log.Level), cfg.Log.File); err != nil {
		return nil, fmt.Errorf("setting up logging: %w", err)
	}
	return cfg, nil
}

// openApp wires the repository to the configured cache backend. Bookmarks
// and settings always live in the bolt database.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	store, err := storage.NewStore(cfg.Database.Path, cfg.Database.Timeout)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, store: store, cache: store}

	if cfg.Cache.Backend == "redis" {
		rc, err := storage.NewRedisCache(ctx, cfg.Cache.RedisURL, cfg.Cache.RedisPrefix, cfg.Cache.RedisTTL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.redis = rc
		a.cache = rc
	}

	if cfg.Database.SearchIndex != "" {
		idx, err := search.OpenIndex(cfg.Database.SearchIndex)
		if err != nil {
			debuglog.Warnf("search index unavailable: %v", err)
		} else {
			a.index = idx
		}
	}

	source, err := newSource(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	deps := news.Deps{
		Source:    source,
		Cache:     a.cache,
		Bookmarks: store.Bookmarks(cfg.News.UserID),
		Settings:  store,
	}
	if a.index != nil {
		deps.Listener = a.index
	}
	a.repo = news.NewRepository(deps, news.OptionsFromConfig(cfg))
	return a, nil
}

// newSource picks the remote source named by api.provider.
func newSource(cfg *config.Config) (news.RemoteSource, error) {
	if cfg.API.Provider == "rss" {
		return feed.NewSource(cfg.Feeds.URLs, cfg.API.Timeout, cfg.API.UserAgent), nil
	}
	return newsapi.NewClient(cfg.API)
}

func (a *app) Close() {
	if a.repo != nil {
		a.repo.Close()
	}
	if a.index != nil {
		if err := a.index.Close(); err != nil {
			debuglog.Warnf("closing search index: %v", err)
		}
	}
	if a.redis != nil {
		a.redis.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
	debuglog.Close()
}
