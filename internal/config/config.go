package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	API      APIConfig      `mapstructure:"api"`
	News     NewsConfig     `mapstructure:"news"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Feeds    FeedsConfig    `mapstructure:"feeds"`
	UI       UIConfig       `mapstructure:"ui"`
	Log      LogConfig      `mapstructure:"log"`
}

type DatabaseConfig struct {
	Path        string        `mapstructure:"path" validate:"required"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"gt=0"`
	SearchIndex string        `mapstructure:"search_index"`
}

type APIConfig struct {
	Provider  string        `mapstructure:"provider" validate:"oneof=newsapi rss"`
	BaseURL   string        `mapstructure:"base_url" validate:"required,url"`
	APIKey    string        `mapstructure:"api_key"`
	Timeout   time.Duration `mapstructure:"timeout" validate:"gt=0"`
	UserAgent string        `mapstructure:"user_agent"`
	PageSize  int           `mapstructure:"page_size" validate:"min=1,max=100"`
	Language  string        `mapstructure:"language" validate:"len=2"`
}

type NewsConfig struct {
	Country          string        `mapstructure:"country" validate:"len=2"`
	SecondaryCountry string        `mapstructure:"secondary_country" validate:"len=2"`
	FallbackQuery    string        `mapstructure:"fallback_query" validate:"required"`
	CacheTTL         time.Duration `mapstructure:"cache_ttl" validate:"gt=0"`
	FeaturedCount    int           `mapstructure:"featured_count" validate:"min=0"`
	RecentLimit      int           `mapstructure:"recent_limit" validate:"min=1"`
	UserID           string        `mapstructure:"user_id" validate:"required"`
}

type CacheConfig struct {
	Backend     string        `mapstructure:"backend" validate:"oneof=bolt redis"`
	RedisURL    string        `mapstructure:"redis_url" validate:"required_if=Backend redis"`
	RedisPrefix string        `mapstructure:"redis_prefix"`
	RedisTTL    time.Duration `mapstructure:"redis_ttl" validate:"min=0"`
	Retention   time.Duration `mapstructure:"retention" validate:"gt=0"`
}

// FeedsConfig lists RSS/Atom feed URLs per API category ("general",
// "business", ...). Used when api.provider is "rss".
type FeedsConfig struct {
	URLs map[string][]string `mapstructure:"urls" validate:"dive,keys,required,endkeys,dive,url"`
}

// UIConfig holds the accent colors attached to articles. Accent keys are
// lower-case category names.
type UIConfig struct {
	// Opener is the command used to open article URLs; empty means the
	// platform default.
	Opener        string            `mapstructure:"opener"`
	DefaultAccent string            `mapstructure:"default_accent" validate:"hexcolor"`
	Accents       map[string]string `mapstructure:"accents" validate:"dive,keys,required,endkeys,hexcolor"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"omitempty,oneof=debug info warn warning error off DEBUG INFO WARN WARNING ERROR OFF"`
	File  string `mapstructure:"file"`
}

// Accent returns the accent color for a category.
func (u UIConfig) Accent(category string) string {
	if c, ok := u.Accents[strings.ToLower(category)]; ok {
		return c
	}
	return u.DefaultAccent
}

func defaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".dispatch")

	return &Config{
		Database: DatabaseConfig{
			Path:        filepath.Join(dataDir, "dispatch.db"),
			Timeout:     1 * time.Second,
			SearchIndex: filepath.Join(dataDir, "index.bleve"),
		},
		API: APIConfig{
			Provider:  "newsapi",
			BaseURL:   "https://newsapi.org/v2",
			Timeout:   30 * time.Second,
			UserAgent: "dispatch/1.0 (https://github.com/pders01/dispatch)",
			PageSize:  20,
			Language:  "en",
		},
		News: NewsConfig{
			Country:          "us",
			SecondaryCountry: "gb",
			FallbackQuery:    "news",
			CacheTTL:         30 * time.Minute,
			FeaturedCount:    5,
			RecentLimit:      50,
			UserID:           "local",
		},
		Cache: CacheConfig{
			Backend:     "bolt",
			RedisURL:    "redis://localhost:6379/0",
			RedisPrefix: "dispatch:",
			RedisTTL:    72 * time.Hour,
			Retention:   7 * 24 * time.Hour,
		},
		Feeds: FeedsConfig{
			URLs: map[string][]string{
				"general":    {"https://feeds.bbci.co.uk/news/rss.xml"},
				"business":   {"https://feeds.bbci.co.uk/news/business/rss.xml"},
				"technology": {"https://feeds.bbci.co.uk/news/technology/rss.xml"},
				"health":     {"https://feeds.bbci.co.uk/news/health/rss.xml"},
			},
		},
		UI: UIConfig{
			DefaultAccent: "#FF6B6B",
			Accents: map[string]string{
				"top":           "#FF6B6B",
				"business":      "#4ECDC4",
				"technology":    "#95E1D3",
				"sports":        "#FFA86B",
				"entertainment": "#F87171",
				"health":        "#4ADE80",
				"science":       "#94A3B8",
				"search":        "#EAEAEA",
			},
		},
		Log: LogConfig{
			Level: "off",
			File:  filepath.Join(dataDir, "dispatch.log"),
		},
	}
}

// setDefaults registers every leaf key so AutomaticEnv can override nested
// values (DISPATCH_API_API_KEY, DISPATCH_NEWS_COUNTRY, ...).
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("database.path", cfg.Database.Path)
	v.SetDefault("database.timeout", cfg.Database.Timeout)
	v.SetDefault("database.search_index", cfg.Database.SearchIndex)

	v.SetDefault("api.provider", cfg.API.Provider)
	v.SetDefault("api.base_url", cfg.API.BaseURL)
	v.SetDefault("api.api_key", cfg.API.APIKey)
	v.SetDefault("api.timeout", cfg.API.Timeout)
	v.SetDefault("api.user_agent", cfg.API.UserAgent)
	v.SetDefault("api.page_size", cfg.API.PageSize)
	v.SetDefault("api.language", cfg.API.Language)

	v.SetDefault("news.country", cfg.News.Country)
	v.SetDefault("news.secondary_country", cfg.News.SecondaryCountry)
	v.SetDefault("news.fallback_query", cfg.News.FallbackQuery)
	v.SetDefault("news.cache_ttl", cfg.News.CacheTTL)
	v.SetDefault("news.featured_count", cfg.News.FeaturedCount)
	v.SetDefault("news.recent_limit", cfg.News.RecentLimit)
	v.SetDefault("news.user_id", cfg.News.UserID)

	v.SetDefault("cache.backend", cfg.Cache.Backend)
	v.SetDefault("cache.redis_url", cfg.Cache.RedisURL)
	v.SetDefault("cache.redis_prefix", cfg.Cache.RedisPrefix)
	v.SetDefault("cache.redis_ttl", cfg.Cache.RedisTTL)
	v.SetDefault("cache.retention", cfg.Cache.Retention)

	v.SetDefault("feeds.urls", cfg.Feeds.URLs)

	v.SetDefault("ui.opener", cfg.UI.Opener)
	v.SetDefault("ui.default_accent", cfg.UI.DefaultAccent)
	v.SetDefault("ui.accents", cfg.UI.Accents)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.file", cfg.Log.File)
}

// DefaultPath is the config file location used when none is given.
func DefaultPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".config", "dispatch", "config.toml")
}

func Load(configPath string) (*Config, error) {
	// A missing .env file is the common case.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v, defaultConfig())

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(filepath.Dir(DefaultPath()))
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("DISPATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	expandPaths(&config)

	if err := Validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks struct constraints on a loaded config.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// expandPath expands ~ to home directory and converts to absolute path
func expandPath(path string) string {
	if path == "" || path == "stderr" || path == "stdout" {
		return path
	}

	if len(path) >= 2 && path[:2] == "~/" {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path[2:])
	}

	if !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}

	return path
}

func expandPaths(cfg *Config) {
	cfg.Database.Path = expandPath(cfg.Database.Path)
	cfg.Database.SearchIndex = expandPath(cfg.Database.SearchIndex)
	cfg.Log.File = expandPath(cfg.Log.File)
}

// Save writes config as TOML. Durations are written in their string form
// so the file stays hand-editable.
func Save(config *Config, path string) error {
	doc := map[string]interface{}{
		"database": map[string]interface{}{
			"path":         config.Database.Path,
			"timeout":      config.Database.Timeout.String(),
			"search_index": config.Database.SearchIndex,
		},
		"api": map[string]interface{}{
			"provider":   config.API.Provider,
			"base_url":   config.API.BaseURL,
			"api_key":    config.API.APIKey,
			"timeout":    config.API.Timeout.String(),
			"user_agent": config.API.UserAgent,
			"page_size":  config.API.PageSize,
			"language":   config.API.Language,
		},
		"news": map[string]interface{}{
			"country":           config.News.Country,
			"secondary_country": config.News.SecondaryCountry,
			"fallback_query":    config.News.FallbackQuery,
			"cache_ttl":         config.News.CacheTTL.String(),
			"featured_count":    config.News.FeaturedCount,
			"recent_limit":      config.News.RecentLimit,
			"user_id":           config.News.UserID,
		},
		"cache": map[string]interface{}{
			"backend":      config.Cache.Backend,
			"redis_url":    config.Cache.RedisURL,
			"redis_prefix": config.Cache.RedisPrefix,
			"redis_ttl":    config.Cache.RedisTTL.String(),
			"retention":    config.Cache.Retention.String(),
		},
		"feeds": map[string]interface{}{
			"urls": config.Feeds.URLs,
		},
		"ui": map[string]interface{}{
			"opener":         config.UI.Opener,
			"default_accent": config.UI.DefaultAccent,
			"accents":        config.UI.Accents,
		},
		"log": map[string]interface{}{
			"level": config.Log.Level,
			"file":  config.Log.File,
		},
	}

	data, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

func GenerateDefaultConfig(path string) error {
	return Save(defaultConfig(), path)
}
