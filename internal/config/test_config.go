package config

import "time"

// TestConfig returns a config suitable for testing
func TestConfig() *Config {
	cfg := defaultConfig()
	cfg.Database = DatabaseConfig{
		Path:    "test.db",
		Timeout: 1 * time.Second,
	}
	cfg.API.BaseURL = "http://127.0.0.1:0"
	cfg.API.APIKey = "test-key"
	cfg.API.Timeout = 5 * time.Second
	cfg.API.UserAgent = "dispatch-test/1.0"
	cfg.Log = LogConfig{Level: "off"}
	return cfg
}
