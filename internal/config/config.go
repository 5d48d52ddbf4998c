// Package config loads and validates the server configuration from the
// environment.
//
// All settings use the QUALTRICS_ prefix (e.g. QUALTRICS_API_TOKEN).
// Configuration is read once at startup; there is no hot reload — the
// pipeline and rate limiter are bound to one set of credentials for the
// process lifetime.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// envPrefix namespaces every configuration key.
	envPrefix = "QUALTRICS"

	// defaultRequestsPerMinute matches the documented per-token budget
	// of the Qualtrics v3 API.
	defaultRequestsPerMinute = 300

	// defaultRequestTimeoutMs bounds every single HTTP call.
	defaultRequestTimeoutMs = 30_000

	// defaultDownloadDir is where export artifacts are written when
	// they are too large to return inline or the caller asks for a file.
	defaultDownloadDir = "./qualtrics-downloads"
)

// Config holds everything the server needs to talk to the Qualtrics API.
type Config struct {
	// APIToken is the static token sent as X-API-TOKEN on every request.
	APIToken string

	// DataCenter is the Qualtrics data-center id (e.g. "yul1", "fra1").
	// It is used to derive the base URL unless BaseURL overrides it.
	DataCenter string

	// BaseURL is the fully resolved API root, e.g.
	// "https://yul1.qualtrics.com/API/v3". Never has a trailing slash.
	BaseURL string

	// RateLimitEnabled toggles outbound admission control.
	RateLimitEnabled bool

	// RequestsPerMinute is the sliding-window budget when the limiter
	// is enabled.
	RequestsPerMinute int

	// RequestTimeout is the hard deadline for a single HTTP call.
	RequestTimeout time.Duration

	// DownloadDir is the root directory for persisted export artifacts.
	DownloadDir string
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	v.SetDefault("RATE_LIMIT_ENABLED", true)
	v.SetDefault("REQUESTS_PER_MINUTE", defaultRequestsPerMinute)
	v.SetDefault("REQUEST_TIMEOUT_MS", defaultRequestTimeoutMs)
	v.SetDefault("DOWNLOAD_DIR", defaultDownloadDir)

	cfg := &Config{
		APIToken:          strings.TrimSpace(v.GetString("API_TOKEN")),
		DataCenter:        strings.TrimSpace(v.GetString("DATA_CENTER")),
		BaseURL:           strings.TrimSpace(v.GetString("BASE_URL")),
		RateLimitEnabled:  v.GetBool("RATE_LIMIT_ENABLED"),
		RequestsPerMinute: v.GetInt("REQUESTS_PER_MINUTE"),
		RequestTimeout:    time.Duration(v.GetInt("REQUEST_TIMEOUT_MS")) * time.Millisecond,
		DownloadDir:       v.GetString("DOWNLOAD_DIR"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// An explicit base URL wins over data-center derivation.
	if cfg.BaseURL == "" {
		cfg.BaseURL = fmt.Sprintf("https://%s.qualtrics.com/API/v3", cfg.DataCenter)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return cfg, nil
}

// validate checks required keys and value ranges. Error messages name
// the environment variable so startup failures are actionable.
func (c *Config) validate() error {
	if c.APIToken == "" {
		return fmt.Errorf("QUALTRICS_API_TOKEN is required")
	}
	if c.DataCenter == "" && c.BaseURL == "" {
		return fmt.Errorf("either QUALTRICS_DATA_CENTER or QUALTRICS_BASE_URL must be set")
	}
	if c.RequestsPerMinute <= 0 {
		return fmt.Errorf("QUALTRICS_REQUESTS_PER_MINUTE must be > 0, got %d", c.RequestsPerMinute)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("QUALTRICS_REQUEST_TIMEOUT_MS must be > 0")
	}
	if c.BaseURL != "" && !strings.HasPrefix(c.BaseURL, "http") {
		return fmt.Errorf("QUALTRICS_BASE_URL must be an absolute URL, got %q", c.BaseURL)
	}
	return nil
}
