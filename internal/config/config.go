// Package config loads server configuration from a YAML file, a .env file and
// the process environment, in that order of increasing priority.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port               string   `yaml:"port"`
	DBPath             string   `yaml:"db_path"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	FrontendDistPath   string   `yaml:"frontend_dist_path"`

	Log      LogConfig      `yaml:"log"`
	Steam    SteamConfig    `yaml:"steam"`
	Currency CurrencyConfig `yaml:"currency"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "console" or "json"
}

// SteamConfig controls how the store's search and detail endpoints are queried.
type SteamConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Language    string        `yaml:"language"`
	CountryCode string        `yaml:"country_code"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`
	UserAgent   string        `yaml:"user_agent"`

	// Structured search pagination
	SearchPageSize int `yaml:"search_page_size"`
	MaxResults     int `yaml:"max_results"`

	// Detail batching policy
	DetailBatchSize  int           `yaml:"detail_batch_size"`
	DetailBatchDelay time.Duration `yaml:"detail_batch_delay"`
	DetailCacheSize  int           `yaml:"detail_cache_size"`

	FallbackEnabled bool `yaml:"fallback_enabled"`
	// FallbackMaxCandidates caps scraped IDs below the request limit; 0 means no extra cap
	FallbackMaxCandidates int `yaml:"fallback_max_candidates"`
}

// CurrencyConfig describes the display currency and the static conversion table.
// Rates convert one unit of the source currency into the display currency.
type CurrencyConfig struct {
	Display     string             `yaml:"display"`
	Symbol      string             `yaml:"symbol"`
	DefaultRate float64            `yaml:"default_rate"`
	Rates       map[string]float64 `yaml:"rates"`
}

const (
	defaultPort                  = "8080"
	defaultDBPath                = "./game_tracker.db"
	defaultSteamBaseURL          = "https://store.steampowered.com"
	defaultHTTPTimeout           = 8 * time.Second
	defaultUserAgent             = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	defaultSearchPageSize        = 10
	defaultMaxResults            = 10
	defaultDetailBatchSize       = 10
	defaultDetailBatchDelay      = 250 * time.Millisecond
	defaultDetailCacheSize       = 2000
	defaultFallbackMaxCandidates = 0
	defaultDisplayCurrency       = "EUR"
	defaultCurrencySymbol        = "€"
	defaultConversionRate        = 0.92

	// maxDetailBatchSize keeps comma-joined ID lists short enough for the detail endpoint
	maxDetailBatchSize = 50
	maxResultsCeiling  = 50
)

// DefaultRates returns the built-in conversion table into EUR.
func DefaultRates() map[string]float64 {
	return map[string]float64{
		"EUR": 1.0,
		"USD": 0.92,
		"GBP": 1.17,
		"CAD": 0.68,
		"AUD": 0.61,
		"CHF": 1.05,
		"JPY": 0.0062,
		"CNY": 0.13,
		"BRL": 0.17,
		"PLN": 0.23,
		"SEK": 0.088,
		"NOK": 0.086,
	}
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Port:               defaultPort,
		DBPath:             defaultDBPath,
		CORSAllowedOrigins: []string{"http://localhost:5173", "http://localhost:3000"},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Steam: SteamConfig{
			BaseURL:               defaultSteamBaseURL,
			Language:              "english",
			CountryCode:           "US",
			HTTPTimeout:           defaultHTTPTimeout,
			UserAgent:             defaultUserAgent,
			SearchPageSize:        defaultSearchPageSize,
			MaxResults:            defaultMaxResults,
			DetailBatchSize:       defaultDetailBatchSize,
			DetailBatchDelay:      defaultDetailBatchDelay,
			DetailCacheSize:       defaultDetailCacheSize,
			FallbackEnabled:       true,
			FallbackMaxCandidates: defaultFallbackMaxCandidates,
		},
		Currency: CurrencyConfig{
			Display:     defaultDisplayCurrency,
			Symbol:      defaultCurrencySymbol,
			DefaultRate: defaultConversionRate,
			Rates:       DefaultRates(),
		},
	}
}

// configPaths returns the list of paths to search for a config file.
func configPaths() []string {
	paths := []string{
		"gametracker.yaml",
		"gametracker.yml",
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "gametracker", "config.yaml"),
			filepath.Join(home, ".config", "gametracker", "config.yml"),
		)
	}

	return paths
}

// Load loads configuration.
// Priority: environment > .env > GAMETRACKER_CONFIG or first config file found > defaults
func Load() (*Config, error) {
	// A missing .env is normal outside development
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if envPath := os.Getenv("GAMETRACKER_CONFIG"); envPath != "" {
		if err := cfg.loadFromFile(envPath); err != nil {
			return nil, err
		}
	} else {
		for _, path := range configPaths() {
			if _, err := os.Stat(path); err == nil {
				if err := cfg.loadFromFile(path); err != nil {
					return nil, err
				}
				break
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.Validate()
	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PORT"); v != "" {
		c.Port = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		c.CORSAllowedOrigins = splitList(v)
	}
	if v := os.Getenv("FRONTEND_DIST_PATH"); v != "" {
		c.FrontendDistPath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	if v := os.Getenv("STEAM_BASE_URL"); v != "" {
		c.Steam.BaseURL = v
	}
	if d, ok := envDuration("STEAM_HTTP_TIMEOUT"); ok {
		c.Steam.HTTPTimeout = d
	}
	if n, ok := envInt("STEAM_DETAIL_BATCH_SIZE"); ok {
		c.Steam.DetailBatchSize = n
	}
	if d, ok := envDuration("STEAM_DETAIL_BATCH_DELAY"); ok {
		c.Steam.DetailBatchDelay = d
	}
	if n, ok := envInt("STEAM_DETAIL_CACHE_SIZE"); ok {
		c.Steam.DetailCacheSize = n
	}
	if n, ok := envInt("STEAM_MAX_RESULTS"); ok {
		c.Steam.MaxResults = n
	}
	if v := os.Getenv("STEAM_FALLBACK_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Steam.FallbackEnabled = b
		}
	}
}

// Validate replaces out-of-range values with defaults.
func (c *Config) Validate() {
	if c.Port == "" {
		c.Port = defaultPort
	}
	if c.DBPath == "" {
		c.DBPath = defaultDBPath
	}

	s := &c.Steam
	s.BaseURL = strings.TrimRight(s.BaseURL, "/")
	if s.BaseURL == "" {
		s.BaseURL = defaultSteamBaseURL
	}
	if s.Language == "" {
		s.Language = "english"
	}
	if s.HTTPTimeout <= 0 {
		s.HTTPTimeout = defaultHTTPTimeout
	}
	if s.UserAgent == "" {
		s.UserAgent = defaultUserAgent
	}
	if s.SearchPageSize <= 0 {
		s.SearchPageSize = defaultSearchPageSize
	}
	if s.MaxResults <= 0 || s.MaxResults > maxResultsCeiling {
		s.MaxResults = defaultMaxResults
	}
	if s.DetailBatchSize <= 0 || s.DetailBatchSize > maxDetailBatchSize {
		s.DetailBatchSize = defaultDetailBatchSize
	}
	if s.DetailBatchDelay < 0 {
		s.DetailBatchDelay = defaultDetailBatchDelay
	}
	if s.DetailCacheSize <= 0 {
		s.DetailCacheSize = defaultDetailCacheSize
	}
	if s.FallbackMaxCandidates < 0 {
		s.FallbackMaxCandidates = defaultFallbackMaxCandidates
	}

	cur := &c.Currency
	if cur.Display == "" {
		cur.Display = defaultDisplayCurrency
	}
	if cur.Symbol == "" {
		cur.Symbol = defaultCurrencySymbol
	}
	if cur.DefaultRate <= 0 {
		cur.DefaultRate = defaultConversionRate
	}
	if len(cur.Rates) == 0 {
		cur.Rates = DefaultRates()
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envDuration(key string) (time.Duration, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false
	}
	return d, true
}
