package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server        ServerConfig        `toml:"server"`        // HTTP server settings
	Logging       LoggingConfig       `toml:"logging"`       // Application logging settings
	Storage       StorageConfig       `toml:"storage"`       // Recent-search persistence settings
	Lookup        LookupConfig        `toml:"lookup"`        // Flight lookup controller settings
	Map           MapConfig           `toml:"map"`           // Map surface settings
	AviationStack AviationStackConfig `toml:"aviationstack"` // Flight data provider
	CheckWX       CheckWXConfig       `toml:"checkwx"`       // METAR provider
	OpenSky       OpenSkyConfig       `toml:"opensky"`       // Live position provider
	Cache         CacheConfig         `toml:"cache"`         // Backend response caching
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port               int      `toml:"port"`                   // HTTP port for the server
	Host               string   `toml:"host"`                   // Host address to bind to (e.g., 127.0.0.1 for localhost only, 0.0.0.0 for all interfaces)
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`   // List of origins allowed for CORS requests (use ["*"] for all origins)
	ReadTimeoutSecs    int      `toml:"read_timeout_seconds"`   // Maximum duration for reading the entire request (0 = no timeout)
	WriteTimeoutSecs   int      `toml:"write_timeout_seconds"`  // Maximum duration for writing the response (0 = no timeout)
	IdleTimeoutSecs    int      `toml:"idle_timeout_seconds"`   // Maximum duration to wait for the next request when keep-alives are enabled
	StaticFilesDir     string   `toml:"static_files_dir"`       // Directory to serve the page from (e.g., "www")
	RateLimitPerSecond float64  `toml:"rate_limit_per_second"`  // Sustained API requests per second per client IP (0 = unlimited)
	RateLimitBurst     int      `toml:"rate_limit_burst"`       // Burst allowance per client IP
	TrustedIPs         []string `toml:"rate_limit_trusted_ips"` // IPs never rate limited (the server's own page sessions)
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`  // Log level: "debug", "info", "warn", or "error"
	Format string `toml:"format"` // Log format: "json" (structured) or "console" (human-readable)
}

// StorageConfig contains recent-search persistence configuration
type StorageConfig struct {
	SQLitePath              string `toml:"sqlite_path"`                // Path of the SQLite database holding recent searches and the lookup log
	LookupLogRetentionHours int    `toml:"lookup_log_retention_hours"` // How long backend lookups are kept (0 = forever)
	PruneIntervalMinutes    int    `toml:"prune_interval_minutes"`     // How often old lookups are pruned
}

// LookupConfig contains flight lookup controller settings
type LookupConfig struct {
	BaseURL               string `toml:"base_url"`                // Backend the controller fetches /api/flight/{n} from (empty = this server)
	Locale                string `toml:"locale"`                  // Message language: "es" or "en"
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"` // Lookup request timeout (0 = transport default)
}

// MapConfig contains map surface settings
type MapConfig struct {
	TileURL     string `toml:"tile_url"`    // Tile layer URL template
	Attribution string `toml:"attribution"` // Tile layer attribution text
	Zoom        int    `toml:"zoom"`        // Initial zoom level
}

// AviationStackConfig contains AviationStack API settings
type AviationStackConfig struct {
	APIBaseURL            string `toml:"api_base_url"`            // Base URL (e.g., http://api.aviationstack.com/v1)
	APIKey                string `toml:"api_key"`                 // Access key; AVIATIONSTACK_API_KEY overrides
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"` // HTTP request timeout in seconds
	MaxRetries            int    `toml:"max_retries"`             // Maximum number of retry attempts for failed requests
}

// CheckWXConfig contains CheckWX METAR API settings
type CheckWXConfig struct {
	APIBaseURL            string `toml:"api_base_url"`            // Base URL (e.g., https://api.checkwx.com)
	APIKey                string `toml:"api_key"`                 // X-API-Key value; CHECKWX_API_KEY overrides
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"` // HTTP request timeout in seconds
	MaxRetries            int    `toml:"max_retries"`             // Maximum number of retry attempts for failed requests
	MagneticWind          bool   `toml:"magnetic_wind"`           // Add magnetic wind direction using the station's declination
}

// OpenSkyConfig contains OpenSky REST API settings
type OpenSkyConfig struct {
	Enabled               bool   `toml:"enabled"`                 // Fill missing live positions from OpenSky
	APIBaseURL            string `toml:"api_base_url"`            // Base URL (e.g., https://opensky-network.org/api)
	TokenURL              string `toml:"token_url"`               // OAuth2 token endpoint
	ClientID              string `toml:"client_id"`               // OAuth2 client id; OPENSKY_CLIENT_ID overrides (empty = anonymous)
	ClientSecret          string `toml:"client_secret"`           // OAuth2 client secret; OPENSKY_CLIENT_SECRET overrides
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"` // HTTP request timeout in seconds
}

// CacheConfig contains backend cache settings
type CacheConfig struct {
	Backend             string `toml:"backend"`                  // "memory" or "redis"
	RedisURL            string `toml:"redis_url"`                // redis://host:port/db; REDIS_URL overrides
	FlightTTLSeconds    int    `toml:"flight_ttl_seconds"`       // Lifetime of cached lookup responses
	MetarTTLSeconds     int    `toml:"metar_ttl_seconds"`        // Lifetime of cached METAR sides per station
	CleanupIntervalSecs int    `toml:"cleanup_interval_seconds"` // Memory backend purge interval
}

// Load loads the configuration from the specified file path
func Load(path string) (*Config, error) {
	var config Config

	// Check if the file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	// Read the config file
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	return &config, nil
}

// LoadWithFallback loads the configuration by checking multiple locations in order of preference.
// With no file anywhere, an empty configuration is returned and Validate fills in the defaults.
// A .env file next to the working directory is loaded first; secrets in the environment win
// over the file values.
func LoadWithFallback(preferredPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	// List of paths to check in order of preference
	searchPaths := []string{
		preferredPath,         // User-specified path (if provided)
		"configs/config.toml", // configs/ folder
		"config.toml",         // Root directory
	}

	// Remove duplicates while preserving order
	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err != nil {
			if preferredPath != "" && path == preferredPath {
				return nil, fmt.Errorf("config file not found: %s", path)
			}
			continue
		}
		config, err := Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
		config.applyEnv()
		return config, nil
	}

	config := &Config{}
	config.applyEnv()
	return config, nil
}

// applyEnv overrides secrets from the environment
func (c *Config) applyEnv() {
	overrides := []struct {
		env    string
		target *string
	}{
		{"AVIATIONSTACK_API_KEY", &c.AviationStack.APIKey},
		{"CHECKWX_API_KEY", &c.CheckWX.APIKey},
		{"OPENSKY_CLIENT_ID", &c.OpenSky.ClientID},
		{"OPENSKY_CLIENT_SECRET", &c.OpenSky.ClientSecret},
		{"REDIS_URL", &c.Cache.RedisURL},
	}
	for _, o := range overrides {
		if v := strings.TrimSpace(os.Getenv(o.env)); v != "" {
			*o.target = v
		}
	}
}

// Validate applies defaults and validates the configuration
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	switch strings.ToLower(c.Logging.Level) {
	case "":
		c.Logging.Level = "info"
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "":
		c.Logging.Format = "console"
	case "console", "json":
	default:
		return fmt.Errorf("invalid logging format: %s", c.Logging.Format)
	}

	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "data/aeris.db"
	}
	if c.Storage.LookupLogRetentionHours < 0 {
		return fmt.Errorf("storage.lookup_log_retention_hours must not be negative")
	}
	if c.Storage.PruneIntervalMinutes <= 0 {
		c.Storage.PruneIntervalMinutes = 60
	}

	if err := c.ValidateLookup(); err != nil {
		return err
	}
	if err := c.ValidateProviders(); err != nil {
		return err
	}
	return c.ValidateCache()
}

func (c *Config) validateServer() error {
	if c.Server.Port == 0 {
		c.Server.Port = 5000
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.StaticFilesDir == "" {
		c.Server.StaticFilesDir = "www"
	}
	if c.Server.ReadTimeoutSecs < 0 || c.Server.WriteTimeoutSecs < 0 || c.Server.IdleTimeoutSecs < 0 {
		return fmt.Errorf("server timeouts must be 0 or greater")
	}
	if c.Server.IdleTimeoutSecs == 0 {
		c.Server.IdleTimeoutSecs = 60
	}
	if c.Server.RateLimitPerSecond < 0 {
		return fmt.Errorf("rate_limit_per_second must be 0 or greater: %v", c.Server.RateLimitPerSecond)
	}
	if c.Server.RateLimitPerSecond > 0 && c.Server.RateLimitBurst <= 0 {
		c.Server.RateLimitBurst = 5
	}
	if len(c.Server.TrustedIPs) == 0 {
		c.Server.TrustedIPs = []string{"127.0.0.1", "::1"}
	}
	return nil
}

// ValidateLookup validates the lookup controller and map settings
func (c *Config) ValidateLookup() error {
	if c.Lookup.BaseURL == "" {
		host := c.Server.Host
		if host == "0.0.0.0" || host == "" {
			host = "127.0.0.1"
		}
		c.Lookup.BaseURL = fmt.Sprintf("http://%s:%d", host, c.Server.Port)
	}
	c.Lookup.BaseURL = strings.TrimRight(c.Lookup.BaseURL, "/")

	switch c.Lookup.Locale {
	case "":
		c.Lookup.Locale = "es"
	case "es", "en":
	default:
		return fmt.Errorf("unsupported lookup locale: %s (expected es or en)", c.Lookup.Locale)
	}
	if c.Lookup.RequestTimeoutSeconds < 0 {
		return fmt.Errorf("lookup request_timeout_seconds must be 0 or greater: %d", c.Lookup.RequestTimeoutSeconds)
	}

	if c.Map.TileURL == "" {
		c.Map.TileURL = "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png"
	}
	if c.Map.Attribution == "" {
		c.Map.Attribution = "© OpenStreetMap contributors"
	}
	if c.Map.Zoom == 0 {
		c.Map.Zoom = 8
	}
	if c.Map.Zoom < 1 || c.Map.Zoom > 19 {
		return fmt.Errorf("map zoom must be between 1 and 19: %d", c.Map.Zoom)
	}
	return nil
}

// ValidateProviders validates the upstream API settings. Missing API keys are not an error:
// the backend answers lookups with a business failure until they are configured.
func (c *Config) ValidateProviders() error {
	if c.AviationStack.APIBaseURL == "" {
		c.AviationStack.APIBaseURL = "http://api.aviationstack.com/v1"
	}
	if c.CheckWX.APIBaseURL == "" {
		c.CheckWX.APIBaseURL = "https://api.checkwx.com"
	}
	if c.OpenSky.APIBaseURL == "" {
		c.OpenSky.APIBaseURL = "https://opensky-network.org/api"
	}
	if c.OpenSky.TokenURL == "" {
		c.OpenSky.TokenURL = "https://auth.opensky-network.org/auth/realms/opensky-network/protocol/openid-connect/token"
	}

	for name, v := range map[string]*int{
		"aviationstack": &c.AviationStack.RequestTimeoutSeconds,
		"checkwx":       &c.CheckWX.RequestTimeoutSeconds,
		"opensky":       &c.OpenSky.RequestTimeoutSeconds,
	} {
		if *v < 0 {
			return fmt.Errorf("%s request_timeout_seconds must be 0 or greater: %d", name, *v)
		}
		if *v == 0 {
			*v = 10
		}
	}

	if c.AviationStack.MaxRetries < 0 {
		return fmt.Errorf("aviationstack max_retries must be 0 or greater: %d", c.AviationStack.MaxRetries)
	}
	if c.CheckWX.MaxRetries < 0 {
		return fmt.Errorf("checkwx max_retries must be 0 or greater: %d", c.CheckWX.MaxRetries)
	}
	return nil
}

// ValidateCache validates the cache configuration
func (c *Config) ValidateCache() error {
	switch c.Cache.Backend {
	case "":
		c.Cache.Backend = "memory"
	case "memory":
	case "redis":
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("cache backend redis requires redis_url or REDIS_URL")
		}
	default:
		return fmt.Errorf("unknown cache backend: %s", c.Cache.Backend)
	}

	if c.Cache.FlightTTLSeconds < 0 || c.Cache.MetarTTLSeconds < 0 {
		return fmt.Errorf("cache TTLs must be 0 or greater")
	}
	if c.Cache.FlightTTLSeconds == 0 {
		c.Cache.FlightTTLSeconds = 60
	}
	if c.Cache.MetarTTLSeconds == 0 {
		c.Cache.MetarTTLSeconds = 600
	}
	if c.Cache.CleanupIntervalSecs <= 0 {
		c.Cache.CleanupIntervalSecs = 300
	}
	return nil
}
