package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Gateway    GatewayConfig
	Proxy      ProxyConfig
	Generation GenerationConfig
	Logging    LoggingConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port            string
	Environment     string
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database connection configuration. An empty URL
// selects the in-memory store.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// GatewayConfig tells the model gateway client where the proxy lives and
// which credential to present when hosted.
type GatewayConfig struct {
	Endpoint string
	APIKey   string
	Local    bool
}

// ProxyConfig holds the upstream model endpoint and the rotation keys.
type ProxyConfig struct {
	UpstreamEndpoint string
	Keys             []string
}

// GenerationConfig holds the meal-plan orchestration tunables.
type GenerationConfig struct {
	WatchdogInterval time.Duration
	InterDayDelay    time.Duration
	RetryDelay       time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string // json or console
}

const maxRotationKeys = 10

// Load reads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	// Set default values
	setDefaults(v)

	// Read from environment variables
	v.AutomaticEnv()

	// Bind specific environment variables
	bindEnvVars(v)

	// Unmarshal into config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Proxy.Keys = rotationKeys(v)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "3000")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.shutdowntimeout", 30*time.Second)

	// Database defaults
	v.SetDefault("database.maxopenconns", 25)
	v.SetDefault("database.connmaxlifetime", 5*time.Minute)

	// Gateway defaults: in development the client talks to this server's
	// own proxy routes without a bearer credential.
	v.SetDefault("gateway.endpoint", "http://localhost:3000/api/analyze")
	v.SetDefault("gateway.local", true)

	// Proxy defaults
	v.SetDefault("proxy.upstreamendpoint",
		"https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash-exp:generateContent")

	// Generation defaults
	v.SetDefault("generation.watchdoginterval", 60*time.Second)
	v.SetDefault("generation.interdaydelay", 1500*time.Millisecond)
	v.SetDefault("generation.retrydelay", 2*time.Second)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// bindEnvVars binds environment variables to config keys
func bindEnvVars(v *viper.Viper) {
	// Server
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.environment", "ENV", "ENVIRONMENT")

	// Database
	v.BindEnv("database.url", "DATABASE_URL")

	// Gateway
	v.BindEnv("gateway.endpoint", "GATEWAY_ENDPOINT")
	v.BindEnv("gateway.apikey", "GATEWAY_API_KEY")
	v.BindEnv("gateway.local", "GATEWAY_LOCAL")

	// Proxy
	v.BindEnv("proxy.upstreamendpoint", "GEMINI_ENDPOINT")

	// Generation
	v.BindEnv("generation.watchdoginterval", "GENERATION_WATCHDOG_INTERVAL")
	v.BindEnv("generation.interdaydelay", "GENERATION_INTER_DAY_DELAY")
	v.BindEnv("generation.retrydelay", "GENERATION_RETRY_DELAY")

	// Logging
	v.BindEnv("logging.level", "LOG_LEVEL")
	v.BindEnv("logging.format", "LOG_FORMAT")
}

// rotationKeys reads GEMINI_API_KEY plus the numbered variants, keeping
// their order and dropping unset slots.
func rotationKeys(v *viper.Viper) []string {
	names := make([]string, 0, maxRotationKeys)
	names = append(names, "GEMINI_API_KEY")
	for i := 2; i <= maxRotationKeys; i++ {
		names = append(names, fmt.Sprintf("GEMINI_API_KEY%d", i))
	}

	var keys []string
	for _, name := range names {
		v.BindEnv(name, name)
		if key := v.GetString(name); key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Gateway.Endpoint == "" {
		return fmt.Errorf("gateway.endpoint is required")
	}

	if !c.Gateway.Local && c.Gateway.APIKey == "" {
		return fmt.Errorf("gateway.apikey is required outside the local environment")
	}

	if len(c.Proxy.Keys) == 0 {
		return fmt.Errorf("at least one GEMINI_API_KEY is required")
	}

	if c.Proxy.UpstreamEndpoint == "" {
		return fmt.Errorf("proxy.upstreamendpoint is required")
	}

	return nil
}
