package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Supabase
	SupabaseURL            string `yaml:"supabase_url"`
	SupabaseServiceRoleKey string `yaml:"supabase_service_role_key"`
	SupabaseJWTSecret      string `yaml:"supabase_jwt_secret"`
	SupabaseStorageBucket  string `yaml:"supabase_storage_bucket"`

	// Database
	DatabaseURL string `yaml:"database_url"`

	// PostGIS connection as seen by the map server, which reads the layer
	// tables directly.
	PostGISHost     string `yaml:"postgis_host"`
	PostGISPort     int    `yaml:"postgis_port"`
	PostGISDatabase string `yaml:"postgis_database"`
	PostGISUser     string `yaml:"postgis_user"`
	PostGISPassword string `yaml:"postgis_password"`
	PostGISSchema   string `yaml:"postgis_schema"`

	// GeoServer
	GeoServerURL      string `yaml:"geoserver_url"`
	GeoServerUser     string `yaml:"geoserver_user"`
	GeoServerPassword string `yaml:"geoserver_password"`

	// Jobs
	PollChecks      int           `yaml:"poll_checks"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	Workers         int           `yaml:"workers"`
	PublishAttempts int           `yaml:"publish_attempts"`
	PublishDelay    time.Duration `yaml:"publish_delay"`
	GraceWindow     time.Duration `yaml:"grace_window"`
	ScratchDir      string        `yaml:"scratch_dir"`

	// Server
	Port        string `yaml:"port"`
	Environment string `yaml:"environment"`
	BaseURL     string `yaml:"base_url"`
}

func defaults() *Config {
	return &Config{
		SupabaseStorageBucket: "geodata",
		PostGISPort:           5432,
		PostGISSchema:         "public",
		GeoServerUser:         "admin",
		PollChecks:            20,
		PollInterval:          30 * time.Second,
		Workers:               4,
		PublishAttempts:       3,
		PublishDelay:          2 * time.Second,
		GraceWindow:           7 * 24 * time.Hour,
		ScratchDir:            os.TempDir(),
		Port:                  "8080",
		Environment:           "development",
		BaseURL:               "http://localhost:8080",
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// CONFIG_FILE (if any), then environment variables, and validates it.
func Load() (*Config, error) {
	cfg, err := LoadUnvalidated()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadUnvalidated is Load without Validate, for commands that only need a
// subset of the settings.
func LoadUnvalidated() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}

	cfg.SupabaseURL = getEnv("SUPABASE_URL", cfg.SupabaseURL)
	cfg.SupabaseServiceRoleKey = getEnv("SUPABASE_SERVICE_ROLE_KEY", cfg.SupabaseServiceRoleKey)
	cfg.SupabaseJWTSecret = getEnv("SUPABASE_JWT_SECRET", cfg.SupabaseJWTSecret)
	cfg.SupabaseStorageBucket = getEnv("SUPABASE_STORAGE_BUCKET", cfg.SupabaseStorageBucket)

	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)

	cfg.PostGISHost = getEnv("POSTGIS_HOST", cfg.PostGISHost)
	cfg.PostGISDatabase = getEnv("POSTGIS_DATABASE", cfg.PostGISDatabase)
	cfg.PostGISUser = getEnv("POSTGIS_USER", cfg.PostGISUser)
	cfg.PostGISPassword = getEnv("POSTGIS_PASSWORD", cfg.PostGISPassword)
	cfg.PostGISSchema = getEnv("POSTGIS_SCHEMA", cfg.PostGISSchema)

	cfg.GeoServerURL = getEnv("GEOSERVER_URL", cfg.GeoServerURL)
	cfg.GeoServerUser = getEnv("GEOSERVER_USER", cfg.GeoServerUser)
	cfg.GeoServerPassword = getEnv("GEOSERVER_PASSWORD", cfg.GeoServerPassword)

	cfg.ScratchDir = getEnv("SCRATCH_DIR", cfg.ScratchDir)
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)
	cfg.BaseURL = getEnv("BASE_URL", cfg.BaseURL)

	var err error
	if cfg.PostGISPort, err = getEnvInt("POSTGIS_PORT", cfg.PostGISPort); err != nil {
		return nil, err
	}
	if cfg.PollChecks, err = getEnvInt("POLL_CHECKS", cfg.PollChecks); err != nil {
		return nil, err
	}
	if cfg.Workers, err = getEnvInt("WORKERS", cfg.Workers); err != nil {
		return nil, err
	}
	if cfg.PublishAttempts, err = getEnvInt("PUBLISH_ATTEMPTS", cfg.PublishAttempts); err != nil {
		return nil, err
	}
	if cfg.PollInterval, err = getEnvDuration("POLL_INTERVAL", cfg.PollInterval); err != nil {
		return nil, err
	}
	if cfg.PublishDelay, err = getEnvDuration("PUBLISH_DELAY", cfg.PublishDelay); err != nil {
		return nil, err
	}
	if cfg.GraceWindow, err = getEnvDuration("GRACE_WINDOW", cfg.GraceWindow); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	if c.SupabaseURL == "" {
		return fmt.Errorf("SUPABASE_URL is required")
	}
	if c.SupabaseServiceRoleKey == "" {
		return fmt.Errorf("SUPABASE_SERVICE_ROLE_KEY is required")
	}
	if c.SupabaseJWTSecret == "" {
		return fmt.Errorf("SUPABASE_JWT_SECRET is required")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.GeoServerURL == "" {
		return fmt.Errorf("GEOSERVER_URL is required")
	}
	if c.PollChecks < 1 {
		return fmt.Errorf("POLL_CHECKS must be at least 1")
	}
	if c.Workers < 1 {
		return fmt.Errorf("WORKERS must be at least 1")
	}
	if c.PublishAttempts < 1 {
		return fmt.Errorf("PUBLISH_ATTEMPTS must be at least 1")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return d, nil
}
