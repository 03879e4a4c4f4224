package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"gopkg.in/yaml.v3"

	"infostore/internal/domain/models/infostore"
)

type Config struct {
	Port        string
	Environment string
	DatabaseURL string
	JWKSURL     string
	CORSOrigins string
	TablePrefix string
	// Pool sizing, 0 keeps pgxpool defaults
	MaxConns int32
	MinConns int32
	// Folder cache; empty RedisAddr disables it
	RedisAddr      string
	FolderCacheTTL time.Duration
	// Reservation janitor
	ReservationTTL  time.Duration
	JanitorSchedule string
	// Level granted to users other than a folder's creator
	OtherUsersPermission string
	LogDir               string
	// Debug flags
	Debug bool
}

// FileOverlay is the optional YAML file named by CONFIG_FILE. Only the
// operational knobs live there; credentials stay in the environment.
type FileOverlay struct {
	Cache struct {
		RedisAddr string `yaml:"redis_addr"`
		TTL       string `yaml:"ttl"`
	} `yaml:"cache"`
	Janitor struct {
		Schedule       string `yaml:"schedule"`
		ReservationTTL string `yaml:"reservation_ttl"`
	} `yaml:"janitor"`
	Pool struct {
		MaxConns int32 `yaml:"max_conns"`
		MinConns int32 `yaml:"min_conns"`
	} `yaml:"pool"`
}

func Load() (*Config, error) {
	env := getEnv("ENVIRONMENT", "dev")

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		Environment:     env,
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		JWKSURL:         getEnv("JWKS_URL", ""),
		CORSOrigins:     getEnv("CORS_ORIGINS", "http://localhost:3000"),
		TablePrefix:     getTablePrefix(env),
		MaxConns:        int32(getEnvInt("DB_MAX_CONNS", 0)),
		MinConns:        int32(getEnvInt("DB_MIN_CONNS", 0)),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		FolderCacheTTL:  getEnvDuration("FOLDER_CACHE_TTL", 5*time.Minute),
		ReservationTTL:  getEnvDuration("RESERVATION_TTL", 15*time.Minute),
		JanitorSchedule: getEnv("JANITOR_SCHEDULE", "@every 5m"),
		LogDir:          getEnv("LOG_DIR", ""),
		// Matches infostore.ParsePermissionLevel names
		OtherUsersPermission: getEnv("OTHER_USERS_PERMISSION", "read_all"),
		// Debug flags - default to true in dev/test, false in production
		Debug: getEnv("DEBUG", getDefaultDebug(env)) == "true",
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadFile applies the YAML overlay at path on top of cfg.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	return c.ApplyOverlay(data)
}

// ApplyOverlay applies a YAML overlay document. Empty values keep the
// current setting.
func (c *Config) ApplyOverlay(data []byte) error {
	var overlay FileOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if overlay.Cache.RedisAddr != "" {
		c.RedisAddr = overlay.Cache.RedisAddr
	}
	if overlay.Cache.TTL != "" {
		d, err := time.ParseDuration(overlay.Cache.TTL)
		if err != nil {
			return fmt.Errorf("cache.ttl: %w", err)
		}
		c.FolderCacheTTL = d
	}
	if overlay.Janitor.Schedule != "" {
		c.JanitorSchedule = overlay.Janitor.Schedule
	}
	if overlay.Janitor.ReservationTTL != "" {
		d, err := time.ParseDuration(overlay.Janitor.ReservationTTL)
		if err != nil {
			return fmt.Errorf("janitor.reservation_ttl: %w", err)
		}
		c.ReservationTTL = d
	}
	if overlay.Pool.MaxConns > 0 {
		c.MaxConns = overlay.Pool.MaxConns
	}
	if overlay.Pool.MinConns > 0 {
		c.MinConns = overlay.Pool.MinConns
	}
	return nil
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DatabaseURL, validation.Required),
		validation.Field(&c.Port, validation.Required, is.Port),
		validation.Field(&c.Environment, validation.In("dev", "test", "prod")),
		validation.Field(&c.FolderCacheTTL, validation.Min(time.Duration(0))),
		validation.Field(&c.ReservationTTL, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.JanitorSchedule, validation.Required),
		validation.Field(&c.MinConns, validation.Max(c.maxConnsBound())),
		validation.Field(&c.OtherUsersPermission, validation.By(permissionName)),
	)
}

func permissionName(value any) error {
	name, _ := value.(string)
	if _, ok := infostore.ParsePermissionLevel(name); !ok {
		return fmt.Errorf("unknown permission level %q", name)
	}
	return nil
}

func (c *Config) maxConnsBound() int32 {
	if c.MaxConns > 0 {
		return c.MaxConns
	}
	return 1 << 30
}

// getDefaultDebug returns the default debug setting based on environment
func getDefaultDebug(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true" // Enable DEBUG in dev/test by default
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	// Allow manual override via TABLE_PREFIX env var
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}

	// Auto-generate based on environment
	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultValue
}
