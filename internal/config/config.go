package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App        AppConfig        `yaml:"app"`
	Store      StoreConfig      `yaml:"store"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Redis      RedisConfig      `yaml:"redis"`
	Logger     LoggerConfig     `yaml:"logger"`
	Auth       AuthConfig       `yaml:"auth"`
	Tickets    TicketsConfig    `yaml:"tickets"`
	CSV        CSVConfig        `yaml:"csv"`
	Automation AutomationConfig `yaml:"automation"`
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string `yaml:"name"`
	Env                   string `yaml:"env"`
	Host                  string `yaml:"host"`
	Port                  string `yaml:"port"`
	Version               string `yaml:"version"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver     string `yaml:"driver"`
	SQLitePath string `yaml:"sqlite_path"`
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	MaxConns       int32  `yaml:"max_conns"`
	MinConns       int32  `yaml:"min_conns"`
	RunMigrations  bool   `yaml:"run_migrations"`
	MigrationsDir  string `yaml:"migrations_dir"`
	ConnMaxIdleSec int32  `yaml:"conn_max_idle_seconds"`
	ConnMaxLifeSec int32  `yaml:"conn_max_life_seconds"`
}

// RedisConfig holds Redis connection values. An empty Addr disables Redis.
type RedisConfig struct {
	Addr          string `yaml:"addr"`
	Password      string `yaml:"password"`
	DB            int    `yaml:"db"`
	EventsChannel string `yaml:"events_channel"`
	QueueName     string `yaml:"queue_name"`
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string `yaml:"level"`
	// Format is "json" or "console".
	Format string `yaml:"format"`
	// Output is "stdout", "stderr" or a file path.
	Output string `yaml:"output"`
	// Service is attached to every entry; defaults to the app name.
	Service string `yaml:"service"`
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string `yaml:"jwt_secret"`
	AccessTokenTTLMinutes int    `yaml:"access_token_ttl_minutes"`
	BcryptCost            int    `yaml:"bcrypt_cost"`
}

// TicketsConfig tunes ticket workflow behavior.
type TicketsConfig struct {
	NumberMaxAttempts int    `yaml:"number_max_attempts"`
	SystemActorID     string `yaml:"system_actor_id"`
}

// CSVConfig controls CSV export output.
type CSVConfig struct {
	Dir string `yaml:"dir"`
}

// AutomationConfig controls the age-based status sweep.
type AutomationConfig struct {
	IntervalMinutes   int `yaml:"interval_minutes"`
	OpenCloseDays     int `yaml:"open_close_days"`
	PendingReopenDays int `yaml:"pending_open_days"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:                  "service-ticket",
			Env:                   "development",
			Host:                  "0.0.0.0",
			Port:                  "8080",
			Version:               "dev",
			RequestTimeoutSeconds: 30,
		},
		Store: StoreConfig{
			Driver:     StoreDriverPostgres,
			SQLitePath: "tickets.db",
		},
		Postgres: PostgresConfig{
			MaxConns:       10,
			MinConns:       2,
			RunMigrations:  true,
			MigrationsDir:  "migrations",
			ConnMaxIdleSec: 30,
			ConnMaxLifeSec: 300,
		},
		Redis: RedisConfig{
			Addr:          "127.0.0.1:6379",
			EventsChannel: "ticket-events",
			QueueName:     "csv-jobs",
		},
		Logger: LoggerConfig{Level: "info", Format: "json", Output: "stdout"},
		Auth: AuthConfig{
			JWTSecret:             "dev-secret",
			AccessTokenTTLMinutes: 60,
			BcryptCost:            12,
		},
		Tickets: TicketsConfig{
			NumberMaxAttempts: 5,
			SystemActorID:     "system",
		},
		CSV: CSVConfig{Dir: "exports"},
		Automation: AutomationConfig{
			IntervalMinutes:   60,
			OpenCloseDays:     7,
			PendingReopenDays: 14,
		},
	}
}

// Load reads configuration from the optional APP_CONFIG_FILE and then from
// environment variables, which take precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return LoadFile(os.Getenv("APP_CONFIG_FILE"))
}

// LoadFile overlays the YAML file at path (if any) on the defaults and then
// applies environment overrides.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.App.Name = getEnv("APP_NAME", c.App.Name)
	c.App.Env = getEnv("APP_ENV", c.App.Env)
	c.App.Host = getEnv("APP_HOST", c.App.Host)
	c.App.Port = getEnv("APP_PORT", c.App.Port)
	c.App.Version = getEnv("APP_VERSION", c.App.Version)
	c.App.RequestTimeoutSeconds = getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", c.App.RequestTimeoutSeconds)

	c.Store.Driver = strings.ToLower(getEnv("STORE_DRIVER", c.Store.Driver))
	c.Store.SQLitePath = getEnv("SQLITE_PATH", c.Store.SQLitePath)

	c.Postgres.DSN = getEnv("POSTGRES_DSN", c.Postgres.DSN)
	c.Postgres.MaxConns = int32(getEnvAsInt("POSTGRES_MAX_CONNS", int(c.Postgres.MaxConns)))
	c.Postgres.MinConns = int32(getEnvAsInt("POSTGRES_MIN_CONNS", int(c.Postgres.MinConns)))
	c.Postgres.RunMigrations = getEnvAsBool("POSTGRES_RUN_MIGRATIONS", c.Postgres.RunMigrations)
	c.Postgres.MigrationsDir = getEnv("POSTGRES_MIGRATIONS_DIR", c.Postgres.MigrationsDir)
	c.Postgres.ConnMaxIdleSec = int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", int(c.Postgres.ConnMaxIdleSec)))
	c.Postgres.ConnMaxLifeSec = int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", int(c.Postgres.ConnMaxLifeSec)))

	if raw, ok := os.LookupEnv("REDIS_ADDR"); ok {
		c.Redis.Addr = raw
	}
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	if raw := os.Getenv("REDIS_DB"); raw != "" {
		db, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid REDIS_DB: %w", err)
		}
		c.Redis.DB = db
	}
	c.Redis.EventsChannel = getEnv("REDIS_EVENTS_CHANNEL", c.Redis.EventsChannel)
	c.Redis.QueueName = getEnv("REDIS_QUEUE_NAME", c.Redis.QueueName)

	c.Logger.Level = getEnv("LOG_LEVEL", c.Logger.Level)
	c.Logger.Format = strings.ToLower(getEnv("LOG_FORMAT", c.Logger.Format))
	c.Logger.Output = getEnv("LOG_OUTPUT", c.Logger.Output)
	c.Logger.Service = getEnv("LOG_SERVICE", c.Logger.Service)
	if c.Logger.Service == "" {
		c.Logger.Service = c.App.Name
	}

	c.Auth.JWTSecret = getEnv("AUTH_JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.AccessTokenTTLMinutes = getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", c.Auth.AccessTokenTTLMinutes)
	c.Auth.BcryptCost = getEnvAsInt("AUTH_BCRYPT_COST", c.Auth.BcryptCost)

	c.Tickets.NumberMaxAttempts = getEnvAsInt("TICKET_NUMBER_MAX_ATTEMPTS", c.Tickets.NumberMaxAttempts)
	c.Tickets.SystemActorID = getEnv("SYSTEM_ACTOR_ID", c.Tickets.SystemActorID)

	c.CSV.Dir = getEnv("CSV_DIR", c.CSV.Dir)

	c.Automation.IntervalMinutes = getEnvAsInt("AUTOMATION_INTERVAL_MINUTES", c.Automation.IntervalMinutes)
	c.Automation.OpenCloseDays = getEnvAsInt("AUTOMATION_OPEN_CLOSE_DAYS", c.Automation.OpenCloseDays)
	c.Automation.PendingReopenDays = getEnvAsInt("AUTOMATION_PENDING_OPEN_DAYS", c.Automation.PendingReopenDays)
	return nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreDriverPostgres, StoreDriverSQLite:
	default:
		return fmt.Errorf("invalid STORE_DRIVER %q: want %s or %s", c.Store.Driver, StoreDriverPostgres, StoreDriverSQLite)
	}
	if c.Store.Driver == StoreDriverSQLite && c.Store.SQLitePath == "" {
		return fmt.Errorf("SQLITE_PATH is required for the sqlite store")
	}
	if c.Tickets.NumberMaxAttempts < 1 {
		return fmt.Errorf("TICKET_NUMBER_MAX_ATTEMPTS must be at least 1")
	}
	if c.Tickets.SystemActorID == "" {
		return fmt.Errorf("SYSTEM_ACTOR_ID must not be empty")
	}
	switch c.Logger.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid LOG_FORMAT %q: want json or console", c.Logger.Format)
	}
	if c.Automation.IntervalMinutes < 0 {
		return fmt.Errorf("AUTOMATION_INTERVAL_MINUTES must not be negative")
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// AccessTokenTTL returns the JWT lifetime.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

// Interval returns the sweep period; zero disables the sweep.
func (a AutomationConfig) Interval() time.Duration {
	return time.Duration(a.IntervalMinutes) * time.Minute
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
