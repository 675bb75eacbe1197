package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"digipet-api/internal/repository"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server    ServerConfig
	App       AppConfig
	Log       LogConfig
	Cache     CacheConfig
	Store     StoreConfig
	Ledger    LedgerConfig
	Workers   WorkersConfig
	Telemetry TelemetryConfig
}

// ServerConfig holds HTTP server settings. WriteTimeout must outlast a
// full mint confirmation run.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"180s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"digipet-api"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
	// APIKeys, when set, must be presented in X-API-Key on /api/v1.
	APIKeys []string `envconfig:"API_KEYS"`
	// TimeZone is the default zone for feeding schedules. Empty means the
	// server's local zone.
	TimeZone string `envconfig:"TZ" default:""`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"json"` // json or text
}

// CacheConfig holds pet cache settings.
type CacheConfig struct {
	Type        string        `envconfig:"CACHE_TYPE" default:"memory"` // memory or redis
	AbsoluteTTL time.Duration `envconfig:"CACHE_ABSOLUTE_TTL" default:"10m"`
	SlidingTTL  time.Duration `envconfig:"CACHE_SLIDING_TTL" default:"2m"`

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	RedisPrefix   string `envconfig:"REDIS_KEY_PREFIX" default:"digipet:cache:"`
}

// StoreConfig holds durable store settings.
type StoreConfig struct {
	Type string `envconfig:"STORE_TYPE" default:"sqlite"` // sqlite, mysql or memory
	Path string `envconfig:"STORE_PATH" default:"./data/digipet.db"`
	// MySQL settings
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"3306"`
	Name     string `envconfig:"DB_NAME" default:"digipet"`
	User     string `envconfig:"DB_USER" default:"root"`
	Password string `envconfig:"DB_PASS" default:""`
}

// LedgerConfig holds mint ledger settings.
type LedgerConfig struct {
	Type            string        `envconfig:"LEDGER_TYPE" default:"simulated"` // simulated or rpc
	RPCURL          string        `envconfig:"LEDGER_RPC_URL" default:"https://ghostnet.tezos.marigold.dev"`
	ContractAddress string        `envconfig:"LEDGER_CONTRACT_ADDRESS" default:""`
	SourceAddress   string        `envconfig:"LEDGER_SOURCE_ADDRESS" default:""`
	SigningKey      string        `envconfig:"LEDGER_SIGNING_KEY" default:""`
	Fee             int64         `envconfig:"LEDGER_FEE" default:"941"`
	GasLimit        int64         `envconfig:"LEDGER_GAS_LIMIT" default:"727"`
	StorageLimit    int64         `envconfig:"LEDGER_STORAGE_LIMIT" default:"794"`
	RequestTimeout  time.Duration `envconfig:"LEDGER_REQUEST_TIMEOUT" default:"10s"`
	PollInterval    time.Duration `envconfig:"LEDGER_POLL_INTERVAL" default:"5s"`
	MaxAttempts     int           `envconfig:"LEDGER_MAX_ATTEMPTS" default:"20"`
	// SimulatedConfirmAfter is the poll on which the simulated ledger applies.
	SimulatedConfirmAfter int `envconfig:"LEDGER_SIMULATED_CONFIRM_AFTER" default:"2"`
}

// WorkersConfig holds background job settings.
type WorkersConfig struct {
	Enabled         bool          `envconfig:"WORKERS_ENABLED" default:"true"`
	DecayInterval   time.Duration `envconfig:"DECAY_INTERVAL" default:"1h"`
	FeedingInterval time.Duration `envconfig:"FEEDING_INTERVAL" default:"1m"`
	JobTimeout      time.Duration `envconfig:"JOB_TIMEOUT" default:"5m"`
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	Endpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:""`
	Insecure bool   `envconfig:"OTEL_EXPORTER_OTLP_INSECURE" default:"false"`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// MySQL returns the MySQL connection settings.
func (s *StoreConfig) MySQL() repository.MySQLConfig {
	return repository.MySQLConfig{
		Host:     s.Host,
		Port:     s.Port,
		Name:     s.Name,
		User:     s.User,
		Password: s.Password,
	}
}

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// Location resolves TimeZone.
func (a *AppConfig) Location() (*time.Location, error) {
	if a.TimeZone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(a.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid TZ %q: %w", a.TimeZone, err)
	}
	return loc, nil
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	switch c.Cache.Type {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported CACHE_TYPE %q", c.Cache.Type)
	}
	switch c.Store.Type {
	case "sqlite", "mysql", "memory":
	default:
		return fmt.Errorf("unsupported STORE_TYPE %q", c.Store.Type)
	}
	switch c.Ledger.Type {
	case "simulated":
	case "rpc":
		var missing []string
		if c.Ledger.ContractAddress == "" {
			missing = append(missing, "LEDGER_CONTRACT_ADDRESS")
		}
		if c.Ledger.SourceAddress == "" {
			missing = append(missing, "LEDGER_SOURCE_ADDRESS")
		}
		if c.Ledger.SigningKey == "" {
			missing = append(missing, "LEDGER_SIGNING_KEY")
		}
		if len(missing) > 0 {
			return fmt.Errorf("rpc ledger requires %s", strings.Join(missing, ", "))
		}
	default:
		return fmt.Errorf("unsupported LEDGER_TYPE %q", c.Ledger.Type)
	}
	if c.Ledger.MaxAttempts <= 0 || c.Ledger.PollInterval <= 0 {
		return fmt.Errorf("LEDGER_MAX_ATTEMPTS and LEDGER_POLL_INTERVAL must be positive")
	}
	if c.Cache.AbsoluteTTL <= 0 || c.Cache.SlidingTTL <= 0 {
		return fmt.Errorf("CACHE_ABSOLUTE_TTL and CACHE_SLIDING_TTL must be positive")
	}
	if c.App.IsProduction() && len(c.App.APIKeys) == 0 {
		return fmt.Errorf("API_KEYS must be set in production")
	}
	if _, err := c.App.Location(); err != nil {
		return err
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}
