package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Storage drivers accepted in Storage.Driver.
const (
	PostgresDriver = "postgres"
	BadgerDriver   = "badger"
)

// Config represents the application configuration structure.
// It contains settings for the environment, HTTP server, storage backends,
// authentication, community defaults, the background worker and graceful
// shutdown behavior.
type Config struct {
	// Environment specifies the current running environment (development, production, etc.)
	Environment string `env:"ENVIRONMENT" env-default:"development" yaml:"environment"`

	// HTTP contains all HTTP server related configurations
	HTTP struct {
		// Addr is the address and port the HTTP server will listen on
		Addr string `env:"HTTP_ADDR" env-default:":8080" yaml:"addr"`
		// ReadTimeout is the maximum duration for reading the entire request, including the body
		ReadTimeout time.Duration `env:"HTTP_READ_TIMEOUT" env-default:"1m" yaml:"readTimeout"`
		// ReadHeaderTimeout is the amount of time allowed to read request headers
		ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" env-default:"10s" yaml:"readHeaderTimeout"`
		// WriteTimeout is the maximum duration before timing out writes of the response
		WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" env-default:"2m" yaml:"writeTimeout"`
		// IdleTimeout is the maximum amount of time to wait for the next request when keep-alives are enabled
		IdleTimeout time.Duration `env:"HTTP_IDLE_TIMEOUT" env-default:"2m" yaml:"idleTimeout"`
		// RequestTimeout is the maximum time allowed for processing a single request
		RequestTimeout time.Duration `env:"HTTP_REQUEST_TIMEOUT" env-default:"10s" yaml:"requestTimeout"`
		// MaxHeaderBytes controls the maximum number of bytes the server will read parsing the request header
		MaxHeaderBytes int `env:"HTTP_MAX_HEADER_BYTES" env-default:"0" yaml:"maxHeaderBytes"`
		// MetricsPath defines the URL path where metrics are exposed
		MetricsPath string `env:"HTTP_METRICS_PATH" env-default:"/metrics" yaml:"metricsPath"`
		// AllowedOrigins are the CORS origins of browser clients, "*" allows any
		AllowedOrigins []string `env:"HTTP_ALLOWED_ORIGINS" env-default:"*" env-separator:"," yaml:"allowedOrigins"`
	} `yaml:"http"`

	// Storage selects the entity store backend
	Storage struct {
		// Driver is either "postgres" or "badger"
		Driver string `env:"STORAGE_DRIVER" env-default:"postgres" yaml:"driver"`
		// BadgerPath is the data directory of the badger backend. Empty keeps data in memory.
		BadgerPath string `env:"STORAGE_BADGER_PATH" env-default:"data" yaml:"badgerPath"`
		// BadgerSyncWrites makes every badger commit durable before returning
		BadgerSyncWrites bool `env:"STORAGE_BADGER_SYNC_WRITES" env-default:"true" yaml:"badgerSyncWrites"`
		// MaxTxAttempts bounds how often a conflicting badger transaction is re-run
		MaxTxAttempts int `env:"STORAGE_MAX_TX_ATTEMPTS" env-default:"10" yaml:"maxTxAttempts"`
	} `yaml:"storage"`

	// Database contains all database connection related configurations
	Database struct {
		// Username for database authentication
		Username string `env:"DATABASE_USERNAME" env-default:"myuser" yaml:"username"`
		// Password for database authentication
		Password string `env:"DATABASE_PASSWORD" env-default:"mypassword" yaml:"password"`
		// Host is the database server hostname or IP address
		Host string `env:"DATABASE_HOST" env-default:"localhost" yaml:"host"`
		// Port is the database server port number
		Port int `env:"DATABASE_PORT" env-default:"5432" yaml:"port"`
		// SslMode defines the SSL mode for the database connection
		SslMode string `env:"DATABASE_SSL_MODE" env-default:"disable" yaml:"sslMode"`
		// DatabaseName is the name of the database to connect to
		DatabaseName string `env:"DATABASE_NAME" env-default:"civic" yaml:"name"`
		// MaxOpenConnections limits the number of open connections to the database
		MaxOpenConnections int `env:"DATABASE_MAX_OPEN_CONNECTIONS" env-default:"10" yaml:"maxOpenConnections"`
		// MaxIdleConnections limits the number of connections in the idle connection pool
		MaxIdleConnections int `env:"DATABASE_MAX_IDLE_CONNECTIONS" env-default:"8" yaml:"maxIdleConnections"`
		// ConnMaxLifetime is the maximum amount of time a connection may be reused
		ConnMaxLifetime time.Duration `env:"DATABASE_CONNECTION_MAX_LIFETIME" env-default:"3m" yaml:"connMaxLifetime"`
		// ConnMaxIdleTime is the maximum amount of time a connection may be idle
		ConnMaxIdleTime time.Duration `env:"DATABASE_CONNECTION_MAX_IDLE_TIME" env-default:"3m" yaml:"connMaxIdleTime"`
	} `yaml:"database"`

	// JWT holds the RS256 key pair. The public key verifies bearer tokens, the
	// private key signs the tokens issued at login and by the jwt command.
	JWT struct {
		PublicKey  string `env:"JWT_PUBLIC_KEY"  yaml:"publicKey"`
		PrivateKey string `env:"JWT_PRIVATE_KEY" yaml:"privateKey"`
		// TTL is the lifetime of tokens issued at login
		TTL time.Duration `env:"JWT_TTL" env-default:"24h" yaml:"ttl"`
	} `yaml:"jwt"`

	// Community contains the domain defaults
	Community struct {
		// DefaultMunicipality is assigned to users registering without one and can never be deleted
		DefaultMunicipality string `env:"COMMUNITY_DEFAULT_MUNICIPALITY" env-default:"Autre" yaml:"defaultMunicipality"`
		// BcryptCost is the cost factor of password hashes
		BcryptCost int `env:"COMMUNITY_BCRYPT_COST" env-default:"10" yaml:"bcryptCost"`
		// RequireEmailValidation issues a confirmation token to newly registered users
		RequireEmailValidation bool `env:"COMMUNITY_REQUIRE_EMAIL_VALIDATION" env-default:"false" yaml:"requireEmailValidation"` //nolint: lll
	} `yaml:"community"`

	// Worker configures the event notification workers
	Worker struct {
		// MaxWorkers is the number of notification jobs processed concurrently
		MaxWorkers int `env:"WORKER_MAX_WORKERS" env-default:"10" yaml:"maxWorkers"`
		// MaxAttempts is how many times a failing notification job is retried
		MaxAttempts int `env:"WORKER_MAX_ATTEMPTS" env-default:"5" yaml:"maxAttempts"`
		// PollInterval is how often the badger outbox is drained
		PollInterval time.Duration `env:"WORKER_POLL_INTERVAL" env-default:"1s" yaml:"pollInterval"`
	} `yaml:"worker"`

	// GracefulShutdownTimeout is the maximum duration to wait for ongoing requests to complete during shutdown
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_TIMEOUT" env-default:"10s" yaml:"gracefulShutdownTimeout"` //nolint: lll
}

// Load receives the path for yaml config file and returns a filled Config struct.
func Load(configPath string) (*Config, error) {
	var cfg Config
	err := cleanenv.ReadConfig(configPath, &cfg)
	if err != nil {
		return nil, fmt.Errorf("could not read config: %w", err)
	}

	if cfg.Storage.Driver != PostgresDriver && cfg.Storage.Driver != BadgerDriver {
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	return &cfg, nil
}
