// Package config provides configuration management for Skylane.
package config

import (
	"fmt"
	"time"
)

// Config is the global configuration for Skylane.
type Config struct {
	// App is the application configuration.
	App AppConfig `mapstructure:"app" validate:"required"`

	// Server is the HTTP API server configuration.
	Server ServerConfig `mapstructure:"server" validate:"required"`

	// Log is the logging configuration.
	Log LogConfig `mapstructure:"log" validate:"required"`

	// Saga is the workflow orchestration configuration.
	Saga SagaConfig `mapstructure:"saga"`

	// Remote holds the endpoints of the downstream delivery services.
	Remote RemoteConfig `mapstructure:"remote"`

	// Storage is the persistence configuration.
	Storage StorageConfig `mapstructure:"storage"`

	// Metrics is the observability configuration.
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Tracing is the distributed tracing configuration.
	Tracing TracingConfig `mapstructure:"tracing"`
}

// AppConfig holds application metadata and settings.
type AppConfig struct {
	// Name is the application name.
	Name string `mapstructure:"name" validate:"required"`

	// Version is the application version.
	Version string `mapstructure:"version"`

	// Environment is the runtime environment (development, staging, production).
	Environment string `mapstructure:"environment" validate:"oneof=development staging production"`

	// Debug enables debug mode with verbose logging.
	Debug bool `mapstructure:"debug"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	// Host is the bind address.
	Host string `mapstructure:"host"`

	// Port is the HTTP API port.
	Port int `mapstructure:"port" validate:"required,min=1,max=65535"`

	// HTTP is the HTTP server configuration.
	HTTP HTTPConfig `mapstructure:"http"`

	// CORS is the CORS configuration.
	CORS CORSConfig `mapstructure:"cors"`

	// RateLimit is the request rate limit configuration.
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`

	// WebSocket configures the event stream endpoint.
	WebSocket WebSocketConfig `mapstructure:"websocket"`
}

// HTTPConfig holds HTTP-specific settings.
type HTTPConfig struct {
	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request.
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// MaxHeaderBytes limits the size of request headers.
	MaxHeaderBytes int `mapstructure:"max_header_bytes"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	// Enabled enables CORS support.
	Enabled bool `mapstructure:"enabled"`

	// AllowedOrigins is the list of allowed origins.
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	// AllowedMethods is the list of allowed HTTP methods.
	AllowedMethods []string `mapstructure:"allowed_methods"`

	// AllowedHeaders is the list of allowed headers.
	AllowedHeaders []string `mapstructure:"allowed_headers"`

	// ExposedHeaders is the list of headers exposed to the client.
	ExposedHeaders []string `mapstructure:"exposed_headers"`

	// AllowCredentials indicates whether credentials are allowed.
	AllowCredentials bool `mapstructure:"allow_credentials"`

	// MaxAge is the maximum age of CORS preflight cache in seconds.
	MaxAge int `mapstructure:"max_age"`
}

// RateLimitConfig holds request rate limit settings.
type RateLimitConfig struct {
	// Enabled enables rate limiting on the API.
	Enabled bool `mapstructure:"enabled"`

	// RPS is the sustained requests per second allowed.
	RPS float64 `mapstructure:"rps" validate:"min=0"`

	// Burst is the maximum burst size allowed.
	Burst int `mapstructure:"burst" validate:"min=0"`
}

// WebSocketConfig holds event stream settings.
type WebSocketConfig struct {
	// AllowedOrigins is the list of origins allowed to open event streams.
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	// MaxConnections caps concurrent event stream connections.
	MaxConnections int `mapstructure:"max_connections" validate:"min=0"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`

	// Format is the output format (json, text).
	Format string `mapstructure:"format" validate:"oneof=json text"`

	// Output is the output destination (stdout, stderr, or file path).
	Output string `mapstructure:"output"`
}

// SagaConfig holds orchestration settings.
type SagaConfig struct {
	// MaxConcurrent caps the number of sagas executing at once.
	MaxConcurrent int `mapstructure:"max_concurrent" validate:"min=1"`

	// StepTimeout bounds each remote call made by a step.
	StepTimeout time.Duration `mapstructure:"step_timeout"`

	// Timeout bounds a whole saga execution. Zero means no saga deadline.
	Timeout time.Duration `mapstructure:"timeout"`

	// StepRetry is the retry policy for forward steps.
	StepRetry RetryConfig `mapstructure:"step_retry"`

	// CompensationRetry is the retry policy for compensations.
	CompensationRetry RetryConfig `mapstructure:"compensation_retry"`

	// DroneReleaseRetry is the retry policy for the post-completion drone
	// release call.
	DroneReleaseRetry RetryConfig `mapstructure:"drone_release_retry"`
}

// RetryConfig holds retry policy settings.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts including the first.
	MaxAttempts int `mapstructure:"max_attempts" validate:"min=1"`

	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`

	// MaxBackoff caps the exponential backoff delay.
	MaxBackoff time.Duration `mapstructure:"max_backoff"`

	// BackoffFactor is the backoff multiplier between attempts.
	BackoffFactor float64 `mapstructure:"backoff_factor" validate:"min=1"`
}

// RemoteConfig holds the downstream service endpoints.
type RemoteConfig struct {
	// Account is the account service endpoint.
	Account EndpointConfig `mapstructure:"account"`

	// Delivery is the delivery service endpoint.
	Delivery EndpointConfig `mapstructure:"delivery"`

	// Package is the package service endpoint.
	Package EndpointConfig `mapstructure:"package"`

	// Transportation is the transportation service endpoint.
	Transportation EndpointConfig `mapstructure:"transportation"`

	// Drone is the drone service endpoint.
	Drone EndpointConfig `mapstructure:"drone"`
}

// EndpointConfig holds one gRPC endpoint's settings.
type EndpointConfig struct {
	// Address is the host:port of the service.
	Address string `mapstructure:"address"`

	// TLSEnabled enables TLS on the connection.
	TLSEnabled bool `mapstructure:"tls_enabled"`

	// ServerName overrides the TLS server name.
	ServerName string `mapstructure:"server_name"`
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	// Type is the run store backend (memory, badger).
	Type string `mapstructure:"type" validate:"oneof=memory badger"`

	// Badger is the BadgerDB configuration.
	Badger BadgerConfig `mapstructure:"badger"`

	// Redis is the Redis idempotency store configuration.
	Redis RedisConfig `mapstructure:"redis"`
}

// BadgerConfig holds BadgerDB-specific settings.
type BadgerConfig struct {
	// Path is the database directory path.
	Path string `mapstructure:"path"`

	// WALPath is the write-ahead log directory path. Empty shares Path.
	WALPath string `mapstructure:"wal_path"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	// Enabled switches the idempotency store from memory to Redis.
	Enabled bool `mapstructure:"enabled"`

	// Address is the Redis server address.
	Address string `mapstructure:"address"`

	// Password is the Redis password.
	Password string `mapstructure:"password"`

	// DB is the Redis database number.
	DB int `mapstructure:"db"`

	// IdempotencyTTL bounds how long idempotency keys are kept.
	IdempotencyTTL time.Duration `mapstructure:"idempotency_ttl"`
}

// MetricsConfig holds observability settings.
type MetricsConfig struct {
	// Enabled enables metrics collection.
	Enabled bool `mapstructure:"enabled"`

	// Path is the metrics endpoint path.
	Path string `mapstructure:"path"`

	// Port is the metrics server port.
	Port int `mapstructure:"port" validate:"min=1,max=65535"`
}

// TracingConfig holds distributed tracing settings.
type TracingConfig struct {
	// Enabled enables distributed tracing.
	Enabled bool `mapstructure:"enabled"`

	// Endpoint is the OTLP gRPC collector endpoint.
	Endpoint string `mapstructure:"endpoint"`

	// Insecure disables TLS on the collector connection.
	Insecure bool `mapstructure:"insecure"`

	// SampleRate is the fraction of traces to sample (0.0-1.0).
	SampleRate float64 `mapstructure:"sample_rate" validate:"min=0,max=1"`
}

// Validate performs validation on the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// String returns a string representation of the configuration (without sensitive data).
func (c *Config) String() string {
	return fmt.Sprintf("Config{App: %s, Server: :%d, Env: %s}",
		c.App.Name, c.Server.Port, c.App.Environment)
}
