package config

import "time"

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "skylane",
			Version:     "dev",
			Environment: "development",
			Debug:       false,
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
			HTTP: HTTPConfig{
				ReadTimeout:     30 * time.Second,
				WriteTimeout:    30 * time.Second,
				IdleTimeout:     120 * time.Second,
				ShutdownTimeout: 15 * time.Second,
				MaxHeaderBytes:  1 << 20, // 1MB
			},
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     100,
				Burst:   200,
			},
			WebSocket: WebSocketConfig{
				MaxConnections: 100,
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Saga: SagaConfig{
			MaxConcurrent: 64,
			StepTimeout:   10 * time.Second,
			StepRetry: RetryConfig{
				MaxAttempts:    3,
				InitialBackoff: 100 * time.Millisecond,
				MaxBackoff:     5 * time.Second,
				BackoffFactor:  2.0,
			},
			CompensationRetry: RetryConfig{
				MaxAttempts:    5,
				InitialBackoff: 200 * time.Millisecond,
				MaxBackoff:     10 * time.Second,
				BackoffFactor:  2.0,
			},
			DroneReleaseRetry: RetryConfig{
				MaxAttempts:    5,
				InitialBackoff: 500 * time.Millisecond,
				MaxBackoff:     30 * time.Second,
				BackoffFactor:  2.0,
			},
		},
		Remote: RemoteConfig{
			Account:        EndpointConfig{Address: "localhost:9101"},
			Delivery:       EndpointConfig{Address: "localhost:9102"},
			Package:        EndpointConfig{Address: "localhost:9103"},
			Transportation: EndpointConfig{Address: "localhost:9104"},
			Drone:          EndpointConfig{Address: "localhost:9105"},
		},
		Storage: StorageConfig{
			Type: "badger",
			Badger: BadgerConfig{
				Path: "./data/runs",
			},
			Redis: RedisConfig{
				Enabled:        false,
				Address:        "localhost:6379",
				DB:             0,
				IdempotencyTTL: 24 * time.Hour,
			},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Port:    9091,
		},
		Tracing: TracingConfig{
			Enabled:    false,
			Endpoint:   "localhost:4317",
			Insecure:   true,
			SampleRate: 0.1,
		},
	}
}
