package config

import "time"

// Config is the root configuration for a lobby client process.
type Config struct {
	Lobby      LobbyConfig      `yaml:"lobby"`
	IAM        IAMConfig        `yaml:"iam"`
	Connection ConnectionConfig `yaml:"connection"`
	Session    SessionConfig    `yaml:"session"`
	Logger     LoggerConfig     `yaml:"logger"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Tracing    TracingConfig    `yaml:"tracing"`
}

// LobbyConfig identifies the lobby service and the session credential.
type LobbyConfig struct {
	URL       string `yaml:"url" env:"LOBBY_URL"`             // WebSocket endpoint, ws:// or wss://
	Namespace string `yaml:"namespace" env:"LOBBY_NAMESPACE"` // Tenant stamped on every frame
	Token     string `yaml:"token" env:"LOBBY_TOKEN"`         // JWT access token
	ClientID  string `yaml:"client_id" env:"LOBBY_CLIENT_ID"` // Generated when empty
}

// IAMConfig holds identity service settings.
type IAMConfig struct {
	URL        string        `yaml:"url" env:"IAM_URL"`
	Timeout    time.Duration `yaml:"timeout" env:"IAM_TIMEOUT"`
	MaxRetries int           `yaml:"max_retries" env:"IAM_MAX_RETRIES"`
}

// ConnectionConfig holds socket and request timing.
type ConnectionConfig struct {
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"LOBBY_CONNECT_TIMEOUT"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"LOBBY_REQUEST_TIMEOUT"`
	PingInterval   time.Duration `yaml:"ping_interval" env:"LOBBY_PING_INTERVAL"`
	PongTimeout    time.Duration `yaml:"pong_timeout" env:"LOBBY_PONG_TIMEOUT"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	BufferSize     int           `yaml:"buffer_size"`
}

// SessionConfig configures revocation watching.
type SessionConfig struct {
	RedisAddr         string        `yaml:"redis_addr" env:"LOBBY_REDIS_ADDR"` // Empty disables Redis revocations
	RedisPassword     string        `yaml:"redis_password" env:"LOBBY_REDIS_PASSWORD"`
	RedisDB           int           `yaml:"redis_db"`
	RevocationChannel string        `yaml:"revocation_channel"`
	VerifyInterval    time.Duration `yaml:"verify_interval"` // 0 disables polling the identity service
}

// LoggerConfig configures the zap logger.
type LoggerConfig struct {
	Level      string `yaml:"level" env:"LOG_LEVEL"` // debug, info, warn, error
	Format     string `yaml:"format"`                // json or console
	Output     string `yaml:"output"`                // stdout or file
	FilePath   string `yaml:"file_path"`
	MaxSize    int    `yaml:"max_size"` // megabytes
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"` // days
	Compress   bool   `yaml:"compress"`
	Color      bool   `yaml:"color"`
	Stacktrace bool   `yaml:"stacktrace"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"LOBBY_METRICS_ENABLED"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled" env:"LOBBY_TRACING_ENABLED"`
	Endpoint    string  `yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Insecure    bool    `yaml:"insecure"`
	ServiceName string  `yaml:"service_name" env:"OTEL_SERVICE_NAME"`
	SampleRatio float64 `yaml:"sample_ratio"`
}
