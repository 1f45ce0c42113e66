package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultIAMTimeout        = 10 * time.Second
	DefaultIAMMaxRetries     = 3
	DefaultConnectTimeout    = 10 * time.Second
	DefaultRequestTimeout    = 15 * time.Second
	DefaultPingInterval      = 4 * time.Second
	DefaultPongTimeout       = 15 * time.Second
	DefaultWriteTimeout      = 5 * time.Second
	DefaultBufferSize        = 256
	DefaultRevocationChannel = "iam:revocations"
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "json"
	DefaultLogOutput         = "stdout"
	DefaultLogMaxSize        = 100
	DefaultLogMaxBackups     = 3
	DefaultLogMaxAge         = 7
	DefaultMetricsAddr       = ":9090"
	DefaultMetricsPath       = "/metrics"
	DefaultServiceName       = "lobby-client"
	DefaultSampleRatio       = 1.0
)

func (c *Config) applyDefaults() {
	// IAM defaults
	if c.IAM.Timeout == 0 {
		c.IAM.Timeout = DefaultIAMTimeout
	}
	if c.IAM.MaxRetries == 0 {
		c.IAM.MaxRetries = DefaultIAMMaxRetries
	}

	// Connection defaults
	if c.Connection.ConnectTimeout == 0 {
		c.Connection.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Connection.RequestTimeout == 0 {
		c.Connection.RequestTimeout = DefaultRequestTimeout
	}
	if c.Connection.PingInterval == 0 {
		c.Connection.PingInterval = DefaultPingInterval
	}
	if c.Connection.PongTimeout == 0 {
		c.Connection.PongTimeout = DefaultPongTimeout
	}
	if c.Connection.WriteTimeout == 0 {
		c.Connection.WriteTimeout = DefaultWriteTimeout
	}
	if c.Connection.BufferSize == 0 {
		c.Connection.BufferSize = DefaultBufferSize
	}

	// Session defaults
	if c.Session.RevocationChannel == "" {
		c.Session.RevocationChannel = DefaultRevocationChannel
	}

	applyLoggerDefaults(&c.Logger)

	// Metrics defaults
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = DefaultMetricsAddr
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	// Tracing defaults
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = DefaultServiceName
	}
	if c.Tracing.SampleRatio == 0 {
		c.Tracing.SampleRatio = DefaultSampleRatio
	}
}

func applyLoggerDefaults(l *LoggerConfig) {
	if l.Level == "" {
		l.Level = DefaultLogLevel
	}
	if l.Format == "" {
		l.Format = DefaultLogFormat
	}
	if l.Output == "" {
		l.Output = DefaultLogOutput
	}
	if l.MaxSize == 0 {
		l.MaxSize = DefaultLogMaxSize
	}
	if l.MaxBackups == 0 {
		l.MaxBackups = DefaultLogMaxBackups
	}
	if l.MaxAge == 0 {
		l.MaxAge = DefaultLogMaxAge
	}
}
