package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if err := c.Lobby.validate(); err != nil {
		return err
	}
	if err := c.Connection.validate(); err != nil {
		return err
	}
	if err := c.Logger.validate(); err != nil {
		return err
	}

	if c.IAM.URL != "" {
		if err := validateURL("iam.url", c.IAM.URL, "http", "https"); err != nil {
			return err
		}
	}
	if c.Session.VerifyInterval < 0 {
		return errors.New("session.verify_interval must be >= 0")
	}
	if c.Session.VerifyInterval > 0 && c.IAM.URL == "" {
		return errors.New("session.verify_interval requires iam.url")
	}

	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return errors.New("tracing.endpoint is required when tracing is enabled")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be between 0 and 1, got %v", c.Tracing.SampleRatio)
	}

	return nil
}

func (l *LobbyConfig) validate() error {
	if l.URL == "" {
		return errors.New("lobby.url is required")
	}
	if err := validateURL("lobby.url", l.URL, "ws", "wss"); err != nil {
		return err
	}
	if l.Namespace == "" {
		return errors.New("lobby.namespace is required")
	}
	if l.Token == "" {
		return errors.New("lobby.token is required")
	}
	return nil
}

func (c *ConnectionConfig) validate() error {
	if c.ConnectTimeout <= 0 {
		return errors.New("connection.connect_timeout must be > 0")
	}
	if c.RequestTimeout < 0 {
		return errors.New("connection.request_timeout must be >= 0")
	}
	if c.PingInterval <= 0 {
		return errors.New("connection.ping_interval must be > 0")
	}
	if c.PongTimeout <= c.PingInterval {
		return fmt.Errorf("connection.pong_timeout (%v) must exceed ping_interval (%v)", c.PongTimeout, c.PingInterval)
	}
	if c.BufferSize < 1 {
		return errors.New("connection.buffer_size must be >= 1")
	}
	return nil
}

func (l *LoggerConfig) validate() error {
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, l.Level) {
		return fmt.Errorf("logger.level %q is not one of debug, info, warn, error", l.Level)
	}
	if l.Format != "json" && l.Format != "console" {
		return fmt.Errorf("logger.format must be json or console, got %q", l.Format)
	}
	switch l.Output {
	case "stdout":
	case "file":
		if l.FilePath == "" {
			return errors.New("logger.file_path is required for file output")
		}
	default:
		return fmt.Errorf("logger.output must be stdout or file, got %q", l.Output)
	}
	return nil
}

func validateURL(field, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if !slices.Contains(schemes, u.Scheme) || u.Host == "" {
		return fmt.Errorf("%s must be a %v URL, got %q", field, schemes, raw)
	}
	return nil
}
