package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	yaml := `
lobby:
  url: wss://lobby.example.com/lobby/
  namespace: arena
  token: abc
iam:
  url: https://iam.example.com
connection:
  request_timeout: 3s
  ping_interval: 2s
session:
  redis_addr: localhost:6379
logger:
  level: debug
  format: console
`
	path := writeTempFile(t, "config.yaml", yaml)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "wss://lobby.example.com/lobby/", cfg.Lobby.URL)
	assert.Equal(t, "arena", cfg.Lobby.Namespace)
	assert.Equal(t, "https://iam.example.com", cfg.IAM.URL)
	assert.Equal(t, 3*time.Second, cfg.Connection.RequestTimeout)
	assert.Equal(t, 2*time.Second, cfg.Connection.PingInterval)
	assert.Equal(t, "localhost:6379", cfg.Session.RedisAddr)
	assert.Equal(t, "console", cfg.Logger.Format)
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Config{}, *cfg)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "read config file")
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_LOBBY_TOKEN", "secret123")

	path := writeTempFile(t, "config.yaml", `
lobby:
  url: ws://localhost:8080/lobby/
  namespace: arena
  token: ${TEST_LOBBY_TOKEN}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret123", cfg.Lobby.Token)
}

func TestLoadWithDefaults(t *testing.T) {
	path := writeTempFile(t, "config.yaml", `
lobby:
  url: ws://localhost:8080/lobby/
  namespace: arena
  token: abc
connection:
  request_timeout: 30s
`)

	cfg, err := LoadWithDefaults(path)
	require.NoError(t, err)

	// Explicit value kept
	assert.Equal(t, 30*time.Second, cfg.Connection.RequestTimeout)

	assert.Equal(t, DefaultConnectTimeout, cfg.Connection.ConnectTimeout)
	assert.Equal(t, DefaultPingInterval, cfg.Connection.PingInterval)
	assert.Equal(t, DefaultPongTimeout, cfg.Connection.PongTimeout)
	assert.Equal(t, DefaultBufferSize, cfg.Connection.BufferSize)
	assert.Equal(t, DefaultRevocationChannel, cfg.Session.RevocationChannel)
	assert.Equal(t, DefaultLogLevel, cfg.Logger.Level)
	assert.Equal(t, DefaultLogFormat, cfg.Logger.Format)
	assert.Equal(t, DefaultMetricsPath, cfg.Metrics.Path)
	assert.Equal(t, DefaultServiceName, cfg.Tracing.ServiceName)
	assert.Equal(t, DefaultIAMMaxRetries, cfg.IAM.MaxRetries)
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("LOBBY_NAMESPACE", "override")
	t.Setenv("LOBBY_REQUEST_TIMEOUT", "7s")
	t.Setenv("LOG_LEVEL", "warn")

	path := writeTempFile(t, "config.yaml", `
lobby:
  url: ws://localhost:8080/lobby/
  namespace: arena
  token: abc
`)

	cfg, err := LoadWithDefaults(path)
	require.NoError(t, err)
	assert.Equal(t, "override", cfg.Lobby.Namespace)
	assert.Equal(t, 7*time.Second, cfg.Connection.RequestTimeout)
	assert.Equal(t, "warn", cfg.Logger.Level)
}

func TestEnvOnly(t *testing.T) {
	t.Setenv("LOBBY_URL", "ws://localhost:9000/lobby/")
	t.Setenv("LOBBY_NAMESPACE", "arena")
	t.Setenv("LOBBY_TOKEN", "tok")

	cfg, err := LoadAndValidate("")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:9000/lobby/", cfg.Lobby.URL)
}

func TestLoadAndValidateRejects(t *testing.T) {
	path := writeTempFile(t, "config.yaml", "lobby:\n  namespace: arena\n")
	_, err := LoadAndValidate(path)
	assert.ErrorContains(t, err, "lobby.url is required")
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("LOBBY_TEST_DOTENV=from-file\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("LOBBY_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), envPath))
	assert.Equal(t, "from-file", os.Getenv("LOBBY_TEST_DOTENV"))
}

func TestLoadDotEnvKeepsExisting(t *testing.T) {
	t.Setenv("LOBBY_TEST_DOTENV_KEEP", "from-process")
	envPath := writeTempFile(t, ".env", "LOBBY_TEST_DOTENV_KEEP=from-file\n")

	require.NoError(t, LoadDotEnv(envPath))
	assert.Equal(t, "from-process", os.Getenv("LOBBY_TEST_DOTENV_KEEP"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: "",
		},
		{
			name:    "missing lobby url",
			mutate:  func(c *Config) { c.Lobby.URL = "" },
			wantErr: "lobby.url is required",
		},
		{
			name:    "http lobby url",
			mutate:  func(c *Config) { c.Lobby.URL = "http://localhost/lobby/" },
			wantErr: "lobby.url must be a [ws wss] URL",
		},
		{
			name:    "missing namespace",
			mutate:  func(c *Config) { c.Lobby.Namespace = "" },
			wantErr: "lobby.namespace is required",
		},
		{
			name:    "missing token",
			mutate:  func(c *Config) { c.Lobby.Token = "" },
			wantErr: "lobby.token is required",
		},
		{
			name:    "pong timeout not above ping interval",
			mutate:  func(c *Config) { c.Connection.PongTimeout = c.Connection.PingInterval },
			wantErr: "connection.pong_timeout (4s) must exceed ping_interval (4s)",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logger.Level = "trace" },
			wantErr: `logger.level "trace" is not one of debug, info, warn, error`,
		},
		{
			name:    "file output without path",
			mutate:  func(c *Config) { c.Logger.Output = "file" },
			wantErr: "logger.file_path is required for file output",
		},
		{
			name:    "verify interval without iam",
			mutate:  func(c *Config) { c.Session.VerifyInterval = time.Minute },
			wantErr: "session.verify_interval requires iam.url",
		},
		{
			name:    "tracing without endpoint",
			mutate:  func(c *Config) { c.Tracing.Enabled = true },
			wantErr: "tracing.endpoint is required when tracing is enabled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func validConfig() *Config {
	cfg := &Config{
		Lobby: LobbyConfig{
			URL:       "ws://localhost:8080/lobby/",
			Namespace: "arena",
			Token:     "tok",
		},
	}
	cfg.applyDefaults()
	return cfg
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
