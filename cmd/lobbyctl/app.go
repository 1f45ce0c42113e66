package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/lobby-client/internal/config"
	"github.com/rickgao/lobby-client/internal/iam"
	"github.com/rickgao/lobby-client/internal/lobby"
	"github.com/rickgao/lobby-client/internal/logger"
	"github.com/rickgao/lobby-client/internal/metrics"
	"github.com/rickgao/lobby-client/internal/session"
	"github.com/rickgao/lobby-client/internal/tracing"
	"github.com/rickgao/lobby-client/internal/version"
)

// app holds process-wide state shared by subcommands.
type app struct {
	configPath string
	envFiles   []string
	token      string
	logLevel   string

	cfg             *config.Config
	logger          *zap.Logger
	metrics         *metrics.Metrics
	tracer          trace.Tracer
	shutdownTracing tracing.ShutdownFunc
	redis           redis.UniversalClient
}

func (a *app) setup(ctx context.Context) error {
	if err := config.LoadDotEnv(a.envFiles...); err != nil {
		return err
	}
	cfg, err := config.LoadWithDefaults(a.configPath)
	if err != nil {
		return err
	}
	if a.token != "" {
		cfg.Lobby.Token = a.token
	}
	if a.logLevel != "" {
		cfg.Logger.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	a.cfg = cfg

	a.logger, err = logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	a.logger.Debug("starting lobbyctl",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("lobby_url", cfg.Lobby.URL),
		zap.String("namespace", cfg.Lobby.Namespace),
	)

	a.tracer, a.shutdownTracing, err = tracing.Setup(ctx, cfg.Tracing, a.logger)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	if cfg.Metrics.Enabled {
		a.metrics = metrics.New(metrics.DefaultNamespace)
	}
	if cfg.Session.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Session.RedisAddr,
			Password: cfg.Session.RedisPassword,
			DB:       cfg.Session.RedisDB,
		})
	}
	return nil
}

func (a *app) teardown() {
	if a.shutdownTracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.shutdownTracing(ctx); err != nil {
			a.logger.Warn("flush traces", zap.Error(err))
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// newClient builds a lobby client with the configured revocation sources.
func (a *app) newClient() (*lobby.Client, error) {
	cred, err := session.ParseCredential(a.cfg.Lobby.Token)
	if err != nil {
		return nil, err
	}

	opts := []lobby.Option{
		lobby.WithLogger(a.logger),
		lobby.WithTracer(a.tracer),
	}
	if a.metrics != nil {
		opts = append(opts, lobby.WithMetrics(a.metrics))
	}
	if a.redis != nil {
		opts = append(opts, lobby.WithRevocationSource(
			session.NewRedisRevocations(a.redis, a.cfg.Session.RevocationChannel, a.logger)))
	}
	if a.cfg.Session.VerifyInterval > 0 {
		idp := iam.NewClient(a.cfg.IAM.URL,
			iam.WithLogger(a.logger),
			iam.WithTimeout(a.cfg.IAM.Timeout),
			iam.WithRetries(a.cfg.IAM.MaxRetries, 500*time.Millisecond),
		)
		opts = append(opts, lobby.WithRevocationSource(
			session.NewPollingRevocations(idp, a.cfg.Session.VerifyInterval, a.logger)))
	}
	return lobby.New(lobby.ConfigFrom(a.cfg), cred, opts...), nil
}

// withSession connects, runs fn, and closes the session.
func (a *app) withSession(ctx context.Context, fn func(context.Context, *lobby.Client) error) error {
	c, err := a.newClient()
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	a.logger.Info("lobby session open", zap.String("user_id", c.UserID()))
	return fn(ctx, c)
}

// serveMetrics runs the Prometheus endpoint until ctx ends.
func (a *app) serveMetrics(ctx context.Context, g *errgroup.Group) {
	if a.metrics == nil {
		return
	}
	mux := http.NewServeMux()
	mux.Handle(a.cfg.Metrics.Path, a.metrics.Handler())
	srv := &http.Server{Addr: a.cfg.Metrics.Addr, Handler: mux}

	g.Go(func() error {
		a.logger.Info("metrics server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
