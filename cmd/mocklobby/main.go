// Command mocklobby runs the in-memory lobby and identity service for local
// development against lobbyctl.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/lobby-client/internal/config"
	"github.com/rickgao/lobby-client/internal/lobbytest"
	"github.com/rickgao/lobby-client/internal/logger"
	"github.com/rickgao/lobby-client/internal/metrics"
	"github.com/rickgao/lobby-client/internal/session"
	"github.com/rickgao/lobby-client/internal/version"
)

type flags struct {
	addr        string
	namespace   string
	secret      string
	duplicates  string
	matchSize   int
	readyWindow time.Duration
	ban         int
	redisAddr   string
	channel     string
	issue       []string
	tokenTTL    time.Duration
	logLevel    string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags
	root := &cobra.Command{
		Use:          "mocklobby",
		Short:        "In-memory lobby and identity service",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cmd, f)
		},
	}
	fs := root.Flags()
	fs.StringVar(&f.addr, "addr", ":8080", "listen address")
	fs.StringVar(&f.namespace, "namespace", "test", "namespace accepted on tokens and frames")
	fs.StringVar(&f.secret, "secret", "lobbytest-secret", "HMAC key for issued tokens")
	fs.StringVar(&f.duplicates, "duplicates", "supersede", "duplicate connection policy: supersede, reject or credential")
	fs.IntVar(&f.matchSize, "match-size", 2, "tickets per match")
	fs.DurationVar(&f.readyWindow, "ready-window", 10*time.Second, "time matched members have to confirm")
	fs.IntVar(&f.ban, "ban", 30, "rematch ban in seconds for unconfirmed tickets")
	fs.StringVar(&f.redisAddr, "redis-addr", "", "publish logouts to this Redis server")
	fs.StringVar(&f.channel, "revocation-channel", session.DefaultRevocationChannel, "Redis channel for logouts")
	fs.StringSliceVar(&f.issue, "issue", nil, "print access tokens for these user ids")
	fs.DurationVar(&f.tokenTTL, "token-ttl", time.Hour, "lifetime of issued tokens")
	fs.StringVar(&f.logLevel, "log-level", "info", "log level")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mocklobby %s\n", version.String())
		},
	})
	return root
}

func run(ctx context.Context, cmd *cobra.Command, f flags) error {
	log, err := logger.New(config.LoggerConfig{Level: f.logLevel, Format: "console", Output: "stdout"})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	gin.SetMode(gin.ReleaseMode)
	m := metrics.New("mocklobby")

	opts := []lobbytest.Option{
		lobbytest.WithNamespace(f.namespace),
		lobbytest.WithSecret([]byte(f.secret)),
		lobbytest.WithLogger(log),
		lobbytest.WithMetrics(m),
		lobbytest.WithMatchSize(f.matchSize),
		lobbytest.WithReadyWindow(f.readyWindow, f.ban),
	}
	switch f.duplicates {
	case "supersede":
	case "reject":
		opts = append(opts, lobbytest.WithDuplicatePolicy(lobbytest.Reject))
	case "credential":
		opts = append(opts, lobbytest.WithDuplicatePolicy(lobbytest.ByCredential))
	default:
		return fmt.Errorf("unknown duplicate policy %q", f.duplicates)
	}
	if f.redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: f.redisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		opts = append(opts, lobbytest.WithRevocationPublisher(rdb, f.channel))
	}
	s := lobbytest.New(opts...)

	for _, user := range f.issue {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", user, s.IssueToken(user, f.tokenTTL))
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.Handle("/", s.Handler())
	srv := &http.Server{
		Addr:              f.addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("starting mocklobby",
		zap.String("version", version.Version),
		zap.String("addr", f.addr),
		zap.String("namespace", f.namespace),
		zap.String("lobby_path", lobbytest.LobbyPath),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		s.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
