package lobbytest

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rickgao/lobby-client/internal/metrics"
	"github.com/rickgao/lobby-client/internal/protocol"
	"github.com/rickgao/lobby-client/internal/session"
)

// Paths served by the double.
const (
	LobbyPath  = "/lobby/"
	VerifyPath = "/iam/v1/verify"
	LogoutPath = "/iam/v1/logout"
)

// DuplicatePolicy decides what happens when a user connects twice.
type DuplicatePolicy int

const (
	// Supersede closes the older connection with a superseded disconnectNotif.
	Supersede DuplicatePolicy = iota
	// Reject fails the new handshake with CodeDuplicateConnection.
	Reject
	// ByCredential rejects a second connection presenting the same token and
	// supersedes the older one when the token differs, as after a re-login.
	ByCredential
)

var (
	errTokenInvalid = errors.New("token invalid")
	errTokenRevoked = errors.New("token revoked")
)

// Option configures a Server.
type Option func(*Server)

// WithNamespace sets the namespace tokens and frames must carry.
func WithNamespace(ns string) Option {
	return func(s *Server) { s.namespace = ns }
}

// WithSecret sets the HMAC key used to sign and verify tokens.
func WithSecret(secret []byte) Option {
	return func(s *Server) { s.secret = secret }
}

// WithDuplicatePolicy sets the duplicate-connection policy.
func WithDuplicatePolicy(p DuplicatePolicy) Option {
	return func(s *Server) { s.policy = p }
}

// WithLogger sets the server logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics records HTTP metrics for the identity endpoints and upgrades.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithRevocationPublisher publishes logouts on a Redis channel.
func WithRevocationPublisher(client redis.UniversalClient, channel string) Option {
	return func(s *Server) {
		s.redis = client
		s.channel = channel
	}
}

// WithMatchSize sets how many tickets form one match.
func WithMatchSize(n int) Option {
	return func(s *Server) { s.matchSize = n }
}

// WithReadyWindow sets how long matched members have to confirm and the ban,
// in seconds, applied to tickets with unconfirmed members. A banned member
// cannot start matchmaking until the ban has run out.
func WithReadyWindow(window time.Duration, banSeconds int) Option {
	return func(s *Server) {
		s.readyWindow = window
		s.banDuration = banSeconds
	}
}

// WithClock sets the time source for matchmaking bans.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// Server is an in-memory lobby and identity service.
type Server struct {
	namespace   string
	secret      []byte
	policy      DuplicatePolicy
	logger      *zap.Logger
	metrics     *metrics.Metrics
	redis       redis.UniversalClient
	channel     string
	matchSize   int
	readyWindow time.Duration
	banDuration int
	now         func() time.Time

	engine   *gin.Engine
	upgrader websocket.Upgrader
	handlers map[string]handlerFunc
	httpSrv  *httptest.Server

	mu        sync.Mutex
	conns     map[string]*conn // by user id
	revoked   map[string]bool  // by token id
	parties   map[string]*partyState
	memberOf  map[string]string // user id -> party id
	relations map[string]map[string]protocol.FriendshipStatus
	presence  map[string]protocol.FriendStatus
	offline   map[string][]protocol.GenericNotification
	queues    map[string][]*ticket // by channel
	matches   map[string]*match
	banned    map[string]time.Time // user id -> ban expiry
	dsPort    int
	closed    bool
}

// New builds a server. Use Handler to mount it or Start to run it on a
// loopback listener.
func New(opts ...Option) *Server {
	s := &Server{
		namespace:   "test",
		secret:      []byte("lobbytest-secret"),
		logger:      zap.NewNop(),
		channel:     session.DefaultRevocationChannel,
		matchSize:   2,
		readyWindow: 10 * time.Second,
		banDuration: 30,
		now:         time.Now,
		upgrader: websocket.Upgrader{
			CheckOrigin:      func(*http.Request) bool { return true },
			HandshakeTimeout: 10 * time.Second,
		},
		conns:     make(map[string]*conn),
		revoked:   make(map[string]bool),
		parties:   make(map[string]*partyState),
		memberOf:  make(map[string]string),
		relations: make(map[string]map[string]protocol.FriendshipStatus),
		presence:  make(map[string]protocol.FriendStatus),
		offline:   make(map[string][]protocol.GenericNotification),
		queues:    make(map[string][]*ticket),
		matches:   make(map[string]*match),
		banned:    make(map[string]time.Time),
		dsPort:    7777,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("lobbytest")
	s.registerHandlers()
	s.engine = s.routes()
	return s
}

// Start runs a new server on a loopback listener and closes it when the
// test ends.
func Start(tb testing.TB, opts ...Option) *Server {
	tb.Helper()
	s := New(opts...)
	s.httpSrv = httptest.NewServer(s.engine)
	tb.Cleanup(s.Close)
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(s.recoveryMiddleware(), s.loggerMiddleware())
	if s.metrics != nil {
		r.Use(s.metrics.Middleware())
	}
	r.GET(LobbyPath, s.handleLobby)
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	iam := r.Group("/iam/v1")
	iam.POST("/verify", s.handleVerify)
	iam.POST("/logout", s.handleLogout)
	return r
}

// Handler returns the HTTP handler serving the lobby and identity endpoints.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Namespace returns the namespace the server accepts.
func (s *Server) Namespace() string {
	return s.namespace
}

// URL returns the lobby WebSocket URL of a server created with Start.
func (s *Server) URL() string {
	return "ws" + strings.TrimPrefix(s.httpSrv.URL, "http") + LobbyPath
}

// IAMURL returns the identity service base URL of a server created with Start.
func (s *Server) IAMURL() string {
	return s.httpSrv.URL
}

// Shutdown closes every lobby connection and stops match timers.
func (s *Server) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for _, m := range s.matches {
		m.timer.Stop()
	}
	for _, cn := range s.conns {
		cn.close(websocket.CloseGoingAway, protocol.ReasonShutdown)
	}
}

// Close shuts the server down and stops its listener, if any.
func (s *Server) Close() {
	s.Shutdown()
	if s.httpSrv != nil {
		s.httpSrv.Close()
	}
}

type tokenClaims struct {
	Namespace string `json:"namespace"`
	jwt.RegisteredClaims
}

// IssueToken signs an access token for userID. A zero ttl issues a token
// without an exp claim.
func (s *Server) IssueToken(userID string, ttl time.Duration) string {
	now := time.Now()
	claims := tokenClaims{
		Namespace: s.namespace,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  userID,
			ID:       uuid.NewString(),
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		panic(fmt.Sprintf("lobbytest: sign token: %v", err))
	}
	return signed
}

func (s *Server) authenticate(raw string) (*tokenClaims, error) {
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errTokenInvalid, err)
	}
	if claims.Namespace != s.namespace {
		return nil, fmt.Errorf("%w: namespace %q", errTokenInvalid, claims.Namespace)
	}

	s.mu.Lock()
	revoked := s.revoked[claims.ID]
	s.mu.Unlock()
	if revoked {
		return nil, errTokenRevoked
	}
	return &claims, nil
}

func bearer(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func (s *Server) loggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		s.logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
		)
	}
}

func (s *Server) recoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic recovered",
					zap.Any("error", err),
					zap.String("path", c.Request.URL.Path),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "internal server error"})
			}
		}()
		c.Next()
	}
}
