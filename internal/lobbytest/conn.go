package lobbytest

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rickgao/lobby-client/internal/protocol"
)

const writeWait = 5 * time.Second

// conn is one accepted lobby socket.
type conn struct {
	id       string
	userID   string
	tokenID  string
	token    string
	clientID string
	ws       *websocket.Conn

	writeMu sync.Mutex
	ready   bool // guarded by Server.mu
}

func (c *conn) write(f protocol.Frame) error {
	data, err := protocol.Encode(f)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *conn) close(code int, text string) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text), time.Now().Add(writeWait))
	_ = c.ws.Close()
}

// delivery is a push addressed to one connection.
type delivery struct {
	to   *conn
	push protocol.Push
}

// handlerFunc serves one request with s.mu held. It returns the response
// payload, pushes to send after the response, and a protocol error.
type handlerFunc func(cn *conn, f protocol.Frame) (any, []delivery, error)

func (s *Server) handleLobby(c *gin.Context) {
	raw := bearer(c.Request)
	claims, err := s.authenticate(raw)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": err.Error()})
		return
	}
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "shutting down"})
		return
	}

	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	cn := &conn{
		id:       uuid.NewString(),
		userID:   claims.Subject,
		tokenID:  claims.ID,
		token:    raw,
		clientID: c.GetHeader("X-Lobby-Client-Id"),
		ws:       ws,
	}
	s.serve(cn)
}

func (s *Server) serve(cn *conn) {
	log := s.logger.With(zap.String("user_id", cn.userID), zap.String("connection_id", cn.id))
	defer s.drop(cn)

	for {
		_, data, err := cn.ws.ReadMessage()
		if err != nil {
			log.Debug("connection closed", zap.Error(err))
			return
		}
		frame, err := protocol.Decode(data)
		if err != nil || frame.ID == 0 {
			log.Debug("ignoring frame", zap.Error(err))
			continue
		}

		if frame.Type == protocol.TypeConnectRequest {
			s.connect(cn, frame)
			continue
		}

		s.mu.Lock()
		var (
			payload    any
			deliveries []delivery
		)
		h, ok := s.handlers[frame.Type]
		switch {
		case !cn.ready || frame.Token != cn.token || s.revoked[cn.tokenID]:
			err = protocol.ErrUnauthorized
		case frame.Namespace != s.namespace:
			err = protocol.ErrBadRequest
		case !ok:
			err = protocol.ErrBadRequest
		default:
			payload, deliveries, err = h(cn, frame)
		}
		s.reply(cn, frame, payload, err)
		s.deliver(deliveries)
		s.mu.Unlock()
	}
}

func (s *Server) connect(cn *conn, f protocol.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cn.ready {
		s.reply(cn, f, nil, protocol.ErrBadRequest)
		return
	}
	if f.Token != cn.token || s.revoked[cn.tokenID] {
		s.reply(cn, f, nil, protocol.ErrUnauthorized)
		return
	}
	old := s.conns[cn.userID]
	if old != nil && (s.policy == Reject || s.policy == ByCredential && old.token == cn.token) {
		s.reply(cn, f, nil, protocol.ErrDuplicateConnection)
		return
	}

	cn.ready = true
	s.conns[cn.userID] = cn
	st := s.presence[cn.userID]
	st.UserID = cn.userID
	if st.Availability == "" || st.Availability == protocol.AvailabilityOffline {
		st.Availability = protocol.AvailabilityOnline
	}
	st.LastSeenAt = time.Now()
	s.presence[cn.userID] = st

	s.reply(cn, f, protocol.ConnectResponse{UserID: cn.userID, ConnectionID: cn.id}, nil)
	if old != nil {
		s.disconnect(old, protocol.ReasonSuperseded, "signed in from another client")
	}
	s.deliver(s.presenceChanged(cn.userID))
	s.logger.Debug("lobby connected",
		zap.String("user_id", cn.userID),
		zap.String("client_id", cn.clientID),
	)
}

// drop runs when a connection's read loop ends.
func (s *Server) drop(cn *conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = cn.ws.Close()
	s.release(cn)
}

// release forgets cn if it is the user's current connection and reports the
// user offline. Caller holds s.mu.
func (s *Server) release(cn *conn) {
	if s.conns[cn.userID] != cn {
		return
	}
	delete(s.conns, cn.userID)
	st := s.presence[cn.userID]
	st.Availability = protocol.AvailabilityOffline
	st.LastSeenAt = time.Now()
	s.presence[cn.userID] = st
	s.deliver(s.presenceChanged(cn.userID))
}

// disconnect announces closure to cn and closes it. Caller holds s.mu.
func (s *Server) disconnect(cn *conn, reason, message string) {
	s.deliver([]delivery{{to: cn, push: protocol.DisconnectNotif{
		ConnectionID: cn.id,
		Reason:       reason,
		Message:      message,
	}}})
	cn.close(websocket.CloseNormalClosure, reason)
	s.release(cn)
}

func (s *Server) reply(cn *conn, req protocol.Frame, payload any, err error) {
	f, ferr := protocol.NewFrame(protocol.ResponseType(req.Type), req.ID, payload)
	if ferr != nil {
		err = ferr
	}
	if err != nil {
		var perr *protocol.ProtocolError
		if !errors.As(err, &perr) {
			perr = protocol.ErrBadRequest
		}
		f.Code, f.Message, f.Payload = perr.Code, perr.Message, nil
	}
	f.Namespace = s.namespace
	if werr := cn.write(f); werr != nil {
		s.logger.Debug("write response failed", zap.String("type", f.Type), zap.Error(werr))
	}
}

func (s *Server) deliver(ds []delivery) {
	for _, d := range ds {
		if d.to == nil {
			continue
		}
		f, err := protocol.NewFrame(d.push.PushType(), 0, d.push)
		if err != nil {
			s.logger.Error("encode push", zap.Error(err))
			continue
		}
		f.Namespace = s.namespace
		if err := d.to.write(f); err != nil {
			s.logger.Debug("write push failed", zap.String("type", f.Type), zap.Error(err))
		}
	}
}

// pushTo addresses push to every connected user in userIDs. Caller holds s.mu.
func (s *Server) pushTo(userIDs []string, push protocol.Push) []delivery {
	var out []delivery
	for _, id := range userIDs {
		if cn := s.conns[id]; cn != nil {
			out = append(out, delivery{to: cn, push: push})
		}
	}
	return out
}

// Connected reports whether userID holds an accepted connection.
func (s *Server) Connected(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cn := s.conns[userID]
	return cn != nil && cn.ready
}

// Kick sends a disconnectNotif with reason to userID and closes the socket.
func (s *Server) Kick(userID, reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cn := s.conns[userID]
	if cn == nil {
		return false
	}
	s.disconnect(cn, reason, "")
	return true
}

// DropConnection closes userID's socket without a disconnectNotif.
func (s *Server) DropConnection(userID string) bool {
	s.mu.Lock()
	cn := s.conns[userID]
	s.mu.Unlock()
	if cn == nil {
		return false
	}
	return cn.ws.Close() == nil
}

// Notify sends a free-form notification to userID, queueing it while the
// user is offline.
func (s *Server) Notify(userID, topic, payload string) {
	n := protocol.GenericNotification{
		ID:      uuid.NewString(),
		From:    "system",
		To:      userID,
		Topic:   topic,
		Payload: payload,
		SentAt:  time.Now().UTC(),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if cn := s.conns[userID]; cn != nil && cn.ready {
		s.deliver([]delivery{{to: cn, push: n}})
		return
	}
	s.offline[userID] = append(s.offline[userID], n)
}
