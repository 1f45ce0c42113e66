package lobbytest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rickgao/lobby-client/internal/iam"
	"github.com/rickgao/lobby-client/internal/session"
)

func (s *Server) handleVerify(c *gin.Context) {
	claims, err := s.authenticate(bearer(c.Request))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": err.Error()})
		return
	}
	id := iam.Identity{
		UserID:    claims.Subject,
		Namespace: claims.Namespace,
		TokenID:   claims.ID,
	}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	c.JSON(http.StatusOK, id)
}

// handleLogout revokes the presented token. Open lobby connections are not
// closed here; clients learn of the revocation through the identity service
// or the Redis channel.
func (s *Server) handleLogout(c *gin.Context) {
	claims, err := s.authenticate(bearer(c.Request))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": err.Error()})
		return
	}
	s.RevokeToken(claims.ID)

	if s.redis != nil {
		ev := session.Revocation{
			UserID:  claims.Subject,
			TokenID: claims.ID,
			Reason:  session.ReasonLoggedOut,
		}
		if err := session.PublishRevocation(c.Request.Context(), s.redis, s.channel, ev); err != nil {
			s.logger.Warn("publish revocation failed", zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"message": "revocation not published"})
			return
		}
	}
	c.Status(http.StatusNoContent)
}

// RevokeToken rejects tokenID for new connections, verification and further
// requests on existing connections.
func (s *Server) RevokeToken(tokenID string) {
	s.mu.Lock()
	s.revoked[tokenID] = true
	s.mu.Unlock()
}
