package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"aurora/backend/internal/chat"
	apperrors "aurora/backend/pkg/errors"
)

func (s *Server) profile(c *gin.Context) {
	p, err := s.deps.Social.Profile(c.Request.Context(), c.Param("username"), currentUser(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) follow(c *gin.Context) {
	target := c.Param("username")
	if _, err := s.deps.Social.Follow(c.Request.Context(), currentUser(c), target); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": fmt.Sprintf("You are now following %s", target),
	})
}

func (s *Server) sendDirect(c *gin.Context) {
	var req struct {
		RecipientUsername string `json:"recipient_username" binding:"required"`
		Content           string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, bindError(err))
		return
	}

	msg, err := s.deps.Hub.SendDirect(c.Request.Context(), currentUser(c), req.RecipientUsername, req.Content)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (s *Server) chatHistory(c *gin.Context) {
	history, err := s.deps.Hub.History(c.Request.Context(), c.Param("user1"), c.Param("user2"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

// serveWebsocket upgrades /ws/:identity once the token subject matches the identity.
// Browsers cannot set headers on websocket requests so ?token= is accepted too.
func (s *Server) serveWebsocket(c *gin.Context) {
	identity := c.Param("identity")
	raw := c.Query("token")
	if raw == "" {
		raw = c.GetHeader("Authorization")
	}
	subject, err := s.deps.Tokens.Verify(raw)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if subject != identity {
		s.respondError(c, apperrors.NewAuthFailed("token does not belong to "+identity, nil))
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already written the error response
		s.logger.Warn("WebSocket upgrade failed", zap.String("identity", identity), zap.Error(err))
		return
	}

	client := chat.NewClient(identity, s.deps.Hub, conn, s.opts.Chat)
	client.Serve(c.Request.Context())
}
