package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sidharthpunathil/chatbot-poc/internal/chat"
)

type chatMessage struct {
	Message        string `json:"message" binding:"required"`
	SessionID      string `json:"session_id"`
	CollectionName string `json:"collection_name"`
	Model          string `json:"model"`
	SystemPrompt   string `json:"system_prompt"`
}

func (s *Server) handleChat(c *gin.Context) {
	var req chatMessage
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	resp, err := s.chat.Chat(c.Request.Context(), chat.Request{
		Query:        req.Message,
		SessionID:    req.SessionID,
		Collection:   s.resolveCollection(req.CollectionName),
		Model:        req.Model,
		SystemPrompt: req.SystemPrompt,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleChatHistory(c *gin.Context) {
	sessionID := c.Param("session_id")
	history, err := s.sessions.History(c.Request.Context(), sessionID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id":    sessionID,
		"messages":      history,
		"message_count": len(history),
	})
}

func (s *Server) handleCreateSession(c *gin.Context) {
	id, err := s.sessions.Create(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": id, "message": "Session created successfully"})
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	sessionID := c.Param("session_id")
	if err := s.sessions.Delete(c.Request.Context(), sessionID); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Session deleted successfully", "session_id": sessionID})
}

func (s *Server) handleListSessions(c *gin.Context) {
	infos, err := s.sessions.List(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": infos, "total_sessions": len(infos)})
}
