package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sidharthpunathil/chatbot-poc/internal/apperr"
)

// writeError maps application errors to HTTP status codes. The body is
// always {"detail": message}.
func (s *Server) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperr.ErrInvalidInput), errors.Is(err, apperr.ErrUnsupportedFormat):
		status = http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperr.ErrProvider):
		status = http.StatusBadGateway
	}

	if status >= 500 {
		s.logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	} else {
		s.logger.Debug().Err(err).Str("path", c.FullPath()).Msg("request rejected")
	}
	c.AbortWithStatusJSON(status, gin.H{"detail": err.Error()})
}

// badRequest rejects malformed request bodies.
func (s *Server) badRequest(c *gin.Context, err error) {
	s.logger.Debug().Err(err).Str("path", c.FullPath()).Msg("bad request body")
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
}
