package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"rental-ledger/internal/auth"
)

func (s *Server) handleLogin(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR", "message": "email and password are required"})
		return
	}

	resp, err := s.authService.Login(c.Request.Context(), req)
	if err != nil {
		var authErr *auth.AuthError
		if errors.As(err, &authErr) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": authErr.Code, "message": authErr.Message})
			return
		}
		s.log.Error().Err(err).Msg("login failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR", "message": "login failed"})
		return
	}

	c.JSON(http.StatusOK, resp)
}
