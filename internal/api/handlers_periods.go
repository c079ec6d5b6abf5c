package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"rental-ledger/internal/auth"
)

// yearMonthParams parses and bounds-checks the :year/:month path segments.
func yearMonthParams(c *gin.Context) (int, int, bool) {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil || year < 2000 || year > 2200 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR", "message": "invalid year"})
		return 0, 0, false
	}
	month, err := strconv.Atoi(c.Param("month"))
	if err != nil || month < 1 || month > 12 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR", "message": "invalid month"})
		return 0, 0, false
	}
	return year, month, true
}

func (s *Server) handleListPeriods(c *gin.Context) {
	periods, err := s.ledger.ListPeriods(c.Request.Context())
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"periods": periods})
}

func (s *Server) handleGetPeriod(c *gin.Context) {
	year, month, ok := yearMonthParams(c)
	if !ok {
		return
	}
	p, err := s.ledger.GetPeriod(c.Request.Context(), year, month)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) handleClosePeriod(c *gin.Context) {
	year, month, ok := yearMonthParams(c)
	if !ok {
		return
	}
	p, err := s.ledger.ClosePeriod(c.Request.Context(), year, month, auth.ActorFromContext(c))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

type reopenRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func (s *Server) handleReopenPeriod(c *gin.Context) {
	year, month, ok := yearMonthParams(c)
	if !ok {
		return
	}
	var req reopenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR", "message": "reason is required"})
		return
	}
	p, err := s.ledger.ReopenPeriod(c.Request.Context(), year, month, auth.ActorFromContext(c), req.Reason)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
