package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"rental-ledger/internal/auth"
	"rental-ledger/internal/ledger"
)

// parseDate accepts a bare date or a full RFC 3339 timestamp.
func parseDate(s string) (time.Time, bool) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

type createTransactionRequest struct {
	Type        string                 `json:"type" binding:"required"`
	Category    string                 `json:"category"`
	Amount      decimal.Decimal        `json:"amount"`
	Currency    string                 `json:"currency"`
	Description string                 `json:"description" binding:"required"`
	Reference   *string                `json:"reference"`
	Date        string                 `json:"date"`
	ApartmentID *string                `json:"apartment_id"`
	BookingID   *string                `json:"booking_id"`
	Metadata    map[string]interface{} `json:"metadata"`
}

func (s *Server) handleCreateTransaction(c *gin.Context) {
	var req createTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR", "message": err.Error()})
		return
	}

	input := ledger.CreateTransactionInput{
		Type:        ledger.TransactionType(req.Type),
		Category:    ledger.Category(req.Category),
		Amount:      req.Amount,
		Currency:    req.Currency,
		Description: req.Description,
		Reference:   req.Reference,
		ApartmentID: req.ApartmentID,
		BookingID:   req.BookingID,
		Metadata:    req.Metadata,
	}
	if req.Date != "" {
		date, ok := parseDate(req.Date)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR", "message": "invalid date format"})
			return
		}
		input.Date = date
	}

	t, err := s.ledger.CreateTransaction(c.Request.Context(), input, auth.ActorFromContext(c))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (s *Server) handleGetTransaction(c *gin.Context) {
	t, err := s.ledger.GetTransaction(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) handleListTransactions(c *gin.Context) {
	f := ledger.Filter{
		Type:        ledger.TransactionType(c.Query("type")),
		Category:    ledger.Category(c.Query("category")),
		ApartmentID: c.Query("apartment_id"),
		BookingID:   c.Query("booking_id"),
	}
	if v := c.Query("from"); v != "" {
		if t, ok := parseDate(v); ok {
			f.From = t
		}
	}
	if v := c.Query("to"); v != "" {
		if t, ok := parseDate(v); ok {
			f.To = t
		}
	}
	f.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	f.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "50"))

	txs, total, err := s.ledger.ListTransactions(c.Request.Context(), f)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"transactions": txs,
		"total":        total,
		"page":         f.Page,
		"page_size":    f.PageSize,
	})
}

type patchTransactionRequest struct {
	Description *string                `json:"description"`
	Category    *string                `json:"category"`
	Date        *string                `json:"date"`
	ApartmentID *string                `json:"apartment_id"`
	Metadata    map[string]interface{} `json:"metadata"`
}

func (s *Server) handlePatchTransaction(c *gin.Context) {
	var req patchTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR", "message": err.Error()})
		return
	}

	patch := ledger.Patch{
		Description: req.Description,
		ApartmentID: req.ApartmentID,
		Metadata:    req.Metadata,
	}
	if req.Category != nil {
		cat := ledger.Category(*req.Category)
		patch.Category = &cat
	}
	if req.Date != nil {
		date, ok := parseDate(*req.Date)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR", "message": "invalid date format"})
			return
		}
		patch.Date = &date
	}

	t, err := s.ledger.PatchTransaction(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

type adjustRequest struct {
	NewAmount decimal.Decimal `json:"new_amount"`
	Reason    string          `json:"reason" binding:"required"`
}

func (s *Server) handleAdjustTransaction(c *gin.Context) {
	var req adjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR", "message": err.Error()})
		return
	}

	t, err := s.ledger.Adjust(c.Request.Context(), c.Param("id"), req.Reason, req.NewAmount, auth.ActorFromContext(c))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

type voidRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func (s *Server) handleVoidTransaction(c *gin.Context) {
	var req voidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR", "message": err.Error()})
		return
	}

	t, err := s.ledger.Void(c.Request.Context(), c.Param("id"), req.Reason, auth.ActorFromContext(c))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}
