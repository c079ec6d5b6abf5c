package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"rental-ledger/internal/auth"
	"rental-ledger/internal/ledger"
)

type createBookingRequest struct {
	ApartmentID string          `json:"apartment_id" binding:"required"`
	GuestName   string          `json:"guest_name" binding:"required"`
	CheckIn     string          `json:"check_in" binding:"required"`
	CheckOut    string          `json:"check_out" binding:"required"`
	BasePrice   decimal.Decimal `json:"base_price"`
	CleaningFee decimal.Decimal `json:"cleaning_fee"`
	ServiceFee  decimal.Decimal `json:"service_fee"`
	Currency    string          `json:"currency"`
}

func (s *Server) handleCreateBooking(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR", "message": err.Error()})
		return
	}

	checkIn, ok := parseDate(req.CheckIn)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR", "message": "invalid check_in date"})
		return
	}
	checkOut, ok := parseDate(req.CheckOut)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR", "message": "invalid check_out date"})
		return
	}
	if !checkOut.After(checkIn) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR", "message": "check_out must be after check_in"})
		return
	}

	// The apartment must exist before money can be attributed to it.
	if _, err := s.repo.GetApartment(c.Request.Context(), req.ApartmentID); err != nil {
		s.renderError(c, err)
		return
	}

	booking := &ledger.Booking{
		ID:          uuid.New().String(),
		ApartmentID: req.ApartmentID,
		GuestName:   req.GuestName,
		CheckIn:     checkIn,
		CheckOut:    checkOut,
		Status:      ledger.BookingStatusConfirmed,
		BasePrice:   req.BasePrice,
		CleaningFee: req.CleaningFee,
		ServiceFee:  req.ServiceFee,
		Currency:    req.Currency,
	}
	if err := s.repo.CreateBooking(c.Request.Context(), booking); err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, booking)
}

func (s *Server) handleRecordBooking(c *gin.Context) {
	booking, err := s.repo.GetBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.renderError(c, err)
		return
	}

	txs, err := s.ledger.RecordBooking(c.Request.Context(), *booking, auth.ActorFromContext(c))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"transactions": txs})
}

type cancelBookingRequest struct {
	RefundAmount decimal.Decimal `json:"refund_amount"`
}

func (s *Server) handleCancelBooking(c *gin.Context) {
	var req cancelBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR", "message": err.Error()})
		return
	}
	if req.RefundAmount.IsNegative() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR", "message": "refund_amount must not be negative"})
		return
	}

	id := c.Param("id")
	booking, err := s.repo.GetBooking(c.Request.Context(), id)
	if err != nil {
		s.renderError(c, err)
		return
	}
	if booking.Status == ledger.BookingStatusCancelled {
		c.JSON(http.StatusConflict, gin.H{"error": "ALREADY_CANCELLED", "message": "booking is already cancelled"})
		return
	}

	if err := s.repo.UpdateBookingStatus(c.Request.Context(), id, ledger.BookingStatusCancelled, req.RefundAmount); err != nil {
		s.renderError(c, err)
		return
	}
	booking.Status = ledger.BookingStatusCancelled
	booking.CancellationAmount = req.RefundAmount

	var refund *ledger.Transaction
	if req.RefundAmount.IsPositive() {
		refund, err = s.ledger.RecordCancellation(c.Request.Context(), *booking, auth.ActorFromContext(c))
		if err != nil {
			s.renderError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"booking": booking, "refund": refund})
}
