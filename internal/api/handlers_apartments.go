package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"rental-ledger/internal/ledger"
)

type createApartmentRequest struct {
	Title   string `json:"title" binding:"required"`
	OwnerID string `json:"owner_id"`
}

func (s *Server) handleCreateApartment(c *gin.Context) {
	var req createApartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR", "message": "title is required"})
		return
	}

	apartment := &ledger.Apartment{
		ID:        uuid.New().String(),
		Title:     req.Title,
		OwnerID:   req.OwnerID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateApartment(c.Request.Context(), apartment); err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, apartment)
}

func (s *Server) handleListApartments(c *gin.Context) {
	apartments, err := s.repo.ListApartments(c.Request.Context(), c.Query("owner_id"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"apartments": apartments})
}

type renameApartmentRequest struct {
	Title string `json:"title" binding:"required"`
}

func (s *Server) handleRenameApartment(c *gin.Context) {
	var req renameApartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR", "message": "title is required"})
		return
	}

	id := c.Param("id")
	if err := s.repo.UpdateApartmentTitle(c.Request.Context(), id, req.Title); err != nil {
		s.renderError(c, err)
		return
	}
	// Exports resolve titles through the cache; drop the stale entry.
	if s.labels != nil {
		s.labels.InvalidateApartment(c.Request.Context(), id)
	}

	apartment, err := s.repo.GetApartment(c.Request.Context(), id)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, apartment)
}
