package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// scopeApartments resolves the optional apartment_id / owner_id query
// parameters to a set of apartment IDs. Empty slice means no scoping.
func (s *Server) scopeApartments(c *gin.Context) ([]string, error) {
	if id := c.Query("apartment_id"); id != "" {
		return []string{id}, nil
	}
	if ownerID := c.Query("owner_id"); ownerID != "" {
		ids, err := s.repo.OwnerApartmentIDs(c.Request.Context(), ownerID)
		if err != nil {
			return nil, err
		}
		// An owner with no apartments must see an empty report, not
		// an unscoped one.
		if len(ids) == 0 {
			ids = []string{"00000000-0000-0000-0000-000000000000"}
		}
		return ids, nil
	}
	return nil, nil
}

func (s *Server) handleGetSummary(c *gin.Context) {
	year, month, ok := yearMonthParams(c)
	if !ok {
		return
	}
	apartmentIDs, err := s.scopeApartments(c)
	if err != nil {
		s.renderError(c, err)
		return
	}

	summary, err := s.ledger.Summarize(c.Request.Context(), year, month, apartmentIDs)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleExportCSV(c *gin.Context) {
	from, ok := parseDate(c.Query("from"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR", "message": "from is required (YYYY-MM-DD)"})
		return
	}
	to, ok := parseDate(c.Query("to"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR", "message": "to is required (YYYY-MM-DD)"})
		return
	}
	if to.Before(from) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR", "message": "to must not be before from"})
		return
	}

	var apartmentIDs []string
	if v := c.Query("apartment_id"); v != "" {
		apartmentIDs = strings.Split(v, ",")
	}

	out, err := s.exporter.CSV(c.Request.Context(), from, to, apartmentIDs)
	if err != nil {
		s.renderError(c, err)
		return
	}

	filename := fmt.Sprintf("transactions_%s_%s.csv", from.Format("2006-01-02"), to.Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(out))
}

func (s *Server) handleExportReport(c *gin.Context) {
	year, month, ok := yearMonthParams(c)
	if !ok {
		return
	}
	report, err := s.exporter.Report(c.Request.Context(), year, month)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
