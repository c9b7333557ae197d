package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	usagedomain "github.com/outboundiq/costwatch/internal/usage/domain"
)

const reportDateLayout = "2006-01-02"

func (s *Server) GetUsageReport(c *gin.Context) {
	now := s.clock.Now().UTC()

	// Default window is the current month so far.
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := now

	if raw := strings.TrimSpace(c.Query("start_date")); raw != "" {
		parsed, err := time.Parse(reportDateLayout, raw)
		if err != nil {
			AbortWithError(c, usagedomain.ErrInvalidDateRange)
			return
		}
		start = parsed
	}
	if raw := strings.TrimSpace(c.Query("end_date")); raw != "" {
		parsed, err := time.Parse(reportDateLayout, raw)
		if err != nil {
			AbortWithError(c, usagedomain.ErrInvalidDateRange)
			return
		}
		// end_date is inclusive: cover the whole day.
		end = parsed.Add(24*time.Hour - time.Nanosecond)
	}

	report, err := s.usagesvc.Report(c.Request.Context(), start, end)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}
