package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

func (s *Server) GetMetrics(c *gin.Context) {
	forceRefresh := false
	if raw := strings.TrimSpace(c.Query("refresh")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			AbortWithError(c, newValidationError("refresh", "invalid_request", "refresh must be a boolean"))
			return
		}
		forceRefresh = parsed
	}

	snapshot, err := s.dashboardSvc.Snapshot(c.Request.Context(), forceRefresh)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, snapshot)
}
