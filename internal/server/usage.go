package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	usagedomain "github.com/outboundiq/costwatch/internal/usage/domain"
)

func (s *Server) RecordUsage(c *gin.Context) {
	var req usagedomain.RecordUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request body"))
		return
	}

	record, err := s.usagesvc.Record(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.refreshMonth(c.Request.Context(), record.CreatedAt)

	c.JSON(http.StatusOK, record)
}
