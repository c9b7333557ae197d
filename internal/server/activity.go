package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	activitydomain "github.com/outboundiq/costwatch/internal/activity/domain"
)

func (s *Server) RecordActivity(c *gin.Context) {
	var req activitydomain.RecordActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request body"))
		return
	}

	record, err := s.activitysvc.Record(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.refreshMonth(c.Request.Context(), record.OccurredAt)

	c.JSON(http.StatusOK, record)
}
