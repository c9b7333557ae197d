package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	costsdomain "github.com/outboundiq/costwatch/internal/costs/domain"
)

const defaultTrendsMonths = 6

func (s *Server) GetTrends(c *gin.Context) {
	months := defaultTrendsMonths
	if raw := strings.TrimSpace(c.Query("months")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			AbortWithError(c, costsdomain.ErrInvalidRange)
			return
		}
		months = parsed
	}

	trends, err := s.costsSvc.Trends(c.Request.Context(), months)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"months": months,
		"trends": trends,
	})
}
