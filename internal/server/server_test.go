package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	activitydomain "github.com/outboundiq/costwatch/internal/activity/domain"
	activitysvc "github.com/outboundiq/costwatch/internal/activity/service"
	"github.com/outboundiq/costwatch/internal/clock"
	"github.com/outboundiq/costwatch/internal/config"
	costsdomain "github.com/outboundiq/costwatch/internal/costs/domain"
	costssvc "github.com/outboundiq/costwatch/internal/costs/service"
	"github.com/outboundiq/costwatch/internal/currency"
	dashboardsvc "github.com/outboundiq/costwatch/internal/dashboard/service"
	"github.com/outboundiq/costwatch/internal/lock"
	"github.com/outboundiq/costwatch/internal/observability"
	"github.com/outboundiq/costwatch/internal/providers/slack"
	usagedomain "github.com/outboundiq/costwatch/internal/usage/domain"
	usagesvc "github.com/outboundiq/costwatch/internal/usage/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupTestServer(t *testing.T, now time.Time) (*Server, *clock.FakeClock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&usagedomain.UsageRecord{},
		&activitydomain.ActivityRecord{},
		&costsdomain.MonthlySummary{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(now)
	holder := config.NewStaticCostConfigHolder(config.DefaultCostConfig())
	log := zap.NewNop()

	usage := usagesvc.NewService(usagesvc.ServiceParam{
		DB:    db,
		Log:   log,
		GenID: node,
		Clock: fake,
	})
	activity := activitysvc.NewService(activitysvc.ServiceParam{
		DB:    db,
		Log:   log,
		GenID: node,
		Clock: fake,
	})
	costs := costssvc.NewService(costssvc.ServiceParam{
		DB:        db,
		Log:       log,
		GenID:     node,
		Clock:     fake,
		Locker:    lock.NewKeyedLocker(),
		Costs:     holder,
		Converter: currency.NewConverter(holder),
		Usage:     usage,
		Activity:  activity,
		Slack:     slack.NoOpProvider{},
	})
	dashboard := dashboardsvc.NewService(dashboardsvc.ServiceParam{
		Log:        log,
		Clock:      fake,
		Costs:      holder,
		Aggregator: costs,
	})

	srv := NewServer(ServerParams{
		Gin:          NewEngine(observability.Config{}),
		Cfg:          config.Config{Environment: "test"},
		Log:          log,
		Clock:        fake,
		Usagesvc:     usage,
		Activitysvc:  activity,
		CostsSvc:     costs,
		DashboardSvc: dashboard,
	})
	return srv, fake
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := setupTestServer(t, time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC))

	w := doJSON(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRecordActivityAndMetricsFlow(t *testing.T) {
	srv, _ := setupTestServer(t, time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC))

	for i := 0; i < 3; i++ {
		w := doJSON(t, srv, http.MethodPost, "/api/activities", gin.H{"type": "email_sent"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	w := doJSON(t, srv, http.MethodPost, "/api/usage", gin.H{
		"generation_id": "gen-1",
		"model":         "anthropic/claude-3-haiku",
		"cost_usd":      5.0,
		"purpose":       "email_generation",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, srv, http.MethodGet, "/api/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var snapshot struct {
		Summary struct {
			EmailsSent     int64   `json:"emails_sent"`
			OpenRouterCost float64 `json:"openrouter_cost"`
			TotalCost      float64 `json:"total_cost"`
		} `json:"summary"`
		ComputedAt time.Time `json:"computed_at"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snapshot))
	assert.Equal(t, int64(3), snapshot.Summary.EmailsSent)
	assert.InDelta(t, 4.60, snapshot.Summary.OpenRouterCost, 1e-9)
	assert.InDelta(t, 127.60, snapshot.Summary.TotalCost, 1e-9)
	assert.False(t, snapshot.ComputedAt.IsZero())
}

func TestRecordActivityRejectsUnknownType(t *testing.T) {
	srv, _ := setupTestServer(t, time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC))

	w := doJSON(t, srv, http.MethodPost, "/api/activities", gin.H{"type": "tweet_posted"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "validation_error")
}

func TestRecordUsageRejectsMalformedBody(t *testing.T) {
	srv, _ := setupTestServer(t, time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC))

	req := httptest.NewRequest(http.MethodPost, "/api/usage", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecordUsageValidationMapsTo400(t *testing.T) {
	srv, _ := setupTestServer(t, time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC))

	w := doJSON(t, srv, http.MethodPost, "/api/usage", gin.H{
		"generation_id": "gen-neg",
		"model":         "gpt-4o-mini",
		"cost_usd":      -2,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_cost")
}

func TestMetricsRefreshParamValidation(t *testing.T) {
	srv, _ := setupTestServer(t, time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC))

	w := doJSON(t, srv, http.MethodGet, "/api/metrics?refresh=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/api/metrics?refresh=true", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTrendsEndpoint(t *testing.T) {
	srv, _ := setupTestServer(t, time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC))

	w := doJSON(t, srv, http.MethodGet, "/api/trends?months=25", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/api/trends?months=2", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var payload struct {
		Months int                          `json:"months"`
		Trends []costsdomain.MonthlySummary `json:"trends"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Equal(t, 2, payload.Months)
	require.Len(t, payload.Trends, 2)
	assert.Equal(t, 2, payload.Trends[0].Month)
	assert.Equal(t, 3, payload.Trends[1].Month)
}

func TestUsageReportEndpoint(t *testing.T) {
	srv, _ := setupTestServer(t, time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC))

	w := doJSON(t, srv, http.MethodPost, "/api/usage", gin.H{
		"generation_id": "gen-rep",
		"model":         "gpt-4o-mini",
		"cost_usd":      0.25,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, srv, http.MethodGet, "/api/usage/report?start_date=2025-03-01&end_date=2025-03-31", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var report usagedomain.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, int64(1), report.Totals.Calls)
	assert.InDelta(t, 0.25, report.Totals.CostUSD, 1e-9)

	w = doJSON(t, srv, http.MethodGet, "/api/usage/report?start_date=03/01/2025", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/api/usage/report?start_date=2025-03-20&end_date=2025-03-01", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
