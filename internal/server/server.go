package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	activitydomain "github.com/outboundiq/costwatch/internal/activity/domain"
	"github.com/outboundiq/costwatch/internal/clock"
	"github.com/outboundiq/costwatch/internal/config"
	costsdomain "github.com/outboundiq/costwatch/internal/costs/domain"
	dashboarddomain "github.com/outboundiq/costwatch/internal/dashboard/domain"
	"github.com/outboundiq/costwatch/internal/observability"
	obsmiddleware "github.com/outboundiq/costwatch/internal/observability/logger"
	obstracing "github.com/outboundiq/costwatch/internal/observability/tracing"
	usagedomain "github.com/outboundiq/costwatch/internal/usage/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config) *gin.Engine {
	return NewEngine(obsCfg)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	log          *zap.Logger
	clock        clock.Clock
	usagesvc     usagedomain.Service
	activitysvc  activitydomain.Service
	costsSvc     costsdomain.Service
	dashboardSvc dashboarddomain.Service
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	Log          *zap.Logger
	Clock        clock.Clock
	Usagesvc     usagedomain.Service
	Activitysvc  activitydomain.Service
	CostsSvc     costsdomain.Service
	DashboardSvc dashboarddomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		log:          p.Log.Named("http.server"),
		clock:        p.Clock,
		usagesvc:     p.Usagesvc,
		activitysvc:  p.Activitysvc,
		costsSvc:     p.CostsSvc,
		dashboardSvc: p.DashboardSvc,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.POST("/usage", s.RecordUsage)
	api.POST("/activities", s.RecordActivity)

	api.GET("/metrics", s.GetMetrics)
	api.GET("/trends", s.GetTrends)
	api.GET("/usage/report", s.GetUsageReport)
}

// refreshMonth recomputes the month a record landed in and drops the
// cached snapshot so the next dashboard read sees the new data. A failed
// recompute never fails the write that triggered it.
func (s *Server) refreshMonth(ctx context.Context, at time.Time) {
	at = at.UTC()
	if _, err := s.costsSvc.Recompute(ctx, at.Year(), int(at.Month())); err != nil {
		s.log.Warn("recompute after record failed",
			zap.Int("year", at.Year()),
			zap.Int("month", int(at.Month())),
			zap.Error(err),
		)
	}
	s.dashboardSvc.Invalidate()
}
