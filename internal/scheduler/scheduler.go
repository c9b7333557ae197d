// Package scheduler keeps the dashboard snapshot warm by refreshing it on
// a fixed interval, so the first request after a quiet period does not pay
// the recompute cost.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/outboundiq/costwatch/internal/clock"
	"github.com/outboundiq/costwatch/internal/config"
	dashboarddomain "github.com/outboundiq/costwatch/internal/dashboard/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("scheduler: invalid configuration")

type Params struct {
	fx.In

	Log          *zap.Logger
	Clock        clock.Clock
	Costs        *config.CostConfigHolder
	DashboardSvc dashboarddomain.Service
}

type Scheduler struct {
	log          *zap.Logger
	clock        clock.Clock
	costs        *config.CostConfigHolder
	dashboardSvc dashboarddomain.Service
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.Costs == nil || p.DashboardSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:          p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		clock:        p.Clock,
		costs:        p.Costs,
		dashboardSvc: p.DashboardSvc,
	}, nil
}

// RunForever refreshes the snapshot every cache TTL until ctx is cancelled.
// The interval is re-read each tick so config reloads take effect without
// a restart.
func (s *Scheduler) RunForever(ctx context.Context) {
	for {
		interval := s.costs.Get().CacheTTL()
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-time.After(interval):
			s.refresh(ctx)
		}
	}
}

func (s *Scheduler) refresh(ctx context.Context) {
	refreshCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	start := s.clock.Now()
	if _, err := s.dashboardSvc.Snapshot(refreshCtx, true); err != nil {
		s.log.Warn("scheduled snapshot refresh failed", zap.Error(err))
		return
	}
	s.log.Debug("snapshot refreshed",
		zap.Int64("duration_ms", s.clock.Now().Sub(start).Milliseconds()),
	)
}
