package service

import (
	"context"
	"sync"
	"time"

	"github.com/outboundiq/costwatch/internal/clock"
	"github.com/outboundiq/costwatch/internal/config"
	costsdomain "github.com/outboundiq/costwatch/internal/costs/domain"
	dashboarddomain "github.com/outboundiq/costwatch/internal/dashboard/domain"
	"github.com/outboundiq/costwatch/internal/format"
	obsmetrics "github.com/outboundiq/costwatch/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type ServiceParam struct {
	fx.In

	Log        *zap.Logger
	Clock      clock.Clock
	Costs      *config.CostConfigHolder
	Aggregator costsdomain.Service
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	clock      clock.Clock
	costs      *config.CostConfigHolder
	aggregator costsdomain.Service
	obsMetrics *obsmetrics.Metrics

	group singleflight.Group

	mu       sync.RWMutex
	snapshot *dashboarddomain.MetricsSnapshot
	gen      uint64
}

func NewService(p ServiceParam) dashboarddomain.Service {
	return &Service{
		log:        p.Log.Named("dashboard.service"),
		clock:      p.Clock,
		costs:      p.Costs,
		aggregator: p.Aggregator,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Snapshot(ctx context.Context, forceRefresh bool) (*dashboarddomain.MetricsSnapshot, error) {
	if !forceRefresh {
		if cached := s.freshSnapshot(); cached != nil {
			if s.obsMetrics != nil {
				s.obsMetrics.RecordSnapshotHit(ctx)
			}
			return cached, nil
		}
	}

	reason := "expired"
	if forceRefresh {
		reason = "forced"
	}

	// Dashboards poll in bursts. Collapse concurrent refreshes into one
	// recomputation and hand everyone the same result. The key includes
	// the reason so a forced refresh never rides along on a lazy flight.
	result, err, _ := s.group.Do("snapshot:"+reason, func() (any, error) {
		return s.refresh(ctx, reason)
	})
	if err != nil {
		return nil, err
	}
	return result.(*dashboarddomain.MetricsSnapshot), nil
}

func (s *Service) Invalidate() {
	s.mu.Lock()
	s.snapshot = nil
	s.gen++
	s.mu.Unlock()
	s.group.Forget("snapshot:expired")
	s.group.Forget("snapshot:forced")
}

func (s *Service) refresh(ctx context.Context, reason string) (*dashboarddomain.MetricsSnapshot, error) {
	s.mu.RLock()
	gen := s.gen
	s.mu.RUnlock()

	now := s.clock.Now().UTC()
	summary, err := s.aggregator.Recompute(ctx, now.Year(), int(now.Month()))
	if err != nil {
		// A persist failure still yields a correct in-memory summary.
		// Serve it; fall back to the stale snapshot only when the
		// recomputation itself failed.
		if summary == nil {
			if stale := s.currentSnapshot(); stale != nil {
				s.log.Warn("serving stale snapshot after refresh failure", zap.Error(err))
				return stale, nil
			}
			return nil, err
		}
		s.log.Warn("snapshot built from unpersisted summary", zap.Error(err))
	}

	cfg := s.costs.Get()
	snapshot := buildSnapshot(*summary, cfg, s.clock.Now().UTC())

	s.mu.Lock()
	// An Invalidate that landed mid-flight means this snapshot may predate
	// a newer write. Hand it to the caller but leave the cache empty so
	// the next read recomputes.
	if s.gen == gen {
		s.snapshot = snapshot
	}
	s.mu.Unlock()

	if s.obsMetrics != nil {
		s.obsMetrics.RecordSnapshotRefresh(ctx, reason)
	}
	return snapshot, nil
}

func (s *Service) freshSnapshot() *dashboarddomain.MetricsSnapshot {
	snapshot := s.currentSnapshot()
	if snapshot == nil {
		return nil
	}
	if s.clock.Now().Sub(snapshot.ComputedAt) >= s.costs.Get().CacheTTL() {
		return nil
	}
	return snapshot
}

func (s *Service) currentSnapshot() *dashboarddomain.MetricsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

func buildSnapshot(summary costsdomain.MonthlySummary, cfg config.CostConfig, computedAt time.Time) *dashboarddomain.MetricsSnapshot {
	// Remaining budget floors at zero; over_budget carries the overrun signal.
	remaining := cfg.CostAlertThreshold - summary.TotalCost
	if remaining < 0 {
		remaining = 0
	}
	return &dashboarddomain.MetricsSnapshot{
		Summary:         summary,
		EfficiencyScore: dashboarddomain.EfficiencyScore(summary, cfg),
		BudgetRemaining: remaining,
		OverBudget:      summary.TotalCost > cfg.CostAlertThreshold,
		Display: dashboarddomain.Display{
			TotalCost:      format.EUR(summary.TotalCost),
			OpenRouterCost: format.EUR(summary.OpenRouterCost),
			CostPerEmail:   format.EURPerUnit(summary.CostPerEmail),
			CostPerMeeting: format.EURPerUnit(summary.CostPerMeeting),
		},
		ComputedAt: computedAt,
	}
}
