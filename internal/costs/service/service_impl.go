package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	activitydomain "github.com/outboundiq/costwatch/internal/activity/domain"
	"github.com/outboundiq/costwatch/internal/clock"
	"github.com/outboundiq/costwatch/internal/config"
	costsdomain "github.com/outboundiq/costwatch/internal/costs/domain"
	"github.com/outboundiq/costwatch/internal/currency"
	"github.com/outboundiq/costwatch/internal/format"
	"github.com/outboundiq/costwatch/internal/lock"
	obsmetrics "github.com/outboundiq/costwatch/internal/observability/metrics"
	"github.com/outboundiq/costwatch/internal/providers/slack"
	usagedomain "github.com/outboundiq/costwatch/internal/usage/domain"
	"github.com/outboundiq/costwatch/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ServiceParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Locker     lock.Locker
	Costs      *config.CostConfigHolder
	Converter  *currency.Converter
	Usage      usagedomain.Service
	Activity   activitydomain.Service
	Slack      slack.Provider      `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	locker     lock.Locker
	costs      *config.CostConfigHolder
	converter  *currency.Converter
	usage      usagedomain.Service
	activity   activitydomain.Service
	slack      slack.Provider
	obsMetrics *obsmetrics.Metrics

	alertMu sync.Mutex
	alerted map[string]bool
}

func NewService(p ServiceParam) costsdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("costs.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		locker:     p.Locker,
		costs:      p.Costs,
		converter:  p.Converter,
		usage:      p.Usage,
		activity:   p.Activity,
		slack:      p.Slack,
		obsMetrics: p.ObsMetrics,
		alerted:    map[string]bool{},
	}
}

func (s *Service) GetOrCreate(ctx context.Context, year, month int) (*costsdomain.MonthlySummary, error) {
	if err := validateMonth(year, month); err != nil {
		return nil, err
	}

	summary, err := s.findByMonth(ctx, year, month)
	if err != nil {
		return nil, err
	}
	if summary != nil {
		return summary, nil
	}

	cfg := s.costs.Get()
	now := s.clock.Now()
	seeded := s.seedSummary(cfg, year, month, now)

	// Two writers can race to create the same month. DoNothing plus a
	// re-fetch makes the loser adopt the winner's row.
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "year"}, {Name: "month"}},
		DoNothing: true,
	}).Create(seeded).Error
	if err != nil && !db.IsDuplicateKeyErr(err) {
		s.log.Error("failed to create monthly summary",
			zap.Int("year", year),
			zap.Int("month", month),
			zap.Error(err),
		)
		return nil, err
	}

	summary, err = s.findByMonth(ctx, year, month)
	if err != nil {
		return nil, err
	}
	if summary == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return summary, nil
}

func (s *Service) Recompute(ctx context.Context, year, month int) (*costsdomain.MonthlySummary, error) {
	if err := validateMonth(year, month); err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, monthLockKey(year, month))
	if err != nil {
		return nil, err
	}
	defer release()

	summary, err := s.GetOrCreate(ctx, year, month)
	if err != nil {
		return nil, err
	}

	from := summary.PeriodStart()
	to := summary.PeriodEnd()

	usageUSD, err := s.usage.SumCostUSD(ctx, from, to)
	if err != nil {
		return nil, err
	}
	counts, err := s.activity.CountByType(ctx, from, to)
	if err != nil {
		return nil, err
	}

	cfg := s.costs.Get()
	summary.InstantlyCost = cfg.InstantlyMonthlyCost
	summary.GoogleWorkspaceCost = cfg.GoogleWorkspaceMonthlyCost
	summary.OpenRouterCost = s.converter.USDToEUR(usageUSD)
	summary.TotalCost = summary.InstantlyCost + summary.GoogleWorkspaceCost + summary.OpenRouterCost
	summary.EmailsSent = counts[activitydomain.TypeEmailSent]
	summary.MeetingsBooked = counts[activitydomain.TypeMeetingBooked]
	summary.CostPerEmail = safeDivide(summary.TotalCost, summary.EmailsSent)
	summary.CostPerMeeting = safeDivide(summary.TotalCost, summary.MeetingsBooked)
	summary.ExchangeRate = s.converter.Rate()
	summary.UpdatedAt = s.clock.Now()

	if err := s.db.WithContext(ctx).Save(summary).Error; err != nil {
		s.log.Error("failed to persist monthly summary",
			zap.Int("year", year),
			zap.Int("month", month),
			zap.Error(err),
		)
		// The computation itself is sound. Return it so callers can serve
		// fresh numbers even when the write behind them failed.
		return summary, err
	}

	s.maybeAlert(ctx, summary, cfg)

	return summary, nil
}

func (s *Service) Trends(ctx context.Context, months int) ([]costsdomain.MonthlySummary, error) {
	if months < costsdomain.TrendsMinMonths || months > costsdomain.TrendsMaxMonths {
		return nil, costsdomain.ErrInvalidRange
	}

	now := s.clock.Now().UTC()
	oldest := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(months - 1), 0)

	var stored []costsdomain.MonthlySummary
	err := s.db.WithContext(ctx).
		Where("year > ? OR (year = ? AND month >= ?)", oldest.Year(), oldest.Year(), int(oldest.Month())).
		Where("year < ? OR (year = ? AND month <= ?)", now.Year(), now.Year(), int(now.Month())).
		Order("year ASC, month ASC").
		Find(&stored).Error
	if err != nil {
		return nil, err
	}

	byMonth := make(map[string]costsdomain.MonthlySummary, len(stored))
	for _, summary := range stored {
		byMonth[monthKey(summary.Year, summary.Month)] = summary
	}

	cfg := s.costs.Get()
	out := make([]costsdomain.MonthlySummary, 0, months)
	for i := 0; i < months; i++ {
		period := oldest.AddDate(0, i, 0)
		if summary, ok := byMonth[monthKey(period.Year(), int(period.Month()))]; ok {
			out = append(out, summary)
			continue
		}
		// Months with no recorded data still render on the chart with
		// today's fixed subscription costs. Synthesized rows are never
		// persisted.
		out = append(out, *s.seedSummary(cfg, period.Year(), int(period.Month()), now))
	}
	return out, nil
}

// seedSummary builds a summary with fixed costs only: no variable spend,
// no activity, unit metrics zeroed by the division guard.
func (s *Service) seedSummary(cfg config.CostConfig, year, month int, now time.Time) *costsdomain.MonthlySummary {
	return &costsdomain.MonthlySummary{
		ID:                  s.genID.Generate(),
		Year:                year,
		Month:               month,
		InstantlyCost:       cfg.InstantlyMonthlyCost,
		GoogleWorkspaceCost: cfg.GoogleWorkspaceMonthlyCost,
		OpenRouterCost:      0,
		TotalCost:           cfg.InstantlyMonthlyCost + cfg.GoogleWorkspaceMonthlyCost,
		ExchangeRate:        cfg.USDToEURRate,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

func (s *Service) maybeAlert(ctx context.Context, summary *costsdomain.MonthlySummary, cfg config.CostConfig) {
	if s.slack == nil || cfg.CostAlertThreshold <= 0 || summary.TotalCost <= cfg.CostAlertThreshold {
		return
	}

	key := monthKey(summary.Year, summary.Month)
	s.alertMu.Lock()
	already := s.alerted[key]
	s.alerted[key] = true
	s.alertMu.Unlock()
	if already {
		return
	}

	text := fmt.Sprintf(":rotating_light: %s costs hit %s, over the %s budget (emails %d, meetings %d)",
		key,
		format.EUR(summary.TotalCost),
		format.EUR(cfg.CostAlertThreshold),
		summary.EmailsSent,
		summary.MeetingsBooked,
	)
	if err := s.slack.Notify(ctx, text); err != nil {
		s.log.Warn("failed to deliver cost alert",
			zap.String("month", key),
			zap.Error(err),
		)
		// Let a later recompute retry delivery.
		s.alertMu.Lock()
		delete(s.alerted, key)
		s.alertMu.Unlock()
		return
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordCostAlert(ctx)
	}
	s.log.Info("cost alert delivered",
		zap.String("month", key),
		zap.Float64("total_cost", summary.TotalCost),
	)
}

func (s *Service) findByMonth(ctx context.Context, year, month int) (*costsdomain.MonthlySummary, error) {
	var summary costsdomain.MonthlySummary
	err := s.db.WithContext(ctx).
		Where("year = ? AND month = ?", year, month).
		First(&summary).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &summary, nil
}

// safeDivide returns 0 for a zero denominator so empty months do not blow
// up the dashboard.
func safeDivide(total float64, count int64) float64 {
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

func validateMonth(year, month int) error {
	if month < 1 || month > 12 || year < 2000 || year > 9999 {
		return costsdomain.ErrInvalidMonth
	}
	return nil
}

func monthKey(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

func monthLockKey(year, month int) string {
	return "costwatch:recompute:" + monthKey(year, month)
}
