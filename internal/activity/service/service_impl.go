package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	activitydomain "github.com/outboundiq/costwatch/internal/activity/domain"
	"github.com/outboundiq/costwatch/internal/clock"
	obsmetrics "github.com/outboundiq/costwatch/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	obsMetrics *obsmetrics.Metrics
}

func NewService(p ServiceParam) activitydomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("activity.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Record(ctx context.Context, req activitydomain.RecordActivityRequest) (*activitydomain.ActivityRecord, error) {
	activityType := activitydomain.Type(strings.ToLower(strings.TrimSpace(req.Type)))
	if !activityType.Valid() {
		return nil, activitydomain.ErrInvalidActivityType
	}

	now := s.clock.Now()
	occurredAt := req.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = now
	}

	record := &activitydomain.ActivityRecord{
		ID:         s.genID.Generate(),
		Type:       activityType,
		CampaignID: normalizeOptionalID(req.CampaignID),
		OccurredAt: occurredAt.UTC(),
		CreatedAt:  now,
	}
	if req.Metadata != nil {
		record.Metadata = datatypes.JSONMap(req.Metadata)
	}

	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		s.log.Error("failed to persist activity record",
			zap.String("type", string(activityType)),
			zap.Error(err),
		)
		return nil, err
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordActivity(ctx, string(activityType))
	}

	return record, nil
}

func (s *Service) CountByType(ctx context.Context, from, to time.Time) (map[activitydomain.Type]int64, error) {
	type countRow struct {
		Type  activitydomain.Type `gorm:"column:type"`
		Count int64               `gorm:"column:count"`
	}

	var rows []countRow
	err := s.db.WithContext(ctx).
		Model(&activitydomain.ActivityRecord{}).
		Select("type, COUNT(1) AS count").
		Where("occurred_at >= ? AND occurred_at < ?", from.UTC(), to.UTC()).
		Group("type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := map[activitydomain.Type]int64{
		activitydomain.TypeEmailSent:     0,
		activitydomain.TypeMeetingBooked: 0,
	}
	for _, row := range rows {
		counts[row.Type] = row.Count
	}
	return counts, nil
}

func normalizeOptionalID(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
