package service

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/outboundiq/costwatch/internal/clock"
	obsmetrics "github.com/outboundiq/costwatch/internal/observability/metrics"
	usagedomain "github.com/outboundiq/costwatch/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
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

func NewService(p ServiceParam) usagedomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("usage.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Record(ctx context.Context, req usagedomain.RecordUsageRequest) (*usagedomain.UsageRecord, error) {
	generationID := strings.TrimSpace(req.GenerationID)
	if generationID == "" {
		return nil, usagedomain.ErrInvalidGenerationID
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		return nil, usagedomain.ErrInvalidModel
	}
	purpose, err := resolvePurpose(req.Purpose)
	if err != nil {
		return nil, err
	}
	if err := validateMeteredValues(req); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	record := &usagedomain.UsageRecord{
		ID:               s.genID.Generate(),
		GenerationID:     generationID,
		CampaignID:       normalizeOptionalID(req.CampaignID),
		EmailID:          normalizeOptionalID(req.EmailID),
		Model:            model,
		PromptTokens:     req.PromptTokens,
		CompletionTokens: req.CompletionTokens,
		TotalTokens:      req.PromptTokens + req.CompletionTokens,
		CostUSD:          req.CostUSD,
		Purpose:          purpose,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if req.Metadata != nil {
		record.Metadata = datatypes.JSONMap(req.Metadata)
	}

	// A provider may report a corrected cost for a generation it already
	// billed. The conflict clause turns that retry into an update so the
	// monthly total only ever reflects the latest value.
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "generation_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"model",
			"prompt_tokens",
			"completion_tokens",
			"total_tokens",
			"cost_usd",
			"updated_at",
		}),
	}).Create(record).Error
	if err != nil {
		s.log.Error("failed to persist usage record",
			zap.String("generation_id", generationID),
			zap.Error(err),
		)
		return nil, err
	}

	stored, err := s.findByGenerationID(ctx, generationID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, gorm.ErrRecordNotFound
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordUsage(ctx, model, string(purpose))
	}

	return stored, nil
}

func (s *Service) SumCostUSD(ctx context.Context, from, to time.Time) (float64, error) {
	var total float64
	err := s.db.WithContext(ctx).
		Model(&usagedomain.UsageRecord{}).
		Where("created_at >= ? AND created_at < ?", from.UTC(), to.UTC()).
		Select("COALESCE(SUM(cost_usd), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Service) Report(ctx context.Context, start, end time.Time) (*usagedomain.Report, error) {
	if start.IsZero() || end.IsZero() || start.After(end) {
		return nil, usagedomain.ErrInvalidDateRange
	}

	var records []usagedomain.UsageRecord
	err := s.db.WithContext(ctx).
		Where("created_at >= ? AND created_at <= ?", start.UTC(), end.UTC()).
		Order("created_at ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	report := &usagedomain.Report{
		StartDate: start.UTC(),
		EndDate:   end.UTC(),
	}

	days := map[string]*usagedomain.ReportBucket{}
	models := map[string]*usagedomain.ReportBucket{}
	purposes := map[string]*usagedomain.ReportBucket{}

	for i := range records {
		record := &records[i]
		addToBucket(&report.Totals, record)
		addToBucket(bucketFor(days, record.CreatedAt.UTC().Format("2006-01-02")), record)
		addToBucket(bucketFor(models, record.Model), record)
		addToBucket(bucketFor(purposes, string(record.Purpose)), record)
	}
	report.Totals.Key = "total"

	report.ByDay = sortBucketsByKey(days)
	report.ByModel = sortBucketsByCost(models)
	report.ByPurpose = sortBucketsByCost(purposes)

	return report, nil
}

func (s *Service) findByGenerationID(ctx context.Context, generationID string) (*usagedomain.UsageRecord, error) {
	var record usagedomain.UsageRecord
	err := s.db.WithContext(ctx).
		Where("generation_id = ?", generationID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func resolvePurpose(raw string) (usagedomain.Purpose, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return usagedomain.PurposeOther, nil
	}
	purpose := usagedomain.Purpose(value)
	if !purpose.Valid() {
		return "", usagedomain.ErrInvalidPurpose
	}
	return purpose, nil
}

func validateMeteredValues(req usagedomain.RecordUsageRequest) error {
	if math.IsNaN(req.CostUSD) || math.IsInf(req.CostUSD, 0) || req.CostUSD < 0 {
		return usagedomain.ErrInvalidCost
	}
	if req.PromptTokens < 0 || req.CompletionTokens < 0 {
		return usagedomain.ErrInvalidTokens
	}
	return nil
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

func bucketFor(buckets map[string]*usagedomain.ReportBucket, key string) *usagedomain.ReportBucket {
	if bucket, ok := buckets[key]; ok {
		return bucket
	}
	bucket := &usagedomain.ReportBucket{Key: key}
	buckets[key] = bucket
	return bucket
}

func addToBucket(bucket *usagedomain.ReportBucket, record *usagedomain.UsageRecord) {
	bucket.Calls++
	bucket.PromptTokens += record.PromptTokens
	bucket.CompletionTokens += record.CompletionTokens
	bucket.TotalTokens += record.TotalTokens
	bucket.CostUSD += record.CostUSD
}

func sortBucketsByKey(buckets map[string]*usagedomain.ReportBucket) []usagedomain.ReportBucket {
	out := collectBuckets(buckets)
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func sortBucketsByCost(buckets map[string]*usagedomain.ReportBucket) []usagedomain.ReportBucket {
	out := collectBuckets(buckets)
	sort.Slice(out, func(i, j int) bool {
		if out[i].CostUSD != out[j].CostUSD {
			return out[i].CostUSD > out[j].CostUSD
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func collectBuckets(buckets map[string]*usagedomain.ReportBucket) []usagedomain.ReportBucket {
	out := make([]usagedomain.ReportBucket, 0, len(buckets))
	for _, bucket := range buckets {
		out = append(out, *bucket)
	}
	return out
}
