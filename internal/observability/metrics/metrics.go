package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	usageRecorded     metric.Int64Counter
	activityRecorded  metric.Int64Counter
	snapshotRefreshes metric.Int64Counter
	snapshotHits      metric.Int64Counter
	costAlerts        metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "costwatch"
	}
	meter := provider.Meter(name)

	usageRecorded, err := meter.Int64Counter("costwatch_usage_recorded_total")
	if err != nil {
		return nil, err
	}
	activityRecorded, err := meter.Int64Counter("costwatch_activities_recorded_total")
	if err != nil {
		return nil, err
	}
	snapshotRefreshes, err := meter.Int64Counter("costwatch_snapshot_refreshes_total")
	if err != nil {
		return nil, err
	}
	snapshotHits, err := meter.Int64Counter("costwatch_snapshot_cache_hits_total")
	if err != nil {
		return nil, err
	}
	costAlerts, err := meter.Int64Counter("costwatch_cost_alerts_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		usageRecorded:     usageRecorded,
		activityRecorded:  activityRecorded,
		snapshotRefreshes: snapshotRefreshes,
		snapshotHits:      snapshotHits,
		costAlerts:        costAlerts,
	}, nil
}

// RecordUsage increments usage record counts per model and purpose.
func (m *Metrics) RecordUsage(ctx context.Context, model, purpose string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("model", strings.TrimSpace(model)),
		attribute.String("purpose", strings.TrimSpace(purpose)),
	)
	m.usageRecorded.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordActivity increments activity record counts per type.
func (m *Metrics) RecordActivity(ctx context.Context, activityType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("activity_type", strings.TrimSpace(activityType)))
	m.activityRecorded.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordSnapshotRefresh increments snapshot recompute counts.
func (m *Metrics) RecordSnapshotRefresh(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("reason", strings.TrimSpace(reason)))
	m.snapshotRefreshes.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordSnapshotHit increments served-from-cache counts.
func (m *Metrics) RecordSnapshotHit(ctx context.Context) {
	if m == nil {
		return
	}
	m.snapshotHits.Add(ctx, 1)
}

// RecordCostAlert increments budget alert counts.
func (m *Metrics) RecordCostAlert(ctx context.Context) {
	if m == nil {
		return
	}
	m.costAlerts.Add(ctx, 1)
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"model":         {},
	"purpose":       {},
	"activity_type": {},
	"reason":        {},
	"status_code":   {},
	"endpoint":      {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
