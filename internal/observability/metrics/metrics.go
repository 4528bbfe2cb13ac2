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
	versionsAdded  metric.Int64Counter
	versionsClosed metric.Int64Counter
	recordsCreated metric.Int64Counter
	recordsDeleted metric.Int64Counter
	reports        metric.Int64Counter
	exports        metric.Int64Counter
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

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "shelterbill"
	}
	meter := provider.Meter(name)

	versionsAdded, err := meter.Int64Counter("shelterbill_action_versions_added_total")
	if err != nil {
		return nil, err
	}
	versionsClosed, err := meter.Int64Counter("shelterbill_action_versions_closed_total")
	if err != nil {
		return nil, err
	}
	recordsCreated, err := meter.Int64Counter("shelterbill_service_records_created_total")
	if err != nil {
		return nil, err
	}
	recordsDeleted, err := meter.Int64Counter("shelterbill_service_records_deleted_total")
	if err != nil {
		return nil, err
	}
	reports, err := meter.Int64Counter("shelterbill_reports_generated_total")
	if err != nil {
		return nil, err
	}
	exports, err := meter.Int64Counter("shelterbill_reports_exported_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		versionsAdded:  versionsAdded,
		versionsClosed: versionsClosed,
		recordsCreated: recordsCreated,
		recordsDeleted: recordsDeleted,
		reports:        reports,
		exports:        exports,
	}, nil
}

// NewNoop returns instruments backed by the noop provider.
func NewNoop() *Metrics {
	m, _ := New(Config{}, noop.NewMeterProvider())
	return m
}

func (m *Metrics) RecordVersionAdded(ctx context.Context, actionCode string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("action_code", strings.TrimSpace(actionCode)))
	m.versionsAdded.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordVersionClosed(ctx context.Context, actionCode string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("action_code", strings.TrimSpace(actionCode)))
	m.versionsClosed.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordServiceRecord counts a stored service record by action and currency.
func (m *Metrics) RecordServiceRecord(ctx context.Context, actionCode, currency string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("action_code", strings.TrimSpace(actionCode)),
		attribute.String("currency", strings.TrimSpace(currency)),
	)
	m.recordsCreated.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordServiceRecordDeleted(ctx context.Context) {
	if m == nil {
		return
	}
	m.recordsDeleted.Add(ctx, 1)
}

func (m *Metrics) RecordReport(ctx context.Context, scope, granularity string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("scope", strings.TrimSpace(scope)),
		attribute.String("granularity", strings.TrimSpace(granularity)),
	)
	m.reports.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordExport(ctx context.Context, format string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("format", strings.TrimSpace(format)))
	m.exports.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
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
	"action_code": {},
	"currency":    {},
	"scope":       {},
	"granularity": {},
	"format":      {},
	"status_code": {},
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
