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

// Metrics exposes the engine-level instruments.
type Metrics struct {
	dealsSplit             metric.Int64Counter
	splitsWritten          metric.Int64Counter
	unclaimedPercent       metric.Int64Counter
	traversalTruncated     metric.Int64Counter
	cyclesDetected         metric.Int64Counter
	reconciliationFailures metric.Int64Counter
	rateLimitDenied        metric.Int64Counter
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

// New configures the engine metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "everguard"
	}
	meter := provider.Meter(name)

	dealsSplit, err := meter.Int64Counter("everguard_deals_split_total")
	if err != nil {
		return nil, err
	}
	splitsWritten, err := meter.Int64Counter("everguard_commission_splits_written_total")
	if err != nil {
		return nil, err
	}
	unclaimedPercent, err := meter.Int64Counter("everguard_unclaimed_percent_total")
	if err != nil {
		return nil, err
	}
	traversalTruncated, err := meter.Int64Counter("everguard_traversal_truncated_total")
	if err != nil {
		return nil, err
	}
	cyclesDetected, err := meter.Int64Counter("everguard_hierarchy_cycles_detected_total")
	if err != nil {
		return nil, err
	}
	reconciliationFailures, err := meter.Int64Counter("everguard_split_reconciliation_failures_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("everguard_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		dealsSplit:             dealsSplit,
		splitsWritten:          splitsWritten,
		unclaimedPercent:       unclaimedPercent,
		traversalTruncated:     traversalTruncated,
		cyclesDetected:         cyclesDetected,
		reconciliationFailures: reconciliationFailures,
		rateLimitDenied:        rateLimitDenied,
	}, nil
}

// RecordDealSplit increments split computations per insurance type and policy.
func (m *Metrics) RecordDealSplit(ctx context.Context, insuranceType, policy string, rows int) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("insurance_type", strings.TrimSpace(insuranceType)),
		attribute.String("policy", strings.TrimSpace(policy)),
	)
	m.dealsSplit.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.splitsWritten.Add(ctx, int64(rows), metric.WithAttributes(attrs...))
}

// RecordUnclaimedPercent accumulates forfeited pool percent.
func (m *Metrics) RecordUnclaimedPercent(ctx context.Context, percent int) {
	if m == nil || percent <= 0 {
		return
	}
	m.unclaimedPercent.Add(ctx, int64(percent))
}

// RecordTraversalTruncated increments depth-ceiling truncations.
func (m *Metrics) RecordTraversalTruncated(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("operation", strings.TrimSpace(operation)))
	m.traversalTruncated.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCycleDetected increments hierarchy cycle sightings.
func (m *Metrics) RecordCycleDetected(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("operation", strings.TrimSpace(operation)))
	m.cyclesDetected.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordReconciliationFailure increments split reconciliation failures.
func (m *Metrics) RecordReconciliationFailure(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("reason", strings.TrimSpace(reason)))
	m.reconciliationFailures.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitDenied increments deal ingest rate limit denials.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
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
	"insurance_type": {},
	"policy":         {},
	"operation":      {},
	"endpoint":       {},
	"status_code":    {},
	"reason":         {},
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
