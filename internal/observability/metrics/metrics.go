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
	checkouts   metric.Int64Counter
	webhooks    metric.Int64Counter
	settlements metric.Int64Counter
	commissions metric.Int64Counter
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
		name = "kadkita"
	}
	meter := provider.Meter(name)

	checkouts, err := meter.Int64Counter("kadkita_checkouts_total")
	if err != nil {
		return nil, err
	}
	webhooks, err := meter.Int64Counter("kadkita_payment_webhooks_total")
	if err != nil {
		return nil, err
	}
	settlements, err := meter.Int64Counter("kadkita_order_settlements_total")
	if err != nil {
		return nil, err
	}
	commissions, err := meter.Int64Counter("kadkita_affiliate_commissions_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		checkouts:   checkouts,
		webhooks:    webhooks,
		settlements: settlements,
		commissions: commissions,
	}, nil
}

// RecordCheckout increments checkout session counts.
func (m *Metrics) RecordCheckout(ctx context.Context, planID string, free bool) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("plan_id", strings.TrimSpace(planID)),
		attribute.Bool("free", free),
	)
	m.checkouts.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordWebhook increments webhook delivery counts by outcome.
func (m *Metrics) RecordWebhook(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("outcome", strings.TrimSpace(outcome)))
	m.webhooks.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordSettlement increments settled order counts.
func (m *Metrics) RecordSettlement(ctx context.Context, paymentMethod string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("payment_method", strings.TrimSpace(paymentMethod)))
	m.settlements.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCommission increments affiliate commission counts.
func (m *Metrics) RecordCommission(ctx context.Context) {
	if m == nil {
		return
	}
	m.commissions.Add(ctx, 1)
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
	"plan_id":        {},
	"free":           {},
	"outcome":        {},
	"payment_method": {},
	"status_code":    {},
	"endpoint":       {},
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
