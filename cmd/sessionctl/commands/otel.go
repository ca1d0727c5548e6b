package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/metrics/export/otel"
)

// logExporter writes each collected data point as one structured log line.
type logExporter struct {
	logger *slog.Logger
}

var _ sdkmetric.Exporter = (*logExporter)(nil)

func (e *logExporter) Temporality(k sdkmetric.InstrumentKind) metricdata.Temporality {
	return sdkmetric.DefaultTemporalitySelector(k)
}

func (e *logExporter) Aggregation(k sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return sdkmetric.DefaultAggregationSelector(k)
}

func (e *logExporter) Export(ctx context.Context, rm *metricdata.ResourceMetrics) error {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				logPoints(ctx, e.logger, m.Name, data.DataPoints)
			case metricdata.Gauge[int64]:
				logPoints(ctx, e.logger, m.Name, data.DataPoints)
			case metricdata.Sum[float64]:
				logPoints(ctx, e.logger, m.Name, data.DataPoints)
			}
		}
	}
	return nil
}

func (e *logExporter) ForceFlush(context.Context) error { return nil }

func (e *logExporter) Shutdown(context.Context) error { return nil }

func logPoints[N int64 | float64](ctx context.Context, logger *slog.Logger, name string, points []metricdata.DataPoint[N]) {
	for _, p := range points {
		attrs := make([]slog.Attr, 0, 2+p.Attributes.Len())
		attrs = append(attrs, slog.String("metric", name), slog.Any("value", p.Value))
		for _, kv := range p.Attributes.ToSlice() {
			attrs = append(attrs, slog.String(string(kv.Key), kv.Value.Emit()))
		}
		logger.LogAttrs(ctx, slog.LevelInfo, "otel metric", attrs...)
	}
}

// startOTelExport publishes auth's metrics through an OpenTelemetry meter
// provider that logs a collection every interval. The returned func flushes
// one final collection and stops the provider.
func startOTelExport(auth goSession.Authenticator, logger *slog.Logger, interval time.Duration) (func(context.Context) error, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("%w: --otel-interval must be positive", goSession.ErrInvalidConfig)
	}

	reader := sdkmetric.NewPeriodicReader(&logExporter{logger: logger}, sdkmetric.WithInterval(interval))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	exporter, err := otel.NewOTelExporter(provider.Meter("github.com/MrEthical07/goSession"), auth)
	if err != nil {
		_ = provider.Shutdown(context.Background())
		return nil, err
	}

	return func(ctx context.Context) error {
		// Shutdown collects once more before the callback is unregistered.
		serr := provider.Shutdown(ctx)
		return errors.Join(serr, exporter.Close())
	}, nil
}
