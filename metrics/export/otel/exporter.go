package otel

import (
	"context"
	"errors"
	"fmt"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type observedSeries struct {
	id    goSession.MetricID
	attrs metric.ObserveOption
}

type observedFamily struct {
	instrument metric.Int64ObservableCounter
	series     []observedSeries
}

type observedHistogram struct {
	id      goSession.MetricID
	buckets metric.Int64ObservableGauge
	bounds  [8]metric.ObserveOption
	count   metric.Int64ObservableGauge
	sum     metric.Float64ObservableCounter
}

type observedGauge struct {
	def        internaldefs.StateGauge
	instrument metric.Int64ObservableGauge
}

// OTelExporter publishes session metrics through observable instruments.
// Each counter family is one instrument whose series carry the family label
// as an attribute.
type OTelExporter struct {
	source        goSession.MetricsSource
	registration  metric.Registration
	families      []observedFamily
	histograms    []observedHistogram
	gauges        []observedGauge
	auditDropped  metric.Int64ObservableCounter
	auditRejected metric.Int64ObservableCounter
}

// NewOTelExporter registers one callback on meter that reads source on every
// collection. Session gauges are registered when source also exposes its
// session.
func NewOTelExporter(meter metric.Meter, source goSession.MetricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	exporter := &OTelExporter{
		source:     source,
		families:   make([]observedFamily, 0, len(internaldefs.CounterFamilies)),
		histograms: make([]observedHistogram, 0, len(internaldefs.HistogramDefs)),
	}

	var observables []metric.Observable

	for _, fam := range internaldefs.CounterFamilies {
		ins, err := meter.Int64ObservableCounter(fam.Name, metric.WithDescription(fam.Help))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", fam.Name, err)
		}
		f := observedFamily{instrument: ins}
		for _, s := range fam.Series {
			var attrs attribute.Set
			if fam.Label != "" {
				attrs = attribute.NewSet(attribute.String(fam.Label, s.Value))
			}
			f.series = append(f.series, observedSeries{id: s.ID, attrs: metric.WithAttributeSet(attrs)})
		}
		exporter.families = append(exporter.families, f)
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		h := observedHistogram{id: def.ID}

		buckets, err := meter.Int64ObservableGauge(def.Name+"_bucket", metric.WithDescription("Cumulative histogram bucket count."))
		if err != nil {
			return nil, fmt.Errorf("create histogram bucket gauge %s: %w", def.Name, err)
		}
		h.buckets = buckets
		for i, le := range internaldefs.HistogramBounds {
			h.bounds[i] = metric.WithAttributes(attribute.String("le", le))
		}

		countName := def.Name + "_count"
		count, err := meter.Int64ObservableGauge(countName, metric.WithDescription("Histogram total sample count."))
		if err != nil {
			return nil, fmt.Errorf("create histogram count gauge %s: %w", countName, err)
		}
		h.count = count

		sumName := def.Name + "_sum"
		sum, err := meter.Float64ObservableCounter(sumName, metric.WithDescription("Total observed latency."), metric.WithUnit("s"))
		if err != nil {
			return nil, fmt.Errorf("create histogram sum counter %s: %w", sumName, err)
		}
		h.sum = sum

		observables = append(observables, buckets, count, sum)
		exporter.histograms = append(exporter.histograms, h)
	}

	auditDropped, err := meter.Int64ObservableCounter(internaldefs.AuditDroppedName, metric.WithDescription(internaldefs.AuditDroppedHelp))
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	exporter.auditDropped = auditDropped
	observables = append(observables, auditDropped)

	if _, ok := source.(internaldefs.AuditRejecter); ok {
		rejected, err := meter.Int64ObservableCounter(internaldefs.AuditRejectedName, metric.WithDescription(internaldefs.AuditRejectedHelp))
		if err != nil {
			return nil, fmt.Errorf("create audit rejected counter: %w", err)
		}
		exporter.auditRejected = rejected
		observables = append(observables, rejected)
	}

	if _, ok := source.(internaldefs.SessionSource); ok {
		for _, g := range internaldefs.StateGauges {
			ins, err := meter.Int64ObservableGauge(g.Name, metric.WithDescription(g.Help))
			if err != nil {
				return nil, fmt.Errorf("create session gauge %s: %w", g.Name, err)
			}
			exporter.gauges = append(exporter.gauges, observedGauge{def: g, instrument: ins})
			observables = append(observables, ins)
		}
	}

	registration, err := meter.RegisterCallback(exporter.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}

	exporter.registration = registration
	return exporter, nil
}

func (e *OTelExporter) observe(_ context.Context, observer metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for _, f := range e.families {
		for _, s := range f.series {
			observer.ObserveInt64(f.instrument, int64(snapshot.Counters[s.id]), s.attrs)
		}
	}

	for _, h := range e.histograms {
		nonCumulative := internaldefs.NormalizeBuckets(snapshot.Histograms[h.id])
		cumulative := internaldefs.CumulativeBuckets(nonCumulative)
		for i := 0; i < len(cumulative); i++ {
			observer.ObserveInt64(h.buckets, int64(cumulative[i]), h.bounds[i])
		}
		observer.ObserveInt64(h.count, int64(cumulative[len(cumulative)-1]))
		observer.ObserveFloat64(h.sum, snapshot.HistogramSums[h.id].Seconds())
	}

	observer.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	if r, ok := e.source.(internaldefs.AuditRejecter); ok && e.auditRejected != nil {
		observer.ObserveInt64(e.auditRejected, int64(r.AuditRejected()))
	}

	if s, ok := e.source.(internaldefs.SessionSource); ok && len(e.gauges) > 0 {
		st := s.Session()
		mode := metric.WithAttributes(attribute.String(internaldefs.ModeLabel, s.Mode().String()))
		for _, g := range e.gauges {
			observer.ObserveInt64(g.instrument, internaldefs.BoolValue(g.def.Value(st)), mode)
		}
	}
	return nil
}

// Close unregisters the callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
