// Package observe provides the daemon's metrics: OpenTelemetry instruments
// for the control loop and a Prometheus bridge so they can be scraped via
// /metrics.
//
// A package-level default [Metrics] instance ([DefaultMetrics]) is provided
// for convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jmylchreest/autovol/internal/control"
)

// meterName is the instrumentation scope name used for all autovol metrics.
const meterName = "github.com/jmylchreest/autovol"

// Tick outcomes reported on autovol.ticks.
const (
	OutcomeOK        = "ok"
	OutcomeEmpty     = "empty"
	OutcomeReadError = "read_error"
	OutcomeRecovered = "recovered"
)

// Metrics holds the metric instruments for the control loop.
type Metrics struct {
	// Ticks counts control ticks. Use with attribute:
	//   attribute.String("outcome", ...)
	Ticks metric.Int64Counter

	// Adjustments counts applied volume steps. Use with attribute:
	//   attribute.String("direction", "up"|"down")
	Adjustments metric.Int64Counter

	// SinkErrors counts failed volume reads or writes.
	SinkErrors metric.Int64Counter

	// Loudness records the score of every sampled block.
	Loudness metric.Float64Histogram

	VolumeCurrent metric.Int64Gauge
	VolumeTarget  metric.Int64Gauge
}

// loudnessBuckets are score boundaries in dB above the 16-bit noise floor.
var loudnessBuckets = []float64{
	10, 20, 30, 40, 50, 55, 60, 65, 70, 80, 90,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Ticks, err = m.Int64Counter("autovol.ticks",
		metric.WithDescription("Total control ticks by outcome."),
	); err != nil {
		return nil, err
	}
	if met.Adjustments, err = m.Int64Counter("autovol.adjustments",
		metric.WithDescription("Total applied volume steps by direction."),
	); err != nil {
		return nil, err
	}
	if met.SinkErrors, err = m.Int64Counter("autovol.sink.errors",
		metric.WithDescription("Total failed volume reads and writes."),
	); err != nil {
		return nil, err
	}

	if met.Loudness, err = m.Float64Histogram("autovol.loudness",
		metric.WithDescription("Loudness score of sampled blocks."),
		metric.WithUnit("dB"),
		metric.WithExplicitBucketBoundaries(loudnessBuckets...),
	); err != nil {
		return nil, err
	}

	if met.VolumeCurrent, err = m.Int64Gauge("autovol.volume.current",
		metric.WithDescription("Volume level after the last tick."),
	); err != nil {
		return nil, err
	}
	if met.VolumeTarget, err = m.Int64Gauge("autovol.volume.target",
		metric.WithDescription("Volume level the mapper asked for on the last tick."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation fails.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// Outcome classifies a tick result.
func Outcome(r control.TickResult) string {
	switch {
	case r.Panic != nil:
		return OutcomeRecovered
	case r.ReadErr != nil:
		return OutcomeReadError
	case r.Samples == 0:
		return OutcomeEmpty
	default:
		return OutcomeOK
	}
}

// RecordTick records every instrument for one tick result.
func (m *Metrics) RecordTick(ctx context.Context, r control.TickResult) {
	outcome := Outcome(r)
	m.Ticks.Add(ctx, 1, metric.WithAttributes(Attr("outcome", outcome)))

	if outcome == OutcomeOK {
		m.Loudness.Record(ctx, r.Score)
	}
	if r.SinkErr != nil {
		m.SinkErrors.Add(ctx, 1)
	}
	if r.Applied {
		direction := "up"
		if r.Level < r.Current {
			direction = "down"
		}
		m.Adjustments.Add(ctx, 1, metric.WithAttributes(Attr("direction", direction)))
	}

	m.VolumeCurrent.Record(ctx, int64(r.Level))
	m.VolumeTarget.Record(ctx, int64(r.Target))
}
