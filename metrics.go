package hxdash

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/pthm/hxdash"

var (
	tracer = otel.Tracer(instrumentationName)
	meter  = otel.Meter(instrumentationName)
)

// Registrar metrics. They are no-ops until an OpenTelemetry SDK is installed.
var (
	registrarHits    metric.Int64Counter
	registrarMisses  metric.Int64Counter
	registrarCompute metric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the registrar instruments. Safe to call multiple
// times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		registrarHits, err = meter.Int64Counter(
			"hxdash_registrar_hits_total",
			metric.WithDescription("Dependency lookups served from the cache"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		registrarMisses, err = meter.Int64Counter(
			"hxdash_registrar_misses_total",
			metric.WithDescription("Dependency lookups that invoked a model accessor"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		registrarCompute, err = meter.Float64Histogram(
			"hxdash_registrar_compute_seconds",
			metric.WithDescription("Time spent computing a dependency"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
		}
	})
	return metricsErr
}

func recordHit(ctx context.Context, dep string) {
	if initMetrics() != nil {
		return
	}
	registrarHits.Add(ctx, 1, metric.WithAttributes(attribute.String("dependency", dep)))
}

func recordMiss(ctx context.Context, dep string, took time.Duration) {
	if initMetrics() != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("dependency", dep))
	registrarMisses.Add(ctx, 1, attrs)
	registrarCompute.Record(ctx, took.Seconds(), attrs)
}

// Live-mode callback counters, exposed on /metrics by the CLI.
var (
	callbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hxdash_callbacks_total",
		Help: "Handler invocations by outcome (update, noop, error).",
	}, []string{"outcome"})

	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hxdash_sessions_active",
		Help: "Live browser sessions held in memory.",
	})
)

const (
	outcomeUpdate = "update"
	outcomeNoop   = "noop"
	outcomeError  = "error"
)
