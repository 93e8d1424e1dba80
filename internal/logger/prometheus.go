package logger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// logEvents is registered once; Init may run repeatedly (tests, reload) but
// promauto panics on double registration.
var logEvents *prometheus.CounterVec //nolint:gochecknoglobals

// PrometheusHook counts emitted log events by level, so alerting can watch
// the error rate of the service itself.
type PrometheusHook struct{}

// Run implements the zerolog.Hook interface.
func (h PrometheusHook) Run(_ *zerolog.Event, level zerolog.Level, _ string) {
	if level != zerolog.NoLevel {
		logEvents.WithLabelValues(level.String()).Inc()
	}
}

// NewPrometheusHook returns the hook, registering its counter on first use.
func NewPrometheusHook(service string) PrometheusHook {
	if logEvents == nil {
		logEvents = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "log_statements_total",
				Help:        "Number of log statements, differentiated by log level.",
				ConstLabels: prometheus.Labels{"service": service},
			},
			[]string{"level"},
		)
	}

	return PrometheusHook{}
}
