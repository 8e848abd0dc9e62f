package irc

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ircbridge",
			Name:      "operations_total",
			Help:      "Number of IRC account operations by outcome",
		},
		[]string{"operation", "result"},
	)

	operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ircbridge",
			Name:      "operation_duration_seconds",
			Help:      "Time from dial to settled result",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"operation"},
	)

	linesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ircbridge",
			Name:      "lines_total",
			Help:      "Number of IRC protocol lines by direction",
		},
		[]string{"direction"},
	)
)

func init() {
	prometheus.MustRegister(operationsTotal)
	prometheus.MustRegister(operationDuration)
	prometheus.MustRegister(linesTotal)
}

func observe(operation string, start time.Time, err error) {
	operationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	operationsTotal.WithLabelValues(operation, resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	if err == nil {
		return "success"
	}
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return string(pe.Kind)
	}
	if errors.Is(err, ErrTimeout) {
		return "timeout"
	}
	if errors.Is(err, ErrNoClientIP) {
		return "invalid"
	}
	return "transport"
}
