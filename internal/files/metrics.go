package files

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activeFiles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "files_drop_active_files",
		Help: "Number of live files in the registry",
	})

	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "files_drop_operations_total",
		Help: "Total number of file operations by result",
	}, []string{"operation", "result"})

	sweepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "files_drop_sweeps_total",
		Help: "Total number of expiry sweeps",
	})

	sweptFilesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "files_drop_swept_files_total",
		Help: "Total number of expired files purged by the sweeper",
	})

	sweepErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "files_drop_sweep_errors_total",
		Help: "Total number of blob delete failures during sweeps",
	})

	sweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "files_drop_sweep_duration_seconds",
		Help:    "Duration of expiry sweeps in seconds",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
	})
)

func observe(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	operationsTotal.WithLabelValues(operation, result).Inc()
}
