package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	readingAdmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "submetering_reading_admissions_total",
			Help: "Reading admissions by outcome.",
		},
		[]string{"outcome"},
	)
	photoUploadFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "submetering_photo_upload_failures_total",
			Help: "Photo uploads that failed and were dropped from the reading.",
		},
	)
	reportBuildDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "submetering_report_build_duration_seconds",
			Help:    "Billing report build latency in seconds, including the snapshot fetch.",
			Buckets: prometheus.DefBuckets,
		},
	)
	reportRows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "submetering_report_rows",
			Help: "Rows in the most recently built billing report.",
		},
	)
	commandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "submetering_commands_total",
			Help: "Consumed commands by type and result.",
		},
		[]string{"type", "result"},
	)
)

// ObserveAdmission counts an admission outcome ("created", "updated" or an error kind)
func ObserveAdmission(outcome string) {
	readingAdmissionsTotal.WithLabelValues(outcome).Inc()
}

// ObservePhotoUploadFailure counts a dropped photo
func ObservePhotoUploadFailure() {
	photoUploadFailuresTotal.Inc()
}

// ObserveReport records a finished report build
func ObserveReport(rows int, dur time.Duration) {
	reportBuildDurationSeconds.Observe(dur.Seconds())
	reportRows.Set(float64(rows))
}

// ObserveCommand counts a consumed command
func ObserveCommand(commandType string, ok bool) {
	commandsTotal.WithLabelValues(commandType, strconv.FormatBool(ok)).Inc()
}
