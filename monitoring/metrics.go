package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	validationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_validations_total",
			Help: "Validation decisions per event and outcome",
		},
		[]string{"event_id", "outcome"},
	)

	validationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ticket_validation_duration_seconds",
			Help:    "End-to-end duration of one validation attempt",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	rejectionReasons = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_rejections_total",
			Help: "Invalid verdicts per reason",
		},
		[]string{"reason"},
	)

	locatorResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_locator_resolutions_total",
			Help: "Successful payload resolutions per source table",
		},
		[]string{"source"},
	)

	ledgerWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checkin_ledger_write_failures_total",
			Help: "Ledger appends that failed and were swallowed",
		},
	)
)

// TrackValidation records one computed decision.
func TrackValidation(eventID, outcome string, duration time.Duration) {
	validationsTotal.WithLabelValues(eventID, outcome).Inc()
	validationDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// TrackRejection records why a scan was rejected.
func TrackRejection(reason string) {
	rejectionReasons.WithLabelValues(reason).Inc()
}

// TrackLocatorResolution records which lookup satisfied a scan.
func TrackLocatorResolution(source string) {
	locatorResolutions.WithLabelValues(source).Inc()
}

// TrackLedgerWriteFailure counts swallowed audit-row losses.
func TrackLedgerWriteFailure() {
	ledgerWriteFailures.Inc()
}
