package goFlag

import internalmetrics "github.com/MrEthical07/goFlag/internal/metrics"

// MetricID identifies a specific counter or histogram in the in-process
// metrics system.
type MetricID = internalmetrics.MetricID

const (
	// MetricFlagValid counts verifications that matched.
	MetricFlagValid = MetricID(internalmetrics.MetricFlagValid)
	// MetricFlagInvalid counts verifications that did not match.
	MetricFlagInvalid = MetricID(internalmetrics.MetricFlagInvalid)
	// MetricSubmissionRateLimited counts attempts denied by the submission limiter.
	MetricSubmissionRateLimited = MetricID(internalmetrics.MetricSubmissionRateLimited)
	// MetricInvalidRateLimited counts attempts denied by the invalid-submission limiter.
	MetricInvalidRateLimited = MetricID(internalmetrics.MetricInvalidRateLimited)
	// MetricSubmissionRecorded counts ledger inserts.
	MetricSubmissionRecorded = MetricID(internalmetrics.MetricSubmissionRecorded)
	// MetricModuleAlreadySolved counts valid submissions rejected as duplicates.
	MetricModuleAlreadySolved = MetricID(internalmetrics.MetricModuleAlreadySolved)
	// MetricStoreFailure counts store backend errors.
	MetricStoreFailure = MetricID(internalmetrics.MetricStoreFailure)
	// MetricLimiterFailure counts rate limiter backend errors.
	MetricLimiterFailure = MetricID(internalmetrics.MetricLimiterFailure)
	// MetricFlagDerived counts explicit derivations through the public API.
	MetricFlagDerived = MetricID(internalmetrics.MetricFlagDerived)
	// MetricServerKeyRotated counts server key rotations.
	MetricServerKeyRotated = MetricID(internalmetrics.MetricServerKeyRotated)
	// MetricSubmissionsReset counts ledger resets.
	MetricSubmissionsReset = MetricID(internalmetrics.MetricSubmissionsReset)
	// MetricSubmitLatency is the Submit latency histogram.
	MetricSubmitLatency = MetricID(internalmetrics.MetricSubmitLatency)

	metricIDCount = internalmetrics.MetricIDCount
)

// Metrics holds atomic counters and the optional submit latency histogram.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time copy of all metrics.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a new [Metrics] instance configured by the given
// [MetricsConfig]. When Enabled is false, all operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:       cfg.Enabled,
		EnableLatency: cfg.EnableLatencyHistograms,
	})
}
