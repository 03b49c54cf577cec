package internaldefs

import (
	"sort"
	"strconv"
	"strings"

	goFlag "github.com/MrEthical07/goFlag"
)

// Kind selects how an exporter renders a [Def].
type Kind int

const (
	KindCounter Kind = iota
	KindHistogram
)

// Def describes one engine metric backed by a [goFlag.MetricID].
type Def struct {
	ID   goFlag.MetricID
	Kind Kind
	Name string
	// Unit is a UCUM unit for OpenTelemetry.
	Unit string
	Help string
}

// Defs lists every engine metric in render order: counters first, then the
// submit latency histogram.
var Defs = []Def{
	{ID: goFlag.MetricFlagValid, Kind: KindCounter, Name: "goflag_flag_valid_total", Unit: "{attempt}",
		Help: "Flag verifications that matched."},
	{ID: goFlag.MetricFlagInvalid, Kind: KindCounter, Name: "goflag_flag_invalid_total", Unit: "{attempt}",
		Help: "Flag verifications that did not match."},
	{ID: goFlag.MetricSubmissionRateLimited, Kind: KindCounter, Name: "goflag_submission_rate_limited_total", Unit: "{attempt}",
		Help: "Attempts denied by the per-user submission bucket."},
	{ID: goFlag.MetricInvalidRateLimited, Kind: KindCounter, Name: "goflag_invalid_rate_limited_total", Unit: "{attempt}",
		Help: "Attempts denied by the per-user invalid-submission bucket."},
	{ID: goFlag.MetricSubmissionRecorded, Kind: KindCounter, Name: "goflag_submission_recorded_total", Unit: "{submission}",
		Help: "Submissions written to the ledger."},
	{ID: goFlag.MetricModuleAlreadySolved, Kind: KindCounter, Name: "goflag_module_already_solved_total", Unit: "{submission}",
		Help: "Submissions refused because the user had already solved the module."},
	{ID: goFlag.MetricStoreFailure, Kind: KindCounter, Name: "goflag_store_failure_total", Unit: "{error}",
		Help: "Secret store or ledger backend failures."},
	{ID: goFlag.MetricLimiterFailure, Kind: KindCounter, Name: "goflag_limiter_failure_total", Unit: "{error}",
		Help: "Rate limiter backend failures."},
	{ID: goFlag.MetricFlagDerived, Kind: KindCounter, Name: "goflag_flag_derived_total", Unit: "{derivation}",
		Help: "Explicit flag and pseudonym derivations."},
	{ID: goFlag.MetricServerKeyRotated, Kind: KindCounter, Name: "goflag_server_key_rotated_total", Unit: "{rotation}",
		Help: "Server key rotations performed by this instance."},
	{ID: goFlag.MetricSubmissionsReset, Kind: KindCounter, Name: "goflag_submissions_reset_total", Unit: "{reset}",
		Help: "Ledger resets."},
	{ID: goFlag.MetricSubmitLatency, Kind: KindHistogram, Name: "goflag_submit_latency_seconds", Unit: "s",
		Help: "Latency of Submit from verification to ledger write."},
}

// Families that are not backed by a MetricID.
const (
	AuditDroppedName = "goflag_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped by the dispatcher."

	AuditDroppedByTypeName = "goflag_audit_dropped_by_type_total"
	AuditDroppedByTypeHelp = "Audit events dropped by the dispatcher, split by event type."
	EventTypeLabel         = "event_type"

	StorageBackendName  = "goflag_storage_backend_info"
	StorageBackendHelp  = "Storage backend holding keys and submissions; the value is always 1."
	StorageBackendLabel = "backend"
)

// LatencyBounds are the upper bounds in seconds of the finite submit latency
// buckets. A final +Inf bucket follows them.
var LatencyBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// BucketCount is the number of latency buckets including +Inf.
func BucketCount() int { return len(LatencyBounds) + 1 }

// BucketLabel returns the Prometheus le value of bucket i.
func BucketLabel(i int) string {
	if i >= len(LatencyBounds) {
		return "+Inf"
	}
	return strconv.FormatFloat(LatencyBounds[i], 'f', -1, 64)
}

// BucketSuffix returns bucket i as an instrument name suffix, e.g. 0_005 or inf.
func BucketSuffix(i int) string {
	if i >= len(LatencyBounds) {
		return "inf"
	}
	return strings.ReplaceAll(BucketLabel(i), ".", "_")
}

// Cumulative turns per-bucket counts into cumulative counts of length
// [BucketCount]. Missing buckets count as zero and extra ones are ignored.
func Cumulative(raw []uint64) []uint64 {
	out := make([]uint64, BucketCount())
	var running uint64
	for i := range out {
		if i < len(raw) {
			running += raw[i]
		}
		out[i] = running
	}
	return out
}

// SortedKeys returns the keys of m in ascending order.
func SortedKeys(m map[string]uint64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
