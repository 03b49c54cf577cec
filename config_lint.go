package goFlag

import (
	"fmt"
	"strings"
	"time"
)

// LintSeverity ranks a [LintWarning].
type LintSeverity int

const (
	// LintInfo marks a setting worth knowing about.
	LintInfo LintSeverity = iota
	// LintWarn marks a setting that weakens a guarantee.
	LintWarn
	// LintHigh marks a setting that defeats a guarantee.
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "INFO"
	case LintWarn:
		return "WARN"
	case LintHigh:
		return "HIGH"
	default:
		return fmt.Sprintf("LintSeverity(%d)", int(s))
	}
}

// LintWarning is one risky-but-valid configuration finding.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintResult is the ordered list of findings returned by [Config.Lint].
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	out := make([]string, 0, len(r))
	for _, w := range r {
		out = append(out, w.Code)
	}
	return out
}

// BySeverity returns the warnings at or above min.
func (r LintResult) BySeverity(min LintSeverity) LintResult {
	var out LintResult
	for _, w := range r {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError folds the warnings at or above min into one error, or returns nil.
func (r LintResult) AsError(min LintSeverity) error {
	hits := r.BySeverity(min)
	if len(hits) == 0 {
		return nil
	}
	parts := make([]string, 0, len(hits))
	for _, w := range hits {
		parts = append(parts, fmt.Sprintf("[%s] %s: %s", w.Severity, w.Code, w.Message))
	}
	return fmt.Errorf("config lint: %s", strings.Join(parts, "; "))
}

// Lint reports settings that pass [Config.Validate] but weaken brute-force
// protection or multi-instance consistency. It never mutates c.
func (c *Config) Lint() LintResult {
	var ws LintResult
	add := func(code string, sev LintSeverity, msg string) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: msg})
	}

	if c.InvalidSubmission.RefillEvery > 0 && c.InvalidSubmission.RefillEvery < time.Second {
		add("invalid_refill_fast", LintHigh,
			"InvalidSubmission refills faster than once per second; wrong guesses are barely throttled")
	}
	if c.InvalidSubmission.Capacity > c.Submission.Capacity {
		add("invalid_capacity_exceeds_submission", LintWarn,
			"InvalidSubmission Capacity is larger than Submission Capacity and never takes effect first")
	}
	if c.Submission.Capacity > 100 {
		add("submission_capacity_high", LintWarn,
			"Submission Capacity above 100 allows large bursts per user")
	}
	if c.RateLimit.Distributed && c.Keys.CacheServerKey {
		add("server_key_cached_distributed", LintWarn,
			"CacheServerKey with distributed limits: a rotation on one instance is not seen by the others until they call ReloadServerKey")
	}
	if !c.RateLimit.Distributed && c.RateLimit.SweepInterval == 0 {
		add("memory_buckets_unswept", LintInfo,
			"in-memory buckets are never evicted; memory grows with the number of distinct users")
	}
	if !c.Audit.Enabled {
		add("audit_disabled", LintInfo, "audit events are not emitted")
	} else if c.Audit.DropIfFull {
		add("audit_drop_if_full", LintInfo, "audit events are dropped when the buffer is full")
	}

	return ws
}
