package security

import "time"

// LimitReport describes one token-bucket policy.
type LimitReport struct {
	Capacity    int
	RefillEvery time.Duration
	// SustainedPerHour is the steady-state admission rate once the burst is spent.
	SustainedPerHour float64
}

type Report struct {
	StorageBackend          string
	DistributedRateLimiting bool
	BucketSweepActive       bool
	ServerKeyCached         bool
	UserKeyLength           int
	ModuleKeyLength         int
	ServerKeyLength         int
	Submission              LimitReport
	InvalidSubmission       LimitReport
	InvalidLimitTighter     bool
	AuditEnabled            bool
	AuditMayDrop            bool
	MetricsEnabled          bool
	HighRiskFindings        []string
}

type ReportInput struct {
	StorageBackend        string
	Distributed           bool
	SweepInterval         time.Duration
	CacheServerKey        bool
	UserKeyLength         int
	ModuleKeyLength       int
	ServerKeyLength       int
	SubmissionCapacity    int
	SubmissionRefillEvery time.Duration
	InvalidCapacity       int
	InvalidRefillEvery    time.Duration
	AuditEnabled          bool
	AuditDropIfFull       bool
	MetricsEnabled        bool
	HighRiskLintCodes     []string
}

func BuildReport(input ReportInput) Report {
	submission := limitReport(input.SubmissionCapacity, input.SubmissionRefillEvery)
	invalid := limitReport(input.InvalidCapacity, input.InvalidRefillEvery)

	findings := append([]string(nil), input.HighRiskLintCodes...)

	return Report{
		StorageBackend:          input.StorageBackend,
		DistributedRateLimiting: input.Distributed,
		BucketSweepActive:       !input.Distributed && input.SweepInterval > 0,
		ServerKeyCached:         input.CacheServerKey,
		UserKeyLength:           input.UserKeyLength,
		ModuleKeyLength:         input.ModuleKeyLength,
		ServerKeyLength:         input.ServerKeyLength,
		Submission:              submission,
		InvalidSubmission:       invalid,
		InvalidLimitTighter: invalid.Capacity <= submission.Capacity &&
			invalid.SustainedPerHour <= submission.SustainedPerHour,
		AuditEnabled:     input.AuditEnabled,
		AuditMayDrop:     input.AuditEnabled && input.AuditDropIfFull,
		MetricsEnabled:   input.MetricsEnabled,
		HighRiskFindings: findings,
	}
}

func limitReport(capacity int, refill time.Duration) LimitReport {
	r := LimitReport{Capacity: capacity, RefillEvery: refill}
	if refill > 0 {
		r.SustainedPerHour = float64(time.Hour) / float64(refill)
	}
	return r
}
