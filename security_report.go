package goFlag

import "github.com/MrEthical07/goFlag/internal/security"

type (
	SecurityReport = security.Report
	LimitReport    = security.LimitReport
)

// SecurityReport summarizes the engine's effective security posture:
// storage backend, key sizes, throttling policies and observability. It
// never includes key material.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	cfg := e.config
	return security.BuildReport(security.ReportInput{
		StorageBackend:        e.storageBackend,
		Distributed:           cfg.RateLimit.Distributed,
		SweepInterval:         cfg.RateLimit.SweepInterval,
		CacheServerKey:        cfg.Keys.CacheServerKey,
		UserKeyLength:         cfg.Keys.UserKeyLength,
		ModuleKeyLength:       cfg.Keys.ModuleKeyLength,
		ServerKeyLength:       cfg.Keys.ServerKeyLength,
		SubmissionCapacity:    cfg.Submission.Capacity,
		SubmissionRefillEvery: cfg.Submission.RefillEvery,
		InvalidCapacity:       cfg.InvalidSubmission.Capacity,
		InvalidRefillEvery:    cfg.InvalidSubmission.RefillEvery,
		AuditEnabled:          cfg.Audit.Enabled,
		AuditDropIfFull:       cfg.Audit.DropIfFull,
		MetricsEnabled:        cfg.Metrics.Enabled,
		HighRiskLintCodes:     cfg.Lint().BySeverity(LintHigh).Codes(),
	})
}
