package flows

import "context"

// Deps bundles the dependencies of every flow.
type Deps struct {
	Verify VerifyDeps
	Submit SubmitDeps
}

// Service runs flows against a fixed set of dependencies.
type Service struct {
	deps Deps
}

// New returns a Service whose Submit flow verifies through the same
// VerifyDeps unless Submit.Verify is set explicitly.
func New(deps Deps) *Service {
	s := &Service{deps: deps}
	if s.deps.Submit.Verify == nil {
		s.deps.Submit.Verify = s.Verify
	}
	return s
}

func (s *Service) Verify(ctx context.Context, userID, moduleID, flag string) (bool, error) {
	return RunVerify(ctx, userID, moduleID, flag, s.deps.Verify)
}

func (s *Service) Submit(ctx context.Context, userID, moduleID, flag string) (SubmissionRecord, error) {
	return RunSubmit(ctx, userID, moduleID, flag, s.deps.Submit)
}
