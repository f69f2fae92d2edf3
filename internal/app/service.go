package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pscheid92/planverify/internal/domain"
)

// SubmitCommand is an unparsed verification submission as received from a client.
type SubmitCommand struct {
	Subject      domain.SubjectKey
	Outcome      string
	Source       string
	Submitter    domain.SubmitterIdentity
	CaptchaToken string
}

// VoteCommand is an unparsed vote as received from a client.
type VoteCommand struct {
	SubmissionID uuid.UUID
	Direction    string
	Voter        domain.SubmitterIdentity
}

// Service validates client input and gates it before the engine sees it.
type Service struct {
	engine          domain.Engine
	catalog         domain.SubjectCatalog
	captcha         domain.CaptchaVerifier
	captchaMinScore float64
}

func NewService(engine domain.Engine, catalog domain.SubjectCatalog, captcha domain.CaptchaVerifier, captchaMinScore float64) *Service {
	return &Service{
		engine:          engine,
		catalog:         catalog,
		captcha:         captcha,
		captchaMinScore: captchaMinScore,
	}
}

// SubmitVerification parses the command, checks the CAPTCHA verdict and resolves the subject
// against reference data, then hands the submission to the engine.
func (s *Service) SubmitVerification(ctx context.Context, cmd SubmitCommand) (domain.SubmitResult, error) {
	if !cmd.Subject.Valid() {
		return domain.SubmitResult{}, domain.ErrInvalidSubject
	}
	outcome, err := domain.ParseOutcome(cmd.Outcome)
	if err != nil {
		return domain.SubmitResult{}, err
	}
	source, err := domain.ParseSourceKind(cmd.Source)
	if err != nil {
		return domain.SubmitResult{}, err
	}

	verdict, err := s.captcha.Verify(ctx, cmd.CaptchaToken, cmd.Submitter.NetworkAddress)
	if err != nil {
		return domain.SubmitResult{}, fmt.Errorf("failed to verify captcha: %w", err)
	}
	if !verdict.Passed || verdict.Score < s.captchaMinScore {
		return domain.SubmitResult{}, domain.ErrCaptchaRejected
	}

	subject, err := s.catalog.Lookup(ctx, cmd.Subject)
	if err != nil {
		return domain.SubmitResult{}, err
	}

	return s.engine.SubmitVerification(ctx, domain.SubmitRequest{
		Subject:   subject,
		Outcome:   outcome,
		Source:    source,
		Submitter: cmd.Submitter,
	})
}

func (s *Service) Vote(ctx context.Context, cmd VoteCommand) (domain.VoteResult, error) {
	direction, err := domain.ParseVoteDirection(cmd.Direction)
	if err != nil {
		return domain.VoteResult{}, err
	}
	return s.engine.Vote(ctx, domain.VoteRequest{
		SubmissionID: cmd.SubmissionID,
		Direction:    direction,
		Voter:        cmd.Voter,
	})
}

func (s *Service) GetSubjectState(ctx context.Context, key domain.SubjectKey) (domain.SubjectState, error) {
	if !key.Valid() {
		return domain.SubjectState{}, domain.ErrInvalidSubject
	}
	return s.engine.GetSubjectState(ctx, key)
}

func (s *Service) RunCleanup(ctx context.Context, dryRun bool, batchSize int) (domain.CleanupStats, error) {
	return s.engine.RunCleanup(ctx, dryRun, batchSize)
}

func (s *Service) RescoreAll(ctx context.Context, pageSize int) (domain.RescoreStats, error) {
	return s.engine.RescoreAll(ctx, pageSize)
}
