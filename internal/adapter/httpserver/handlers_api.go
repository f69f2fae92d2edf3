package httpserver

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/planverify/internal/app"
	"github.com/pscheid92/planverify/internal/domain"
	apperrors "github.com/pscheid92/planverify/internal/platform/errors"
)

type submitRequest struct {
	ProviderID   string `json:"providerId"`
	PlanID       string `json:"planId"`
	Outcome      string `json:"outcome"`
	SourceKind   string `json:"sourceKind"`
	Contact      string `json:"contact"`
	CaptchaToken string `json:"captchaToken"`
}

type submitResponse struct {
	SubmissionID uuid.UUID      `json:"submissionId"`
	State        *stateResponse `json:"state,omitempty"`
	Degraded     bool           `json:"degraded,omitempty"`
}

type voteRequest struct {
	Direction string `json:"direction"`
}

type voteResponse struct {
	Change   string `json:"change"`
	Degraded bool   `json:"degraded,omitempty"`
}

type stateResponse struct {
	ProviderID        string            `json:"providerId"`
	PlanID            string            `json:"planId"`
	Category          domain.Category   `json:"category"`
	Status            string            `json:"status"`
	Confidence        domain.Confidence `json:"confidence"`
	VerificationCount int               `json:"verificationCount"`
	AcceptsCount      int               `json:"acceptsCount"`
	RejectsCount      int               `json:"rejectsCount"`
	LastVerifiedAt    *time.Time        `json:"lastVerifiedAt"`
	ExpiresAt         *time.Time        `json:"expiresAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

func toStateResponse(s domain.SubjectState) stateResponse {
	return stateResponse{
		ProviderID:        s.Subject.ProviderID,
		PlanID:            s.Subject.PlanID,
		Category:          s.Category,
		Status:            string(s.Status),
		Confidence:        s.Confidence,
		VerificationCount: s.VerificationCount,
		AcceptsCount:      s.AcceptsCount,
		RejectsCount:      s.RejectsCount,
		LastVerifiedAt:    s.LastVerifiedAt,
		ExpiresAt:         s.ExpiresAt,
		UpdatedAt:         s.UpdatedAt,
	}
}

func (s *Server) handleSubmitVerification(c echo.Context) error {
	var req submitRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	res, err := s.app.SubmitVerification(c.Request().Context(), app.SubmitCommand{
		Subject: domain.SubjectKey{ProviderID: req.ProviderID, PlanID: req.PlanID},
		Outcome: req.Outcome,
		Source:  req.SourceKind,
		Submitter: domain.SubmitterIdentity{
			NetworkAddress: c.RealIP(),
			Contact:        req.Contact,
		},
		CaptchaToken: req.CaptchaToken,
	})
	if err != nil {
		return mapDomainError(err)
	}
	if !res.Admitted {
		return mapRejection(res.Reason, res.RetryAt)
	}

	resp := submitResponse{SubmissionID: res.SubmissionID, Degraded: res.Degraded}
	if res.State != nil {
		state := toStateResponse(*res.State)
		resp.State = &state
	}
	if err := c.JSON(http.StatusCreated, resp); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleVote(c echo.Context) error {
	submissionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperrors.ValidationError("invalid submission id").WithField("id", c.Param("id"))
	}

	var req voteRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	res, err := s.app.Vote(c.Request().Context(), app.VoteCommand{
		SubmissionID: submissionID,
		Direction:    req.Direction,
		Voter:        domain.SubmitterIdentity{NetworkAddress: c.RealIP()},
	})
	if err != nil {
		return mapDomainError(err)
	}
	if !res.Admitted {
		return mapRejection(res.Reason, res.RetryAt)
	}

	if err := c.JSON(http.StatusOK, voteResponse{Change: res.Change.String(), Degraded: res.Degraded}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleGetAcceptance(c echo.Context) error {
	key := domain.SubjectKey{ProviderID: c.Param("providerId"), PlanID: c.Param("planId")}

	state, err := s.app.GetSubjectState(c.Request().Context(), key)
	if err != nil {
		return mapDomainError(err)
	}

	if err := c.JSON(http.StatusOK, toStateResponse(state)); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}
