package httpserver

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/planverify/internal/domain"
	"github.com/pscheid92/planverify/internal/platform/correlation"
	apperrors "github.com/pscheid92/planverify/internal/platform/errors"
)

const adminSecretHeader = "X-Admin-Secret"

// correlationMiddleware tags the request context with the client's correlation ID, or a new one,
// and echoes it back.
func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, id := correlation.Ensure(c.Request().Context(), c.Request().Header.Get(correlation.Header))
		c.SetRequest(c.Request().WithContext(ctx))
		c.Response().Header().Set(correlation.Header, id)
		return next(c)
	}
}

// requireAdminSecret guards admin routes. With no secret configured the routes do not exist.
func (s *Server) requireAdminSecret(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.config.AdminSecret == "" {
			return apperrors.NotFoundError("not found")
		}
		provided := c.Request().Header.Get(adminSecretHeader)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(s.config.AdminSecret)) != 1 {
			return apperrors.ForbiddenError("invalid admin secret")
		}
		return next(c)
	}
}

// mapDomainError translates errors from the application layer into structured API errors.
func mapDomainError(err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidOutcome),
		errors.Is(err, domain.ErrInvalidSourceKind),
		errors.Is(err, domain.ErrInvalidDirection):
		return apperrors.ValidationError(err.Error())
	case errors.Is(err, domain.ErrInvalidSubject):
		return apperrors.NotFoundError("unknown provider or plan")
	case errors.Is(err, domain.ErrSubmissionNotFound):
		return apperrors.NotFoundError("submission not found or expired")
	case errors.Is(err, domain.ErrCaptchaRejected):
		return apperrors.ForbiddenError("captcha verification failed")
	case errors.Is(err, domain.ErrStoreUnavailable):
		return apperrors.UnavailableError("verification temporarily unavailable", err)
	default:
		return apperrors.InternalError("internal server error", err)
	}
}

// mapRejection translates an engine rejection into a structured API error.
func mapRejection(reason domain.RejectReason, retryAt time.Time) error {
	switch reason {
	case domain.RejectRateLimited:
		return apperrors.RateLimitedError("rate limit exceeded", retryAt).WithField("reason", string(reason))
	case domain.RejectDuplicate:
		return apperrors.ConflictError("a matching submission was already received").WithField("reason", string(reason))
	case domain.RejectDuplicateVote:
		return apperrors.ConflictError("vote already recorded").WithField("reason", string(reason))
	case domain.RejectStoreUnavailable:
		return apperrors.UnavailableError("verification temporarily unavailable", nil).WithField("reason", string(reason))
	default:
		return apperrors.InternalError("request was not admitted", nil).WithField("reason", string(reason))
	}
}
