package httpserver

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	apperrors "github.com/pscheid92/planverify/internal/platform/errors"
)

func (s *Server) handleCleanup(c echo.Context) error {
	dryRun := false
	if v := c.QueryParam("dryRun"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return apperrors.ValidationError("dryRun must be a boolean")
		}
		dryRun = parsed
	}

	batchSize := s.config.CleanupBatchSize
	if v := c.QueryParam("batchSize"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			return apperrors.ValidationError("batchSize must be a positive integer")
		}
		batchSize = parsed
	}

	stats, err := s.app.RunCleanup(c.Request().Context(), dryRun, batchSize)
	if err != nil {
		return apperrors.InternalError("cleanup failed", err)
	}

	if err := c.JSON(http.StatusOK, stats); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleRescore(c echo.Context) error {
	stats, err := s.app.RescoreAll(c.Request().Context(), 0)
	if err != nil {
		return apperrors.InternalError("rescore failed", err)
	}

	if err := c.JSON(http.StatusOK, stats); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}
