package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/planverify/internal/platform/version"
)

const (
	startupProbeTimeout   = 2 * time.Second
	readinessProbeTimeout = 5 * time.Second
)

// HealthCheck pings one backing store.
//
// A check with no Degrades entries is required: when it fails the instance reports unhealthy.
// Otherwise the instance keeps serving and reports degraded, listing the policy each dependent
// component falls back to (for the counter store: the rate limiter admits, the duplicate
// detector rejects).
type HealthCheck struct {
	Name     string
	Store    string
	Degrades map[string]string
	Check    func(ctx context.Context) error
}

func (hc HealthCheck) required() bool { return len(hc.Degrades) == 0 }

type checkReport struct {
	Name     string            `json:"name"`
	Store    string            `json:"store"`
	Status   string            `json:"status"`
	Error    string            `json:"error,omitempty"`
	Degrades map[string]string `json:"degrades,omitempty"`
}

type healthReport struct {
	Status string        `json:"status"`
	Checks []checkReport `json:"checks"`
}

func (s *Server) registerHealthRoutes() {
	s.echo.GET("/health/startup", s.handleStartup)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/version", s.handleVersion)
}

// handleStartup waits for the required stores only; optional ones may come up later.
func (s *Server) handleStartup(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), startupProbeTimeout)
	defer cancel()

	var required []HealthCheck
	for _, hc := range s.healthChecks {
		if hc.required() {
			required = append(required, hc)
		}
	}
	return s.writeHealth(c, s.checkStores(ctx, required))
}

func (s *Server) handleLiveness(c echo.Context) error {
	response := map[string]any{
		"status": "ok",
		"uptime": s.clock.Since(s.startTime).Seconds(),
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write liveness response: %w", err)
	}
	return nil
}

func (s *Server) handleReadiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), readinessProbeTimeout)
	defer cancel()
	return s.writeHealth(c, s.checkStores(ctx, s.healthChecks))
}

// checkStores runs every check so the report names all stores that are down.
func (s *Server) checkStores(ctx context.Context, checks []HealthCheck) healthReport {
	report := healthReport{Status: "ready", Checks: make([]checkReport, 0, len(checks))}
	for _, hc := range checks {
		cr := checkReport{Name: hc.Name, Store: hc.Store, Status: "up"}
		if err := hc.Check(ctx); err != nil {
			cr.Status = "down"
			cr.Error = err.Error()
			switch {
			case hc.required():
				report.Status = "unhealthy"
			case report.Status == "ready":
				report.Status = "degraded"
			}
			cr.Degrades = hc.Degrades
		}
		report.Checks = append(report.Checks, cr)
	}
	return report
}

func (s *Server) writeHealth(c echo.Context, report healthReport) error {
	code := http.StatusOK
	if report.Status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	if err := c.JSON(code, report); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleVersion(c echo.Context) error {
	if err := c.JSON(http.StatusOK, version.Get()); err != nil {
		return fmt.Errorf("failed to write version response: %w", err)
	}
	return nil
}
