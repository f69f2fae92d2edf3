// Package captcha provides CAPTCHA verdict oracles.
package captcha

import (
	"context"
	"strings"

	"github.com/pscheid92/planverify/internal/domain"
)

// Static passes every non-empty token with a fixed score. It stands in for a real
// challenge provider in development and tests.
type Static struct {
	score float64
}

var _ domain.CaptchaVerifier = (*Static)(nil)

func NewStatic(score float64) *Static {
	return &Static{score: score}
}

func (s *Static) Verify(ctx context.Context, token, _ string) (domain.CaptchaVerdict, error) {
	if err := ctx.Err(); err != nil {
		return domain.CaptchaVerdict{}, err
	}
	if strings.TrimSpace(token) == "" {
		return domain.CaptchaVerdict{}, nil
	}
	return domain.CaptchaVerdict{Passed: true, Score: s.score}, nil
}
