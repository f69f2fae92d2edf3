package domain

import "context"

// CaptchaVerdict is the resolved result of a CAPTCHA challenge.
type CaptchaVerdict struct {
	Passed bool
	Score  float64
}

// CaptchaVerifier resolves a client token into a verdict.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token, remoteAddr string) (CaptchaVerdict, error)
}
