package domain

import "errors"

var (
	ErrInvalidSubject     = errors.New("subject does not exist")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrStateNotFound      = errors.New("subject state not found")
	ErrInvalidOutcome     = errors.New("invalid claimed outcome")
	ErrInvalidSourceKind  = errors.New("invalid source kind")
	ErrInvalidDirection   = errors.New("invalid vote direction")
	ErrCaptchaRejected    = errors.New("captcha verification failed")
	ErrStoreUnavailable   = errors.New("shared store unavailable")
)
