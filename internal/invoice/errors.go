package invoice

import "errors"

// Invoice errors.
var (
	ErrNotFound           = errors.New("record not found")
	ErrNoInvoice          = errors.New("no invoice uploaded")
	ErrImageRequired      = errors.New("invoice image is required")
	ErrInvalidImage       = errors.New("invoice must be a base64 encoded image or pdf")
	ErrImageTooLarge      = errors.New("invoice image is too large")
	ErrCaptchaRequired    = errors.New("captcha token is required")
	ErrCaptchaInvalid     = errors.New("captcha verification failed")
	ErrCaptchaUnavailable = errors.New("captcha service unavailable")
	ErrTooManyUploads     = errors.New("too many uploads, try again later")
)
