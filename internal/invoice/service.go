// Package invoice accepts invoice images that customers upload through the
// link sent in their SMS, and serves them back to staff.
package invoice

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sis-teknik/servicedesk/internal/domain"
	"golang.org/x/time/rate"
)

const (
	defaultMaxBytes  = 8 << 20
	defaultRateLimit = 1.0
	defaultBurst     = 10
)

var allowedTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"image/gif":       true,
	"application/pdf": true,
}

// Config holds upload settings.
type Config struct {
	MaxBytes  int
	RateLimit float64 // uploads per second, across all callers
	Burst     int
}

// Service handles invoice uploads.
type Service struct {
	repo     Repository
	captcha  CaptchaVerifier
	limiter  *rate.Limiter
	maxBytes int
	now      func() time.Time
}

// NewService creates an invoice service. A nil captcha skips verification.
func NewService(repo Repository, captcha CaptchaVerifier, cfg Config) *Service {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultMaxBytes
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaultBurst
	}
	return &Service{
		repo:     repo,
		captcha:  captcha,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
		maxBytes: cfg.MaxBytes,
		now:      time.Now,
	}
}

// UploadInput contains a public upload.
type UploadInput struct {
	Image        string
	CaptchaToken string
	RemoteIP     string
}

// Upload attaches an invoice image to the installation or intake with id.
func (s *Service) Upload(ctx context.Context, id string, input UploadInput) (domain.InvoiceOwner, error) {
	if !s.limiter.Allow() {
		return "", ErrTooManyUploads
	}

	image := strings.TrimSpace(input.Image)
	if image == "" {
		return "", ErrImageRequired
	}

	if s.captcha != nil {
		token := strings.TrimSpace(input.CaptchaToken)
		if token == "" {
			return "", ErrCaptchaRequired
		}
		ok, err := s.captcha.Verify(ctx, token, input.RemoteIP)
		if err != nil {
			slog.Error("captcha verification failed", "error", err)
			return "", ErrCaptchaUnavailable
		}
		if !ok {
			return "", ErrCaptchaInvalid
		}
	}

	dataURL, err := s.normalizeImage(image)
	if err != nil {
		return "", err
	}

	owner, err := s.repo.AttachInvoice(ctx, id, dataURL, s.now().UTC())
	if err != nil {
		return "", err
	}

	slog.Info("invoice uploaded", "id", id, "owner", owner, "bytes", len(dataURL))
	return owner, nil
}

// Get returns the invoice stored under id.
func (s *Service) Get(ctx context.Context, id string) (*domain.Invoice, error) {
	return s.repo.GetInvoice(ctx, id)
}

// normalizeImage accepts a data URL or bare base64 and returns a data URL
// whose media type is sniffed from the decoded bytes.
func (s *Service) normalizeImage(value string) (string, error) {
	payload := value
	if strings.HasPrefix(payload, "data:") {
		_, after, found := strings.Cut(payload, ",")
		if !found {
			return "", ErrInvalidImage
		}
		payload = after
	}

	if base64.StdEncoding.DecodedLen(len(payload)) > s.maxBytes+2 {
		return "", ErrImageTooLarge
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", ErrInvalidImage
	}
	if len(raw) == 0 {
		return "", ErrImageRequired
	}
	if len(raw) > s.maxBytes {
		return "", ErrImageTooLarge
	}

	mediaType, _, _ := strings.Cut(http.DetectContentType(raw), ";")
	if !allowedTypes[mediaType] {
		return "", ErrInvalidImage
	}

	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(raw), nil
}
