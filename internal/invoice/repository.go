package invoice

import (
	"context"
	"time"

	"github.com/sis-teknik/servicedesk/internal/domain"
)

// Repository stores invoice images on installations and intakes.
type Repository interface {
	// AttachInvoice stores image on the installation with id, or on the intake
	// with id when no installation matches. It returns the owner it wrote to,
	// or ErrNotFound.
	AttachInvoice(ctx context.Context, id, image string, at time.Time) (domain.InvoiceOwner, error)
	GetInvoice(ctx context.Context, id string) (*domain.Invoice, error)
}

// CaptchaVerifier checks a browser challenge token.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) (bool, error)
}
