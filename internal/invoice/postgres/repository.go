// Package postgres provides PostgreSQL implementation of invoice repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sis-teknik/servicedesk/internal/domain"
	"github.com/sis-teknik/servicedesk/internal/invoice"
)

// DB is satisfied by *pgxpool.Pool and pgxmock pools.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository implements invoice.Repository using PostgreSQL.
type Repository struct {
	db DB
}

var _ invoice.Repository = (*Repository)(nil)

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

// AttachInvoice writes to installations first, then intakes.
func (r *Repository) AttachInvoice(ctx context.Context, id, image string, at time.Time) (domain.InvoiceOwner, error) {
	targets := []struct {
		owner domain.InvoiceOwner
		query string
	}{
		{domain.InvoiceOwnerInstallation, `UPDATE installations SET invoice_image = $2, invoice_uploaded_at = $3, updated_at = NOW() WHERE id = $1`},
		{domain.InvoiceOwnerIntake, `UPDATE intakes SET invoice_image = $2, invoice_uploaded_at = $3, updated_at = NOW() WHERE id = $1`},
	}

	for _, target := range targets {
		tag, err := r.db.Exec(ctx, target.query, id, image, at)
		if err != nil {
			return "", fmt.Errorf("attach invoice to %s: %w", target.owner, err)
		}
		if tag.RowsAffected() > 0 {
			return target.owner, nil
		}
	}

	return "", invoice.ErrNotFound
}

// GetInvoice returns the invoice on the installation or intake with id.
func (r *Repository) GetInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	query := `
		SELECT 'installation', invoice_image, invoice_uploaded_at FROM installations WHERE id = $1
		UNION ALL
		SELECT 'intake', invoice_image, invoice_uploaded_at FROM intakes WHERE id = $1
		LIMIT 1
	`
	var (
		owner      string
		image      *string
		uploadedAt *time.Time
	)
	err := r.db.QueryRow(ctx, query, id).Scan(&owner, &image, &uploadedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, invoice.ErrNotFound
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}

	if image == nil || uploadedAt == nil {
		return nil, invoice.ErrNoInvoice
	}

	return &domain.Invoice{
		OwnerID:    id,
		Owner:      domain.InvoiceOwner(owner),
		Image:      *image,
		UploadedAt: *uploadedAt,
	}, nil
}
