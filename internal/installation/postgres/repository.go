// Package postgres provides PostgreSQL implementation of installation repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sis-teknik/servicedesk/internal/domain"
	"github.com/sis-teknik/servicedesk/internal/installation"
)

// Repository implements installation.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

var _ installation.Repository = (*Repository)(nil)

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const installationColumns = `id, work_order_no, customer_name, model, phone, address, service_type,
	assignees, closed, mount_type, photo_urls, closed_at, created_at, updated_at`

// CreateInstallation creates a new installation.
func (r *Repository) CreateInstallation(ctx context.Context, inst *domain.Installation) error {
	query := `
		INSERT INTO installations (id, work_order_no, customer_name, model, phone, address, service_type, assignees)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`
	inst.ID = uuid.NewString()
	err := r.db.QueryRow(ctx, query,
		inst.ID,
		inst.WorkOrderNo,
		inst.CustomerName,
		inst.Model,
		inst.Phone,
		inst.Address,
		inst.ServiceType,
		inst.Assignees,
	).Scan(&inst.CreatedAt, &inst.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert installation: %w", err)
	}
	return nil
}

// GetInstallation retrieves an installation by ID.
func (r *Repository) GetInstallation(ctx context.Context, id string) (*domain.Installation, error) {
	query := `SELECT ` + installationColumns + ` FROM installations WHERE id = $1`
	inst, err := scanInstallation(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, installation.ErrInstallationNotFound
		}
		return nil, fmt.Errorf("get installation: %w", err)
	}
	return inst, nil
}

// ListInstallations lists installations, open jobs first then newest.
func (r *Repository) ListInstallations(ctx context.Context, filter installation.ListFilter) ([]domain.Installation, error) {
	query := `SELECT ` + installationColumns + ` FROM installations WHERE 1=1`
	args := []interface{}{}
	argNum := 1

	if filter.Assignee != "" {
		query += fmt.Sprintf(" AND $%d = ANY(assignees)", argNum)
		args = append(args, filter.Assignee)
		argNum++
	}

	if filter.Closed != nil {
		query += fmt.Sprintf(" AND closed = $%d", argNum)
		args = append(args, *filter.Closed)
	}

	query += " ORDER BY closed ASC, created_at DESC"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list installations: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Installation, 0)
	for rows.Next() {
		inst, err := scanInstallation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan installation: %w", err)
		}
		items = append(items, *inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate installations: %w", err)
	}
	return items, nil
}

// UpdateInstallation writes the editable fields of an installation.
func (r *Repository) UpdateInstallation(ctx context.Context, inst *domain.Installation) error {
	query := `
		UPDATE installations
		SET work_order_no = $2,
			customer_name = $3,
			model = $4,
			phone = $5,
			address = $6,
			service_type = $7,
			assignees = $8,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.QueryRow(ctx, query,
		inst.ID,
		inst.WorkOrderNo,
		inst.CustomerName,
		inst.Model,
		inst.Phone,
		inst.Address,
		inst.ServiceType,
		inst.Assignees,
	).Scan(&inst.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return installation.ErrInstallationNotFound
		}
		return fmt.Errorf("update installation: %w", err)
	}
	return nil
}

// CloseInstallation closes an open installation.
func (r *Repository) CloseInstallation(ctx context.Context, id string, mountType domain.MountType, photoURLs []string, closedAt time.Time) error {
	query := `
		UPDATE installations
		SET closed = true, mount_type = $2, photo_urls = $3, closed_at = $4, updated_at = NOW()
		WHERE id = $1 AND NOT closed
	`
	result, err := r.db.Exec(ctx, query, id, string(mountType), photoURLs, closedAt)
	if err != nil {
		return fmt.Errorf("close installation: %w", err)
	}
	if result.RowsAffected() > 0 {
		return nil
	}

	var closed bool
	err = r.db.QueryRow(ctx, `SELECT closed FROM installations WHERE id = $1`, id).Scan(&closed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return installation.ErrInstallationNotFound
		}
		return fmt.Errorf("check installation: %w", err)
	}
	return installation.ErrAlreadyClosed
}

// DeleteInstallation deletes an installation by ID.
func (r *Repository) DeleteInstallation(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM installations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete installation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return installation.ErrInstallationNotFound
	}
	return nil
}

func scanInstallation(row pgx.Row) (*domain.Installation, error) {
	var inst domain.Installation
	var mountType *string
	err := row.Scan(
		&inst.ID,
		&inst.WorkOrderNo,
		&inst.CustomerName,
		&inst.Model,
		&inst.Phone,
		&inst.Address,
		&inst.ServiceType,
		&inst.Assignees,
		&inst.Closed,
		&mountType,
		&inst.PhotoURLs,
		&inst.ClosedAt,
		&inst.CreatedAt,
		&inst.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if mountType != nil {
		mt := domain.MountType(*mountType)
		inst.MountType = &mt
	}
	if inst.PhotoURLs == nil {
		inst.PhotoURLs = []string{}
	}
	return &inst, nil
}
