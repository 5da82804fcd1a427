// Package postgres provides PostgreSQL implementation of intake repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sis-teknik/servicedesk/internal/domain"
	"github.com/sis-teknik/servicedesk/internal/intake"
)

// Repository implements intake.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

var _ intake.Repository = (*Repository)(nil)

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// querier is an interface for database operations that both pgxpool.Pool and pgx.Tx implement.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const intakeColumns = `id, customer_name, phone, device_model, service_type, accessories,
	complaint, notes, technician_note, repair_slip_no, status, price_quote_pending,
	sms_sent, sms_message, created_at, updated_at`

// BeginTx starts a new transaction.
func (r *Repository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.db.Begin(ctx)
}

// CreateIntake creates a new intake.
func (r *Repository) CreateIntake(ctx context.Context, in *domain.Intake) error {
	query := `
		INSERT INTO intakes (id, customer_name, phone, device_model, service_type, accessories,
			complaint, notes, technician_note, repair_slip_no, status, price_quote_pending)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`
	in.ID = uuid.NewString()
	err := r.db.QueryRow(ctx, query,
		in.ID,
		in.CustomerName,
		in.Phone,
		in.DeviceModel,
		in.ServiceType,
		in.Accessories,
		in.Complaint,
		in.Notes,
		in.TechnicianNote,
		in.RepairSlipNo,
		int16(in.Status),
		in.PriceQuotePending,
	).Scan(&in.CreatedAt, &in.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert intake: %w", err)
	}
	return nil
}

// GetIntake retrieves an intake by ID.
func (r *Repository) GetIntake(ctx context.Context, id string) (*domain.Intake, error) {
	return r.getIntake(ctx, r.db, `SELECT `+intakeColumns+` FROM intakes WHERE id = $1`, id)
}

// GetIntakeForUpdateTx retrieves an intake and locks its row until tx ends.
func (r *Repository) GetIntakeForUpdateTx(ctx context.Context, tx pgx.Tx, id string) (*domain.Intake, error) {
	return r.getIntake(ctx, tx, `SELECT `+intakeColumns+` FROM intakes WHERE id = $1 FOR UPDATE`, id)
}

func (r *Repository) getIntake(ctx context.Context, q querier, query, id string) (*domain.Intake, error) {
	in, err := scanIntake(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, intake.ErrIntakeNotFound
		}
		return nil, fmt.Errorf("get intake: %w", err)
	}
	return in, nil
}

// UpdateIntakeTx writes every editable field within a transaction.
func (r *Repository) UpdateIntakeTx(ctx context.Context, tx pgx.Tx, in *domain.Intake) error {
	query := `
		UPDATE intakes
		SET customer_name = $2,
			phone = $3,
			device_model = $4,
			service_type = $5,
			accessories = $6,
			complaint = $7,
			notes = $8,
			technician_note = $9,
			repair_slip_no = $10,
			status = $11,
			price_quote_pending = $12,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := tx.QueryRow(ctx, query,
		in.ID,
		in.CustomerName,
		in.Phone,
		in.DeviceModel,
		in.ServiceType,
		in.Accessories,
		in.Complaint,
		in.Notes,
		in.TechnicianNote,
		in.RepairSlipNo,
		int16(in.Status),
		in.PriceQuotePending,
	).Scan(&in.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return intake.ErrIntakeNotFound
		}
		return fmt.Errorf("update intake: %w", err)
	}
	return nil
}

// ListIntakes lists intakes with optional filters, newest first.
func (r *Repository) ListIntakes(ctx context.Context, filter intake.ListFilter) ([]domain.Intake, error) {
	query := `SELECT ` + intakeColumns + ` FROM intakes WHERE 1=1`
	args := []interface{}{}
	argNum := 1

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, int16(*filter.Status))
		argNum++
	}

	if filter.Search != "" {
		query += fmt.Sprintf(" AND (customer_name ILIKE $%d OR device_model ILIKE $%d OR repair_slip_no ILIKE $%d)", argNum, argNum, argNum)
		args = append(args, "%"+filter.Search+"%")
		argNum++
	}

	query += " ORDER BY created_at DESC, id DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, filter.Limit)
		argNum++
	}

	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argNum)
		args = append(args, filter.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list intakes: %w", err)
	}
	defer rows.Close()

	intakes := make([]domain.Intake, 0)
	for rows.Next() {
		in, err := scanIntake(rows)
		if err != nil {
			return nil, fmt.Errorf("scan intake: %w", err)
		}
		intakes = append(intakes, *in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate intakes: %w", err)
	}
	return intakes, nil
}

// CountByStatus counts intakes per status.
func (r *Repository) CountByStatus(ctx context.Context) (map[domain.IntakeStatus]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM intakes GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count intakes: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.IntakeStatus]int64)
	for rows.Next() {
		var status int16
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan intake count: %w", err)
		}
		counts[domain.IntakeStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate intake counts: %w", err)
	}
	return counts, nil
}

// DeleteIntake deletes an intake by ID.
func (r *Repository) DeleteIntake(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM intakes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete intake: %w", err)
	}
	if result.RowsAffected() == 0 {
		return intake.ErrIntakeNotFound
	}
	return nil
}

// SetNotified records the last message delivered to the customer.
func (r *Repository) SetNotified(ctx context.Context, id, message string) error {
	query := `
		UPDATE intakes
		SET sms_sent = true, sms_message = $2, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.Exec(ctx, query, id, message)
	if err != nil {
		return fmt.Errorf("set intake sms flag: %w", err)
	}
	if result.RowsAffected() == 0 {
		return intake.ErrIntakeNotFound
	}
	return nil
}

func scanIntake(row pgx.Row) (*domain.Intake, error) {
	var in domain.Intake
	var status int16
	var smsMessage *string
	err := row.Scan(
		&in.ID,
		&in.CustomerName,
		&in.Phone,
		&in.DeviceModel,
		&in.ServiceType,
		&in.Accessories,
		&in.Complaint,
		&in.Notes,
		&in.TechnicianNote,
		&in.RepairSlipNo,
		&status,
		&in.PriceQuotePending,
		&in.SMSSent,
		&smsMessage,
		&in.CreatedAt,
		&in.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	in.Status = domain.IntakeStatus(status)
	if smsMessage != nil {
		in.SMSMessage = *smsMessage
	}
	return &in, nil
}
