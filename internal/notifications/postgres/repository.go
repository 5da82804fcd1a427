// Package postgres provides PostgreSQL implementation of the SMS queue.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sis-teknik/servicedesk/internal/domain"
	"github.com/sis-teknik/servicedesk/internal/notifications"
)

// DefaultClaimTTL bounds how long a fetched batch is hidden from other
// workers. It must exceed a full batch of gateway timeouts.
const DefaultClaimTTL = 15 * time.Minute

// DB is satisfied by *pgxpool.Pool and pgxmock pools.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// querier is an interface for database operations that both DB and pgx.Tx implement.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository implements notifications.Repository using PostgreSQL.
type Repository struct {
	db       DB
	claimTTL time.Duration
}

var _ notifications.Repository = (*Repository)(nil)

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db DB, claimTTL time.Duration) *Repository {
	if claimTTL <= 0 {
		claimTTL = DefaultClaimTTL
	}
	return &Repository{db: db, claimTTL: claimTTL}
}

const queueColumns = `id, intake_id, status_code, phone, message, due_at, created_at,
	sent, sent_at, attempts, last_error, provider_message`

// Enqueue inserts a new unsent item due at item.DueAt.
func (r *Repository) Enqueue(ctx context.Context, item *notifications.QueueItem) error {
	return r.enqueue(ctx, r.db, item)
}

// EnqueueTx inserts a new item within a transaction.
func (r *Repository) EnqueueTx(ctx context.Context, tx pgx.Tx, item *notifications.QueueItem) error {
	return r.enqueue(ctx, tx, item)
}

func (r *Repository) enqueue(ctx context.Context, q querier, item *notifications.QueueItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}

	query := `
		INSERT INTO sms_queue (id, intake_id, status_code, phone, message, due_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	err := q.QueryRow(ctx, query,
		item.ID,
		item.IntakeID,
		int16(item.StatusCode),
		item.Phone,
		item.Message,
		item.DueAt,
	).Scan(&item.CreatedAt)
	if err != nil {
		return fmt.Errorf("enqueue sms: %w", err)
	}

	item.Sent = false
	item.Attempts = 0
	return nil
}

// FetchDue claims up to limit unsent items with due_at <= now, oldest due
// first. Claimed rows are skipped by concurrent callers until the claim
// expires or the item is marked.
func (r *Repository) FetchDue(ctx context.Context, limit int, now time.Time) ([]*notifications.QueueItem, error) {
	query := `
		WITH due AS (
			SELECT id FROM sms_queue
			WHERE sent = false
			  AND due_at <= $1
			  AND (claimed_until IS NULL OR claimed_until <= $1)
			ORDER BY due_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		UPDATE sms_queue q
		SET claimed_until = $3
		FROM due
		WHERE q.id = due.id
		RETURNING q.id, q.intake_id, q.status_code, q.phone, q.message, q.due_at, q.created_at,
			q.sent, q.sent_at, q.attempts, q.last_error, q.provider_message
	`
	rows, err := r.db.Query(ctx, query, now, limit, now.Add(r.claimTTL))
	if err != nil {
		return nil, fmt.Errorf("fetch due sms: %w", err)
	}
	defer rows.Close()

	items, err := scanQueueItems(rows)
	if err != nil {
		return nil, fmt.Errorf("fetch due sms: %w", err)
	}

	// UPDATE ... RETURNING does not preserve the CTE order.
	slices.SortStableFunc(items, func(a, b *notifications.QueueItem) int {
		return a.DueAt.Compare(b.DueAt)
	})
	return items, nil
}

// MarkSent records a successful delivery. Calling it again for the same
// item is a no-op.
func (r *Repository) MarkSent(ctx context.Context, id, receiptNote string, now time.Time) error {
	query := `
		UPDATE sms_queue
		SET sent = true,
			sent_at = $2,
			last_error = NULL,
			provider_message = $3,
			attempts = attempts + 1,
			claimed_until = NULL
		WHERE id = $1 AND sent = false
	`
	result, err := r.db.Exec(ctx, query, id, now, receiptNote)
	if err != nil {
		return fmt.Errorf("mark sms sent: %w", err)
	}
	if result.RowsAffected() > 0 {
		return nil
	}

	sent, err := r.isSent(ctx, id)
	if err != nil {
		return err
	}
	if sent {
		return nil
	}
	return notifications.ErrQueueItemNotFound
}

// MarkFailed records a failed attempt and pushes due_at to nextDueAt.
func (r *Repository) MarkFailed(ctx context.Context, id, errText string, nextDueAt time.Time) error {
	query := `
		UPDATE sms_queue
		SET attempts = attempts + 1,
			last_error = $2,
			due_at = $3,
			claimed_until = NULL
		WHERE id = $1 AND sent = false
	`
	result, err := r.db.Exec(ctx, query, id, errText, nextDueAt)
	if err != nil {
		return fmt.Errorf("mark sms failed: %w", err)
	}
	if result.RowsAffected() > 0 {
		return nil
	}

	sent, err := r.isSent(ctx, id)
	if err != nil {
		return err
	}
	if sent {
		return notifications.ErrQueueItemSent
	}
	return notifications.ErrQueueItemNotFound
}

func (r *Repository) isSent(ctx context.Context, id string) (bool, error) {
	var sent bool
	err := r.db.QueryRow(ctx, `SELECT sent FROM sms_queue WHERE id = $1`, id).Scan(&sent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, notifications.ErrQueueItemNotFound
		}
		return false, fmt.Errorf("check sms state: %w", err)
	}
	return sent, nil
}

// ProjectNotified mirrors a delivered message onto its intake record.
// A deleted intake is not an error.
func (r *Repository) ProjectNotified(ctx context.Context, intakeID, message string) error {
	query := `
		UPDATE intakes
		SET sms_sent = true, sms_message = $2, updated_at = NOW()
		WHERE id = $1
	`
	if _, err := r.db.Exec(ctx, query, intakeID, message); err != nil {
		return fmt.Errorf("project sms flag: %w", err)
	}
	return nil
}

// GetQueueItem retrieves a queue item by ID.
func (r *Repository) GetQueueItem(ctx context.Context, id string) (*notifications.QueueItem, error) {
	query := `SELECT ` + queueColumns + ` FROM sms_queue WHERE id = $1`

	item, err := scanQueueItem(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notifications.ErrQueueItemNotFound
		}
		return nil, fmt.Errorf("get sms queue item: %w", err)
	}
	return item, nil
}

// ListQueueItems lists queue items, most recently due first.
func (r *Repository) ListQueueItems(ctx context.Context, filter notifications.QueueFilter, now time.Time) ([]*notifications.QueueItem, error) {
	query := `SELECT ` + queueColumns + ` FROM sms_queue WHERE 1=1`
	args := []interface{}{}
	argNum := 1

	if filter.State != nil {
		switch *filter.State {
		case notifications.QueueStateDelivered:
			query += " AND sent = true"
		case notifications.QueueStatePending:
			query += fmt.Sprintf(" AND sent = false AND due_at > $%d", argNum)
			args = append(args, now)
			argNum++
		case notifications.QueueStateDue:
			query += fmt.Sprintf(" AND sent = false AND due_at <= $%d", argNum)
			args = append(args, now)
			argNum++
		}
	}

	if filter.IntakeID != "" {
		query += fmt.Sprintf(" AND intake_id = $%d", argNum)
		args = append(args, filter.IntakeID)
		argNum++
	}

	query += " ORDER BY due_at DESC"

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
		return nil, fmt.Errorf("list sms queue: %w", err)
	}
	defer rows.Close()

	items, err := scanQueueItems(rows)
	if err != nil {
		return nil, fmt.Errorf("list sms queue: %w", err)
	}
	return items, nil
}

// GetQueueStats counts items per state.
func (r *Repository) GetQueueStats(ctx context.Context, now time.Time) (*notifications.QueueStats, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE sent = false AND due_at > $1),
			COUNT(*) FILTER (WHERE sent = false AND due_at <= $1),
			COUNT(*) FILTER (WHERE sent = true),
			COUNT(*) FILTER (WHERE sent = false AND last_error IS NOT NULL)
		FROM sms_queue
	`
	var stats notifications.QueueStats
	err := r.db.QueryRow(ctx, query, now).Scan(
		&stats.Pending,
		&stats.Due,
		&stats.Sent,
		&stats.Failing,
	)
	if err != nil {
		return nil, fmt.Errorf("get sms queue stats: %w", err)
	}
	return &stats, nil
}

// RescheduleNow makes an unsent item due immediately. An item held by a
// worker keeps its claim and reports ErrQueueItemClaimed.
func (r *Repository) RescheduleNow(ctx context.Context, id string, now time.Time) error {
	query := `
		UPDATE sms_queue
		SET due_at = $2
		WHERE id = $1
		  AND sent = false
		  AND (claimed_until IS NULL OR claimed_until <= $2)
	`
	result, err := r.db.Exec(ctx, query, id, now)
	if err != nil {
		return fmt.Errorf("reschedule sms: %w", err)
	}
	if result.RowsAffected() > 0 {
		return nil
	}

	var sent, claimed bool
	err = r.db.QueryRow(ctx,
		`SELECT sent, COALESCE(claimed_until > $2, false) FROM sms_queue WHERE id = $1`,
		id, now,
	).Scan(&sent, &claimed)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return notifications.ErrQueueItemNotFound
	case err != nil:
		return fmt.Errorf("check sms state: %w", err)
	case sent:
		return notifications.ErrQueueItemSent
	case claimed:
		return notifications.ErrQueueItemClaimed
	}
	// Changed between the two statements; report it as busy.
	return notifications.ErrQueueItemClaimed
}

func scanQueueItem(row pgx.Row) (*notifications.QueueItem, error) {
	var item notifications.QueueItem
	var statusCode int16
	err := row.Scan(
		&item.ID,
		&item.IntakeID,
		&statusCode,
		&item.Phone,
		&item.Message,
		&item.DueAt,
		&item.CreatedAt,
		&item.Sent,
		&item.SentAt,
		&item.Attempts,
		&item.LastError,
		&item.ProviderMessage,
	)
	if err != nil {
		return nil, err
	}
	item.StatusCode = domain.IntakeStatus(statusCode)
	return &item, nil
}

func scanQueueItems(rows pgx.Rows) ([]*notifications.QueueItem, error) {
	items := make([]*notifications.QueueItem, 0)
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sms queue item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sms queue: %w", err)
	}
	return items, nil
}
