package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/sis-teknik/servicedesk/internal/domain"
	"github.com/sis-teknik/servicedesk/internal/notifications"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var queueRowColumns = []string{
	"id", "intake_id", "status_code", "phone", "message", "due_at", "created_at",
	"sent", "sent_at", "attempts", "last_error", "provider_message",
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestRepository_Enqueue(t *testing.T) {
	mock := newMock(t)
	repo := NewRepository(mock, 0)

	due := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)
	created := due.Add(-time.Hour)

	mock.ExpectQuery(`INSERT INTO sms_queue \(id, intake_id, status_code, phone, message, due_at\)`).
		WithArgs(pgxmock.AnyArg(), "intake-1", int16(2), "905321112233", "msg", due).
		WillReturnRows(mock.NewRows([]string{"created_at"}).AddRow(created))

	item := &notifications.QueueItem{
		IntakeID:   "intake-1",
		StatusCode: domain.IntakeStatusWithTechnician,
		Phone:      "905321112233",
		Message:    "msg",
		DueAt:      due,
	}
	err := repo.Enqueue(context.Background(), item)

	require.NoError(t, err)
	assert.NotEmpty(t, item.ID)
	assert.Equal(t, created, item.CreatedAt)
	assert.False(t, item.Sent)
	assert.Zero(t, item.Attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Enqueue_TwiceCreatesTwoItems(t *testing.T) {
	mock := newMock(t)
	repo := NewRepository(mock, 0)
	due := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		mock.ExpectQuery(`INSERT INTO sms_queue`).
			WithArgs(pgxmock.AnyArg(), "intake-1", int16(3), "905321112233", "msg", due).
			WillReturnRows(mock.NewRows([]string{"created_at"}).AddRow(due))
	}

	first := &notifications.QueueItem{IntakeID: "intake-1", StatusCode: 3, Phone: "905321112233", Message: "msg", DueAt: due}
	second := &notifications.QueueItem{IntakeID: "intake-1", StatusCode: 3, Phone: "905321112233", Message: "msg", DueAt: due}

	require.NoError(t, repo.Enqueue(context.Background(), first))
	require.NoError(t, repo.Enqueue(context.Background(), second))

	assert.NotEqual(t, first.ID, second.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_FetchDue(t *testing.T) {
	mock := newMock(t)
	repo := NewRepository(mock, 10*time.Minute)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	older := now.Add(-30 * time.Minute)
	newer := now.Add(-5 * time.Minute)
	lastErr := "sms transport: request timed out"

	rows := mock.NewRows(queueRowColumns).
		AddRow("b", "intake-2", int16(4), "905000000002", "m2", newer, newer, false, (*time.Time)(nil), 0, (*string)(nil), (*string)(nil)).
		AddRow("a", "intake-1", int16(2), "905000000001", "m1", older, older, false, (*time.Time)(nil), 1, &lastErr, (*string)(nil))

	mock.ExpectQuery(`WITH due AS \(\s*SELECT id FROM sms_queue\s*WHERE sent = false`).
		WithArgs(now, 25, now.Add(10*time.Minute)).
		WillReturnRows(rows)

	items, err := repo.FetchDue(context.Background(), 25, now)

	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].ID, "oldest due first")
	assert.Equal(t, "b", items[1].ID)
	assert.Equal(t, domain.IntakeStatusWithTechnician, items[0].StatusCode)
	require.NotNil(t, items[0].LastError)
	assert.Equal(t, lastErr, *items[0].LastError)
	assert.Equal(t, 1, items[0].Attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_FetchDue_Error(t *testing.T) {
	mock := newMock(t)
	repo := NewRepository(mock, 0)
	now := time.Now()

	mock.ExpectQuery(`WITH due AS`).
		WithArgs(now, 25, now.Add(DefaultClaimTTL)).
		WillReturnError(errors.New("connection reset"))

	_, err := repo.FetchDue(context.Background(), 25, now)

	assert.ErrorContains(t, err, "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_MarkSent(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("first call updates", func(t *testing.T) {
		mock := newMock(t)
		repo := NewRepository(mock, 0)

		mock.ExpectExec(`UPDATE sms_queue\s+SET sent = true`).
			WithArgs("a", now, "ok: queued").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.MarkSent(context.Background(), "a", "ok: queued", now))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("second call is a no-op", func(t *testing.T) {
		mock := newMock(t)
		repo := NewRepository(mock, 0)

		mock.ExpectExec(`UPDATE sms_queue\s+SET sent = true`).
			WithArgs("a", now, "ok: queued").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectQuery(`SELECT sent FROM sms_queue WHERE id = \$1`).
			WithArgs("a").
			WillReturnRows(mock.NewRows([]string{"sent"}).AddRow(true))

		require.NoError(t, repo.MarkSent(context.Background(), "a", "ok: queued", now))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing item", func(t *testing.T) {
		mock := newMock(t)
		repo := NewRepository(mock, 0)

		mock.ExpectExec(`UPDATE sms_queue\s+SET sent = true`).
			WithArgs("missing", now, "").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectQuery(`SELECT sent FROM sms_queue`).
			WithArgs("missing").
			WillReturnError(pgx.ErrNoRows)

		err := repo.MarkSent(context.Background(), "missing", "", now)
		assert.ErrorIs(t, err, notifications.ErrQueueItemNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepository_MarkFailed(t *testing.T) {
	next := time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC)

	t.Run("reschedules", func(t *testing.T) {
		mock := newMock(t)
		repo := NewRepository(mock, 0)

		mock.ExpectExec(`UPDATE sms_queue\s+SET attempts = attempts \+ 1,\s+last_error = \$2,\s+due_at = \$3`).
			WithArgs("a", "timeout", next).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.MarkFailed(context.Background(), "a", "timeout", next))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("never touches a sent item", func(t *testing.T) {
		mock := newMock(t)
		repo := NewRepository(mock, 0)

		mock.ExpectExec(`UPDATE sms_queue`).
			WithArgs("a", "timeout", next).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectQuery(`SELECT sent FROM sms_queue`).
			WithArgs("a").
			WillReturnRows(mock.NewRows([]string{"sent"}).AddRow(true))

		err := repo.MarkFailed(context.Background(), "a", "timeout", next)
		assert.ErrorIs(t, err, notifications.ErrQueueItemSent)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepository_ProjectNotified(t *testing.T) {
	mock := newMock(t)
	repo := NewRepository(mock, 0)

	mock.ExpectExec(`UPDATE intakes\s+SET sms_sent = true, sms_message = \$2`).
		WithArgs("intake-1", "msg").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	assert.NoError(t, repo.ProjectNotified(context.Background(), "intake-1", "msg"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetQueueItem_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewRepository(mock, 0)

	mock.ExpectQuery(`SELECT id, intake_id`).
		WithArgs("x").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetQueueItem(context.Background(), "x")

	assert.ErrorIs(t, err, notifications.ErrQueueItemNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ListQueueItems_DueFilter(t *testing.T) {
	mock := newMock(t)
	repo := NewRepository(mock, 0)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	state := notifications.QueueStateDue

	mock.ExpectQuery(`FROM sms_queue WHERE 1=1 AND sent = false AND due_at <= \$1 AND intake_id = \$2 ORDER BY due_at DESC LIMIT \$3`).
		WithArgs(now, "intake-1", 50).
		WillReturnRows(mock.NewRows(queueRowColumns))

	items, err := repo.ListQueueItems(context.Background(), notifications.QueueFilter{
		State:    &state,
		IntakeID: "intake-1",
		Limit:    50,
	}, now)

	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetQueueStats(t *testing.T) {
	mock := newMock(t)
	repo := NewRepository(mock, 0)
	now := time.Now()

	mock.ExpectQuery(`COUNT\(\*\) FILTER`).
		WithArgs(now).
		WillReturnRows(mock.NewRows([]string{"pending", "due", "sent", "failing"}).
			AddRow(int64(3), int64(1), int64(10), int64(1)))

	stats, err := repo.GetQueueStats(context.Background(), now)

	require.NoError(t, err)
	assert.Equal(t, &notifications.QueueStats{Pending: 3, Due: 1, Sent: 10, Failing: 1}, stats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_RescheduleNow(t *testing.T) {
	mock := newMock(t)
	repo := NewRepository(mock, 0)
	now := time.Now()

	mock.ExpectExec(`UPDATE sms_queue\s+SET due_at = \$2\s+WHERE id = \$1\s+AND sent = false\s+AND \(claimed_until IS NULL OR claimed_until <= \$2\)`).
		WithArgs("a", now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	assert.NoError(t, repo.RescheduleNow(context.Background(), "a", now))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_RescheduleNow_Conflicts(t *testing.T) {
	tests := []struct {
		name    string
		rows    func(mock pgxmock.PgxPoolIface) *pgxmock.Rows
		wantErr error
	}{
		{
			name:    "claimed by a worker",
			rows:    func(m pgxmock.PgxPoolIface) *pgxmock.Rows { return m.NewRows([]string{"sent", "claimed"}).AddRow(false, true) },
			wantErr: notifications.ErrQueueItemClaimed,
		},
		{
			name:    "already sent",
			rows:    func(m pgxmock.PgxPoolIface) *pgxmock.Rows { return m.NewRows([]string{"sent", "claimed"}).AddRow(true, false) },
			wantErr: notifications.ErrQueueItemSent,
		},
		{
			name:    "unknown",
			rows:    func(m pgxmock.PgxPoolIface) *pgxmock.Rows { return m.NewRows([]string{"sent", "claimed"}) },
			wantErr: notifications.ErrQueueItemNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			repo := NewRepository(mock, 0)
			now := time.Now()

			mock.ExpectExec(`UPDATE sms_queue`).
				WithArgs("a", now).
				WillReturnResult(pgxmock.NewResult("UPDATE", 0))
			mock.ExpectQuery(`SELECT sent, COALESCE\(claimed_until > \$2, false\)`).
				WithArgs("a", now).
				WillReturnRows(tt.rows(mock))

			err := repo.RescheduleNow(context.Background(), "a", now)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
