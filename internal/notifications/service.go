package notifications

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Service exposes the SMS queue to operators.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a new queue service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// ListQueue returns queue items with phone numbers masked.
func (s *Service) ListQueue(ctx context.Context, filter QueueFilter) ([]*QueueItem, error) {
	if filter.State != nil && !filter.State.IsValid() {
		return nil, &ValidationError{Field: "state", Message: "must be one of pending, due, delivered"}
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = defaultListLimit
	case filter.Limit > maxListLimit:
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	items, err := s.repo.ListQueueItems(ctx, filter, s.now())
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		item.Phone = MaskPhone(item.Phone)
	}
	return items, nil
}

// GetQueueItem returns one queue item with the phone masked.
func (s *Service) GetQueueItem(ctx context.Context, id string) (*QueueItem, error) {
	item, err := s.repo.GetQueueItem(ctx, id)
	if err != nil {
		return nil, err
	}
	item.Phone = MaskPhone(item.Phone)
	return item, nil
}

// Stats returns queue sizes and refreshes the queue gauges.
func (s *Service) Stats(ctx context.Context) (*QueueStats, error) {
	stats, err := s.repo.GetQueueStats(ctx, s.now())
	if err != nil {
		return nil, err
	}
	RecordQueueStats(stats)
	return stats, nil
}

// Retry makes an unsent item due now so the next tick picks it up.
func (s *Service) Retry(ctx context.Context, id string) (*QueueItem, error) {
	if err := s.repo.RescheduleNow(ctx, id, s.now()); err != nil {
		return nil, err
	}
	return s.GetQueueItem(ctx, id)
}

// CollectStats refreshes the queue gauges. Run it on a ticker.
func (s *Service) CollectStats(ctx context.Context) {
	if _, err := s.Stats(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("failed to collect sms queue stats", "error", err)
	}
}

// MaskPhone keeps the last four digits for logs and listings.
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return strings.Repeat("*", len(phone))
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
