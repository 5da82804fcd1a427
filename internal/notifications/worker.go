package notifications

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// WorkerConfig contains worker configuration.
type WorkerConfig struct {
	BatchSize    int
	PollInterval time.Duration
	RetryDelay   time.Duration
}

// DefaultWorkerConfig returns default worker configuration.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		BatchSize:    25,
		PollInterval: 30 * time.Second,
		RetryDelay:   DefaultRetryDelay,
	}
}

// Worker drains due SMS from the queue. A single goroutine ticks, and
// items within a batch are sent one at a time in due order.
type Worker struct {
	config WorkerConfig
	store  QueueStore
	sender Sender
	now    func() time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewWorker creates a new queue worker.
func NewWorker(config WorkerConfig, store QueueStore, sender Sender) *Worker {
	defaults := DefaultWorkerConfig()
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = defaults.RetryDelay
	}

	return &Worker{
		config: config,
		store:  store,
		sender: sender,
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
}

// Start launches the polling loop.
func (w *Worker) Start(ctx context.Context) {
	slog.Info("starting sms queue worker",
		"batch_size", w.config.BatchSize,
		"poll_interval", w.config.PollInterval,
		"retry_delay", w.config.RetryDelay,
	)

	w.wg.Add(1)
	go w.run(ctx)
}

// Stop ends the loop after the current tick and waits for it.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
	slog.Info("sms queue worker stopped")
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			if _, err := w.ProcessDue(ctx); err != nil {
				slog.Error("sms queue tick aborted", "error", err)
			}
		}
	}
}

// ProcessDue runs one tick: fetch a batch of due items and attempt each.
// A store error aborts the tick; items left untouched are picked up later.
func (w *Worker) ProcessDue(ctx context.Context) (int, error) {
	items, err := w.store.FetchDue(ctx, w.config.BatchSize, w.now())
	if err != nil {
		return 0, &StoreError{Op: "fetch due", Err: err}
	}

	if len(items) == 0 {
		return 0, nil
	}

	slog.Debug("processing sms queue batch", "count", len(items))
	recordQueueFetched(len(items))

	processed := 0
	for _, item := range items {
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}
		if err := w.processItem(ctx, item); err != nil {
			return processed, err
		}
		processed++
	}

	return processed, nil
}

func (w *Worker) processItem(ctx context.Context, item *QueueItem) error {
	attemptAt := w.now()

	receipt, sendErr := w.sender.Send(ctx, item.Phone, item.Message)
	recordSendDuration(w.now().Sub(attemptAt))

	if sendErr != nil {
		return w.handleSendError(ctx, item, attemptAt, sendErr)
	}

	if err := w.store.MarkSent(ctx, item.ID, receipt.Note(), w.now()); err != nil {
		return &StoreError{Op: "mark sent", Err: err}
	}
	recordAttempt(outcomeSent)

	slog.Info("sms delivered",
		"item_id", item.ID,
		"intake_id", item.IntakeID,
		"status_code", int(item.StatusCode),
		"attempt", item.Attempts+1,
	)

	if err := w.store.ProjectNotified(ctx, item.IntakeID, item.Message); err != nil {
		perr := &ProjectionError{IntakeID: item.IntakeID, Err: err}
		slog.Warn("failed to update intake sms flag", "item_id", item.ID, "error", perr)
		recordProjectionFailure()
	}

	return nil
}

func (w *Worker) handleSendError(ctx context.Context, item *QueueItem, attemptAt time.Time, sendErr error) error {
	nextDueAt := attemptAt.Add(w.config.RetryDelay)

	if err := w.store.MarkFailed(ctx, item.ID, sendErr.Error(), nextDueAt); err != nil {
		return &StoreError{Op: "mark failed", Err: err}
	}

	if IsRetryable(sendErr) {
		recordAttempt(outcomeFailed)
		slog.Warn("sms delivery failed, rescheduled",
			"item_id", item.ID,
			"attempt", item.Attempts+1,
			"next_due_at", nextDueAt,
			"error", sendErr,
		)
		return nil
	}

	// Still rescheduled: the record may be corrected before the next attempt.
	recordAttempt(outcomeRejected)
	slog.Error("sms rejected before sending",
		"item_id", item.ID,
		"intake_id", item.IntakeID,
		"attempt", item.Attempts+1,
		"error", sendErr,
	)
	return nil
}
