// Package intake tracks customer devices through repair and queues the
// customer SMS that each status change calls for.
package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sis-teknik/servicedesk/internal/domain"
	"github.com/sis-teknik/servicedesk/internal/notifications"
	"github.com/sis-teknik/servicedesk/internal/notifications/sms"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	welcomeTimeout = 45 * time.Second
	minPhoneDigits = 10
)

// Config contains intake service configuration.
type Config struct {
	// PublicURL is the customer-facing site used in invoice links.
	PublicURL string
	// StatusDelay defers status SMS so quick corrections still notify.
	StatusDelay time.Duration
}

// Service provides intake business logic.
type Service struct {
	repo   Repository
	queue  QueueWriter
	sender notifications.Sender
	cipher PhoneCipher
	config Config
	now    func() time.Time

	background sync.WaitGroup
}

// NewService creates a new intake service. A nil sender disables the
// immediate welcome SMS; status notifications are still queued.
func NewService(repo Repository, queue QueueWriter, sender notifications.Sender, cipher PhoneCipher, config Config) *Service {
	if config.StatusDelay <= 0 {
		config.StatusDelay = notifications.DefaultStatusDelay
	}
	return &Service{
		repo:   repo,
		queue:  queue,
		sender: sender,
		cipher: cipher,
		config: config,
		now:    time.Now,
	}
}

// CreateIntakeInput contains data for checking in a device.
type CreateIntakeInput struct {
	CustomerName      string
	Phone             string
	DeviceModel       string
	ServiceType       string
	Accessories       string
	Complaint         string
	Notes             string
	TechnicianNote    string
	RepairSlipNo      string
	Status            string
	PriceQuotePending bool
}

// CreateIntake stores a new intake and sends the welcome SMS in the background.
func (s *Service) CreateIntake(ctx context.Context, input CreateIntakeInput) (*domain.Intake, error) {
	status := domain.IntakeStatusReceived
	if input.Status != "" {
		parsed, ok := domain.ParseIntakeStatus(input.Status)
		if !ok {
			return nil, ErrInvalidStatus
		}
		status = parsed
	}

	phone := strings.TrimSpace(input.Phone)
	sealed, err := s.cipher.Encrypt(phone)
	if err != nil {
		return nil, fmt.Errorf("encrypt phone: %w", err)
	}

	intake := &domain.Intake{
		CustomerName:      upper(input.CustomerName),
		Phone:             sealed,
		DeviceModel:       upper(input.DeviceModel),
		ServiceType:       strings.TrimSpace(input.ServiceType),
		Accessories:       upper(input.Accessories),
		Complaint:         upper(input.Complaint),
		Notes:             upper(input.Notes),
		TechnicianNote:    upper(input.TechnicianNote),
		RepairSlipNo:      strings.TrimSpace(input.RepairSlipNo),
		Status:            status,
		PriceQuotePending: input.PriceQuotePending,
	}

	if err := s.repo.CreateIntake(ctx, intake); err != nil {
		return nil, fmt.Errorf("create intake: %w", err)
	}

	intake.Phone = phone
	intake.StatusName = status.Name()

	if s.sender != nil && phone != "" {
		s.sendWelcomeAsync(ctx, *intake)
	}

	return intake, nil
}

// sendWelcomeAsync sends the check-in SMS once, outside the request.
// Success is mirrored onto the intake; failure is only logged.
func (s *Service) sendWelcomeAsync(ctx context.Context, intake domain.Intake) {
	serviceType := intake.ServiceType
	if serviceType == "" {
		serviceType = intake.Accessories
	}
	link := notifications.InvoiceLink(s.config.PublicURL, intake.ID)
	msg := notifications.WelcomeMessage(serviceType, intake.CustomerName, intake.DeviceModel, link)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), welcomeTimeout)

	s.background.Add(1)
	go func() {
		defer s.background.Done()
		defer cancel()

		if _, err := s.sender.Send(ctx, intake.Phone, msg); err != nil {
			slog.Warn("welcome sms failed", "intake_id", intake.ID, "error", err)
			return
		}
		if err := s.repo.SetNotified(ctx, intake.ID, msg); err != nil {
			slog.Warn("failed to update intake sms flag", "intake_id", intake.ID, "error", err)
		}
	}()
}

// Wait blocks until background welcome messages have finished.
func (s *Service) Wait() {
	s.background.Wait()
}

// GetIntake returns an intake by ID.
func (s *Service) GetIntake(ctx context.Context, id string) (*domain.Intake, error) {
	intake, err := s.repo.GetIntake(ctx, id)
	if err != nil {
		return nil, err
	}
	s.reveal(intake)
	return intake, nil
}

// ListIntakes returns intakes, newest first.
func (s *Service) ListIntakes(ctx context.Context, filter ListFilter) ([]domain.Intake, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, ErrInvalidStatus
	}
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	filter.Search = strings.TrimSpace(filter.Search)

	intakes, err := s.repo.ListIntakes(ctx, filter)
	if err != nil {
		return nil, err
	}
	for i := range intakes {
		s.reveal(&intakes[i])
	}
	return intakes, nil
}

// StatusCount is the number of intakes in one status.
type StatusCount struct {
	Status domain.IntakeStatus `json:"status"`
	Name   string              `json:"name"`
	Count  int64               `json:"count"`
}

// GetStats counts intakes per status. Every status is present.
func (s *Service) GetStats(ctx context.Context) ([]StatusCount, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	stats := make([]StatusCount, 0, len(domain.AllIntakeStatuses()))
	for _, status := range domain.AllIntakeStatuses() {
		stats = append(stats, StatusCount{Status: status, Name: status.Name(), Count: counts[status]})
	}
	return stats, nil
}

// DeleteIntake deletes an intake. Queued SMS for it are left to drain.
func (s *Service) DeleteIntake(ctx context.Context, id string) error {
	return s.repo.DeleteIntake(ctx, id)
}

// ResendWelcome sends the check-in SMS again, synchronously. The linked
// message is tried first and the plain one as a fallback.
func (s *Service) ResendWelcome(ctx context.Context, id string) (string, error) {
	if s.sender == nil {
		return "", ErrNotificationsDisabled
	}

	intake, err := s.repo.GetIntake(ctx, id)
	if err != nil {
		return "", err
	}
	phone, ok := s.cipher.RevealPhone(intake.Phone)
	if !ok || sms.CountDigits(phone) < minPhoneDigits {
		return "", ErrInvalidPhone
	}

	plain := notifications.IntakeMessage(intake.CustomerName, intake.DeviceModel)
	linked := notifications.WithInvoiceLink(plain, notifications.InvoiceLink(s.config.PublicURL, intake.ID))

	sent := linked
	if _, primaryErr := s.sender.Send(ctx, phone, linked); primaryErr != nil {
		if _, fallbackErr := s.sender.Send(ctx, phone, plain); fallbackErr != nil {
			return "", fmt.Errorf("%w: first attempt: %v, second attempt: %v", ErrSMSDeliveryFailed, primaryErr, fallbackErr)
		}
		sent = plain
	}

	if err := s.repo.SetNotified(ctx, intake.ID, sent); err != nil {
		return "", fmt.Errorf("set sms flag: %w", err)
	}
	return sent, nil
}

// UpdateIntakeInput contains a partial update. Nil fields are left as is.
type UpdateIntakeInput struct {
	CustomerName      *string
	Phone             *string
	DeviceModel       *string
	ServiceType       *string
	Accessories       *string
	Complaint         *string
	Notes             *string
	TechnicianNote    *string
	RepairSlipNo      *string
	Status            *string
	PriceQuotePending *bool
}

func (in UpdateIntakeInput) empty() bool {
	return in.CustomerName == nil && in.Phone == nil && in.DeviceModel == nil &&
		in.ServiceType == nil && in.Accessories == nil && in.Complaint == nil &&
		in.Notes == nil && in.TechnicianNote == nil && in.RepairSlipNo == nil &&
		in.Status == nil && in.PriceQuotePending == nil
}

// TransitionResult tells whether an update moved the intake to a new status.
type TransitionResult string

// Transition results.
const (
	TransitionNoOp    TransitionResult = "no_op"
	TransitionApplied TransitionResult = "transitioned"
)

// Transition describes the status outcome of an update.
type Transition struct {
	Result             TransitionResult    `json:"result"`
	From               domain.IntakeStatus `json:"from"`
	To                 domain.IntakeStatus `json:"to"`
	NotificationQueued bool                `json:"notification_queued"`
}

// UpdateIntake applies a partial update. When the status changes to one
// with a customer message, the SMS is queued in the same transaction,
// addressed with the name, model and phone as they were before the update.
func (s *Service) UpdateIntake(ctx context.Context, id string, input UpdateIntakeInput) (*domain.Intake, *Transition, error) {
	if input.empty() {
		return nil, nil, ErrNothingToUpdate
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Error("failed to rollback transaction", "error", err)
		}
	}()

	intake, err := s.repo.GetIntakeForUpdateTx(ctx, tx, id)
	if err != nil {
		return nil, nil, err
	}
	before := *intake

	target := before.Status
	if input.Status != nil {
		parsed, ok := domain.ParseIntakeStatus(*input.Status)
		if !ok {
			return nil, nil, ErrInvalidStatus
		}
		target = parsed
	}

	if err := s.apply(intake, input); err != nil {
		return nil, nil, err
	}
	intake.Status = target

	if err := s.repo.UpdateIntakeTx(ctx, tx, intake); err != nil {
		return nil, nil, fmt.Errorf("update intake: %w", err)
	}

	transition := &Transition{Result: TransitionNoOp, From: before.Status, To: target}
	if target != before.Status {
		transition.Result = TransitionApplied

		queued, err := s.queueStatusMessage(ctx, tx, &before, target)
		if err != nil {
			return nil, nil, err
		}
		transition.NotificationQueued = queued
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit transaction: %w", err)
	}

	s.reveal(intake)
	return intake, transition, nil
}

// Transition moves an intake to status and reports what happened.
func (s *Service) Transition(ctx context.Context, id string, status domain.IntakeStatus) (*Transition, error) {
	code := strconv.Itoa(int(status))
	_, transition, err := s.UpdateIntake(ctx, id, UpdateIntakeInput{Status: &code})
	return transition, err
}

func (s *Service) queueStatusMessage(ctx context.Context, tx pgx.Tx, before *domain.Intake, target domain.IntakeStatus) (bool, error) {
	msg, ok := notifications.RenderStatusMessage(target, before.CustomerName, before.DeviceModel)
	if !ok {
		return false, nil
	}

	if strings.TrimSpace(before.Phone) == "" {
		slog.Warn("status sms skipped, intake has no phone", "intake_id", before.ID, "status", int(target))
		return false, nil
	}
	phone, ok := s.cipher.RevealPhone(before.Phone)
	if !ok {
		slog.Error("status sms skipped, stored phone cannot be decrypted", "intake_id", before.ID, "status", int(target))
		return false, nil
	}

	item := &notifications.QueueItem{
		IntakeID:   before.ID,
		StatusCode: target,
		Phone:      phone,
		Message:    msg,
		DueAt:      s.now().Add(s.config.StatusDelay),
	}
	if err := s.queue.EnqueueTx(ctx, tx, item); err != nil {
		return false, fmt.Errorf("enqueue status sms: %w", err)
	}
	return true, nil
}

func (s *Service) apply(intake *domain.Intake, in UpdateIntakeInput) error {
	if in.CustomerName != nil {
		intake.CustomerName = upper(*in.CustomerName)
	}
	if in.Phone != nil {
		sealed, err := s.cipher.Encrypt(strings.TrimSpace(*in.Phone))
		if err != nil {
			return fmt.Errorf("encrypt phone: %w", err)
		}
		intake.Phone = sealed
	}
	if in.DeviceModel != nil {
		intake.DeviceModel = upper(*in.DeviceModel)
	}
	if in.ServiceType != nil {
		intake.ServiceType = strings.TrimSpace(*in.ServiceType)
	}
	if in.Accessories != nil {
		intake.Accessories = upper(*in.Accessories)
	}
	if in.Complaint != nil {
		intake.Complaint = upper(*in.Complaint)
	}
	if in.Notes != nil {
		intake.Notes = upper(*in.Notes)
	}
	if in.TechnicianNote != nil {
		intake.TechnicianNote = upper(*in.TechnicianNote)
	}
	if in.RepairSlipNo != nil {
		intake.RepairSlipNo = strings.TrimSpace(*in.RepairSlipNo)
	}
	if in.PriceQuotePending != nil {
		intake.PriceQuotePending = *in.PriceQuotePending
	}
	return nil
}

func (s *Service) reveal(intake *domain.Intake) {
	intake.Phone = s.cipher.Reveal(intake.Phone)
	intake.StatusName = intake.Status.Name()
}

func upper(v string) string {
	return cases.Upper(language.Und).String(strings.TrimSpace(v))
}
