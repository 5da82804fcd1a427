// Package installation manages on-site jobs handed to the field crew.
package installation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sis-teknik/servicedesk/internal/domain"
	"github.com/sis-teknik/servicedesk/internal/notifications"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const welcomeTimeout = 45 * time.Second

// Config contains installation service configuration.
type Config struct {
	// PublicURL is the customer-facing site used in invoice links.
	PublicURL string
}

// Viewer identifies who is asking. Installers only see their own jobs.
type Viewer struct {
	Username string
	Role     domain.Role
}

func (v Viewer) restricted() bool {
	return !v.Role.HasPermission(domain.RoleTechnician)
}

// Service provides installation business logic.
type Service struct {
	repo   Repository
	sender notifications.Sender
	cipher PhoneCipher
	config Config
	now    func() time.Time

	background sync.WaitGroup
}

// NewService creates a new installation service. A nil sender disables the
// registration SMS.
func NewService(repo Repository, sender notifications.Sender, cipher PhoneCipher, config Config) *Service {
	return &Service{
		repo:   repo,
		sender: sender,
		cipher: cipher,
		config: config,
		now:    time.Now,
	}
}

// CreateInput contains data for registering a job.
type CreateInput struct {
	WorkOrderNo  string
	CustomerName string
	Model        string
	Phone        string
	Address      string
	ServiceType  string
	Assignees    []string
}

// Create stores a new installation and notifies the customer in the background.
func (s *Service) Create(ctx context.Context, input CreateInput) (*domain.Installation, error) {
	assignees := normalizeAssignees(input.Assignees)
	if len(assignees) == 0 {
		return nil, ErrNoAssignees
	}

	phone := strings.TrimSpace(input.Phone)
	sealed, err := s.cipher.Encrypt(phone)
	if err != nil {
		return nil, fmt.Errorf("encrypt phone: %w", err)
	}

	inst := &domain.Installation{
		WorkOrderNo:  upper(input.WorkOrderNo),
		CustomerName: upper(input.CustomerName),
		Model:        upper(input.Model),
		Phone:        sealed,
		Address:      strings.TrimSpace(input.Address),
		ServiceType:  strings.TrimSpace(input.ServiceType),
		Assignees:    assignees,
		PhotoURLs:    []string{},
	}

	if err := s.repo.CreateInstallation(ctx, inst); err != nil {
		return nil, fmt.Errorf("create installation: %w", err)
	}
	inst.Phone = phone

	if s.sender != nil && phone != "" {
		s.notifyAsync(ctx, *inst)
	}

	return inst, nil
}

func (s *Service) notifyAsync(ctx context.Context, inst domain.Installation) {
	link := notifications.InvoiceLink(s.config.PublicURL, inst.ID)
	msg := notifications.InstallationMessage(inst.ServiceType, inst.CustomerName, inst.Model, link)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), welcomeTimeout)

	s.background.Add(1)
	go func() {
		defer s.background.Done()
		defer cancel()

		if _, err := s.sender.Send(ctx, inst.Phone, msg); err != nil {
			slog.Warn("installation sms failed", "installation_id", inst.ID, "error", err)
		}
	}()
}

// Wait blocks until background messages have finished.
func (s *Service) Wait() {
	s.background.Wait()
}

// Get returns an installation. Jobs outside an installer's crew read as not found.
func (s *Service) Get(ctx context.Context, viewer Viewer, id string) (*domain.Installation, error) {
	inst, err := s.repo.GetInstallation(ctx, id)
	if err != nil {
		return nil, err
	}
	if viewer.restricted() && !inst.IsAssignedTo(viewer.Username) {
		return nil, ErrInstallationNotFound
	}
	inst.Phone = s.cipher.Reveal(inst.Phone)
	return inst, nil
}

// List returns installations, open jobs first.
func (s *Service) List(ctx context.Context, viewer Viewer, filter ListFilter) ([]domain.Installation, error) {
	filter.Assignee = strings.ToLower(strings.TrimSpace(filter.Assignee))
	if viewer.restricted() {
		filter.Assignee = viewer.Username
	}

	items, err := s.repo.ListInstallations(ctx, filter)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].Phone = s.cipher.Reveal(items[i].Phone)
	}
	return items, nil
}

// UpdateInput contains a partial update. Nil fields are left as is.
type UpdateInput struct {
	WorkOrderNo  *string
	CustomerName *string
	Model        *string
	Phone        *string
	Address      *string
	ServiceType  *string
	Assignees    *[]string
}

// Update applies a partial update.
func (s *Service) Update(ctx context.Context, id string, input UpdateInput) (*domain.Installation, error) {
	if input == (UpdateInput{}) {
		return nil, ErrNothingToUpdate
	}

	inst, err := s.repo.GetInstallation(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.WorkOrderNo != nil {
		inst.WorkOrderNo = upper(*input.WorkOrderNo)
	}
	if input.CustomerName != nil {
		inst.CustomerName = upper(*input.CustomerName)
	}
	if input.Model != nil {
		inst.Model = upper(*input.Model)
	}
	if input.Phone != nil {
		sealed, err := s.cipher.Encrypt(strings.TrimSpace(*input.Phone))
		if err != nil {
			return nil, fmt.Errorf("encrypt phone: %w", err)
		}
		inst.Phone = sealed
	}
	if input.Address != nil {
		inst.Address = strings.TrimSpace(*input.Address)
	}
	if input.ServiceType != nil {
		inst.ServiceType = strings.TrimSpace(*input.ServiceType)
	}
	if input.Assignees != nil {
		assignees := normalizeAssignees(*input.Assignees)
		if len(assignees) == 0 {
			return nil, ErrNoAssignees
		}
		inst.Assignees = assignees
	}

	if err := s.repo.UpdateInstallation(ctx, inst); err != nil {
		return nil, fmt.Errorf("update installation: %w", err)
	}

	inst.Phone = s.cipher.Reveal(inst.Phone)
	return inst, nil
}

// CloseInput contains the evidence a crew member leaves when finishing a job.
type CloseInput struct {
	MountType string
	PhotoURLs []string
}

// Close marks a job finished. A mount type and at least one photo are required.
func (s *Service) Close(ctx context.Context, viewer Viewer, id string, input CloseInput) (*domain.Installation, error) {
	mount := domain.MountType(strings.ToUpper(strings.TrimSpace(input.MountType)))
	if mount == "" {
		return nil, ErrMountTypeRequired
	}
	if !mount.IsValid() {
		return nil, ErrInvalidMountType
	}

	photos := make([]string, 0, len(input.PhotoURLs))
	for _, p := range input.PhotoURLs {
		if p = strings.TrimSpace(p); p != "" {
			photos = append(photos, p)
		}
	}
	if len(photos) == 0 {
		return nil, ErrPhotoRequired
	}

	inst, err := s.Get(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	if inst.Closed {
		return nil, ErrAlreadyClosed
	}

	closedAt := s.now()
	if err := s.repo.CloseInstallation(ctx, id, mount, photos, closedAt); err != nil {
		return nil, err
	}

	inst.Closed = true
	inst.MountType = &mount
	inst.PhotoURLs = photos
	inst.ClosedAt = &closedAt
	return inst, nil
}

// Delete deletes an installation.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.DeleteInstallation(ctx, id)
}

// normalizeAssignees trims, lower-cases and de-duplicates usernames, keeping order.
func normalizeAssignees(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, a := range in {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	return out
}

func upper(v string) string {
	return cases.Upper(language.Und).String(strings.TrimSpace(v))
}
