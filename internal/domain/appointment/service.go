package appointment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicore/clinic-server/internal/domain/notification"
	"github.com/clinicore/clinic-server/internal/platform/auth"
)

// Notifier is the slice of the notification dispatcher the lifecycle manager
// needs. Dispatch failures are logged and never abort a committed change.
type Notifier interface {
	Dispatch(ctx context.Context, e notification.Event) error
}

type Service struct {
	repo     Repository
	notifier Notifier
	log      zerolog.Logger
}

func NewService(repo Repository, notifier Notifier, log zerolog.Logger) *Service {
	return &Service{repo: repo, notifier: notifier, log: log}
}

func (s *Service) Create(ctx context.Context, scope auth.AccessScope, a *Appointment) error {
	if scope.IsPatient() {
		// Patients book for themselves only.
		a.PatientID = scope.UserID
	}
	if a.PatientID == uuid.Nil {
		return fmt.Errorf("%w: patient_id is required", ErrValidation)
	}
	if a.DoctorID == uuid.Nil {
		return fmt.Errorf("%w: doctor_id is required", ErrValidation)
	}
	if a.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrValidation)
	}
	if _, err := time.Parse("15:04", a.Time); err != nil {
		return fmt.Errorf("%w: time must be HH:MM", ErrValidation)
	}
	if a.Type == "" {
		a.Type = TypeConsultation
	}
	a.Status = StatusScheduled
	a.CancellationReason = nil
	a.RescheduleReason = nil
	return s.repo.Create(ctx, a)
}

func (s *Service) Get(ctx context.Context, scope auth.AccessScope, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, scope, id)
}

func (s *Service) List(ctx context.Context, scope auth.AccessScope, f Filter, limit, offset int) ([]*Appointment, int, error) {
	if f.Status != "" && !validStatuses[f.Status] {
		return nil, 0, fmt.Errorf("%w: unknown status %q", ErrValidation, f.Status)
	}
	return s.repo.List(ctx, scope, f, limit, offset)
}

func (s *Service) Upcoming(ctx context.Context, scope auth.AccessScope, limit int) ([]*Appointment, error) {
	return s.repo.ListUpcoming(ctx, scope, today(), limit)
}

func (s *Service) Today(ctx context.Context, scope auth.AccessScope) ([]*Appointment, error) {
	return s.repo.ListOn(ctx, scope, today())
}

func (s *Service) UrgentToday(ctx context.Context, scope auth.AccessScope) ([]*Appointment, error) {
	return s.repo.ListUrgentOn(ctx, scope, today())
}

// transition loads the appointment, checks the transition table and writes
// the new status under the version check.
func (s *Service) transition(ctx context.Context, scope auth.AccessScope, id uuid.UUID, to string) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if err := attemptTransition(a.Status, to); err != nil {
		return nil, err
	}
	a.Status = to
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) Confirm(ctx context.Context, scope auth.AccessScope, id uuid.UUID) (*Appointment, error) {
	a, err := s.transition(ctx, scope, id, StatusConfirmed)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, notification.Event{
		Type:       notification.TypeAppointment,
		Recipients: []uuid.UUID{a.PatientID},
		Title:      "Appointment Confirmed",
		Message:    fmt.Sprintf("Your appointment on %s at %s has been confirmed.", a.Date.Format("2006-01-02"), a.Time),
		Data:       map[string]string{"date": a.Date.Format("2006-01-02"), "time": a.Time},
	})
	return a, nil
}

func (s *Service) Start(ctx context.Context, scope auth.AccessScope, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, scope, id, StatusInProgress)
}

func (s *Service) Complete(ctx context.Context, scope auth.AccessScope, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, scope, id, StatusCompleted)
}

func (s *Service) MarkNoShow(ctx context.Context, scope auth.AccessScope, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, scope, id, StatusNoShow)
}

func (s *Service) Cancel(ctx context.Context, scope auth.AccessScope, id uuid.UUID, reason string) (*Appointment, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: cancellation reason is required", ErrValidation)
	}
	a, err := s.repo.GetByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if err := attemptTransition(a.Status, StatusCancelled); err != nil {
		return nil, err
	}
	a.Status = StatusCancelled
	a.CancellationReason = &reason
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	s.notify(ctx, notification.Event{
		Type:       notification.TypeAppointmentCancelled,
		Recipients: []uuid.UUID{a.PatientID},
		Title:      "Appointment Cancelled",
		Message:    fmt.Sprintf("Your appointment on %s at %s has been cancelled. Reason: %s", a.Date.Format("2006-01-02"), a.Time, reason),
		Data:       map[string]string{"date": a.Date.Format("2006-01-02"), "time": a.Time, "reason": reason},
	})
	return a, nil
}

// Reschedule changes date and time without touching status. Terminal
// appointments cannot be rescheduled.
func (s *Service) Reschedule(ctx context.Context, scope auth.AccessScope, id uuid.UUID, newDate time.Time, newTime, reason string) (*Appointment, error) {
	if newDate.IsZero() {
		return nil, fmt.Errorf("%w: new_date is required", ErrValidation)
	}
	if _, err := time.Parse("15:04", newTime); err != nil {
		return nil, fmt.Errorf("%w: new_time must be HH:MM", ErrValidation)
	}
	a, err := s.repo.GetByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if a.Terminal() {
		return nil, fmt.Errorf("%w: cannot reschedule a %s appointment", ErrInvalidTransition, a.Status)
	}
	a.Date = newDate
	a.Time = newTime
	if reason != "" {
		a.RescheduleReason = &reason
	}
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	s.notify(ctx, notification.Event{
		Type:       notification.TypeAppointmentRescheduled,
		Recipients: []uuid.UUID{a.PatientID},
		Title:      "Appointment Rescheduled",
		Message:    fmt.Sprintf("Your appointment has been moved to %s at %s.", newDate.Format("2006-01-02"), newTime),
		Data:       map[string]string{"date": newDate.Format("2006-01-02"), "time": newTime, "reason": reason},
	})
	return a, nil
}

func (s *Service) notify(ctx context.Context, e notification.Event) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Dispatch(ctx, e); err != nil {
		s.log.Error().Err(err).Str("event_type", e.Type).Msg("appointment event dispatch failed")
	}
}

func today() time.Time {
	y, m, d := time.Now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
