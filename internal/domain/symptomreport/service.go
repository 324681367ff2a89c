package symptomreport

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

// Notifier is the slice of the notification dispatcher the triage engine
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

// Create forces status PENDING and derives the priority from severity. If
// the report lands urgent and a reviewing doctor is already set, one urgent
// alert fires to that doctor.
func (s *Service) Create(ctx context.Context, scope auth.AccessScope, sr *SymptomReport) error {
	if scope.IsPatient() {
		sr.PatientID = scope.UserID
	}
	if sr.PatientID == uuid.Nil {
		return fmt.Errorf("%w: patient_id is required", ErrValidation)
	}
	if strings.TrimSpace(sr.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if strings.TrimSpace(sr.Symptoms) == "" {
		return fmt.Errorf("%w: symptoms are required", ErrValidation)
	}
	if sr.Severity == "" {
		sr.Severity = SeverityMild
	}
	if !validSeverities[sr.Severity] {
		return fmt.Errorf("%w: unknown severity %q", ErrValidation, sr.Severity)
	}
	if sr.PainLevel != nil && (*sr.PainLevel < 0 || *sr.PainLevel > 10) {
		return fmt.Errorf("%w: pain_level must be between 0 and 10", ErrValidation)
	}

	sr.Status = StatusPending
	sr.PriorityLevel = PriorityFor(sr.Severity)
	if err := s.repo.Create(ctx, sr); err != nil {
		return err
	}
	sr.ComputeUrgent()

	if sr.Urgent && sr.DoctorID != nil {
		s.notify(ctx, notification.Event{
			Type:       notification.TypeUrgentSymptom,
			Recipients: []uuid.UUID{*sr.DoctorID},
			Title:      "Urgent Symptom Report",
			Message:    fmt.Sprintf("An urgent symptom report (%s) needs review: %s", SeverityLabel(sr.Severity), sr.Title),
			Data:       map[string]string{"title": sr.Title, "severity": sr.Severity},
		})
	}
	return nil
}

func (s *Service) Get(ctx context.Context, scope auth.AccessScope, id uuid.UUID) (*SymptomReport, error) {
	return s.repo.GetByID(ctx, scope, id)
}

func (s *Service) List(ctx context.Context, scope auth.AccessScope, f Filter, limit, offset int) ([]*SymptomReport, int, error) {
	if f.Status != "" && !validStatuses[f.Status] {
		return nil, 0, fmt.Errorf("%w: unknown status %q", ErrValidation, f.Status)
	}
	if f.Severity != "" && !validSeverities[f.Severity] {
		return nil, 0, fmt.Errorf("%w: unknown severity %q", ErrValidation, f.Severity)
	}
	return s.repo.List(ctx, scope, f, limit, offset)
}

func (s *Service) Urgent(ctx context.Context, scope auth.AccessScope) ([]*SymptomReport, error) {
	return s.repo.ListUrgent(ctx, scope)
}

func (s *Service) Pending(ctx context.Context, scope auth.AccessScope, limit, offset int) ([]*SymptomReport, int, error) {
	return s.repo.ListPending(ctx, scope, limit, offset)
}

func (s *Service) FollowUpDue(ctx context.Context, scope auth.AccessScope) ([]*SymptomReport, error) {
	return s.repo.ListFollowUpDue(ctx, scope, time.Now())
}

func (s *Service) Counts(ctx context.Context, scope auth.AccessScope) (*StatusCounts, error) {
	return s.repo.Counts(ctx, scope)
}

// Assign sets the reviewing doctor and moves the report into triage.
func (s *Service) Assign(ctx context.Context, scope auth.AccessScope, id, doctorID uuid.UUID) (*SymptomReport, error) {
	if doctorID == uuid.Nil {
		return nil, fmt.Errorf("%w: doctor_id is required", ErrValidation)
	}
	sr, err := s.repo.GetByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if err := attemptTransition(sr.Status, StatusInProgress); err != nil {
		return nil, err
	}
	sr.DoctorID = &doctorID
	sr.Status = StatusInProgress
	if err := s.repo.Update(ctx, sr); err != nil {
		return nil, err
	}
	sr.ComputeUrgent()
	s.notify(ctx, notification.Event{
		Type:       notification.TypeAssignedSymptom,
		Recipients: []uuid.UUID{doctorID},
		Title:      "Symptom Report Assigned",
		Message:    fmt.Sprintf("A symptom report has been assigned to you: %s", sr.Title),
		Data:       map[string]string{"title": sr.Title, "severity": sr.Severity},
	})
	return sr, nil
}

// Review records the doctor's notes and response, stamps reviewed_at and
// sets REVIEWED.
func (s *Service) Review(ctx context.Context, scope auth.AccessScope, id, doctorID uuid.UUID, notes, response string, followUpDate *time.Time) (*SymptomReport, error) {
	if strings.TrimSpace(response) == "" {
		return nil, fmt.Errorf("%w: doctor_response is required", ErrValidation)
	}
	sr, err := s.repo.GetByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if err := attemptTransition(sr.Status, StatusReviewed); err != nil {
		return nil, err
	}
	now := time.Now()
	sr.DoctorID = &doctorID
	sr.DoctorNotes = &notes
	sr.DoctorResponse = &response
	sr.ReviewedAt = &now
	sr.Status = StatusReviewed
	if followUpDate != nil {
		sr.FollowUpNeeded = true
		sr.FollowUpDate = followUpDate
	}
	if err := s.repo.Update(ctx, sr); err != nil {
		return nil, err
	}
	sr.ComputeUrgent()
	s.notify(ctx, notification.Event{
		Type:       notification.TypeDoctorResponse,
		Recipients: []uuid.UUID{sr.PatientID},
		Title:      "Doctor Responded",
		Message:    fmt.Sprintf("A doctor has responded to your symptom report: %s", sr.Title),
		Data:       map[string]string{"title": sr.Title},
	})
	return sr, nil
}

// SetFollowUp marks the report for follow-up and appends the notes.
func (s *Service) SetFollowUp(ctx context.Context, scope auth.AccessScope, id uuid.UUID, date time.Time, notes string) (*SymptomReport, error) {
	if date.IsZero() {
		return nil, fmt.Errorf("%w: follow_up_date is required", ErrValidation)
	}
	sr, err := s.repo.GetByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	sr.FollowUpNeeded = true
	sr.FollowUpDate = &date
	if notes != "" {
		appended := notes
		if sr.AdditionalNotes != nil && *sr.AdditionalNotes != "" {
			appended = *sr.AdditionalNotes + "\n" + notes
		}
		sr.AdditionalNotes = &appended
	}
	if err := s.repo.Update(ctx, sr); err != nil {
		return nil, err
	}
	sr.ComputeUrgent()
	return sr, nil
}

// SetStatus is the administrative override. It validates the value against
// the closed set only and fires no events.
func (s *Service) SetStatus(ctx context.Context, scope auth.AccessScope, id uuid.UUID, status string) (*SymptomReport, error) {
	if !validStatuses[status] {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	sr, err := s.repo.GetByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	sr.Status = status
	if err := s.repo.Update(ctx, sr); err != nil {
		return nil, err
	}
	sr.ComputeUrgent()
	return sr, nil
}

func (s *Service) notify(ctx context.Context, e notification.Event) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Dispatch(ctx, e); err != nil {
		s.log.Error().Err(err).Str("event_type", e.Type).Msg("symptom report event dispatch failed")
	}
}
