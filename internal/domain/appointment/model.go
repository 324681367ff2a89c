package appointment

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Appointment statuses. COMPLETED, CANCELLED and NO_SHOW are terminal.
const (
	StatusScheduled  = "SCHEDULED"
	StatusConfirmed  = "CONFIRMED"
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
	StatusCancelled  = "CANCELLED"
	StatusNoShow     = "NO_SHOW"
)

// Appointment types. EMERGENCY appointments show up in the urgent-today view.
const (
	TypeConsultation = "CONSULTATION"
	TypeFollowUp     = "FOLLOW_UP"
	TypeLabTest      = "LAB_TEST"
	TypeEmergency    = "EMERGENCY"
)

var validStatuses = map[string]bool{
	StatusScheduled:  true,
	StatusConfirmed:  true,
	StatusInProgress: true,
	StatusCompleted:  true,
	StatusCancelled:  true,
	StatusNoShow:     true,
}

// transitions enumerates every legal status move. Anything absent is illegal,
// which makes terminal statuses sticky.
var transitions = map[string][]string{
	StatusScheduled:  {StatusConfirmed, StatusCancelled, StatusNoShow},
	StatusConfirmed:  {StatusInProgress, StatusCancelled, StatusNoShow},
	StatusInProgress: {StatusCompleted, StatusCancelled, StatusNoShow},
}

// attemptTransition checks the transition table before any write.
func attemptTransition(current, requested string) error {
	if !validStatuses[requested] {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, requested)
	}
	for _, next := range transitions[current] {
		if next == requested {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, requested)
}

// Appointment is a scheduled encounter between one patient and one doctor.
// VersionID backs optimistic concurrency: every update is conditional on the
// version the caller read.
type Appointment struct {
	ID                 uuid.UUID `db:"id" json:"id"`
	PatientID          uuid.UUID `db:"patient_id" json:"patient_id"`
	DoctorID           uuid.UUID `db:"doctor_id" json:"doctor_id"`
	Date               time.Time `db:"appointment_date" json:"date"`
	Time               string    `db:"appointment_time" json:"time"`
	Status             string    `db:"status" json:"status"`
	Type               string    `db:"appointment_type" json:"type"`
	Notes              *string   `db:"notes" json:"notes,omitempty"`
	IsAnonymous        bool      `db:"is_anonymous" json:"is_anonymous"`
	CancellationReason *string   `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	RescheduleReason   *string   `db:"reschedule_reason" json:"reschedule_reason,omitempty"`
	VersionID          int       `db:"version_id" json:"version_id"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// Terminal reports whether the appointment can no longer change status.
func (a *Appointment) Terminal() bool {
	return len(transitions[a.Status]) == 0
}
