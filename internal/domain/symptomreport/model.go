package symptomreport

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Report statuses.
const (
	StatusPending    = "PENDING"
	StatusInProgress = "IN_PROGRESS"
	StatusReviewed   = "REVIEWED"
	StatusResolved   = "RESOLVED"
)

// Symptom severities. Immutable after creation.
const (
	SeverityMild     = "MILD"
	SeverityModerate = "MODERATE"
	SeveritySevere   = "SEVERE"
	SeverityCritical = "CRITICAL"
)

var validStatuses = map[string]bool{
	StatusPending:    true,
	StatusInProgress: true,
	StatusReviewed:   true,
	StatusResolved:   true,
}

var validSeverities = map[string]bool{
	SeverityMild:     true,
	SeverityModerate: true,
	SeveritySevere:   true,
	SeverityCritical: true,
}

// severityInfo carries the display label and UI tier shown by clients.
type severityInfo struct {
	label string
	tier  string
}

var severities = map[string]severityInfo{
	SeverityMild:     {label: "Mild", tier: "success"},
	SeverityModerate: {label: "Moderate", tier: "warning"},
	SeveritySevere:   {label: "Severe", tier: "danger"},
	SeverityCritical: {label: "Critical", tier: "dark"},
}

// SeverityLabel returns the human-readable label for a severity value.
func SeverityLabel(severity string) string {
	return severities[severity].label
}

// SeverityTier returns the UI tier (bootstrap-style class) for a severity.
func SeverityTier(severity string) string {
	return severities[severity].tier
}

// PriorityFor derives the triage priority from severity. Computed once at
// creation and never recomputed.
func PriorityFor(severity string) int {
	switch severity {
	case SeverityCritical:
		return 5
	case SeveritySevere:
		return 4
	case SeverityModerate:
		return 3
	}
	return 2
}

// transitions enumerates legal triage moves. SetStatus bypasses this table
// on purpose (administrative override).
var transitions = map[string][]string{
	StatusPending:    {StatusInProgress, StatusReviewed},
	StatusInProgress: {StatusReviewed},
	StatusReviewed:   {StatusResolved},
}

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

// SymptomReport is a patient-submitted symptom record moving through triage.
type SymptomReport struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	PatientID       uuid.UUID  `db:"patient_id" json:"patient_id"`
	Title           string     `db:"report_title" json:"title"`
	Symptoms        string     `db:"symptoms" json:"symptoms"`
	Description     *string    `db:"description" json:"description,omitempty"`
	Severity        string     `db:"severity" json:"severity"`
	Status          string     `db:"status" json:"status"`
	PainLevel       *int       `db:"pain_level" json:"pain_level,omitempty"`
	DurationDays    *int       `db:"duration_days" json:"duration_days,omitempty"`
	Temperature     *float64   `db:"temperature" json:"temperature,omitempty"`
	BloodPressure   *string    `db:"blood_pressure" json:"blood_pressure,omitempty"`
	AdditionalNotes *string    `db:"additional_notes" json:"additional_notes,omitempty"`
	DoctorID        *uuid.UUID `db:"reviewed_by_doctor_id" json:"doctor_id,omitempty"`
	DoctorNotes     *string    `db:"doctor_notes" json:"doctor_notes,omitempty"`
	DoctorResponse  *string    `db:"doctor_response" json:"doctor_response,omitempty"`
	ReviewedAt      *time.Time `db:"reviewed_at" json:"reviewed_at,omitempty"`
	FollowUpNeeded  bool       `db:"follow_up_required" json:"follow_up_required"`
	FollowUpDate    *time.Time `db:"follow_up_date" json:"follow_up_date,omitempty"`
	PriorityLevel   int        `db:"priority_level" json:"priority_level"`
	VersionID       int        `db:"version_id" json:"version_id"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`

	// Urgent is computed on read and never stored, so it drops to false as
	// soon as the status advances past PENDING.
	Urgent bool `db:"-" json:"urgent"`
}

// ComputeUrgent re-evaluates the urgent predicate.
func (r *SymptomReport) ComputeUrgent() {
	r.Urgent = (r.Severity == SeveritySevere || r.Severity == SeverityCritical) &&
		r.Status == StatusPending
}
