package notification

import (
	"time"

	"github.com/google/uuid"
)

// Notification types emitted by the clinic workflows.
const (
	TypeAppointment            = "APPOINTMENT"
	TypeAppointmentCancelled   = "APPOINTMENT_CANCELLED"
	TypeAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
	TypeAppointmentReminder    = "APPOINTMENT_REMINDER"
	TypeUrgentSymptom          = "URGENT_SYMPTOM"
	TypeAssignedSymptom        = "ASSIGNED_SYMPTOM"
	TypeDoctorResponse         = "DOCTOR_RESPONSE"
)

var validTypes = map[string]bool{
	TypeAppointment:            true,
	TypeAppointmentCancelled:   true,
	TypeAppointmentRescheduled: true,
	TypeAppointmentReminder:    true,
	TypeUrgentSymptom:          true,
	TypeAssignedSymptom:        true,
	TypeDoctorResponse:         true,
}

// Notification is the persisted in-app record. One row exists per recipient
// of a dispatched event regardless of whether the email leg succeeded.
type Notification struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	UserID    uuid.UUID  `db:"user_id" json:"user_id"`
	Title     string     `db:"title" json:"title"`
	Message   string     `db:"message" json:"message"`
	Type      string     `db:"type" json:"type"`
	IsRead    bool       `db:"is_read" json:"is_read"`
	ReadAt    *time.Time `db:"read_at" json:"read_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// Event is a workflow occurrence to fan out: one notification record per
// recipient, plus a best-effort email and stream publish.
type Event struct {
	Type       string            `json:"type"`
	Recipients []uuid.UUID       `json:"recipients"`
	Title      string            `json:"title"`
	Message    string            `json:"message"`
	Data       map[string]string `json:"data,omitempty"`
}
