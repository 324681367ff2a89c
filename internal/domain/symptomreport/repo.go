package symptomreport

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinic-server/internal/platform/auth"
)

// Filter narrows List. Non-zero fields combine with AND. Keyword matches
// title, symptoms, description and patient name, case-insensitively.
type Filter struct {
	Keyword   string
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	Status    string
	Severity  string
}

// StatusCounts summarizes the triage queue for dashboards.
type StatusCounts struct {
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Reviewed   int `json:"reviewed"`
	Resolved   int `json:"resolved"`
	Urgent     int `json:"urgent"`
}

type Repository interface {
	Create(ctx context.Context, r *SymptomReport) error
	GetByID(ctx context.Context, scope auth.AccessScope, id uuid.UUID) (*SymptomReport, error)
	// Update writes conditionally on the version the caller read and bumps
	// it. ErrConflict means another writer got there first.
	Update(ctx context.Context, r *SymptomReport) error
	List(ctx context.Context, scope auth.AccessScope, f Filter, limit, offset int) ([]*SymptomReport, int, error)
	// ListUrgent returns the urgent backlog: SEVERE/CRITICAL reports still
	// PENDING, highest priority first.
	ListUrgent(ctx context.Context, scope auth.AccessScope) ([]*SymptomReport, error)
	ListPending(ctx context.Context, scope auth.AccessScope, limit, offset int) ([]*SymptomReport, int, error)
	ListFollowUpDue(ctx context.Context, scope auth.AccessScope, by time.Time) ([]*SymptomReport, error)
	Counts(ctx context.Context, scope auth.AccessScope) (*StatusCounts, error)
}
