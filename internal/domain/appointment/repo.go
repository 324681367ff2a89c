package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinic-server/internal/platform/auth"
)

// Filter narrows List. Zero values mean "no constraint"; non-zero fields
// combine with AND. The caller's access scope is applied on top by the
// repository and can never be widened by a filter.
type Filter struct {
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	Status    string
	Date      *time.Time
}

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, scope auth.AccessScope, id uuid.UUID) (*Appointment, error)
	// Update writes conditionally on the version the caller read and bumps
	// it. ErrConflict means another writer got there first.
	Update(ctx context.Context, a *Appointment) error
	List(ctx context.Context, scope auth.AccessScope, f Filter, limit, offset int) ([]*Appointment, int, error)
	ListUpcoming(ctx context.Context, scope auth.AccessScope, after time.Time, limit int) ([]*Appointment, error)
	ListOn(ctx context.Context, scope auth.AccessScope, date time.Time) ([]*Appointment, error)
	ListUrgentOn(ctx context.Context, scope auth.AccessScope, date time.Time) ([]*Appointment, error)
	// ListConfirmedOn backs the daily reminder sweep and is not scoped.
	ListConfirmedOn(ctx context.Context, date time.Time) ([]*Appointment, error)
	CountByDoctorOn(ctx context.Context, doctorID uuid.UUID, date time.Time) (int, error)
}
