package appointment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicore/clinic-server/internal/domain/notification"
	"github.com/clinicore/clinic-server/internal/platform/auth"
)

type mockRepo struct {
	items map[uuid.UUID]*Appointment
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: map[uuid.UUID]*Appointment{}}
}

func (m *mockRepo) visible(scope auth.AccessScope, a *Appointment) bool {
	switch {
	case scope.IsPatient():
		return a.PatientID == scope.UserID
	case scope.IsDoctor():
		return a.DoctorID == scope.UserID
	}
	return true
}

func (m *mockRepo) Create(_ context.Context, a *Appointment) error {
	a.ID = uuid.New()
	a.VersionID = 1
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	cp := *a
	m.items[a.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, scope auth.AccessScope, id uuid.UUID) (*Appointment, error) {
	a, ok := m.items[id]
	if !ok || !m.visible(scope, a) {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, a *Appointment) error {
	stored, ok := m.items[a.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.VersionID != a.VersionID {
		return ErrConflict
	}
	a.VersionID++
	a.UpdatedAt = time.Now()
	cp := *a
	m.items[a.ID] = &cp
	return nil
}

func (m *mockRepo) List(_ context.Context, scope auth.AccessScope, f Filter, limit, offset int) ([]*Appointment, int, error) {
	var out []*Appointment
	for _, a := range m.items {
		if !m.visible(scope, a) {
			continue
		}
		if f.PatientID != uuid.Nil && a.PatientID != f.PatientID {
			continue
		}
		if f.DoctorID != uuid.Nil && a.DoctorID != f.DoctorID {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if f.Date != nil && !a.Date.Equal(*f.Date) {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (m *mockRepo) ListUpcoming(_ context.Context, scope auth.AccessScope, after time.Time, limit int) ([]*Appointment, error) {
	var out []*Appointment
	for _, a := range m.items {
		if m.visible(scope, a) && a.Date.After(after) && !a.Terminal() {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockRepo) ListOn(_ context.Context, scope auth.AccessScope, date time.Time) ([]*Appointment, error) {
	var out []*Appointment
	for _, a := range m.items {
		if m.visible(scope, a) && a.Date.Equal(date) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockRepo) ListUrgentOn(_ context.Context, scope auth.AccessScope, date time.Time) ([]*Appointment, error) {
	var out []*Appointment
	for _, a := range m.items {
		if m.visible(scope, a) && a.Date.Equal(date) && a.Type == TypeEmergency && !a.Terminal() {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockRepo) ListConfirmedOn(_ context.Context, date time.Time) ([]*Appointment, error) {
	var out []*Appointment
	for _, a := range m.items {
		if a.Date.Equal(date) && a.Status == StatusConfirmed {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockRepo) CountByDoctorOn(_ context.Context, doctorID uuid.UUID, date time.Time) (int, error) {
	count := 0
	for _, a := range m.items {
		if a.DoctorID == doctorID && a.Date.Equal(date) {
			count++
		}
	}
	return count, nil
}

type mockNotifier struct {
	events []notification.Event
	err    error
}

func (m *mockNotifier) Dispatch(_ context.Context, e notification.Event) error {
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, e)
	return nil
}

func patientScope(id uuid.UUID) auth.AccessScope {
	return auth.AccessScope{UserID: id, Role: auth.RolePatient}
}

func doctorScope(id uuid.UUID) auth.AccessScope {
	return auth.AccessScope{UserID: id, Role: auth.RoleDoctor}
}

func staffScope() auth.AccessScope {
	return auth.AccessScope{UserID: uuid.New(), Role: auth.RoleStaff}
}

func newTestService(repo *mockRepo, n *mockNotifier) *Service {
	return NewService(repo, n, zerolog.Nop())
}

func seed(t *testing.T, repo *mockRepo, patientID, doctorID uuid.UUID, status string) *Appointment {
	t.Helper()
	a := &Appointment{
		PatientID: patientID,
		DoctorID:  doctorID,
		Date:      time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC),
		Time:      "10:00",
		Status:    status,
		Type:      TypeConsultation,
	}
	if err := repo.Create(context.Background(), a); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return a
}

func TestCreate_PatientBooksForSelf(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockNotifier{})
	patientID := uuid.New()

	a := &Appointment{
		PatientID: uuid.New(), // ignored for patient callers
		DoctorID:  uuid.New(),
		Date:      time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC),
		Time:      "09:30",
	}
	if err := svc.Create(context.Background(), patientScope(patientID), a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.PatientID != patientID {
		t.Error("patient callers must book for themselves")
	}
	if a.Status != StatusScheduled {
		t.Errorf("initial status must be SCHEDULED, got %s", a.Status)
	}
	if a.Type != TypeConsultation {
		t.Errorf("default type must be CONSULTATION, got %s", a.Type)
	}
	if a.VersionID != 1 {
		t.Errorf("initial version must be 1, got %d", a.VersionID)
	}
}

func TestCreate_Validation(t *testing.T) {
	svc := newTestService(newMockRepo(), &mockNotifier{})
	scope := staffScope()
	date := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)

	cases := []Appointment{
		{DoctorID: uuid.New(), Date: date, Time: "10:00"},
		{PatientID: uuid.New(), Date: date, Time: "10:00"},
		{PatientID: uuid.New(), DoctorID: uuid.New(), Time: "10:00"},
		{PatientID: uuid.New(), DoctorID: uuid.New(), Date: date, Time: "ten o'clock"},
	}
	for _, a := range cases {
		a := a
		if err := svc.Create(context.Background(), scope, &a); !errors.Is(err, ErrValidation) {
			t.Errorf("appointment %+v: expected ErrValidation, got %v", a, err)
		}
	}
}

func TestConfirm_EmitsEventToPatient(t *testing.T) {
	repo := newMockRepo()
	n := &mockNotifier{}
	svc := newTestService(repo, n)
	patientID := uuid.New()
	a := seed(t, repo, patientID, uuid.New(), StatusScheduled)

	got, err := svc.Confirm(context.Background(), staffScope(), a.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusConfirmed {
		t.Errorf("expected CONFIRMED, got %s", got.Status)
	}
	if len(n.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(n.events))
	}
	e := n.events[0]
	if e.Type != notification.TypeAppointment {
		t.Errorf("unexpected event type %s", e.Type)
	}
	if len(e.Recipients) != 1 || e.Recipients[0] != patientID {
		t.Error("confirmation must go to the patient")
	}
}

func TestConfirm_RejectsIllegalTransition(t *testing.T) {
	repo := newMockRepo()
	n := &mockNotifier{}
	svc := newTestService(repo, n)
	a := seed(t, repo, uuid.New(), uuid.New(), StatusCancelled)

	if _, err := svc.Confirm(context.Background(), staffScope(), a.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if repo.items[a.ID].Status != StatusCancelled {
		t.Error("status must not change on rejected transition")
	}
	if len(n.events) != 0 {
		t.Error("no event may fire on rejected transition")
	}
}

func TestComplete_RejectedFromCancelled(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockNotifier{})
	a := seed(t, repo, uuid.New(), uuid.New(), StatusCancelled)

	if _, err := svc.Complete(context.Background(), staffScope(), a.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestCancel_RequiresReason(t *testing.T) {
	repo := newMockRepo()
	n := &mockNotifier{}
	svc := newTestService(repo, n)
	a := seed(t, repo, uuid.New(), uuid.New(), StatusScheduled)

	if _, err := svc.Cancel(context.Background(), staffScope(), a.ID, "  "); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if repo.items[a.ID].Status != StatusScheduled {
		t.Error("status must not change without a reason")
	}
	if len(n.events) != 0 {
		t.Error("no event may fire without a reason")
	}
}

func TestCancel_StoresReasonAndNotifies(t *testing.T) {
	repo := newMockRepo()
	n := &mockNotifier{}
	svc := newTestService(repo, n)
	patientID := uuid.New()
	a := seed(t, repo, patientID, uuid.New(), StatusConfirmed)

	got, err := svc.Cancel(context.Background(), staffScope(), a.ID, "doctor unavailable")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusCancelled {
		t.Errorf("expected CANCELLED, got %s", got.Status)
	}
	if got.CancellationReason == nil || *got.CancellationReason != "doctor unavailable" {
		t.Error("cancellation reason not stored")
	}
	if len(n.events) != 1 || n.events[0].Type != notification.TypeAppointmentCancelled {
		t.Fatalf("expected one cancellation event, got %+v", n.events)
	}
}

func TestCancel_DispatchFailureDoesNotSurface(t *testing.T) {
	repo := newMockRepo()
	n := &mockNotifier{err: errors.New("smtp down")}
	svc := newTestService(repo, n)
	a := seed(t, repo, uuid.New(), uuid.New(), StatusScheduled)

	got, err := svc.Cancel(context.Background(), staffScope(), a.ID, "sick")
	if err != nil {
		t.Fatalf("dispatch failure must not surface, got %v", err)
	}
	if got.Status != StatusCancelled {
		t.Error("status change must commit despite dispatch failure")
	}
}

func TestReschedule_KeepsStatus(t *testing.T) {
	repo := newMockRepo()
	n := &mockNotifier{}
	svc := newTestService(repo, n)
	a := seed(t, repo, uuid.New(), uuid.New(), StatusConfirmed)

	newDate := time.Date(2026, 9, 20, 0, 0, 0, 0, time.UTC)
	got, err := svc.Reschedule(context.Background(), staffScope(), a.ID, newDate, "14:30", "patient request")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusConfirmed {
		t.Errorf("reschedule must not change status, got %s", got.Status)
	}
	if !got.Date.Equal(newDate) || got.Time != "14:30" {
		t.Error("new date/time not stored")
	}
	if len(n.events) != 1 || n.events[0].Type != notification.TypeAppointmentRescheduled {
		t.Fatalf("expected one reschedule event, got %+v", n.events)
	}
	// The email template substitutes date and time; the event must carry
	// those keys.
	data := n.events[0].Data
	if data["date"] != "2026-09-20" || data["time"] != "14:30" {
		t.Errorf("event data must carry new date and time, got %+v", data)
	}
	if data["reason"] != "patient request" {
		t.Errorf("event data must carry the reason, got %+v", data)
	}
}

func TestReschedule_RejectedForTerminal(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockNotifier{})
	a := seed(t, repo, uuid.New(), uuid.New(), StatusCompleted)

	_, err := svc.Reschedule(context.Background(), staffScope(), a.ID,
		time.Date(2026, 9, 20, 0, 0, 0, 0, time.UTC), "14:30", "")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestUpdate_VersionConflict(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockNotifier{})
	a := seed(t, repo, uuid.New(), uuid.New(), StatusScheduled)

	stale, err := repo.GetByID(context.Background(), staffScope(), a.ID)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	// First writer wins.
	if _, err := svc.Confirm(context.Background(), staffScope(), a.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Second writer holds the pre-confirm version and must be rejected.
	stale.Status = StatusCancelled
	if err := repo.Update(context.Background(), stale); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestScope_PatientCannotSeeOthers(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockNotifier{})
	mine := uuid.New()
	a := seed(t, repo, uuid.New(), uuid.New(), StatusScheduled)

	if _, err := svc.Get(context.Background(), patientScope(mine), a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign appointment, got %v", err)
	}
}

func TestScope_DoctorSeesOnlyAssigned(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockNotifier{})
	docID := uuid.New()
	seed(t, repo, uuid.New(), docID, StatusScheduled)
	seed(t, repo, uuid.New(), uuid.New(), StatusScheduled)

	items, total, err := svc.List(context.Background(), doctorScope(docID), Filter{}, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(items) != 1 {
		t.Fatalf("expected 1 visible appointment, got %d", total)
	}
	if items[0].DoctorID != docID {
		t.Error("doctor must only see assigned appointments")
	}
}

func TestList_RejectsUnknownStatusFilter(t *testing.T) {
	svc := newTestService(newMockRepo(), &mockNotifier{})
	if _, _, err := svc.List(context.Background(), staffScope(), Filter{Status: "WAITING"}, 20, 0); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
