package symptomreport

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicore/clinic-server/internal/domain/notification"
	"github.com/clinicore/clinic-server/internal/platform/auth"
)

type mockRepo struct {
	items map[uuid.UUID]*SymptomReport
	names map[uuid.UUID]string
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		items: map[uuid.UUID]*SymptomReport{},
		names: map[uuid.UUID]string{},
	}
}

func (m *mockRepo) visible(scope auth.AccessScope, sr *SymptomReport) bool {
	switch {
	case scope.IsPatient():
		return sr.PatientID == scope.UserID
	case scope.IsDoctor():
		return sr.DoctorID == nil || *sr.DoctorID == scope.UserID
	}
	return true
}

func (m *mockRepo) Create(_ context.Context, sr *SymptomReport) error {
	sr.ID = uuid.New()
	sr.VersionID = 1
	sr.CreatedAt = time.Now()
	sr.UpdatedAt = sr.CreatedAt
	cp := *sr
	m.items[sr.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, scope auth.AccessScope, id uuid.UUID) (*SymptomReport, error) {
	sr, ok := m.items[id]
	if !ok || !m.visible(scope, sr) {
		return nil, ErrNotFound
	}
	cp := *sr
	cp.ComputeUrgent()
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, sr *SymptomReport) error {
	stored, ok := m.items[sr.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.VersionID != sr.VersionID {
		return ErrConflict
	}
	sr.VersionID++
	sr.UpdatedAt = time.Now()
	cp := *sr
	m.items[sr.ID] = &cp
	return nil
}

func (m *mockRepo) matches(sr *SymptomReport, f Filter) bool {
	if f.Keyword != "" {
		kw := strings.ToLower(f.Keyword)
		name := strings.ToLower(m.names[sr.PatientID])
		desc := ""
		if sr.Description != nil {
			desc = strings.ToLower(*sr.Description)
		}
		if !strings.Contains(strings.ToLower(sr.Title), kw) &&
			!strings.Contains(strings.ToLower(sr.Symptoms), kw) &&
			!strings.Contains(desc, kw) &&
			!strings.Contains(name, kw) {
			return false
		}
	}
	if f.PatientID != uuid.Nil && sr.PatientID != f.PatientID {
		return false
	}
	if f.DoctorID != uuid.Nil && (sr.DoctorID == nil || *sr.DoctorID != f.DoctorID) {
		return false
	}
	if f.Status != "" && sr.Status != f.Status {
		return false
	}
	if f.Severity != "" && sr.Severity != f.Severity {
		return false
	}
	return true
}

func (m *mockRepo) List(_ context.Context, scope auth.AccessScope, f Filter, limit, offset int) ([]*SymptomReport, int, error) {
	var out []*SymptomReport
	for _, sr := range m.items {
		if m.visible(scope, sr) && m.matches(sr, f) {
			cp := *sr
			cp.ComputeUrgent()
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

func (m *mockRepo) ListUrgent(_ context.Context, scope auth.AccessScope) ([]*SymptomReport, error) {
	var out []*SymptomReport
	for _, sr := range m.items {
		cp := *sr
		cp.ComputeUrgent()
		if m.visible(scope, sr) && cp.Urgent {
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockRepo) ListPending(ctx context.Context, scope auth.AccessScope, limit, offset int) ([]*SymptomReport, int, error) {
	return m.List(ctx, scope, Filter{Status: StatusPending}, limit, offset)
}

func (m *mockRepo) ListFollowUpDue(_ context.Context, scope auth.AccessScope, by time.Time) ([]*SymptomReport, error) {
	var out []*SymptomReport
	for _, sr := range m.items {
		if m.visible(scope, sr) && sr.FollowUpNeeded && sr.FollowUpDate != nil && !sr.FollowUpDate.After(by) {
			cp := *sr
			cp.ComputeUrgent()
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockRepo) Counts(_ context.Context, scope auth.AccessScope) (*StatusCounts, error) {
	var c StatusCounts
	for _, sr := range m.items {
		if !m.visible(scope, sr) {
			continue
		}
		switch sr.Status {
		case StatusPending:
			c.Pending++
		case StatusInProgress:
			c.InProgress++
		case StatusReviewed:
			c.Reviewed++
		case StatusResolved:
			c.Resolved++
		}
		cp := *sr
		cp.ComputeUrgent()
		if cp.Urgent {
			c.Urgent++
		}
	}
	return &c, nil
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

func TestCreate_ForcesPendingAndDerivesPriority(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockNotifier{})
	patientID := uuid.New()

	sr := &SymptomReport{
		Title:    "Persistent headache",
		Symptoms: "headache, dizziness",
		Severity: SeverityCritical,
		Status:   StatusResolved, // ignored
	}
	if err := svc.Create(context.Background(), patientScope(patientID), sr); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sr.Status != StatusPending {
		t.Errorf("status must be forced to PENDING, got %s", sr.Status)
	}
	if sr.PriorityLevel != 5 {
		t.Errorf("CRITICAL must derive priority 5, got %d", sr.PriorityLevel)
	}
	if sr.PatientID != patientID {
		t.Error("patient callers must report for themselves")
	}
	if !sr.Urgent {
		t.Error("CRITICAL+PENDING must be urgent")
	}
}

func TestCreate_DefaultsSeverityToMild(t *testing.T) {
	svc := newTestService(newMockRepo(), &mockNotifier{})
	sr := &SymptomReport{Title: "Cough", Symptoms: "dry cough"}
	if err := svc.Create(context.Background(), patientScope(uuid.New()), sr); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sr.Severity != SeverityMild || sr.PriorityLevel != 2 {
		t.Errorf("expected MILD/2, got %s/%d", sr.Severity, sr.PriorityLevel)
	}
}

func TestCreate_Validation(t *testing.T) {
	svc := newTestService(newMockRepo(), &mockNotifier{})
	scope := patientScope(uuid.New())
	bad := 12

	cases := []SymptomReport{
		{Symptoms: "fever"},
		{Title: "Fever"},
		{Title: "Fever", Symptoms: "fever", Severity: "EXTREME"},
		{Title: "Fever", Symptoms: "fever", PainLevel: &bad},
	}
	for _, sr := range cases {
		sr := sr
		if err := svc.Create(context.Background(), scope, &sr); !errors.Is(err, ErrValidation) {
			t.Errorf("report %+v: expected ErrValidation, got %v", sr, err)
		}
	}
}

func TestCreate_UrgentWithAssignedDoctorAlerts(t *testing.T) {
	n := &mockNotifier{}
	svc := newTestService(newMockRepo(), n)
	docID := uuid.New()

	sr := &SymptomReport{
		Title:    "Chest pain",
		Symptoms: "chest pain, shortness of breath",
		Severity: SeveritySevere,
		DoctorID: &docID,
	}
	if err := svc.Create(context.Background(), patientScope(uuid.New()), sr); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(n.events) != 1 {
		t.Fatalf("expected 1 urgent alert, got %d", len(n.events))
	}
	e := n.events[0]
	if e.Type != notification.TypeUrgentSymptom {
		t.Errorf("unexpected event type %s", e.Type)
	}
	if len(e.Recipients) != 1 || e.Recipients[0] != docID {
		t.Error("urgent alert must go to the assigned doctor")
	}
}

func TestCreate_UrgentWithoutDoctorStaysQuiet(t *testing.T) {
	n := &mockNotifier{}
	svc := newTestService(newMockRepo(), n)
	sr := &SymptomReport{Title: "Chest pain", Symptoms: "chest pain", Severity: SeverityCritical}
	if err := svc.Create(context.Background(), patientScope(uuid.New()), sr); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(n.events) != 0 {
		t.Error("no alert may fire without an assigned doctor")
	}
}

func TestAssign_TransitionsAndNotifiesDoctor(t *testing.T) {
	repo := newMockRepo()
	n := &mockNotifier{}
	svc := newTestService(repo, n)
	sr := &SymptomReport{Title: "Rash", Symptoms: "itchy rash", Severity: SeveritySevere}
	if err := svc.Create(context.Background(), patientScope(uuid.New()), sr); err != nil {
		t.Fatalf("seed: %v", err)
	}
	docID := uuid.New()

	got, err := svc.Assign(context.Background(), staffScope(), sr.ID, docID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusInProgress {
		t.Errorf("expected IN_PROGRESS, got %s", got.Status)
	}
	if got.DoctorID == nil || *got.DoctorID != docID {
		t.Error("doctor not assigned")
	}
	if got.Urgent {
		t.Error("urgency must drop once the report leaves PENDING")
	}
	if len(n.events) != 1 || n.events[0].Type != notification.TypeAssignedSymptom {
		t.Fatalf("expected one assignment event, got %+v", n.events)
	}
}

func TestAssign_RejectedWhenAlreadyReviewed(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockNotifier{})
	sr := &SymptomReport{Title: "Rash", Symptoms: "rash"}
	if err := svc.Create(context.Background(), patientScope(uuid.New()), sr); err != nil {
		t.Fatalf("seed: %v", err)
	}
	repo.items[sr.ID].Status = StatusReviewed

	if _, err := svc.Assign(context.Background(), staffScope(), sr.ID, uuid.New()); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestReview_StampsAndNotifiesPatient(t *testing.T) {
	repo := newMockRepo()
	n := &mockNotifier{}
	svc := newTestService(repo, n)
	patientID := uuid.New()
	sr := &SymptomReport{Title: "Fever", Symptoms: "high fever", Severity: SeverityModerate}
	if err := svc.Create(context.Background(), patientScope(patientID), sr); err != nil {
		t.Fatalf("seed: %v", err)
	}
	docID := uuid.New()

	got, err := svc.Review(context.Background(), doctorScope(docID), sr.ID, docID,
		"viral infection suspected", "Rest and fluids, recheck in 3 days", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusReviewed {
		t.Errorf("expected REVIEWED, got %s", got.Status)
	}
	if got.ReviewedAt == nil {
		t.Error("reviewed_at not stamped")
	}
	if got.DoctorResponse == nil || *got.DoctorResponse == "" {
		t.Error("doctor response not stored")
	}
	if len(n.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(n.events))
	}
	e := n.events[0]
	if e.Type != notification.TypeDoctorResponse {
		t.Errorf("unexpected event type %s", e.Type)
	}
	if len(e.Recipients) != 1 || e.Recipients[0] != patientID {
		t.Error("response event must go to the patient")
	}
}

func TestReview_RequiresResponse(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockNotifier{})
	sr := &SymptomReport{Title: "Fever", Symptoms: "fever"}
	if err := svc.Create(context.Background(), patientScope(uuid.New()), sr); err != nil {
		t.Fatalf("seed: %v", err)
	}
	docID := uuid.New()
	if _, err := svc.Review(context.Background(), doctorScope(docID), sr.ID, docID, "notes", " ", nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestSetFollowUp_AppendsNotes(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockNotifier{})
	existing := "initial notes"
	sr := &SymptomReport{Title: "Fever", Symptoms: "fever", AdditionalNotes: &existing}
	if err := svc.Create(context.Background(), patientScope(uuid.New()), sr); err != nil {
		t.Fatalf("seed: %v", err)
	}

	date := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)
	got, err := svc.SetFollowUp(context.Background(), staffScope(), sr.ID, date, "recheck temperature")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.FollowUpNeeded || got.FollowUpDate == nil || !got.FollowUpDate.Equal(date) {
		t.Error("follow-up flag/date not set")
	}
	if got.AdditionalNotes == nil || *got.AdditionalNotes != "initial notes\nrecheck temperature" {
		t.Errorf("notes not appended, got %v", got.AdditionalNotes)
	}
}

func TestSetStatus_OverrideSkipsTransitionTable(t *testing.T) {
	repo := newMockRepo()
	n := &mockNotifier{}
	svc := newTestService(repo, n)
	sr := &SymptomReport{Title: "Fever", Symptoms: "fever"}
	if err := svc.Create(context.Background(), patientScope(uuid.New()), sr); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// PENDING -> RESOLVED is not in the table but the override allows it.
	got, err := svc.SetStatus(context.Background(), staffScope(), sr.ID, StatusResolved)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusResolved {
		t.Errorf("expected RESOLVED, got %s", got.Status)
	}
	if len(n.events) != 0 {
		t.Error("status override must not fire events")
	}

	if _, err := svc.SetStatus(context.Background(), staffScope(), sr.ID, "ARCHIVED"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown status, got %v", err)
	}
}

func TestScope_PatientSeesOnlyOwnReports(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockNotifier{})
	mine := uuid.New()
	for _, p := range []uuid.UUID{mine, uuid.New()} {
		sr := &SymptomReport{Title: "Fever", Symptoms: "fever"}
		if err := svc.Create(context.Background(), patientScope(p), sr); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	items, total, err := svc.List(context.Background(), patientScope(mine), Filter{}, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(items) != 1 || items[0].PatientID != mine {
		t.Fatalf("patient must only see own reports, got %d", total)
	}
}

func TestScope_DoctorSeesAssignedAndUnassigned(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockNotifier{})
	docID := uuid.New()
	otherDoc := uuid.New()

	unassigned := &SymptomReport{Title: "A", Symptoms: "a"}
	assignedToMe := &SymptomReport{Title: "B", Symptoms: "b", DoctorID: &docID}
	assignedToOther := &SymptomReport{Title: "C", Symptoms: "c", DoctorID: &otherDoc}
	for _, sr := range []*SymptomReport{unassigned, assignedToMe, assignedToOther} {
		if err := svc.Create(context.Background(), patientScope(uuid.New()), sr); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	_, total, err := svc.List(context.Background(), doctorScope(docID), Filter{}, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 {
		t.Fatalf("doctor must see assigned plus unassigned queue, got %d", total)
	}
}

func TestList_FiltersCombineWithAnd(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockNotifier{})
	patientID := uuid.New()

	matching := &SymptomReport{Title: "Migraine attack", Symptoms: "headache", Severity: SeveritySevere}
	wrongPatient := &SymptomReport{Title: "Migraine attack", Symptoms: "headache", Severity: SeveritySevere}
	wrongSeverity := &SymptomReport{Title: "Migraine attack", Symptoms: "headache", Severity: SeverityMild}
	if err := svc.Create(context.Background(), patientScope(patientID), matching); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := svc.Create(context.Background(), patientScope(uuid.New()), wrongPatient); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := svc.Create(context.Background(), patientScope(patientID), wrongSeverity); err != nil {
		t.Fatalf("seed: %v", err)
	}

	items, total, err := svc.List(context.Background(), staffScope(), Filter{
		Keyword:   "migraine",
		PatientID: patientID,
		Severity:  SeveritySevere,
	}, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(items) != 1 || items[0].ID != matching.ID {
		t.Fatalf("filters must combine with AND, got %d matches", total)
	}
}

func TestList_RejectsUnknownFilterValues(t *testing.T) {
	svc := newTestService(newMockRepo(), &mockNotifier{})
	if _, _, err := svc.List(context.Background(), staffScope(), Filter{Status: "OPEN"}, 20, 0); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if _, _, err := svc.List(context.Background(), staffScope(), Filter{Severity: "EXTREME"}, 20, 0); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestUrgent_BacklogOnlyPendingSevere(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockNotifier{})

	urgent := &SymptomReport{Title: "A", Symptoms: "a", Severity: SeverityCritical}
	mild := &SymptomReport{Title: "B", Symptoms: "b", Severity: SeverityMild}
	if err := svc.Create(context.Background(), patientScope(uuid.New()), urgent); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := svc.Create(context.Background(), patientScope(uuid.New()), mild); err != nil {
		t.Fatalf("seed: %v", err)
	}

	items, err := svc.Urgent(context.Background(), staffScope())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 || items[0].ID != urgent.ID {
		t.Fatalf("expected only the urgent report, got %d", len(items))
	}

	// Resolving the report removes it from the backlog.
	if _, err := svc.SetStatus(context.Background(), staffScope(), urgent.ID, StatusResolved); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	items, err = svc.Urgent(context.Background(), staffScope())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 0 {
		t.Fatal("resolved reports must leave the urgent backlog")
	}
}

func TestVersionConflict(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockNotifier{})
	sr := &SymptomReport{Title: "Fever", Symptoms: "fever"}
	if err := svc.Create(context.Background(), patientScope(uuid.New()), sr); err != nil {
		t.Fatalf("seed: %v", err)
	}

	stale, err := repo.GetByID(context.Background(), staffScope(), sr.ID)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if _, err := svc.SetStatus(context.Background(), staffScope(), sr.ID, StatusResolved); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stale.Status = StatusReviewed
	if err := repo.Update(context.Background(), stale); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}
