package symptomreport

import (
	"errors"
	"testing"
)

func TestPriorityFor(t *testing.T) {
	cases := map[string]int{
		SeverityCritical: 5,
		SeveritySevere:   4,
		SeverityModerate: 3,
		SeverityMild:     2,
		"":               2,
	}
	for severity, want := range cases {
		if got := PriorityFor(severity); got != want {
			t.Errorf("PriorityFor(%q) = %d, want %d", severity, got, want)
		}
	}
}

func TestSeverityDisplay(t *testing.T) {
	cases := []struct{ severity, label, tier string }{
		{SeverityMild, "Mild", "success"},
		{SeverityModerate, "Moderate", "warning"},
		{SeveritySevere, "Severe", "danger"},
		{SeverityCritical, "Critical", "dark"},
	}
	for _, tc := range cases {
		if got := SeverityLabel(tc.severity); got != tc.label {
			t.Errorf("SeverityLabel(%s) = %q, want %q", tc.severity, got, tc.label)
		}
		if got := SeverityTier(tc.severity); got != tc.tier {
			t.Errorf("SeverityTier(%s) = %q, want %q", tc.severity, got, tc.tier)
		}
	}
}

func TestComputeUrgent(t *testing.T) {
	cases := []struct {
		severity, status string
		want             bool
	}{
		{SeveritySevere, StatusPending, true},
		{SeverityCritical, StatusPending, true},
		{SeverityModerate, StatusPending, false},
		{SeverityMild, StatusPending, false},
		{SeveritySevere, StatusInProgress, false},
		{SeverityCritical, StatusReviewed, false},
	}
	for _, tc := range cases {
		sr := &SymptomReport{Severity: tc.severity, Status: tc.status}
		sr.ComputeUrgent()
		if sr.Urgent != tc.want {
			t.Errorf("severity=%s status=%s: urgent=%v, want %v", tc.severity, tc.status, sr.Urgent, tc.want)
		}
	}
}

func TestAttemptTransition(t *testing.T) {
	legal := []struct{ from, to string }{
		{StatusPending, StatusInProgress},
		{StatusPending, StatusReviewed},
		{StatusInProgress, StatusReviewed},
		{StatusReviewed, StatusResolved},
	}
	for _, tc := range legal {
		if err := attemptTransition(tc.from, tc.to); err != nil {
			t.Errorf("%s -> %s should be legal, got %v", tc.from, tc.to, err)
		}
	}

	illegal := []struct{ from, to string }{
		{StatusPending, StatusResolved},
		{StatusReviewed, StatusPending},
		{StatusResolved, StatusReviewed},
		{StatusInProgress, StatusPending},
	}
	for _, tc := range illegal {
		if err := attemptTransition(tc.from, tc.to); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("%s -> %s should be rejected, got %v", tc.from, tc.to, err)
		}
	}

	if err := attemptTransition(StatusPending, "OPEN"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown status, got %v", err)
	}
}
