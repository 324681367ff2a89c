package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicore/clinic-server/internal/domain/appointment"
	"github.com/clinicore/clinic-server/internal/domain/notification"
)

// Sweep intervals. Each sweep is also runnable on demand via `jobs run`.
const (
	ReminderInterval = 24 * time.Hour
	CleanupInterval  = 7 * 24 * time.Hour
	ReportInterval   = 30 * 24 * time.Hour

	cleanupRetention = 30 * 24 * time.Hour
)

// Job names.
const (
	JobAppointmentReminders = "appointment-reminders"
	JobNotificationCleanup  = "notification-cleanup"
	JobMonthlyReport        = "monthly-report"
)

type reminderSource interface {
	ListConfirmedOn(ctx context.Context, date time.Time) ([]*appointment.Appointment, error)
}

type notifier interface {
	Dispatch(ctx context.Context, e notification.Event) error
}

type notificationCleaner interface {
	CleanupRead(ctx context.Context, retention time.Duration) (int64, error)
}

type measureEvaluator interface {
	EvaluateAll(ctx context.Context) (map[string]int64, error)
}

// RegisterSweeps wires the clinic's scheduled sweeps into the runner.
func RegisterSweeps(r *Runner, appts reminderSource, n notifier, cleaner notificationCleaner, measures measureEvaluator, log zerolog.Logger) {
	r.Register(JobAppointmentReminders, ReminderInterval, func(ctx context.Context) error {
		return sendAppointmentReminders(ctx, appts, n, log)
	})
	r.Register(JobNotificationCleanup, CleanupInterval, func(ctx context.Context) error {
		deleted, err := cleaner.CleanupRead(ctx, cleanupRetention)
		if err != nil {
			return err
		}
		log.Info().Int64("deleted", deleted).Msg("read notifications cleaned up")
		return nil
	})
	r.Register(JobMonthlyReport, ReportInterval, func(ctx context.Context) error {
		results, err := measures.EvaluateAll(ctx)
		if err != nil {
			return err
		}
		ev := log.Info()
		for id, value := range results {
			ev = ev.Int64(id, value)
		}
		ev.Msg("monthly activity report")
		return nil
	})
}

// sendAppointmentReminders dispatches one reminder per CONFIRMED appointment
// scheduled for tomorrow.
func sendAppointmentReminders(ctx context.Context, appts reminderSource, n notifier, log zerolog.Logger) error {
	y, m, d := time.Now().AddDate(0, 0, 1).Date()
	tomorrow := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	items, err := appts.ListConfirmedOn(ctx, tomorrow)
	if err != nil {
		return err
	}
	sent := 0
	for _, a := range items {
		err := n.Dispatch(ctx, notification.Event{
			Type:       notification.TypeAppointmentReminder,
			Recipients: []uuid.UUID{a.PatientID},
			Title:      "Appointment Reminder",
			Message:    fmt.Sprintf("You have an appointment tomorrow (%s) at %s.", a.Date.Format("2006-01-02"), a.Time),
			Data:       map[string]string{"date": a.Date.Format("2006-01-02"), "time": a.Time},
		})
		if err != nil {
			log.Error().Err(err).Str("appointment_id", a.ID.String()).Msg("reminder dispatch failed")
			continue
		}
		sent++
	}
	log.Info().Int("sent", sent).Int("total", len(items)).Msg("appointment reminders dispatched")
	return nil
}
