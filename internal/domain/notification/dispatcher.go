package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicore/clinic-server/internal/platform/events"
)

// Directory resolves recipient user ids to email addresses and display
// names. The name map personalizes the email salutation; ids absent from
// either map are skipped or greeted generically.
type Directory interface {
	ContactsByIDs(ctx context.Context, ids []uuid.UUID) (emails, names map[uuid.UUID]string, err error)
}

// DispatcherConfig tunes the async email worker.
type DispatcherConfig struct {
	QueueSize   int
	MaxRetries  int
	SendTimeout time.Duration
}

type emailJob struct {
	to      string
	subject string
	body    string
}

// Dispatcher fans a workflow event out to its recipients: one persisted
// notification record per recipient, then a best-effort email delivered by a
// background worker, then a best-effort publish to the event stream. Only the
// record persist can fail the call; transport failures are logged and never
// reach the triggering workflow.
type Dispatcher struct {
	repo      Repository
	directory Directory
	sender    EmailSender
	templates *TemplateEngine
	publisher events.Publisher
	logger    zerolog.Logger
	cfg       DispatcherConfig

	queue     chan emailJob
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewDispatcher constructs a Dispatcher and starts its email worker.
// sender may be nil; the dispatcher then records notifications only.
func NewDispatcher(repo Repository, directory Directory, sender EmailSender,
	publisher events.Publisher, logger zerolog.Logger, cfg DispatcherConfig) *Dispatcher {

	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}

	d := &Dispatcher{
		repo:      repo,
		directory: directory,
		sender:    sender,
		templates: NewTemplateEngine(),
		publisher: publisher,
		logger:    logger,
		cfg:       cfg,
		queue:     make(chan emailJob, cfg.QueueSize),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

// Dispatch persists one notification record per recipient and schedules the
// email and stream legs. The returned error reflects record persistence only.
func (d *Dispatcher) Dispatch(ctx context.Context, e Event) error {
	if !validTypes[e.Type] {
		return fmt.Errorf("%w: unknown event type %q", ErrValidation, e.Type)
	}
	if len(e.Recipients) == 0 {
		return nil
	}

	var firstErr error
	persisted := make([]uuid.UUID, 0, len(e.Recipients))
	for _, userID := range e.Recipients {
		n := &Notification{
			UserID:  userID,
			Title:   e.Title,
			Message: e.Message,
			Type:    e.Type,
		}
		if err := d.repo.Create(ctx, n); err != nil {
			d.logger.Error().Err(err).
				Str("type", e.Type).
				Str("user_id", userID.String()).
				Msg("persist notification")
			if firstErr == nil {
				firstErr = fmt.Errorf("persist notification: %w", err)
			}
			continue
		}
		persisted = append(persisted, userID)
	}

	d.enqueueEmails(ctx, e, persisted)

	if err := d.publisher.Publish(ctx, e.Type, e); err != nil {
		d.logger.Warn().Err(err).Str("type", e.Type).Msg("publish event")
	}

	return firstErr
}

func (d *Dispatcher) enqueueEmails(ctx context.Context, e Event, recipients []uuid.UUID) {
	if d.sender == nil || len(recipients) == 0 {
		return
	}

	emails, names, err := d.directory.ContactsByIDs(ctx, recipients)
	if err != nil {
		d.logger.Warn().Err(err).Str("type", e.Type).Msg("resolve recipients")
		return
	}

	for _, userID := range recipients {
		to, ok := emails[userID]
		if !ok || to == "" {
			continue
		}
		subject, body := d.render(e, names[userID])
		select {
		case d.queue <- emailJob{to: to, subject: subject, body: body}:
		default:
			// Queue full: the record is already persisted, drop the email.
			d.logger.Warn().
				Str("type", e.Type).
				Str("to", to).
				Msg("email queue full, dropping email")
		}
	}
}

// render personalizes the event's template for one recipient. A recipient
// the directory could not name is greeted generically.
func (d *Dispatcher) render(e Event, name string) (subject, body string) {
	data := make(map[string]string, len(e.Data)+1)
	for k, v := range e.Data {
		data[k] = v
	}
	if name == "" {
		name = "patient"
	}
	data["recipient_name"] = name

	subject, body, err := d.templates.Render(e.Type, data)
	if err != nil {
		return e.Title, e.Message
	}
	return subject, body
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for job := range d.queue {
		d.deliver(job)
	}
}

func (d *Dispatcher) deliver(job emailJob) {
	backoff := 500 * time.Millisecond
	for attempt := 0; ; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.SendTimeout)
		err := d.sender.SendEmail(ctx, job.to, job.subject, job.body)
		cancel()
		if err == nil {
			return
		}

		d.logger.Warn().Err(err).
			Str("to", job.to).
			Int("attempt", attempt+1).
			Msg("send email")

		if attempt >= d.cfg.MaxRetries {
			d.logger.Error().
				Str("to", job.to).
				Str("subject", job.subject).
				Msg("email delivery abandoned")
			return
		}

		time.Sleep(backoff)
		if backoff < 5*time.Second {
			backoff *= 2
		}
	}
}

// Close drains the email queue, stops the worker, and closes the publisher.
func (d *Dispatcher) Close() error {
	d.closeOnce.Do(func() {
		close(d.queue)
	})
	d.wg.Wait()
	return d.publisher.Close()
}
