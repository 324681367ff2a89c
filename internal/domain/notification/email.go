package notification

import (
	"context"
	"errors"
	"sync"

	"github.com/go-gomail/gomail"
)

// EmailSender is the outbound email transport.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// GomailSender sends mail over SMTP.
type GomailSender struct {
	dialer *gomail.Dialer
	from   string
}

func NewGomailSender(host string, port int, user, password, from string) *GomailSender {
	return &GomailSender{
		dialer: gomail.NewDialer(host, port, user, password),
		from:   from,
	}
}

// SendEmail composes and delivers a plain-text message. gomail has no native
// context support, so the dial-and-send runs on its own goroutine and the
// call abandons it when ctx expires.
func (s *GomailSender) SendEmail(ctx context.Context, to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	done := make(chan error, 1)
	go func() {
		done <- s.dialer.DialAndSend(m)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EmailCall records a single call to SendEmail.
type EmailCall struct {
	To      string
	Subject string
	Body    string
}

// MockEmailSender is a test double for EmailSender.
type MockEmailSender struct {
	mu         sync.Mutex
	calls      []EmailCall
	ShouldFail bool
	// FailTimes fails the first N calls, then succeeds. Ignored when zero.
	FailTimes int
	failed    int
}

func (m *MockEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errors.New("send failed")
	}
	if m.FailTimes > 0 && m.failed < m.FailTimes {
		m.failed++
		return errors.New("transient send failure")
	}
	m.calls = append(m.calls, EmailCall{To: to, Subject: subject, Body: body})
	return nil
}

// Calls returns a copy of recorded email calls.
func (m *MockEmailSender) Calls() []EmailCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EmailCall, len(m.calls))
	copy(out, m.calls)
	return out
}
