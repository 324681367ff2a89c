package notification

import (
	"fmt"
	"strings"
	"sync"
)

// Template defines a reusable email template keyed by notification type.
type Template struct {
	Type    string `json:"type"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// TemplateEngine renders email subjects and bodies with {{key}} replacement.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates a TemplateEngine with the built-in templates pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{
		templates: make(map[string]*Template),
	}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	builtIn := []Template{
		{
			Type:    TypeAppointment,
			Subject: "Appointment Confirmed",
			Body:    "Dear {{recipient_name}}, your appointment on {{date}} at {{time}} has been confirmed.",
		},
		{
			Type:    TypeAppointmentCancelled,
			Subject: "Appointment Cancelled",
			Body:    "Dear {{recipient_name}}, your appointment on {{date}} at {{time}} has been cancelled. Reason: {{reason}}",
		},
		{
			Type:    TypeAppointmentRescheduled,
			Subject: "Appointment Rescheduled",
			Body:    "Dear {{recipient_name}}, your appointment has been moved to {{date}} at {{time}}.",
		},
		{
			Type:    TypeAppointmentReminder,
			Subject: "Appointment Reminder",
			Body:    "Dear {{recipient_name}}, this is a reminder of your appointment tomorrow, {{date}} at {{time}}.",
		},
		{
			Type:    TypeUrgentSymptom,
			Subject: "Urgent Symptom Report",
			Body:    "An urgent symptom report ({{severity}}) requires your attention: {{title}}",
		},
		{
			Type:    TypeAssignedSymptom,
			Subject: "Symptom Report Assigned",
			Body:    "A symptom report has been assigned to you for review: {{title}}",
		},
		{
			Type:    TypeDoctorResponse,
			Subject: "Your Doctor Has Responded",
			Body:    "Dear {{recipient_name}}, your doctor has reviewed your symptom report \"{{title}}\". Please log in to read the response.",
		},
	}
	for i := range builtIn {
		t := builtIn[i]
		e.templates[t.Type] = &t
	}
}

// RegisterTemplate adds or replaces a template in the engine.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.Type] = &t
}

// Render looks up a template by notification type and performs {{key}}
// replacement using the supplied data map. Keys present in the template but
// absent from data are left as-is.
func (e *TemplateEngine) Render(notifType string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[notifType]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template for %q not found", notifType)
	}

	subject = t.Subject
	body = t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, nil
}
