package model

import (
	"strings"
)

// Lead is one visitor-submitted contact request. All fields are untrusted
// and already trimmed; a Lead is never constructed with an empty field.
type Lead struct {
	Name    string
	Email   string
	Message string
}

// ValidationError reports the form fields that were empty after trimming.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "lead: missing required fields: " + strings.Join(e.Missing, ", ")
}

// UserMessage is the inline text shown next to the contact form.
func (e *ValidationError) UserMessage() string {
	return "Please fill out all fields."
}

// NewLead trims each field and returns a *ValidationError when any of them
// is empty.
func NewLead(name, email, message string) (Lead, error) {
	lead := Lead{
		Name:    strings.TrimSpace(name),
		Email:   strings.TrimSpace(email),
		Message: strings.TrimSpace(message),
	}

	var missing []string
	if lead.Name == "" {
		missing = append(missing, "name")
	}
	if lead.Email == "" {
		missing = append(missing, "email")
	}
	if lead.Message == "" {
		missing = append(missing, "message")
	}
	if len(missing) > 0 {
		return Lead{}, &ValidationError{Missing: missing}
	}
	return lead, nil
}

// Row returns the lead in log column order.
func (l Lead) Row() []string {
	return []string{l.Name, l.Email, l.Message}
}
