// Package intake accepts contact-form submissions: it validates the three
// fields, appends the lead to the durable log and then tries to notify staff.
package intake

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/gopartnerr/zeyatek/internal/model"
	"github.com/rs/zerolog"
)

const (
	receivedNote = "Thanks — we received your message."
	emailedNote  = " (A copy was emailed to your inbox.)"
	savedNote    = " (Saved to %s. Configure SMTP to also receive emails.)"
)

// Form is the raw, untrimmed contact form as posted by the visitor.
type Form struct {
	Name    string `form:"name"`
	Email   string `form:"email"`
	Message string `form:"message"`
}

// Ack acknowledges an accepted submission.
type Ack struct {
	Lead         model.Lead
	Notification model.DeliveryResult
	Message      string
}

// Emailed reports whether staff were notified by mail.
func (a Ack) Emailed() bool {
	return a.Notification.Delivered()
}

// Service runs the submission flow. The log is mandatory, the notifier is
// best-effort.
type Service struct {
	log      model.LeadAppender
	notifier model.LeadNotifier
	logName  string
	logger   zerolog.Logger
}

// NewService wires a submission service. logPath is only used for the
// "saved only" acknowledgment wording. A nil notifier behaves as if
// notification were not configured.
func NewService(log model.LeadAppender, notifier model.LeadNotifier, logPath string, logger zerolog.Logger) *Service {
	if logPath == "" {
		logPath = model.DefaultLeadLogPath
	}
	return &Service{
		log:      log,
		notifier: notifier,
		logName:  filepath.Base(logPath),
		logger:   logger.With().Str("component", "intake").Logger(),
	}
}

// Submit validates form, persists the lead and attempts a notification.
// It returns a *model.ValidationError when a field is empty after trimming,
// and a wrapped I/O error when the lead could not be written. Notification
// failures never produce an error.
func (s *Service) Submit(ctx context.Context, form Form) (Ack, error) {
	lead, err := model.NewLead(form.Name, form.Email, form.Message)
	if err != nil {
		s.logger.Debug().Err(err).Msg("submission rejected")
		return Ack{}, err
	}

	if err := s.log.Append(lead); err != nil {
		s.logger.Error().Err(err).Msg("lead not saved")
		return Ack{}, fmt.Errorf("intake: save lead: %w", err)
	}

	result := model.DeliveryResult{Status: model.NotAttempted}
	if s.notifier != nil {
		result = s.notifier.Notify(ctx, lead)
	}

	s.logger.Info().Str("notification", result.Status.String()).Msg("lead accepted")

	return Ack{
		Lead:         lead,
		Notification: result,
		Message:      s.acknowledgment(result),
	}, nil
}

func (s *Service) acknowledgment(result model.DeliveryResult) string {
	if result.Delivered() {
		return receivedNote + emailedNote
	}
	return receivedNote + fmt.Sprintf(savedNote, s.logName)
}
