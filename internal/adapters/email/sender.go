package email

import (
	"context"
	"fmt"

	"admissionengine/internal/domain"
)

const notificationTemplate = "notification"

type sender struct {
	mailer   domain.Mailer
	renderer domain.EmailTemplateRenderer
}

// NewSender returns a domain.Sender that emails the rendered "notification" template.
func NewSender(mailer domain.Mailer, renderer domain.EmailTemplateRenderer) domain.Sender {
	return &sender{mailer: mailer, renderer: renderer}
}

func (s *sender) Name() string { return "email" }

func (s *sender) Send(ctx context.Context, to *domain.Profile, req *domain.NotificationRequest) error {
	if to.Email == "" {
		return domain.ErrNotDeliverable
	}
	data := &domain.NotificationEmailData{
		DisplayName: to.DisplayName,
		Title:       req.Title,
		Message:     req.Message,
		EventID:     req.EventID,
		Group:       string(req.GroupType),
		Locale:      to.Locale,
	}
	subject, htmlBody, textBody, err := s.renderer.Render(notificationTemplate, data)
	if err != nil {
		return fmt.Errorf("render notification template: %w", err)
	}
	if err := s.mailer.Send(ctx, to.Email, subject, htmlBody, textBody); err != nil {
		return fmt.Errorf("send notification email: %w", err)
	}
	return nil
}
