package domain

import "context"

// Mailer defines the contract for sending emails (infrastructure port).
type Mailer interface {
	Send(ctx context.Context, to, subject, html, text string) error
}

// EmailTemplateRenderer renders email content from a named template with the given data.
type EmailTemplateRenderer interface {
	Render(templateName string, data any) (subject, htmlBody, textBody string, err error)
}

// NotificationEmailData feeds the "notification" email template.
type NotificationEmailData struct {
	DisplayName string
	Title       string
	Message     string
	EventID     string
	Group       string
	Locale      string
}
