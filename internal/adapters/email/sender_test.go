package email

import (
	"context"
	"errors"
	"testing"

	"admissionengine/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMailer struct {
	to, subject, html, text string
	calls                   int
	err                     error
}

func (f *fakeMailer) Send(_ context.Context, to, subject, html, text string) error {
	f.calls++
	f.to, f.subject, f.html, f.text = to, subject, html, text
	return f.err
}

func TestSender_Send(t *testing.T) {
	req := &domain.NotificationRequest{ID: "nr-1", EventID: "ev-1", GroupType: domain.GroupSorry, Title: "Update: Swim <Lessons>", Message: "Not this time."}

	t.Run("renders and mails the notification template", func(t *testing.T) {
		m := &fakeMailer{}
		err := NewSender(m, NewTemplateRenderer()).Send(context.Background(), &domain.Profile{UID: "u-1", DisplayName: "Ada", Email: "ada@example.com"}, req)
		require.NoError(t, err)
		assert.Equal(t, "ada@example.com", m.to)
		assert.Equal(t, "Update: Swim <Lessons>", m.subject)
		assert.Contains(t, m.text, "Hi Ada,")
		assert.Contains(t, m.text, "Not this time.")
		assert.Contains(t, m.html, "Update: Swim &lt;Lessons&gt;")
	})

	t.Run("french profile gets the french body", func(t *testing.T) {
		m := &fakeMailer{}
		err := NewSender(m, NewTemplateRenderer()).Send(context.Background(), &domain.Profile{UID: "u-2", DisplayName: "Zoé", Email: "zoe@example.com", Locale: "fr"}, req)
		require.NoError(t, err)
		assert.Contains(t, m.text, "Bonjour Zoé,")
		assert.Contains(t, m.html, `lang="fr"`)
		assert.NotContains(t, m.text, "Hi ")
	})

	t.Run("profile without email is not deliverable", func(t *testing.T) {
		m := &fakeMailer{}
		err := NewSender(m, NewTemplateRenderer()).Send(context.Background(), &domain.Profile{UID: "u-1"}, req)
		require.ErrorIs(t, err, domain.ErrNotDeliverable)
		assert.Zero(t, m.calls)
	})

	t.Run("mailer failure", func(t *testing.T) {
		m := &fakeMailer{err: errors.New("throttled")}
		err := NewSender(m, NewTemplateRenderer()).Send(context.Background(), &domain.Profile{UID: "u-1", Email: "a@b.co"}, req)
		require.Error(t, err)
	})
}
