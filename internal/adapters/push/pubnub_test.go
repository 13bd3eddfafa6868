package push

import (
	"context"
	"errors"
	"testing"

	"admissionengine/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	channel string
	message map[string]any
	err     error
}

func (f *fakePublisher) Publish(_ context.Context, channel string, message map[string]any) error {
	f.channel = channel
	f.message = message
	return f.err
}

func TestSender_Send(t *testing.T) {
	req := &domain.NotificationRequest{ID: "nr-1", EventID: "ev-1", GroupType: domain.GroupSelected, Title: "You've been selected!", Message: "hi"}

	t.Run("publishes to the personal channel", func(t *testing.T) {
		pub := &fakePublisher{}
		err := NewSender(pub).Send(context.Background(), &domain.Profile{UID: "u-1"}, req)
		require.NoError(t, err)
		assert.Equal(t, "user-u-1", pub.channel)
		assert.Equal(t, "selected", pub.message["group_type"])
		assert.Equal(t, "You've been selected!", pub.message["title"])
		assert.Equal(t, "ev-1", pub.message["event_id"])
	})

	t.Run("publish failure is returned", func(t *testing.T) {
		pub := &fakePublisher{err: errors.New("403")}
		err := NewSender(pub).Send(context.Background(), &domain.Profile{UID: "u-1"}, req)
		require.Error(t, err)
	})
}
