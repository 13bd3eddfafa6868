package push

import (
	"context"
	"fmt"

	pubnub "github.com/pubnub/go/v7"

	"admissionengine/internal/domain"
)

// Config holds PubNub credentials.
type Config struct {
	PublishKey   string
	SubscribeKey string
	SecretKey    string
	UserID       string
}

// Publisher publishes one message to one channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, message map[string]any) error
}

type pubnubPublisher struct {
	pn *pubnub.PubNub
}

// NewPubNubPublisher returns a Publisher backed by the PubNub SDK.
func NewPubNubPublisher(cfg Config) Publisher {
	pnConfig := pubnub.NewConfigWithUserId(pubnub.UserId(cfg.UserID))
	pnConfig.PublishKey = cfg.PublishKey
	pnConfig.SubscribeKey = cfg.SubscribeKey
	pnConfig.SecretKey = cfg.SecretKey
	return &pubnubPublisher{pn: pubnub.NewPubNub(pnConfig)}
}

func (p *pubnubPublisher) Publish(_ context.Context, channel string, message map[string]any) error {
	_, status, err := p.pn.Publish().
		Channel(channel).
		Message(message).
		Execute()
	if err != nil {
		return fmt.Errorf("pubnub publish: %w", err)
	}
	if status.Error != nil {
		return fmt.Errorf("pubnub publish status %d: %w", status.StatusCode, status.Error)
	}
	return nil
}

type sender struct {
	publisher Publisher
}

// NewSender returns a domain.Sender that pushes to the recipient's
// personal channel "user-{uid}".
func NewSender(publisher Publisher) domain.Sender {
	return &sender{publisher: publisher}
}

func (s *sender) Name() string { return "push" }

// Channel returns the personal channel of uid.
func Channel(uid string) string { return "user-" + uid }

func (s *sender) Send(ctx context.Context, to *domain.Profile, req *domain.NotificationRequest) error {
	return s.publisher.Publish(ctx, Channel(to.UID), map[string]any{
		"type":       "notification",
		"id":         req.ID,
		"event_id":   req.EventID,
		"group_type": string(req.GroupType),
		"title":      req.Title,
		"message":    req.Message,
	})
}
