package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"admissionengine/internal/domain"
	"admissionengine/internal/metrics"
)

// Only broadcast groups are deduplicated. Per-entrant groups and the sorry
// notice are already guarded by their lifecycle latches and must never be
// dropped.
var dedupedGroups = map[domain.GroupType]bool{
	domain.GroupWaitlist:      true,
	domain.GroupSpotAvailable: true,
	domain.GroupNonSelected:   true,
	domain.GroupGeneral:       true,
}

const releaseTimeout = 2 * time.Second

var messageKeys = map[domain.GroupType]string{
	domain.GroupWaitlist:      "waitlist",
	domain.GroupSpotAvailable: "spot_available",
	domain.GroupSelected:      "selected",
	domain.GroupSelection:     "selected",
	domain.GroupReplacement:   "replacement",
	domain.GroupNonSelected:   "non_selected",
	domain.GroupDeadline:      "deadline",
	domain.GroupSorry:         "sorry",
	domain.GroupCancelled:     "cancelled",
	domain.GroupGeneral:       "general",
}

type notifier struct {
	requests   domain.NotificationRequestRepository
	filter     domain.PreferenceFilter
	deduper    domain.Deduper
	translator domain.Translator
	locale     string
	logger     *slog.Logger
	now        func() time.Time
}

// NewNotifier builds the notification request writer. deduper may be nil.
func NewNotifier(
	requests domain.NotificationRequestRepository,
	filter domain.PreferenceFilter,
	deduper domain.Deduper,
	translator domain.Translator,
	locale string,
	logger *slog.Logger,
) domain.Notifier {
	return &notifier{
		requests:   requests,
		filter:     filter,
		deduper:    deduper,
		translator: translator,
		locale:     locale,
		logger:     logger,
		now:        time.Now,
	}
}

func (n *notifier) Prepare(ctx context.Context, notice domain.Notice) (*domain.NotificationRequest, error) {
	if notice.Event == nil {
		return nil, fmt.Errorf("notice without event: %w", domain.ErrInvalidInput)
	}
	group := string(notice.Group)

	recipients := n.filter.Filter(ctx, notice.Recipients, notice.Group, notice.Invited)
	if len(recipients) == 0 {
		metrics.Notification(group, "filtered")
		return nil, nil
	}

	title, message := n.render(notice)

	if n.deduper != nil && dedupedGroups[notice.Group] {
		ok, err := n.deduper.Acquire(ctx, notice.Event.ID, title)
		switch {
		case err != nil:
			// A duplicate is cheaper than a lost notice.
			n.logger.WarnContext(ctx, "dedup check failed, sending anyway", "event_id", notice.Event.ID, "group", group, "err", err)
		case !ok:
			metrics.Notification(group, "deduplicated")
			n.logger.DebugContext(ctx, "notification deduplicated", "event_id", notice.Event.ID, "group", group)
			return nil, nil
		}
	}

	return &domain.NotificationRequest{
		ID:         uuid.NewString(),
		EventID:    notice.Event.ID,
		Recipients: recipients,
		GroupType:  notice.Group,
		Title:      title,
		Message:    message,
		CreatedAt:  n.now(),
	}, nil
}

func (n *notifier) Notify(ctx context.Context, notice domain.Notice) (*domain.NotificationRequest, error) {
	req, err := n.Prepare(ctx, notice)
	if err != nil || req == nil {
		return nil, err
	}
	if err := n.requests.Create(ctx, req); err != nil {
		n.Release(ctx, req)
		metrics.Notification(string(notice.Group), "error")
		return nil, fmt.Errorf("create notification request: %w", err)
	}
	metrics.Notification(string(notice.Group), "created")
	return req, nil
}

func (n *notifier) Release(ctx context.Context, req *domain.NotificationRequest) {
	if req == nil || n.deduper == nil || !dedupedGroups[req.GroupType] {
		return
	}
	// The caller's context may already be done.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := n.deduper.Release(ctx, req.EventID, req.Title); err != nil {
		n.logger.WarnContext(ctx, "dedup release failed", "event_id", req.EventID, "group", req.GroupType, "err", err)
	}
}

func (n *notifier) render(notice domain.Notice) (string, string) {
	data := map[string]any{
		"Title":    notice.Event.Title,
		"EventID":  notice.Event.ID,
		"Deadline": formatDeadline(notice.Event.Deadline),
	}
	for k, v := range notice.Data {
		if t, ok := v.(time.Time); ok {
			v = formatDeadline(t)
		}
		data[k] = v
	}
	key, ok := messageKeys[notice.Group]
	if !ok {
		key = "general"
	}
	title := n.translator.T(n.locale, "notification_"+key+"_title", data)
	message := n.translator.T(n.locale, "notification_"+key+"_message", data)
	return title, message
}
