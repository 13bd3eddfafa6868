package services

import (
	"context"
	"log/slog"

	"admissionengine/internal/domain"
)

type preferenceFilter struct {
	profiles domain.ProfileRepository
	logger   *slog.Logger
}

// NewPreferenceFilter returns a PreferenceFilter that fails open: unknown
// profiles and lookup errors keep the recipient.
func NewPreferenceFilter(profiles domain.ProfileRepository, logger *slog.Logger) domain.PreferenceFilter {
	return &preferenceFilter{profiles: profiles, logger: logger}
}

func (f *preferenceFilter) Filter(ctx context.Context, uids []string, group domain.GroupType, invited bool) []string {
	uids = unique(uids)
	if len(uids) == 0 {
		return uids
	}
	invited = invited || group.Invited()

	profiles, err := f.profiles.GetByIDs(ctx, uids)
	if err != nil {
		f.logger.WarnContext(ctx, "preference lookup failed, notifying everyone", "group", group, "recipients", len(uids), "err", err)
		return uids
	}
	out := make([]string, 0, len(uids))
	for _, uid := range uids {
		p, ok := profiles[uid]
		if !ok || p.Allows(invited) {
			out = append(out, uid)
		}
	}
	return out
}

func unique(uids []string) []string {
	seen := make(map[string]struct{}, len(uids))
	out := make([]string, 0, len(uids))
	for _, uid := range uids {
		if uid == "" {
			continue
		}
		if _, ok := seen[uid]; ok {
			continue
		}
		seen[uid] = struct{}{}
		out = append(out, uid)
	}
	return out
}
