package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"admissionengine/internal/domain"
)

type preferenceService struct {
	profileRepo    domain.ProfileRepository
	contextTimeout time.Duration
}

func NewPreferenceService(profileRepo domain.ProfileRepository, timeout time.Duration) domain.PreferenceService {
	return &preferenceService{profileRepo: profileRepo, contextTimeout: timeout}
}

// GetPreferences returns the stored profile, or an opted-in default for
// entrants without one.
func (s *preferenceService) GetPreferences(ctx context.Context, uid string) (*domain.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	p, err := s.profileRepo.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return defaultProfile(uid), nil
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (s *preferenceService) UpdatePreferences(ctx context.Context, uid string, prefInvited, prefNotInvited *bool) (*domain.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if prefInvited == nil && prefNotInvited == nil {
		return nil, fmt.Errorf("no preference given: %w", domain.ErrInvalidInput)
	}
	if err := s.profileRepo.UpdatePreferences(ctx, uid, prefInvited, prefNotInvited); err != nil {
		return nil, fmt.Errorf("update preferences: %w", err)
	}
	p, err := s.profileRepo.GetByID(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("reload profile: %w", err)
	}
	return p, nil
}

func defaultProfile(uid string) *domain.Profile {
	yes := true
	return &domain.Profile{UID: uid, PrefInvited: &yes, PrefNotInvited: &yes}
}
