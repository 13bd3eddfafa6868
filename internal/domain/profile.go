package domain

import "context"

// Profile is the slice of an entrant's account the engine reads.
// Nil preferences mean "not set" and are treated as opted in.
// swagger:model Profile
type Profile struct {
	UID            string `json:"uid"`
	DisplayName    string `json:"display_name"`
	Email          string `json:"email"`
	PhotoURL       string `json:"photo_url,omitempty"`
	Locale         string `json:"locale,omitempty"`
	PrefInvited    *bool  `json:"pref_invited"`
	PrefNotInvited *bool  `json:"pref_not_invited"`
}

// Allows reports whether the profile accepts notifications of the given kind.
func (p *Profile) Allows(invited bool) bool {
	pref := p.PrefNotInvited
	if invited {
		pref = p.PrefInvited
	}
	return pref == nil || *pref
}

// ProfileRepository reads and updates profiles.
type ProfileRepository interface {
	GetByID(ctx context.Context, uid string) (*Profile, error)
	// GetByIDs returns the profiles that exist; missing uids are absent from the map.
	GetByIDs(ctx context.Context, uids []string) (map[string]*Profile, error)
	UpdatePreferences(ctx context.Context, uid string, prefInvited, prefNotInvited *bool) error
}

// PreferenceService lets an entrant read and change notification preferences.
type PreferenceService interface {
	GetPreferences(ctx context.Context, uid string) (*Profile, error)
	UpdatePreferences(ctx context.Context, uid string, prefInvited, prefNotInvited *bool) (*Profile, error)
}
