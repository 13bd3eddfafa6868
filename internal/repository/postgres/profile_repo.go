package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"admissionengine/internal/domain"
)

type profileRepository struct {
	DB *sql.DB
}

func NewProfileRepository(db *sql.DB) domain.ProfileRepository {
	return &profileRepository{
		DB: db,
	}
}

const profileColumns = `uid, display_name, email, photo_url, locale, pref_invited, pref_not_invited`

func scanProfile(row rowScanner) (*domain.Profile, error) {
	p := &domain.Profile{}
	var invited, notInvited sql.NullBool
	if err := row.Scan(&p.UID, &p.DisplayName, &p.Email, &p.PhotoURL, &p.Locale, &invited, &notInvited); err != nil {
		return nil, err
	}
	if invited.Valid {
		p.PrefInvited = &invited.Bool
	}
	if notInvited.Valid {
		p.PrefNotInvited = &notInvited.Bool
	}
	return p, nil
}

func (r *profileRepository) GetByID(ctx context.Context, uid string) (*domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE uid = $1`
	p, err := scanProfile(r.DB.QueryRowContext(ctx, query, uid))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, storeErr(err)
	}
	return p, nil
}

func (r *profileRepository) GetByIDs(ctx context.Context, uids []string) (map[string]*domain.Profile, error) {
	out := make(map[string]*domain.Profile, len(uids))
	if len(uids) == 0 {
		return out, nil
	}
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE uid = ANY($1)`
	rows, err := r.DB.QueryContext(ctx, query, pq.Array(uids))
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out[p.UID] = p
	}
	return out, storeErr(rows.Err())
}

func (r *profileRepository) UpdatePreferences(ctx context.Context, uid string, prefInvited, prefNotInvited *bool) error {
	query := `
		INSERT INTO profiles (uid, pref_invited, pref_not_invited)
		VALUES ($1, $2, $3)
		ON CONFLICT (uid) DO UPDATE
		SET pref_invited = COALESCE($2, profiles.pref_invited),
			pref_not_invited = COALESCE($3, profiles.pref_not_invited),
			updated_at = now()
	`
	_, err := r.DB.ExecContext(ctx, query, uid, nullBool(prefInvited), nullBool(prefNotInvited))
	return storeErr(err)
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}
