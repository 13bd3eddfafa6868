package domain

import "time"

// TokenIssuer issues bearer tokens for an entrant or organizer uid.
type TokenIssuer interface {
	Issue(uid string, roles []string, expiry time.Duration) (string, error)
}

// TokenVerifier verifies a token and returns the authenticated uid.
type TokenVerifier interface {
	Verify(token string) (uid string, err error)
}
