package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	h "admissionengine/internal/delivery/http/helpers"
	"admissionengine/internal/domain"
)

type uidKey struct{}

// WithUID returns a context carrying the authenticated uid.
func WithUID(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, uidKey{}, uid)
}

// UIDFromContext returns the uid set by RequireAuth.
func UIDFromContext(ctx context.Context) (string, bool) {
	uid, ok := ctx.Value(uidKey{}).(string)
	return uid, ok && uid != ""
}

// bearerToken extracts the token from an "Authorization: Bearer" header.
// The scheme is matched case-insensitively.
func bearerToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RequireAuth verifies the bearer token and stores the uid in the request
// context. Requests without a valid token get a localized 401.
func RequireAuth(verifier domain.TokenVerifier, loc h.Localizer, logger *slog.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			locale := loc.MatchLocale(r.Header.Get("Accept-Language"))
			token, ok := bearerToken(r)
			if !ok {
				h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, loc.T(locale, "error_unauthorized", nil))
				return
			}
			uid, err := verifier.Verify(token)
			if err != nil {
				logger.DebugContext(r.Context(), "token rejected", "path", r.URL.Path, "err", err)
				h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, loc.T(locale, "error_session_expired", nil))
				return
			}
			next(w, r.WithContext(WithUID(r.Context(), uid)))
		}
	}
}
