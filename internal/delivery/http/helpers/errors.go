package helpers

import (
	"errors"
	"net/http"

	"admissionengine/internal/domain"
)

// Localizer renders error messages in the caller's language.
type Localizer interface {
	T(locale, key string, data map[string]any) string
	MatchLocale(acceptLanguage string) string
}

type errorMapping struct {
	target error
	status int
	code   string
	key    string
}

// Specific errors come before the kinds they wrap.
var errorMappings = []errorMapping{
	{domain.ErrEventNotFound, http.StatusNotFound, ErrCodeNotFound, "error_event_not_found"},
	{domain.ErrInvitationNotFound, http.StatusNotFound, ErrCodeNotFound, "error_invitation_not_found"},
	{domain.ErrEntrantNotFound, http.StatusNotFound, ErrCodeNotFound, "error_entrant_not_found"},
	{domain.ErrNotFound, http.StatusNotFound, ErrCodeNotFound, "error_not_found"},
	{domain.ErrRegistrationClosed, http.StatusConflict, ErrCodeInvalidWindow, "error_registration_closed"},
	{domain.ErrEventStarted, http.StatusConflict, ErrCodeInvalidWindow, "error_event_started"},
	{domain.ErrSelectionNotDue, http.StatusConflict, ErrCodeInvalidWindow, "error_selection_not_due"},
	{domain.ErrDeadlinePassed, http.StatusConflict, ErrCodeInvalidWindow, "error_deadline_passed"},
	{domain.ErrInvalidWindow, http.StatusConflict, ErrCodeInvalidWindow, "error_registration_closed"},
	{domain.ErrCapacityExceeded, http.StatusConflict, ErrCodeWaitlistFull, "error_waitlist_full"},
	{domain.ErrAlreadyAdmitted, http.StatusConflict, ErrCodeConflict, "error_already_admitted"},
	{domain.ErrAlreadyProcessed, http.StatusConflict, ErrCodeConflict, "error_already_processed"},
	{domain.ErrInvalidState, http.StatusConflict, ErrCodeConflict, "error_invalid_state"},
	{domain.ErrForbidden, http.StatusForbidden, ErrCodeForbidden, "error_forbidden"},
	{domain.ErrTransientStore, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "error_unavailable"},
}

// WriteServiceError maps a service error to a status, code and localized
// message and writes it. It returns the status so callers can log server
// errors.
func WriteServiceError(w http.ResponseWriter, r *http.Request, loc Localizer, err error) int {
	locale := loc.MatchLocale(r.Header.Get("Accept-Language"))

	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		WriteJSONError(w, http.StatusBadRequest, ErrCodeBadRequest, verr.Error())
		return http.StatusBadRequest
	}
	if errors.Is(err, domain.ErrInvalidInput) {
		WriteJSONError(w, http.StatusBadRequest, ErrCodeBadRequest, loc.T(locale, "error_invalid_input", nil))
		return http.StatusBadRequest
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			WriteJSONError(w, m.status, m.code, loc.T(locale, m.key, nil))
			return m.status
		}
	}
	WriteJSONError(w, http.StatusInternalServerError, ErrCodeInternalError, loc.T(locale, "error_internal", nil))
	return http.StatusInternalServerError
}
