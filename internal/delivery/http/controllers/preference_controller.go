package controllers

import (
	"log/slog"
	"net/http"

	"admissionengine/internal/delivery/http/helpers"
	"admissionengine/internal/domain"
)

// UpdatePreferencesRequest is the request body for PUT /me/preferences.
// Omitted fields are left unchanged.
type UpdatePreferencesRequest struct {
	PrefInvited    *bool `json:"pref_invited"`
	PrefNotInvited *bool `json:"pref_not_invited"`
}

// Validate implements Validator.
func (u UpdatePreferencesRequest) Validate() []string {
	if u.PrefInvited == nil && u.PrefNotInvited == nil {
		return []string{"at least one of pref_invited or pref_not_invited is required"}
	}
	return nil
}

// ProfileSuccessResponse is the success response envelope for preferences.
type ProfileSuccessResponse struct {
	Data  *domain.Profile   `json:"data"`
	Error *helpers.APIError `json:"error"`
}

type PreferenceController struct {
	Logger     *slog.Logger
	Translator helpers.Localizer
	Service    domain.PreferenceService
}

func NewPreferenceController(logger *slog.Logger, translator helpers.Localizer, svc domain.PreferenceService) *PreferenceController {
	return &PreferenceController{
		Logger:     logger,
		Translator: translator,
		Service:    svc,
	}
}

// Get godoc
// @Summary Get notification preferences
// @Tags preferences
// @Produce json
// @Security BearerAuth
// @Success 200 {object} controllers.ProfileSuccessResponse
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /me/preferences [get]
func (c *PreferenceController) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	p, err := c.Service.GetPreferences(r.Context(), userID)
	if err != nil {
		writeError(w, r, c.Logger, c.Translator, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, p)
}

// Update godoc
// @Summary Update notification preferences
// @Description pref_invited governs selection and replacement notices; pref_not_invited governs everything else.
// @Tags preferences
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body UpdatePreferencesRequest true "Preferences"
// @Success 200 {object} controllers.ProfileSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /me/preferences [put]
func (c *PreferenceController) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdatePreferencesRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	p, err := c.Service.UpdatePreferences(r.Context(), userID, req.PrefInvited, req.PrefNotInvited)
	if err != nil {
		writeError(w, r, c.Logger, c.Translator, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, p)
}
