package controllers

import (
	"log/slog"
	"net/http"

	"admissionengine/internal/delivery/http/helpers"
	"admissionengine/internal/domain"
)

// JoinResult reports whether the join created a new entry.
type JoinResult struct {
	EventID string `json:"event_id"`
	Joined  bool   `json:"joined"`
	Created bool   `json:"created"`
}

// JoinSuccessResponse is the success response envelope for waitlist membership.
type JoinSuccessResponse struct {
	Data  JoinResult        `json:"data"`
	Error *helpers.APIError `json:"error"`
}

// WaitlistPage is a page of waitlist entries.
type WaitlistPage struct {
	Entries    []*domain.WaitlistEntry `json:"entries"`
	Pagination helpers.PaginationMeta  `json:"pagination"`
}

// WaitlistSuccessResponse is the success response envelope for GET /events/{eventID}/waitlist.
type WaitlistSuccessResponse struct {
	Data  WaitlistPage      `json:"data"`
	Error *helpers.APIError `json:"error"`
}

type WaitlistController struct {
	Logger     *slog.Logger
	Translator helpers.Localizer
	Service    domain.WaitlistService
}

func NewWaitlistController(logger *slog.Logger, translator helpers.Localizer, svc domain.WaitlistService) *WaitlistController {
	return &WaitlistController{
		Logger:     logger,
		Translator: translator,
		Service:    svc,
	}
}

// Join godoc
// @Summary Join the event waitlist
// @Description Idempotent: returns 201 when a new entry is created, 200 when already on the list.
// @Tags waitlist
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID (UUID)"
// @Success 200 {object} controllers.JoinSuccessResponse "Already on the waitlist"
// @Success 201 {object} controllers.JoinSuccessResponse "Joined"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: invalid_window, waitlist_full or conflict"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/waitlist [post]
func (c *WaitlistController) Join(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathUUID(w, r, "eventID")
	if !ok {
		return
	}
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	created, err := c.Service.Join(r.Context(), eventID, userID)
	if err != nil {
		writeError(w, r, c.Logger, c.Translator, err)
		return
	}
	result := JoinResult{EventID: eventID, Joined: true, Created: created}
	if created {
		helpers.WriteJSONSuccess(w, http.StatusCreated, result)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, result)
}

// Leave godoc
// @Summary Leave the event waitlist
// @Tags waitlist
// @Security BearerAuth
// @Param eventID path string true "Event ID (UUID)"
// @Success 204 "No Content"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/waitlist [delete]
func (c *WaitlistController) Leave(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathUUID(w, r, "eventID")
	if !ok {
		return
	}
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := c.Service.Leave(r.Context(), eventID, userID); err != nil {
		writeError(w, r, c.Logger, c.Translator, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Status godoc
// @Summary Whether the current user is on the waitlist
// @Tags waitlist
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID (UUID)"
// @Success 200 {object} controllers.JoinSuccessResponse
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/waitlist/me [get]
func (c *WaitlistController) Status(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathUUID(w, r, "eventID")
	if !ok {
		return
	}
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	joined, err := c.Service.IsJoined(r.Context(), eventID, userID)
	if err != nil {
		writeError(w, r, c.Logger, c.Translator, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, JoinResult{EventID: eventID, Joined: joined})
}

// List godoc
// @Summary List the waitlist (organizer only)
// @Tags waitlist
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID (UUID)"
// @Param page query int false "Page number (default 1)"
// @Param page_size query int false "Page size (default 20, max 100)"
// @Success 200 {object} controllers.WaitlistSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/waitlist [get]
func (c *WaitlistController) List(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathUUID(w, r, "eventID")
	if !ok {
		return
	}
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	params, err := helpers.ParsePagination(r)
	if err != nil {
		writeError(w, r, c.Logger, c.Translator, err)
		return
	}
	entries, total, err := c.Service.List(r.Context(), eventID, userID, params)
	if err != nil {
		writeError(w, r, c.Logger, c.Translator, err)
		return
	}
	if entries == nil {
		entries = []*domain.WaitlistEntry{}
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, WaitlistPage{
		Entries:    entries,
		Pagination: helpers.NewPaginationMeta(params, total),
	})
}
