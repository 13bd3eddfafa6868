package controllers

import (
	"context"
	"log/slog"
	"net/http"

	"admissionengine/internal/delivery/http/helpers"
	"admissionengine/internal/domain"
)

// InvitationSuccessResponse is the success response envelope for accept and decline.
type InvitationSuccessResponse struct {
	Data  *domain.Invitation `json:"data"`
	Error *helpers.APIError  `json:"error"`
}

// InvitationListSuccessResponse is the success response envelope for GET /invitations.
type InvitationListSuccessResponse struct {
	Data  []*domain.Invitation `json:"data"`
	Error *helpers.APIError    `json:"error"`
}

type InvitationController struct {
	Logger     *slog.Logger
	Translator helpers.Localizer
	Service    domain.InvitationService
}

func NewInvitationController(logger *slog.Logger, translator helpers.Localizer, svc domain.InvitationService) *InvitationController {
	return &InvitationController{
		Logger:     logger,
		Translator: translator,
		Service:    svc,
	}
}

// List godoc
// @Summary List the current user's invitations
// @Tags invitations
// @Produce json
// @Security BearerAuth
// @Success 200 {object} controllers.InvitationListSuccessResponse
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /invitations [get]
func (c *InvitationController) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	invitations, err := c.Service.ListForUser(r.Context(), userID)
	if err != nil {
		writeError(w, r, c.Logger, c.Translator, err)
		return
	}
	if invitations == nil {
		invitations = []*domain.Invitation{}
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, invitations)
}

// Accept godoc
// @Summary Accept an invitation
// @Tags invitations
// @Produce json
// @Security BearerAuth
// @Param invitationID path string true "Invitation ID (UUID)"
// @Param event_id query string false "Event the invitation must belong to"
// @Success 200 {object} controllers.InvitationSuccessResponse
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: invalid_window or conflict"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /invitations/{invitationID}/accept [post]
func (c *InvitationController) Accept(w http.ResponseWriter, r *http.Request) {
	c.respond(w, r, c.Service.Accept)
}

// Decline godoc
// @Summary Decline an invitation
// @Description The seat is offered to a replacement drawn from the waitlist.
// @Tags invitations
// @Produce json
// @Security BearerAuth
// @Param invitationID path string true "Invitation ID (UUID)"
// @Param event_id query string false "Event the invitation must belong to"
// @Success 200 {object} controllers.InvitationSuccessResponse
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /invitations/{invitationID}/decline [post]
func (c *InvitationController) Decline(w http.ResponseWriter, r *http.Request) {
	c.respond(w, r, c.Service.Decline)
}

func (c *InvitationController) respond(w http.ResponseWriter, r *http.Request,
	transition func(ctx context.Context, invitationID, eventID, uid string) (*domain.Invitation, error),
) {
	invitationID, ok := pathUUID(w, r, "invitationID")
	if !ok {
		return
	}
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	eventID := r.URL.Query().Get("event_id")
	if eventID != "" && !uuidRegex.MatchString(eventID) {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "invalid event_id")
		return
	}
	inv, err := transition(r.Context(), invitationID, eventID, userID)
	if err != nil {
		writeError(w, r, c.Logger, c.Translator, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, inv)
}
