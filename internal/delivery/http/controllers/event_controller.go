package controllers

import (
	"log/slog"
	"net/http"
	"time"

	"admissionengine/internal/delivery/http/helpers"
	"admissionengine/internal/domain"
)

// CreateEventRequest is the request body for POST /events.
type CreateEventRequest struct {
	Title             string    `json:"title"`
	Capacity          int       `json:"capacity"`
	SampleSize        int       `json:"sample_size"`
	RegistrationStart time.Time `json:"registration_start,omitzero"`
	RegistrationEnd   time.Time `json:"registration_end,omitzero"`
	Deadline          time.Time `json:"deadline,omitzero"`
	EventStart        time.Time `json:"event_start,omitzero"`
}

// Validate implements Validator. Returns error messages for required and format rules.
func (c CreateEventRequest) Validate() []string {
	var errs []string
	if c.Title == "" {
		errs = append(errs, "title is required")
	}
	if c.Capacity < 1 {
		errs = append(errs, "capacity must be at least 1")
	}
	if c.SampleSize < 0 {
		errs = append(errs, "sample_size must not be negative")
	}
	return errs
}

// EventSuccessResponse is the success response envelope for a single event.
type EventSuccessResponse struct {
	Data  *domain.Event     `json:"data"`
	Error *helpers.APIError `json:"error"`
}

// EventListSuccessResponse is the success response envelope for GET /organizer/events.
type EventListSuccessResponse struct {
	Data  []*domain.Event   `json:"data"`
	Error *helpers.APIError `json:"error"`
}

// DrawResult reports how many invitations a draw issued.
type DrawResult struct {
	Issued int `json:"issued"`
}

// DrawSuccessResponse is the success response envelope for selection and refill.
type DrawSuccessResponse struct {
	Data  DrawResult        `json:"data"`
	Error *helpers.APIError `json:"error"`
}

type EventController struct {
	Logger      *slog.Logger
	Translator  helpers.Localizer
	Service     domain.EventService
	Selection   domain.SelectionService
	Replacement domain.ReplacementService
}

func NewEventController(
	logger *slog.Logger,
	translator helpers.Localizer,
	svc domain.EventService,
	selection domain.SelectionService,
	replacement domain.ReplacementService,
) *EventController {
	return &EventController{
		Logger:      logger,
		Translator:  translator,
		Service:     svc,
		Selection:   selection,
		Replacement: replacement,
	}
}

// CreateEvent godoc
// @Summary Create an admission-controlled event
// @Description The authenticated user becomes the organizer. Window timestamps are optional but must be ordered registration_start < registration_end < deadline < event_start.
// @Tags events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param event body CreateEventRequest true "Event data"
// @Success 201 {object} controllers.EventSuccessResponse "data contains the created event"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events [post]
func (c *EventController) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req CreateEventRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	event := domain.NewEvent(userID, req.Title, req.Capacity, req.SampleSize, time.Now())
	event.RegistrationStart = req.RegistrationStart
	event.RegistrationEnd = req.RegistrationEnd
	event.Deadline = req.Deadline
	event.EventStart = req.EventStart

	if err := c.Service.CreateEvent(r.Context(), event); err != nil {
		writeError(w, r, c.Logger, c.Translator, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusCreated, event)
}

// GetEvent godoc
// @Summary Get an event by ID
// @Tags events
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID (UUID)"
// @Success 200 {object} controllers.EventSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID} [get]
func (c *EventController) GetEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathUUID(w, r, "eventID")
	if !ok {
		return
	}
	event, err := c.Service.GetEvent(r.Context(), eventID)
	if err != nil {
		writeError(w, r, c.Logger, c.Translator, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, event)
}

// ListMyEvents godoc
// @Summary List events organized by the current user
// @Tags events
// @Produce json
// @Security BearerAuth
// @Success 200 {object} controllers.EventListSuccessResponse
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /organizer/events [get]
func (c *EventController) ListMyEvents(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	events, err := c.Service.ListEventsByOrganizer(r.Context(), userID)
	if err != nil {
		writeError(w, r, c.Logger, c.Translator, err)
		return
	}
	if events == nil {
		events = []*domain.Event{}
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, events)
}

// RunSelection godoc
// @Summary Run the lottery now
// @Description Draws min(sample_size, capacity, pool) winners. Only allowed after registration_end and before event_start, and only once.
// @Tags events
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID (UUID)"
// @Success 200 {object} controllers.DrawSuccessResponse
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: invalid_window or conflict"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/selection [post]
func (c *EventController) RunSelection(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathUUID(w, r, "eventID")
	if !ok {
		return
	}
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	n, err := c.Selection.RunForOrganizer(r.Context(), eventID, userID)
	if err != nil {
		writeError(w, r, c.Logger, c.Translator, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, DrawResult{Issued: n})
}

// Refill godoc
// @Summary Draw replacements for every open seat
// @Tags events
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID (UUID)"
// @Success 200 {object} controllers.DrawSuccessResponse
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/replacements [post]
func (c *EventController) Refill(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathUUID(w, r, "eventID")
	if !ok {
		return
	}
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	n, err := c.Replacement.Refill(r.Context(), eventID, userID)
	if err != nil {
		writeError(w, r, c.Logger, c.Translator, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, DrawResult{Issued: n})
}

// RemoveEntrant godoc
// @Summary Remove an entrant from the event
// @Description Cancels the entrant's pending invitation or waitlist entry with reason ORGANIZER_REMOVED and refills the seat.
// @Tags events
// @Security BearerAuth
// @Param eventID path string true "Event ID (UUID)"
// @Param uid path string true "Entrant user ID"
// @Success 204 "No Content"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/entrants/{uid} [delete]
func (c *EventController) RemoveEntrant(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathUUID(w, r, "eventID")
	if !ok {
		return
	}
	uid := r.PathValue("uid")
	if uid == "" {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "missing uid")
		return
	}
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := c.Service.RemoveEntrant(r.Context(), eventID, uid, userID); err != nil {
		writeError(w, r, c.Logger, c.Translator, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
