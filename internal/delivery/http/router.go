package http

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"admissionengine/internal/delivery/http/controllers"
	"admissionengine/internal/delivery/http/helpers"
	"admissionengine/internal/delivery/http/middleware"
	"admissionengine/internal/domain"
)

// Controllers groups the HTTP controllers served by the router.
type Controllers struct {
	Event      *controllers.EventController
	Waitlist   *controllers.WaitlistController
	Invitation *controllers.InvitationController
	Preference *controllers.PreferenceController
}

// NewRouter initializes the HTTP router with all application routes, wrapped
// in request logging and CORS.
func NewRouter(c Controllers, verifier domain.TokenVerifier, loc helpers.Localizer, allowedOrigins []string, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	auth := middleware.RequireAuth(verifier, loc, logger)

	// Events (organizer)
	mux.HandleFunc("POST /events", auth(c.Event.CreateEvent))
	mux.HandleFunc("GET /events/{eventID}", auth(c.Event.GetEvent))
	mux.HandleFunc("GET /organizer/events", auth(c.Event.ListMyEvents))
	mux.HandleFunc("POST /events/{eventID}/selection", auth(c.Event.RunSelection))
	mux.HandleFunc("POST /events/{eventID}/replacements", auth(c.Event.Refill))
	mux.HandleFunc("DELETE /events/{eventID}/entrants/{uid}", auth(c.Event.RemoveEntrant))

	// Waitlist
	mux.HandleFunc("POST /events/{eventID}/waitlist", auth(c.Waitlist.Join))
	mux.HandleFunc("DELETE /events/{eventID}/waitlist", auth(c.Waitlist.Leave))
	mux.HandleFunc("GET /events/{eventID}/waitlist", auth(c.Waitlist.List))
	mux.HandleFunc("GET /events/{eventID}/waitlist/me", auth(c.Waitlist.Status))

	// Invitations
	mux.HandleFunc("GET /invitations", auth(c.Invitation.List))
	mux.HandleFunc("POST /invitations/{invitationID}/accept", auth(c.Invitation.Accept))
	mux.HandleFunc("POST /invitations/{invitationID}/decline", auth(c.Invitation.Decline))

	// Preferences
	mux.HandleFunc("GET /me/preferences", auth(c.Preference.Get))
	mux.HandleFunc("PUT /me/preferences", auth(c.Preference.Update))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	// Swagger
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	return middleware.LoggingMiddleware(logger, middleware.CORS(allowedOrigins, mux))
}
