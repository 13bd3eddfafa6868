package http

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admissionengine/internal/adapters/i18n"
	"admissionengine/internal/delivery/http/controllers"
	"admissionengine/internal/domain"
)

type stubVerifier struct{}

func (stubVerifier) Verify(token string) (string, error) {
	if token == "good" {
		return "u1", nil
	}
	return "", errors.New("bad token")
}

func newTestRouter() http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
	tr := i18n.NewTranslator("en", logger)
	return NewRouter(Controllers{
		Event:      controllers.NewEventController(logger, tr, nil, nil, nil),
		Waitlist:   controllers.NewWaitlistController(logger, tr, nil),
		Invitation: controllers.NewInvitationController(logger, tr, nil),
		Preference: controllers.NewPreferenceController(logger, tr, nil),
	}, stubVerifier{}, tr, []string{"https://app.example"}, logger)
}

func TestRouter_RequiresAuth(t *testing.T) {
	router := newTestRouter()
	routes := []struct{ method, path string }{
		{http.MethodPost, "/events"},
		{http.MethodPost, "/events/6f1c2a4e-3b5d-4c7e-9f10-2a3b4c5d6e7f/waitlist"},
		{http.MethodGet, "/invitations"},
		{http.MethodPut, "/me/preferences"},
	}
	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			req := httptest.NewRequest(rt.method, rt.path, nil)
			req.Header.Set("Authorization", "Bearer nope")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestRouter_PublicEndpoints(t *testing.T) {
	router := newTestRouter()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "go_goroutines"))
}

func TestRouter_CORSPreflight(t *testing.T) {
	router := newTestRouter()
	req := httptest.NewRequest(http.MethodOptions, "/invitations", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))
}

var _ domain.TokenVerifier = stubVerifier{}
