package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"admissionengine/internal/adapters/i18n"
	"admissionengine/internal/delivery/http/helpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubVerifier map[string]string

func (s stubVerifier) Verify(token string) (string, error) {
	if uid, ok := s[token]; ok {
		return uid, nil
	}
	return "", errors.New("token is expired")
}

func TestRequireAuth(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	translator := i18n.NewTranslator("en", logger)
	verifier := stubVerifier{"entrant-token": "u-7"}

	tests := []struct {
		name        string
		header      string
		language    string
		wantStatus  int
		wantUID     string
		wantMessage string
	}{
		{name: "valid token", header: "Bearer entrant-token", wantStatus: http.StatusOK, wantUID: "u-7"},
		{name: "lowercase scheme", header: "bearer entrant-token", wantStatus: http.StatusOK, wantUID: "u-7"},
		{name: "no header", wantStatus: http.StatusUnauthorized, wantMessage: "Please sign in to continue."},
		{name: "basic scheme", header: "Basic dTpw", wantStatus: http.StatusUnauthorized, wantMessage: "Please sign in to continue."},
		{name: "blank token", header: "Bearer   ", wantStatus: http.StatusUnauthorized, wantMessage: "Please sign in to continue."},
		{name: "rejected token", header: "Bearer stale", wantStatus: http.StatusUnauthorized, wantMessage: "Your session has expired. Please sign in again."},
		{name: "rejected token in french", header: "Bearer stale", language: "fr-CA", wantStatus: http.StatusUnauthorized, wantMessage: "Votre session a expiré. Veuillez vous reconnecter."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotUID string
			handler := RequireAuth(verifier, translator, logger)(func(w http.ResponseWriter, r *http.Request) {
				gotUID, _ = UIDFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/invitations", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.language != "" {
				req.Header.Set("Accept-Language", tt.language)
			}
			rr := httptest.NewRecorder()
			handler(rr, req)

			require.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantUID, gotUID)
			if tt.wantStatus == http.StatusUnauthorized {
				var envelope helpers.APIResponse
				require.NoError(t, json.NewDecoder(rr.Body).Decode(&envelope))
				require.NotNil(t, envelope.Error)
				assert.Equal(t, helpers.ErrCodeUnauthorized, envelope.Error.Code)
				assert.Equal(t, tt.wantMessage, envelope.Error.Message)
			}
		})
	}
}

func TestUIDFromContext_Empty(t *testing.T) {
	_, ok := UIDFromContext(WithUID(httptest.NewRequest(http.MethodGet, "/", nil).Context(), ""))
	assert.False(t, ok)
}
