package controllers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admissionengine/internal/domain"
)

func TestPreferenceController_Update(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"one flag", `{"pref_not_invited":false}`, http.StatusOK},
		{"both flags", `{"pref_invited":true,"pref_not_invited":false}`, http.StatusOK},
		{"empty", `{}`, http.StatusBadRequest},
		{"malformed", `{"pref_invited":"yes"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := NewPreferenceController(testLogger, testTranslator, &mockPreferenceService{})
			req := withUser(httptest.NewRequest(http.MethodPut, "/me/preferences", strings.NewReader(tt.body)), "u1")
			w := httptest.NewRecorder()

			ctrl.Update(w, req)
			require.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestPreferenceController_Get(t *testing.T) {
	yes := true
	ctrl := NewPreferenceController(testLogger, testTranslator, &mockPreferenceService{
		profile: &domain.Profile{UID: "u1", PrefInvited: &yes, PrefNotInvited: &yes},
	})
	req := withUser(httptest.NewRequest(http.MethodGet, "/me/preferences", nil), "u1")
	w := httptest.NewRecorder()

	ctrl.Get(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	data, ok := decodeEnvelope(t, w).Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, data["pref_invited"])
}
