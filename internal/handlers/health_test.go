package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/lifequest/internal/logger"
	"github.com/jwebster45206/lifequest/internal/storage/memory"
)

func TestHealthHandler_ServeHTTP(t *testing.T) {
	up := PingFunc(func(context.Context) error { return nil })
	down := PingFunc(func(context.Context) error { return errors.New("connection failed") })

	tests := []struct {
		name           string
		components     map[string]Pinger
		expectedStatus int
		expectedHealth string
		expectedParts  map[string]string
	}{
		{
			name:           "all healthy",
			components:     map[string]Pinger{"redis": up, "store": memory.New()},
			expectedStatus: http.StatusOK,
			expectedHealth: "healthy",
			expectedParts:  map[string]string{"redis": "healthy", "store": "healthy"},
		},
		{
			name:           "unhealthy redis",
			components:     map[string]Pinger{"redis": down, "store": up},
			expectedStatus: http.StatusServiceUnavailable,
			expectedHealth: "degraded",
			expectedParts:  map[string]string{"redis": "unhealthy", "store": "healthy"},
		},
		{
			name:           "no components",
			components:     map[string]Pinger{},
			expectedStatus: http.StatusOK,
			expectedHealth: "healthy",
			expectedParts:  map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler("lifequest-api", tt.components, logger.Discard())
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			var response HealthResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, tt.expectedHealth, response.Status)
			assert.Equal(t, "lifequest-api", response.Service)
			assert.Equal(t, tt.expectedParts, response.Components)
		})
	}
}

func TestHealthHandler_StorePingError(t *testing.T) {
	store := memory.New()
	store.SetPingError(errors.New("db gone"))
	handler := NewHealthHandler("lifequest-api", map[string]Pinger{"store": store}, logger.Discard())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHealthHandler_MethodNotAllowed(t *testing.T) {
	handler := NewHealthHandler("lifequest-api", nil, logger.Discard())
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/health", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, http.MethodGet, w.Header().Get("Allow"))
}
