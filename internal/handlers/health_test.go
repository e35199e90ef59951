package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/cal-poly-dxhub/duck-hunt/pkg/storage"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthHandler_ServeHTTP(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError, // Reduce noise in tests
	}))

	tests := []struct {
		name           string
		setupStorage   func() *storage.MockStorage
		photos         Pinger
		expectedStatus int
		expectedHealth string
		expectedStore  string
		expectedPhotos string
	}{
		{
			name:           "all healthy",
			setupStorage:   storage.NewMockStorage,
			photos:         pingFunc(func(context.Context) error { return nil }),
			expectedStatus: http.StatusOK,
			expectedHealth: "healthy",
			expectedStore:  "healthy",
			expectedPhotos: "healthy",
		},
		{
			name: "unhealthy storage",
			setupStorage: func() *storage.MockStorage {
				s := storage.NewMockStorage()
				s.SetPingError(errors.New("connection failed"))
				return s
			},
			photos:         pingFunc(func(context.Context) error { return nil }),
			expectedStatus: http.StatusServiceUnavailable,
			expectedHealth: "degraded",
			expectedStore:  "unhealthy",
			expectedPhotos: "healthy",
		},
		{
			name:           "unhealthy photos",
			setupStorage:   storage.NewMockStorage,
			photos:         pingFunc(func(context.Context) error { return errors.New("bucket missing") }),
			expectedStatus: http.StatusServiceUnavailable,
			expectedHealth: "degraded",
			expectedStore:  "healthy",
			expectedPhotos: "unhealthy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler("duck-hunt", map[string]Pinger{
				"storage": tt.setupStorage(),
				"photos":  tt.photos,
			}, logger)

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, rr.Code)
			}
			if rr.Header().Get("Content-Type") != "application/json" {
				t.Errorf("Expected Content-Type application/json, got %s", rr.Header().Get("Content-Type"))
			}

			var response HealthResponse
			if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if response.Status != tt.expectedHealth {
				t.Errorf("Expected status '%s', got '%s'", tt.expectedHealth, response.Status)
			}
			if response.Service != "duck-hunt" {
				t.Errorf("Expected service 'duck-hunt', got '%s'", response.Service)
			}
			if got := response.Components["storage"]; got != tt.expectedStore {
				t.Errorf("Expected storage status '%s', got '%s'", tt.expectedStore, got)
			}
			if got := response.Components["photos"]; got != tt.expectedPhotos {
				t.Errorf("Expected photos status '%s', got '%s'", tt.expectedPhotos, got)
			}
			if time.Since(response.Timestamp) > time.Second {
				t.Errorf("Health check timestamp seems old: %v", response.Timestamp)
			}
		})
	}
}

func TestHealthHandler_SkipsNilComponents(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	handler := NewHealthHandler("duck-hunt", map[string]Pinger{
		"storage": storage.NewMockStorage(),
		"photos":  nil,
	}, logger)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	var response HealthResponse
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if _, exists := response.Components["photos"]; exists {
		t.Error("Expected nil photos component to be skipped")
	}
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}
}
