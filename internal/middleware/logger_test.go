package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cal-poly-dxhub/duck-hunt/internal/metrics"
)

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg, reg)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(Logger(log, m))
	r.Get("/teams/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodGet, "/teams/abc", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusTeapot, rr.Code)
	assert.NotEmpty(t, rr.Header().Get(RequestIDHeader))
	assert.Contains(t, buf.String(), "route=/teams/{id}")
	assert.Contains(t, buf.String(), "request_id=")

	n, err := testutil.GatherAndCount(reg, "duckhunt_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestLogger_GeneratesRequestID(t *testing.T) {
	var buf bytes.Buffer
	h := Logger(slog.New(slog.NewTextHandler(&buf, nil)), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/nowhere", nil))

	assert.Len(t, rr.Header().Get(RequestIDHeader), 36)
	assert.True(t, strings.Contains(buf.String(), "level=ERROR"))
	assert.Contains(t, buf.String(), "route=unmatched")
}
