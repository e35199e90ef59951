package handlers

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cal-poly-dxhub/duck-hunt/internal/services/events"
)

const eventsTeamID = "c1f0b3a2-8e57-4e2b-a5b7-7d6f3f5e2c22"

func newEventsServer(t *testing.T) (*httptest.Server, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(NewRouter(RouterConfig{
		Service: "duck-hunt",
		Actions: &fakeActions{},
		Redis:   rdb,
		Logger:  logger,
	}))
	t.Cleanup(srv.Close)
	return srv, rdb
}

func TestEventsHandler_RejectsOtherTeams(t *testing.T) {
	srv, _ := newEventsServer(t)

	tests := []struct {
		name   string
		path   string
		header string
	}{
		{"invalid team id", "/events/teams/not-a-uuid", "not-a-uuid"},
		{"header mismatch", "/events/teams/" + eventsTeamID, "7f1c9a1e-0000-4000-8000-000000000000"},
		{"missing header", "/events/teams/" + eventsTeamID, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, srv.URL+tt.path, nil)
			require.NoError(t, err)
			if tt.header != "" {
				req.Header.Set(HeaderTeamID, tt.header)
			}
			resp, err := srv.Client().Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestEventsHandler_StreamsTeamEvents(t *testing.T) {
	srv, rdb := newEventsServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events/teams/"+eventsTeamID, nil)
	require.NoError(t, err)
	req.Header.Set(HeaderTeamID, eventsTeamID)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string, 32)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	waitFor := func(prefix string) string {
		t.Helper()
		for {
			select {
			case line, ok := <-lines:
				require.True(t, ok, "stream closed before %q", prefix)
				if strings.HasPrefix(line, prefix) {
					return line
				}
			case <-ctx.Done():
				t.Fatalf("timed out waiting for %q", prefix)
			}
		}
	}

	waitFor("event: connected")

	// the subscription is confirmed asynchronously, so keep publishing until the event arrives
	b := events.NewBroadcaster(rdb, slog.New(slog.NewTextHandler(io.Discard, nil)))
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for {
			_ = b.PublishLevelCompleted(context.Background(), eventsTeamID, "level-a", "level-b")
			select {
			case <-stop:
				return
			case <-ticker.C:
			}
		}
	}()

	waitFor("event: level.completed")
	data := waitFor("data: ")
	assert.Contains(t, data, `"next_level_id":"level-b"`)
}
