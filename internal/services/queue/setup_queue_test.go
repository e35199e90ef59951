package queue

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/cal-poly-dxhub/duck-hunt/pkg/game"
	"github.com/cal-poly-dxhub/duck-hunt/pkg/queue"
)

func setupTestRedis(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	client := NewClientFromRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}), logger)
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func request(id string) *queue.SetupRequest {
	return &queue.SetupRequest{
		RequestID:  id,
		Definition: game.Definition{Name: id, Teams: []game.TeamDefinition{{Name: "Ducks"}}},
		Source:     "hunt.yaml",
		EnqueuedAt: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestSetupQueue_FIFO(t *testing.T) {
	client, _ := setupTestRedis(t)
	q := NewSetupQueue(client)
	ctx := context.Background()

	for _, id := range []string{"r1", "r2", "r3"} {
		if err := q.Enqueue(ctx, request(id)); err != nil {
			t.Fatalf("Failed to enqueue: %v", err)
		}
	}

	depth, err := q.Depth(ctx)
	if err != nil {
		t.Fatalf("Failed to get depth: %v", err)
	}
	if depth != 3 {
		t.Errorf("Expected depth 3, got %d", depth)
	}

	for _, want := range []string{"r1", "r2", "r3"} {
		got, err := q.Dequeue(ctx)
		if err != nil {
			t.Fatalf("Failed to dequeue: %v", err)
		}
		if got.RequestID != want {
			t.Errorf("Expected %s, got %s", want, got.RequestID)
		}
		if got.Definition.Teams[0].Name != "Ducks" || got.Source != "hunt.yaml" {
			t.Errorf("Request did not round trip: %+v", got)
		}
	}

	empty, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if empty != nil {
		t.Errorf("Expected nil from empty queue, got %+v", empty)
	}
}

func TestSetupQueue_BlockingDequeue(t *testing.T) {
	client, _ := setupTestRedis(t)
	q := NewSetupQueue(client)
	ctx := context.Background()

	if err := q.Enqueue(ctx, request("r1")); err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}
	got, err := q.BlockingDequeue(ctx, time.Second)
	if err != nil {
		t.Fatalf("Failed to dequeue: %v", err)
	}
	if got == nil || got.RequestID != "r1" {
		t.Errorf("Expected r1, got %+v", got)
	}
}

func TestSetupQueue_Results(t *testing.T) {
	client, mr := setupTestRedis(t)
	q := NewSetupQueue(client)
	ctx := context.Background()

	missing, err := q.Result(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("Expected nil result, got %+v, %v", missing, err)
	}

	res := &queue.SetupResult{
		RequestID: "r1",
		Status:    queue.SetupSucceeded,
		GameID:    "g1",
		Teams:     []queue.TeamAssignment{{TeamID: "t1", TeamName: "Ducks", LevelIDs: []string{"a", "final"}}},
	}
	if err := q.SaveResult(ctx, res); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	got, err := q.Result(ctx, "r1")
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	if got.GameID != "g1" || got.Teams[0].LevelIDs[1] != "final" {
		t.Errorf("Unexpected result: %+v", got)
	}

	if ttl := mr.TTL("setup-result:r1"); ttl != 24*time.Hour {
		t.Errorf("Expected 24h TTL, got %v", ttl)
	}
}
