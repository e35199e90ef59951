package worker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/cal-poly-dxhub/duck-hunt/internal/planner"
	"github.com/cal-poly-dxhub/duck-hunt/internal/services/events"
	"github.com/cal-poly-dxhub/duck-hunt/internal/services/queue"
	"github.com/cal-poly-dxhub/duck-hunt/pkg/game"
	queuePkg "github.com/cal-poly-dxhub/duck-hunt/pkg/queue"
	"github.com/cal-poly-dxhub/duck-hunt/pkg/storage"
)

const (
	defaultPollTimeout = 5 * time.Second
	lockTTL            = 30 * time.Second
)

var releaseLock = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Worker turns queued game definitions into persisted games
type Worker struct {
	id          string
	queue       *queue.SetupQueue
	planner     *planner.Planner
	store       storage.GameStore
	broadcaster *events.Broadcaster
	redisClient *redis.Client
	log         *slog.Logger
	pollTimeout time.Duration
	now         func() time.Time
}

// New creates a new worker instance
func New(q *queue.SetupQueue, p *planner.Planner, store storage.GameStore, broadcaster *events.Broadcaster, redisClient *redis.Client, log *slog.Logger, workerID string) *Worker {
	if workerID == "" {
		workerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}
	return &Worker{
		id:          workerID,
		queue:       q,
		planner:     p,
		store:       store,
		broadcaster: broadcaster,
		redisClient: redisClient,
		log:         log.With("worker_id", workerID),
		pollTimeout: defaultPollTimeout,
		now:         time.Now,
	}
}

func (w *Worker) ID() string { return w.id }

// Run processes requests until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("Worker starting")
	for {
		if ctx.Err() != nil {
			w.log.Info("Worker shutting down")
			return nil
		}
		if _, err := w.ProcessNext(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.log.Error("Error processing request", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}
}

// ProcessNext waits for one request and handles it. It reports whether a request was taken.
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	req, err := w.queue.BlockingDequeue(ctx, w.pollTimeout)
	if err != nil {
		return false, fmt.Errorf("failed to dequeue request: %w", err)
	}
	if req == nil {
		return false, nil
	}

	log := w.log.With("request_id", req.RequestID, "source", req.Source)
	log.Info("Received setup request")

	lockKey, err := definitionLockKey(&req.Definition)
	if err != nil {
		return true, w.finish(ctx, w.failed(req, err))
	}

	locked, err := w.redisClient.SetNX(ctx, lockKey, w.id, lockTTL).Result()
	if err != nil {
		return true, fmt.Errorf("failed to acquire definition lock: %w", err)
	}
	if !locked {
		// another worker is creating the same definition
		log.Info("Definition already locked, re-queueing request")
		if err := w.queue.Enqueue(ctx, req); err != nil {
			return true, fmt.Errorf("failed to re-queue request: %w", err)
		}
		return true, nil
	}
	defer w.unlock(lockKey)

	return true, w.finish(ctx, w.setup(ctx, log, req))
}

func (w *Worker) setup(ctx context.Context, log *slog.Logger, req *queuePkg.SetupRequest) *queuePkg.SetupResult {
	start := time.Now()

	plan, err := w.planner.Plan(&req.Definition)
	if err != nil {
		log.Warn("Definition rejected", "error", err)
		return w.failed(req, err)
	}
	if err := planner.Persist(ctx, w.store, plan); err != nil {
		log.Error("Failed to persist game", "error", err)
		return w.failed(req, err)
	}
	_ = w.broadcaster.PublishGameCreated(ctx, plan.Game.ID, len(plan.Teams))

	res := &queuePkg.SetupResult{
		RequestID:   req.RequestID,
		Status:      queuePkg.SetupSucceeded,
		GameID:      plan.Game.ID,
		WorkerID:    w.id,
		CompletedAt: w.now().UTC(),
	}
	for _, t := range plan.Teams {
		ta := queuePkg.TeamAssignment{TeamID: t.ID, TeamName: t.Name}
		for _, tl := range plan.Assignments[t.ID] {
			ta.LevelIDs = append(ta.LevelIDs, tl.LevelID)
		}
		res.Teams = append(res.Teams, ta)
	}

	log.Info("Game created",
		"game_id", plan.Game.ID,
		"teams", len(plan.Teams),
		"duration_ms", time.Since(start).Milliseconds())
	return res
}

func (w *Worker) failed(req *queuePkg.SetupRequest, err error) *queuePkg.SetupResult {
	return &queuePkg.SetupResult{
		RequestID:   req.RequestID,
		Status:      queuePkg.SetupFailed,
		Error:       err.Error(),
		WorkerID:    w.id,
		CompletedAt: w.now().UTC(),
	}
}

func (w *Worker) finish(ctx context.Context, res *queuePkg.SetupResult) error {
	if err := w.queue.SaveResult(ctx, res); err != nil {
		return fmt.Errorf("failed to record result for %s: %w", res.RequestID, err)
	}
	return nil
}

func (w *Worker) unlock(key string) {
	// release even when the request context is gone
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := releaseLock.Run(ctx, w.redisClient, []string{key}, w.id).Err(); err != nil && !errors.Is(err, redis.Nil) {
		w.log.Error("Failed to release definition lock", "error", err, "key", key)
	}
}

// definitionLockKey identifies a definition by the hash of its JSON form.
func definitionLockKey(def *game.Definition) (string, error) {
	data, err := json.Marshal(def)
	if err != nil {
		return "", fmt.Errorf("failed to fingerprint definition: %w", err)
	}
	sum := sha256.Sum256(data)
	return "setup-lock:" + hex.EncodeToString(sum[:16]), nil
}
