package main

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/cal-poly-dxhub/duck-hunt/internal/config"
	"github.com/cal-poly-dxhub/duck-hunt/internal/logger"
	"github.com/cal-poly-dxhub/duck-hunt/internal/planner"
	"github.com/cal-poly-dxhub/duck-hunt/internal/services/events"
	"github.com/cal-poly-dxhub/duck-hunt/internal/services/queue"
	"github.com/cal-poly-dxhub/duck-hunt/internal/storage"
	"github.com/cal-poly-dxhub/duck-hunt/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Duck Hunt setup worker",
		"environment", cfg.Environment,
		"workers", cfg.WorkerCount)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewRedisStorage(cfg.RedisURL, cfg.SoftDeleteTTL, log)
	if err != nil {
		log.Error("Failed to create storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Error closing storage connection", "error", err)
		}
	}()

	storageCtx, storageCancel := context.WithTimeout(ctx, 2*time.Minute)
	defer storageCancel()
	if err := store.WaitForConnection(storageCtx); err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	log.Info("Redis connection established successfully")

	// queue, locks and events share the storage connection pool
	rdb := store.Client()
	setupQueue := queue.NewSetupQueue(queue.NewClientFromRedis(rdb, log))
	broadcaster := events.NewBroadcaster(rdb, log)

	prefix := cfg.WorkerID
	if prefix == "" {
		prefix = "worker-" + uuid.New().String()[:8]
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range cfg.WorkerCount {
		p := planner.New(rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())), log)
		w := worker.New(setupQueue, p, store, broadcaster, rdb, log, fmt.Sprintf("%s-%d", prefix, i))
		g.Go(func() error { return w.Run(gctx) })
	}

	log.Info("Workers started, waiting for setup requests...")
	if err := g.Wait(); err != nil {
		log.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("Worker exited")
}
