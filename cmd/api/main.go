package main

import (
	"context"
	"errors"
	"log"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cal-poly-dxhub/duck-hunt/internal/config"
	"github.com/cal-poly-dxhub/duck-hunt/internal/conversation"
	"github.com/cal-poly-dxhub/duck-hunt/internal/engine"
	"github.com/cal-poly-dxhub/duck-hunt/internal/handlers"
	"github.com/cal-poly-dxhub/duck-hunt/internal/hints"
	"github.com/cal-poly-dxhub/duck-hunt/internal/inference"
	"github.com/cal-poly-dxhub/duck-hunt/internal/logger"
	"github.com/cal-poly-dxhub/duck-hunt/internal/metrics"
	"github.com/cal-poly-dxhub/duck-hunt/internal/progress"
	"github.com/cal-poly-dxhub/duck-hunt/internal/services"
	"github.com/cal-poly-dxhub/duck-hunt/internal/services/events"
	"github.com/cal-poly-dxhub/duck-hunt/internal/services/photos"
	"github.com/cal-poly-dxhub/duck-hunt/internal/storage"
	"github.com/cal-poly-dxhub/duck-hunt/pkg/textfilter"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Duck Hunt API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"llm_provider", cfg.LLMProvider,
		"primary_model", cfg.PrimaryModel,
		"secondary_model", cfg.SecondaryModel)

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
	log.Info("Storage connection established successfully")

	llmService, err := services.NewLLMService(ctx, strings.ToLower(cfg.LLMProvider), cfg.LLMAPIKey(), log)
	if err != nil {
		log.Error("Failed to create LLM service", "error", err, "provider", cfg.LLMProvider)
		os.Exit(1)
	}
	initCtx, initCancel := context.WithTimeout(ctx, time.Minute)
	defer initCancel()
	models := []string{cfg.PrimaryModel, cfg.SecondaryModel}
	for _, model := range cfg.ModelsByDifficulty() {
		models = append(models, model)
	}
	for _, model := range models {
		if model == "" {
			continue
		}
		if err := llmService.InitModel(initCtx, model); err != nil {
			log.Error("Failed to initialize LLM model", "error", err, "model", model)
			os.Exit(1)
		}
	}

	m := metrics.New()
	health := map[string]handlers.Pinger{"storage": store}

	var photoStore photos.Store
	if cfg.PhotosEnabled() {
		minioStore, err := photos.NewMinioStore(ctx, photos.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		}, log)
		if err != nil {
			log.Error("Failed to initialize photo storage", "error", err)
			os.Exit(1)
		}
		photoStore = minioStore
		health["photos"] = minioStore
	} else {
		log.Warn("MINIO_ENDPOINT not set, photo uploads are disabled")
	}

	conv := conversation.New(store, log)
	tracker := progress.New(store, log)
	pipeline := inference.New(inference.Config{
		PrimaryModel:     cfg.PrimaryModel,
		SecondaryModel:   cfg.SecondaryModel,
		DifficultyModels: cfg.ModelsByDifficulty(),
		HistoryLimit:     cfg.HistoryLimit,
	}, llmService, textfilter.NewGuardrail(), store, conv, m, log)

	eng := engine.New(store, conv, tracker, pipeline,
		hints.Policy{EasyClueAfter: cfg.EasyClueAfter, MapLinkAfter: cfg.MapLinkAfter}, log).
		WithEvents(events.NewBroadcaster(store.Client(), log)).
		WithMetrics(m).
		WithRand(rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())))
	if photoStore != nil {
		eng = eng.WithPhotos(photoStore)
	}

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: handlers.NewRouter(handlers.RouterConfig{
			Service:        cfg.ServiceName,
			Actions:        eng,
			Health:         health,
			Metrics:        m,
			Redis:          store.Client(),
			RequestTimeout: cfg.RequestTimeout,
			Logger:         log,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		// WriteTimeout stays unset so the event stream can stay open
		IdleTimeout: 60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Server is shutting down...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("Server exited")
}
