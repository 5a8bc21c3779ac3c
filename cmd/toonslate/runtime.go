package main

import (
	"context"
	"fmt"

	"github.com/toonslate/toonslate-backend/internal/detection"
	"github.com/toonslate/toonslate-backend/internal/inpaint"
	"github.com/toonslate/toonslate-backend/internal/jobstore"
	"github.com/toonslate/toonslate-backend/internal/queue"
	"github.com/toonslate/toonslate-backend/internal/quota"
	"github.com/toonslate/toonslate-backend/internal/redisstore"
	"github.com/toonslate/toonslate-backend/internal/storage"
	"github.com/toonslate/toonslate-backend/internal/translation"
)

// runtime is the shared state both roles build at startup.
type runtime struct {
	redis *redisstore.Client
	jobs  *jobstore.Store
	store *storage.Local
	quota *quota.Engine
	queue *queue.Queue
}

func newRuntime(ctx context.Context) (*runtime, error) {
	redis, err := redisstore.New(ctx, redisstore.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	store, err := storage.NewLocal(cfg.StorageDir)
	if err != nil {
		redis.Close()
		return nil, fmt.Errorf("failed to open storage dir: %w", err)
	}

	return &runtime{
		redis: redis,
		jobs:  jobstore.New(redis, cfg.DataTTL),
		store: store,
		quota: quota.New(redis, cfg.IPHashSecret, cfg.WeeklyImages),
		queue: queue.New(redis, ""),
	}, nil
}

func (rt *runtime) close() {
	if err := rt.redis.Close(); err != nil {
		logger.Warn("redis close failed")
	}
}

// newInpainter builds the routed inpainter from the configured restorer.
func newInpainter() (inpaint.Inpainter, error) {
	var restorer inpaint.BackgroundRestorer
	switch cfg.Inpainting.Provider {
	case "space":
		if cfg.Inpainting.SpaceURL == "" {
			return nil, fmt.Errorf("inpainting space_url is required")
		}
		restorer = inpaint.NewSpaceRestorer(cfg.Inpainting.SpaceURL, cfg.Inpainting.Timeout)
	default:
		return nil, fmt.Errorf("unknown inpainting provider: %q", cfg.Inpainting.Provider)
	}
	return inpaint.NewRoutedInpainter(inpaint.SolidFillCleaner{}, restorer), nil
}

func newDetector() (detection.Detector, error) {
	switch cfg.Detection.Provider {
	case "space":
		if cfg.Detection.SpaceURL == "" {
			return nil, fmt.Errorf("detection space_url is required")
		}
		return detection.NewSpaceClient(cfg.Detection.SpaceURL, cfg.Detection.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown detection provider: %q", cfg.Detection.Provider)
	}
}

func newTranslator(ctx context.Context) (translation.Translator, error) {
	switch cfg.Translation.Provider {
	case "gemini":
		return translation.NewGemini(ctx, cfg.Translation.APIKey, cfg.Translation.Model, logger)
	default:
		return nil, fmt.Errorf("unknown translation provider: %q", cfg.Translation.Provider)
	}
}
