package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shandysiswandi/csvpass/internal/pipeline/entity"
	"github.com/shandysiswandi/csvpass/internal/pipeline/event"
	"github.com/shandysiswandi/csvpass/internal/pipeline/inbound"
	"github.com/shandysiswandi/csvpass/internal/pipeline/janitor"
	"github.com/shandysiswandi/csvpass/internal/pipeline/staging"
	"github.com/shandysiswandi/csvpass/internal/pipeline/store"
	"github.com/shandysiswandi/csvpass/internal/pipeline/usecase"
	"github.com/shandysiswandi/csvpass/internal/pkg/pkgconfig"
	"github.com/shandysiswandi/csvpass/internal/pkg/pkgrouter"
	"github.com/shandysiswandi/csvpass/internal/pkg/pkgroutine"
	"github.com/shandysiswandi/csvpass/internal/pkg/pkguid"
)

type Dependency struct {
	Config    pkgconfig.Config
	Goroutine *pkgroutine.Manager
	Router    *pkgrouter.Router
	Context   context.Context
	ID        pkguid.StringID
	Mode      entity.Mode
}

func New(dep Dependency) (func(context.Context) error, error) {
	if !dep.Mode.Valid() {
		return nil, fmt.Errorf("unknown service mode %q", dep.Mode)
	}

	uploadsDir := dep.Config.GetString("staging.uploads_dir")
	processedDir := dep.Config.GetString("staging.processed_dir")
	maxBytes := dep.Config.GetInt("deferred.max_bytes")
	if dep.Mode == entity.ModeSync {
		processedDir = ""
		maxBytes = dep.Config.GetInt("sync.max_bytes")
	}

	area, err := staging.New(uploadsDir, processedDir)
	if err != nil {
		return nil, fmt.Errorf("prepare staging area: %w", err)
	}

	closers := []func(context.Context) error{}
	ttl := dep.Config.GetDuration("retention.ttl")

	var (
		storage usecase.Store
		sweeper janitor.Sweeper
	)
	if dep.Mode == entity.ModeDeferred {
		switch backend := dep.Config.GetString("task.store"); backend {
		case "", "memory":
			mem := store.NewInMemoryStore()
			storage, sweeper = mem, mem
		case "redis":
			rs, closer, err := store.NewRedisStore(dep.Context, store.RedisOptions{
				Addr:     dep.Config.GetString("redis.addr"),
				Password: dep.Config.GetString("redis.password"),
				DB:       int(dep.Config.GetInt("redis.db")),
				Prefix:   dep.Config.GetString("redis.prefix"),
			})
			if err != nil {
				return nil, err
			}
			storage = rs
			closers = append(closers, closer)
		default:
			return nil, fmt.Errorf("unknown task store %q", backend)
		}
	}

	bus := event.NewBus(512)
	consumer := event.NewCleanupConsumer(bus, event.FileRemover{Staging: area}, event.ConsumerConfig{
		Workers:     int(dep.Config.GetInt("cleanup.workers")),
		MaxRetries:  int(dep.Config.GetInt("cleanup.max_retries")),
		BaseBackoff: dep.Config.GetDuration("cleanup.base_backoff"),
	})
	consumer.Start()
	// the consumer drains before the store goes away
	closers = append([]func(context.Context) error{consumer.Stop}, closers...)

	if ttl > 0 {
		j := janitor.New(janitor.Dependency{
			Scanner:   area,
			Sweeper:   sweeper,
			Publisher: bus,
			TTL:       ttl,
		})
		dep.Goroutine.Every(dep.Context, retentionInterval(dep.Config.GetDuration("retention.interval"), ttl), j.Run)
	} else {
		slog.Warn("retention disabled, staged files and task records are kept for the process lifetime")
	}

	if dep.ID == nil {
		dep.ID = pkguid.NewUUID()
	}

	uc := usecase.New(usecase.Dependency{
		Store:       storage,
		Staging:     area,
		Transformer: usecase.Identity{},
		ID:          dep.ID,
		TTL:         ttl,
	})

	inbound.RegisterHTTPEndpoint(dep.Router, uc, inbound.Config{
		Mode:     dep.Mode,
		MaxBytes: maxBytes,
	})

	slog.Info("pipeline ready",
		"mode", dep.Mode,
		"uploads_dir", area.UploadsDir(),
		"processed_dir", area.ProcessedDir(),
		"max_bytes", maxBytes,
		"retention", ttl,
	)

	return func(ctx context.Context) error {
		var errs []error
		for _, closer := range closers {
			if err := closer(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}, nil
}

func retentionInterval(interval, ttl time.Duration) time.Duration {
	if interval > 0 {
		return interval
	}
	return ttl
}
