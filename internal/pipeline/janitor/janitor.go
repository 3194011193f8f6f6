// Package janitor enforces the retention window of staged files and task
// records.
package janitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shandysiswandi/csvpass/internal/pipeline/entity"
	"github.com/shandysiswandi/csvpass/internal/pipeline/staging"
)

type Scanner interface {
	Stale(cutoff time.Time) ([]staging.File, error)
}

// Sweeper evicts expired task records. Stores that expire records on their
// own (Redis) do not need one.
type Sweeper interface {
	Sweep(ctx context.Context) ([]entity.Task, error)
}

type Publisher interface {
	Publish(ctx context.Context, event entity.ExpiredFileEvent) error
}

type Dependency struct {
	Scanner   Scanner
	Sweeper   Sweeper
	Publisher Publisher
	TTL       time.Duration
	Now       func() time.Time
}

type Janitor struct {
	scanner   Scanner
	sweeper   Sweeper
	publisher Publisher
	ttl       time.Duration
	now       func() time.Time
}

func New(dep Dependency) *Janitor {
	now := dep.Now
	if now == nil {
		now = time.Now
	}

	return &Janitor{
		scanner:   dep.Scanner,
		sweeper:   dep.Sweeper,
		publisher: dep.Publisher,
		ttl:       dep.TTL,
		now:       now,
	}
}

// Run performs one retention pass. It is meant to be called periodically.
func (j *Janitor) Run(ctx context.Context) error {
	if j.ttl <= 0 {
		return nil
	}

	if j.sweeper != nil {
		tasks, err := j.sweeper.Sweep(ctx)
		if err != nil {
			return fmt.Errorf("sweep task records: %w", err)
		}
		if len(tasks) > 0 {
			slog.InfoContext(ctx, "expired task records evicted", "count", len(tasks))
		}
	}

	if j.scanner == nil || j.publisher == nil {
		return nil
	}

	files, err := j.scanner.Stale(j.now().Add(-j.ttl))
	if err != nil {
		return fmt.Errorf("scan staged files: %w", err)
	}

	var errs []error
	for _, f := range files {
		event := entity.ExpiredFileEvent{
			EventID: eventID(f),
			Path:    f.Path,
			ModTime: f.ModTime,
		}
		if err := j.publisher.Publish(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("publish %s: %w", f.Path, err))
			if ctx.Err() != nil {
				break
			}
		}
	}

	if len(files) > 0 {
		slog.InfoContext(ctx, "expired staged files queued for removal", "count", len(files)-len(errs))
	}

	return errors.Join(errs...)
}

// eventID is stable for a given file version, so a file picked up by two
// consecutive scans before its removal is handled once.
func eventID(f staging.File) string {
	return f.Path + "@" + strconv.FormatInt(f.ModTime.UnixNano(), 10)
}
