package event

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"sync"
	"time"

	"github.com/shandysiswandi/csvpass/internal/pipeline/entity"
)

type Handler interface {
	Handle(ctx context.Context, event entity.ExpiredFileEvent) error
}

type ConsumerConfig struct {
	Workers     int
	MaxRetries  int
	BaseBackoff time.Duration
}

// CleanupConsumer drains the bus with a fixed pool of workers. An event whose
// EventID is already being handled is skipped; failures are retried with
// exponential backoff.
type CleanupConsumer struct {
	bus         *Bus
	handler     Handler
	workers     int
	maxRetries  int
	baseBackoff time.Duration
	seen        sync.Map
	wg          sync.WaitGroup
	stop        chan struct{}
	stopOnce    sync.Once
}

func NewCleanupConsumer(bus *Bus, handler Handler, cfg ConsumerConfig) *CleanupConsumer {
	workers := cfg.Workers
	if workers < 1 {
		workers = 2
	}

	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	baseBackoff := cfg.BaseBackoff
	if baseBackoff <= 0 {
		baseBackoff = 100 * time.Millisecond
	}

	return &CleanupConsumer{
		bus:         bus,
		handler:     handler,
		workers:     workers,
		maxRetries:  maxRetries,
		baseBackoff: baseBackoff,
		stop:        make(chan struct{}),
	}
}

func (c *CleanupConsumer) Start() {
	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go c.worker()
	}
}

// Stop closes the bus and waits for queued events to drain. Workers abandon
// pending backoff sleeps once ctx is done.
func (c *CleanupConsumer) Stop(ctx context.Context) error {
	if c.bus != nil {
		c.bus.Close()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		c.stopOnce.Do(func() { close(c.stop) })
		return ctx.Err()
	}
}

func (c *CleanupConsumer) worker() {
	defer c.wg.Done()

	for event := range c.bus.Subscribe() {
		c.processEvent(event)
	}
}

func (c *CleanupConsumer) processEvent(event entity.ExpiredFileEvent) {
	if c.handler == nil {
		return
	}

	if event.EventID != "" {
		if _, loaded := c.seen.LoadOrStore(event.EventID, struct{}{}); loaded {
			slog.Debug("skip duplicate expired file event", "event_id", event.EventID, "path", event.Path)
			return
		}
		// only in-flight ids are tracked; a later scan may publish it again
		defer c.seen.Delete(event.EventID)
	}

	backoff := c.baseBackoff
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		err := c.handler.Handle(context.Background(), event)
		if err == nil {
			return
		}

		if attempt == c.maxRetries {
			slog.Error("failed to remove expired file after retries", "event_id", event.EventID, "path", event.Path, "error", err)
			return
		}

		if !c.sleepBackoff(backoff) {
			return
		}
		backoff *= 2
	}
}

func (c *CleanupConsumer) sleepBackoff(d time.Duration) bool {
	if d <= 0 {
		return false
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-c.stop:
		return false
	}
}

// Remover deletes a staged file.
type Remover interface {
	Remove(path string) error
}

// FileRemover is the Handler that deletes expired files from the staging area.
type FileRemover struct {
	Staging Remover
}

func (h FileRemover) Handle(ctx context.Context, event entity.ExpiredFileEvent) error {
	if event.Path == "" {
		return errors.New("missing file path")
	}

	if err := h.Staging.Remove(event.Path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}

	slog.InfoContext(ctx, "expired file removed", "event_id", event.EventID, "path", event.Path, "modified_at", event.ModTime)
	return nil
}
