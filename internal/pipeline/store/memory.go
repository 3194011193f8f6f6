package store

import (
	"context"
	"sync"
	"time"

	"github.com/shandysiswandi/csvpass/internal/pipeline/entity"
	"github.com/shandysiswandi/csvpass/internal/pkg/pkgerror"
)

// InMemoryStore keeps task records for the lifetime of the process. Records
// with an ExpiresAt are hidden once expired and dropped by Sweep.
type InMemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]entity.Task
	now   func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		tasks: make(map[string]entity.Task),
		now:   time.Now,
	}
}

func (s *InMemoryStore) Save(ctx context.Context, task entity.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[task.ID]; exists {
		return pkgerror.NewBusiness("task already exists", pkgerror.CodeConflict)
	}

	s.tasks[task.ID] = task

	return nil
}

func (s *InMemoryStore) Find(ctx context.Context, id string) (entity.Task, error) {
	s.mu.RLock()
	task, ok := s.tasks[id]
	s.mu.RUnlock()

	if !ok || task.Expired(s.now()) {
		return entity.Task{}, pkgerror.ErrNotFound
	}

	return task, nil
}

// Sweep removes expired records and returns them.
func (s *InMemoryStore) Sweep(ctx context.Context) ([]entity.Task, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []entity.Task
	for id, task := range s.tasks {
		if task.Expired(now) {
			expired = append(expired, task)
			delete(s.tasks, id)
		}
	}

	return expired, nil
}

// Len returns the number of records held, expired or not.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.tasks)
}
