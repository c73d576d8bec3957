package repo

import (
	"context"
	"fmt"
	"sync"

	"github.com/LeventeLantos/schoolwire/internal/errs"
	"github.com/LeventeLantos/schoolwire/internal/model"
)

type EventStore interface {
	Save(ctx context.Context, ev model.Event) error
	Get(ctx context.Context, id string) (model.Event, error)
}

type MemoryEvents struct {
	mu   sync.RWMutex
	byID map[string]model.Event
}

var _ EventStore = (*MemoryEvents)(nil)

func NewMemoryEvents() *MemoryEvents {
	return &MemoryEvents{byID: map[string]model.Event{}}
}

func (s *MemoryEvents) Save(ctx context.Context, ev model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[ev.ID] = ev
	return nil
}

func (s *MemoryEvents) Get(ctx context.Context, id string) (model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ev, ok := s.byID[id]
	if !ok {
		return model.Event{}, fmt.Errorf("event %q: %w", id, errs.ErrEventNotFound)
	}
	return ev, nil
}
