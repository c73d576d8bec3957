package repo

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/LeventeLantos/schoolwire/internal/errs"
	"github.com/LeventeLantos/schoolwire/internal/model"
)

type ContactDirectory interface {
	Upsert(ctx context.Context, in model.ContactInput) (model.Contact, error)
	Get(ctx context.Context, id string) (model.Contact, error)
	// List returns every contact in insertion order.
	List(ctx context.Context) ([]model.Contact, error)
}

type MemoryContacts struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]model.Contact
}

var _ ContactDirectory = (*MemoryContacts)(nil)

func NewMemoryContacts() *MemoryContacts {
	return &MemoryContacts{byID: map[string]model.Contact{}}
}

func (d *MemoryContacts) Upsert(ctx context.Context, in model.ContactInput) (model.Contact, error) {
	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	existing, ok := d.byID[id]
	if !ok {
		existing = model.Contact{ID: id}
		d.order = append(d.order, id)
	}
	merged := in.MergeInto(existing)
	merged.ID = id
	d.byID[id] = merged
	return merged.Clone(), nil
}

func (d *MemoryContacts) Get(ctx context.Context, id string) (model.Contact, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	c, ok := d.byID[id]
	if !ok {
		return model.Contact{}, fmt.Errorf("contact %q: %w", id, errs.ErrContactNotFound)
	}
	return c.Clone(), nil
}

func (d *MemoryContacts) List(ctx context.Context) ([]model.Contact, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]model.Contact, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.byID[id].Clone())
	}
	return out, nil
}
