package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/LeventeLantos/schoolwire/internal/errs"
	"github.com/LeventeLantos/schoolwire/internal/model"
	"github.com/LeventeLantos/schoolwire/internal/repo"
)

type CreateInput struct {
	TemplateID   string
	Audience     model.AudienceFilter
	Overrides    model.Overrides
	ScheduledFor model.Optional[time.Time]
}

// Registry creates and looks up broadcast events.
type Registry struct {
	events    repo.EventStore
	templates repo.TemplateCatalog
	now       func() time.Time
}

func New(events repo.EventStore, templates repo.TemplateCatalog, now func() time.Time) *Registry {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Registry{events: events, templates: templates, now: now}
}

// Create stores a new event. It fails with errs.ErrUnknownTemplate when the
// template is not in the catalog; nothing is stored in that case.
// ScheduledFor defaults to the creation time.
func (r *Registry) Create(ctx context.Context, in CreateInput) (model.Event, error) {
	_, ok, err := r.templates.Get(ctx, in.TemplateID)
	if err != nil {
		return model.Event{}, err
	}
	if !ok {
		return model.Event{}, fmt.Errorf("template %q: %w", in.TemplateID, errs.ErrUnknownTemplate)
	}

	now := r.now()
	ev := model.Event{
		ID:           uuid.NewString(),
		TemplateID:   in.TemplateID,
		Audience:     in.Audience,
		Overrides:    in.Overrides,
		ScheduledFor: in.ScheduledFor.Or(now),
		CreatedAt:    now,
	}
	if err := r.events.Save(ctx, ev); err != nil {
		return model.Event{}, err
	}
	return ev, nil
}

func (r *Registry) Get(ctx context.Context, id string) (model.Event, error) {
	return r.events.Get(ctx, id)
}

// Template returns the template an event refers to.
func (r *Registry) Template(ctx context.Context, ev model.Event) (model.Template, error) {
	t, ok, err := r.templates.Get(ctx, ev.TemplateID)
	if err != nil {
		return model.Template{}, err
	}
	if !ok {
		return model.Template{}, fmt.Errorf("template %q: %w", ev.TemplateID, errs.ErrUnknownTemplate)
	}
	return t, nil
}
