package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/LeventeLantos/schoolwire/internal/audience"
	"github.com/LeventeLantos/schoolwire/internal/cache"
	"github.com/LeventeLantos/schoolwire/internal/dispatch"
	"github.com/LeventeLantos/schoolwire/internal/errs"
	"github.com/LeventeLantos/schoolwire/internal/metrics"
	"github.com/LeventeLantos/schoolwire/internal/model"
	"github.com/LeventeLantos/schoolwire/internal/registry"
	"github.com/LeventeLantos/schoolwire/internal/repo"
)

type NotifierDeps struct {
	Contacts  repo.ContactDirectory
	Templates repo.TemplateCatalog
	Registry  *registry.Registry
	Audience  *audience.Resolver
	Engine    *dispatch.Engine
	Ledger    repo.Ledger
	Cache     cache.StatusCache // optional
	Metrics   *metrics.Metrics
	Log       zerolog.Logger
}

// Notifier implements the API use cases on top of the directory, registry,
// dispatch engine and ledger.
type Notifier struct {
	contacts  repo.ContactDirectory
	templates repo.TemplateCatalog
	registry  *registry.Registry
	audience  *audience.Resolver
	engine    *dispatch.Engine
	ledger    repo.Ledger
	cache     cache.StatusCache
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

func NewNotifier(d NotifierDeps) *Notifier {
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	return &Notifier{
		contacts:  d.Contacts,
		templates: d.Templates,
		registry:  d.Registry,
		audience:  d.Audience,
		engine:    d.Engine,
		ledger:    d.Ledger,
		cache:     d.Cache,
		metrics:   d.Metrics,
		log:       d.Log.With().Str("component", "notifier").Logger(),
	}
}

func (n *Notifier) ImportContacts(ctx context.Context, in []model.ContactInput) (int, error) {
	imported := 0
	for _, c := range in {
		if _, err := n.contacts.Upsert(ctx, c); err != nil {
			return imported, fmt.Errorf("upsert contact %q: %w", c.ID, err)
		}
		imported++
	}
	n.log.Info().Int("imported", imported).Msg("contacts imported")
	return imported, nil
}

func (n *Notifier) Contact(ctx context.Context, id string) (model.Contact, error) {
	return n.contacts.Get(ctx, id)
}

func (n *Notifier) Templates(ctx context.Context) ([]model.Template, error) {
	return n.templates.List(ctx)
}

func (n *Notifier) CreateEvent(ctx context.Context, in registry.CreateInput) (model.Event, error) {
	ev, err := n.registry.Create(ctx, in)
	if err != nil {
		return model.Event{}, err
	}
	n.log.Info().Str("event_id", ev.ID).Str("template_id", ev.TemplateID).Msg("event created")
	return ev, nil
}

// SendEvent resolves the event's audience and queues records for it. It
// returns the number of records this call created. Sending the same event
// again queues a fresh set of records.
func (n *Notifier) SendEvent(ctx context.Context, eventID string, channels []model.Channel) (int, error) {
	ev, err := n.registry.Get(ctx, eventID)
	if err != nil {
		return 0, err
	}
	tmpl, err := n.registry.Template(ctx, ev)
	if err != nil {
		return 0, err
	}
	if len(channels) == 0 {
		channels = model.DefaultChannels
	}

	recipients, err := n.audience.Resolve(ctx, ev.Audience)
	if err != nil {
		return 0, fmt.Errorf("resolve audience: %w", err)
	}

	queued, err := n.engine.Dispatch(ctx, dispatch.Request{
		EventID:    ev.ID,
		Recipients: recipients,
		Channels:   channels,
		Template:   tmpl,
		Overrides:  ev.Overrides,
	})
	if err != nil {
		n.log.Error().Err(err).Str("event_id", ev.ID).Int("queued", queued).Msg("dispatch incomplete")
		return queued, err
	}

	n.log.Info().
		Str("event_id", ev.ID).
		Int("recipients", len(recipients)).
		Int("queued", queued).
		Msg("event dispatched")
	return queued, nil
}

func (n *Notifier) Report(ctx context.Context, eventID string) (model.Event, model.Summary, error) {
	ev, err := n.registry.Get(ctx, eventID)
	if err != nil {
		return model.Event{}, model.Summary{}, err
	}
	sum, err := n.ledger.Summarize(ctx, ev.ID)
	if err != nil {
		return model.Event{}, model.Summary{}, err
	}
	return ev, sum, nil
}

func (n *Notifier) RecipientLogs(ctx context.Context, recipientID string) ([]model.MessageRecord, error) {
	return n.ledger.ListByRecipient(ctx, recipientID)
}

func (n *Notifier) Message(ctx context.Context, providerMessageID string) (model.MessageRecord, error) {
	return n.ledger.FindByProviderID(ctx, providerMessageID)
}

// ApplyCallback records a provider status report. An unknown provider message
// id yields errs.ErrLogNotFound and leaves the ledger untouched.
func (n *Notifier) ApplyCallback(ctx context.Context, provider, providerMessageID string, upd model.StatusUpdate) (model.MessageRecord, error) {
	rec, err := n.ledger.UpdateStatus(ctx, providerMessageID, upd)
	switch {
	case errors.Is(err, errs.ErrLogNotFound):
		n.metrics.Callbacks.WithLabelValues(provider, "not_found").Inc()
		n.log.Warn().Str("provider", provider).Str("provider_message_id", providerMessageID).Msg("callback for unknown message")
		return model.MessageRecord{}, err
	case err != nil:
		n.metrics.Callbacks.WithLabelValues(provider, "error").Inc()
		return model.MessageRecord{}, err
	}

	n.metrics.Callbacks.WithLabelValues(provider, "ok").Inc()
	n.log.Debug().
		Str("provider", provider).
		Str("provider_message_id", providerMessageID).
		Str("status", string(rec.Status)).
		Msg("status updated")
	n.cacheStatus(ctx, rec)
	return rec, nil
}

// OnSent and OnFailed are hooks for the Sender.
func (n *Notifier) OnSent(ctx context.Context, rec model.MessageRecord) {
	n.metrics.Transmissions.WithLabelValues(string(rec.Channel), "sent").Inc()
	n.cacheStatus(ctx, rec)
}

func (n *Notifier) OnFailed(ctx context.Context, rec model.MessageRecord, reason string) {
	n.metrics.Transmissions.WithLabelValues(string(rec.Channel), "failed").Inc()
	n.cacheStatus(ctx, rec)
}

func (n *Notifier) cacheStatus(ctx context.Context, rec model.MessageRecord) {
	if n.cache == nil {
		return
	}
	if err := n.cache.StoreStatus(ctx, rec); err != nil {
		n.log.Warn().Err(err).Str("provider_message_id", rec.ProviderMessageID).Msg("status cache write failed")
	}
}
