package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeventeLantos/schoolwire/internal/audience"
	"github.com/LeventeLantos/schoolwire/internal/cache"
	"github.com/LeventeLantos/schoolwire/internal/dispatch"
	"github.com/LeventeLantos/schoolwire/internal/errs"
	"github.com/LeventeLantos/schoolwire/internal/metrics"
	"github.com/LeventeLantos/schoolwire/internal/model"
	"github.com/LeventeLantos/schoolwire/internal/registry"
	"github.com/LeventeLantos/schoolwire/internal/repo"
	"github.com/LeventeLantos/schoolwire/internal/service"
)

type notifierFixture struct {
	notifier *service.Notifier
	ledger   *repo.MemoryLedger
	metrics  *metrics.Metrics
}

func newNotifier(t *testing.T, sc cache.StatusCache) notifierFixture {
	t.Helper()

	ledger := repo.NewMemoryLedger(nil)
	contacts := repo.NewMemoryContacts()
	templates := repo.NewStaticCatalog(repo.DefaultTemplates())
	m := metrics.New()

	n := service.NewNotifier(service.NotifierDeps{
		Contacts:  contacts,
		Templates: templates,
		Registry:  registry.New(repo.NewMemoryEvents(), templates, nil),
		Audience:  audience.NewResolver(contacts),
		Engine:    dispatch.NewEngine(ledger, 2),
		Ledger:    ledger,
		Cache:     sc,
		Metrics:   m,
		Log:       zerolog.Nop(),
	})
	return notifierFixture{notifier: n, ledger: ledger, metrics: m}
}

func importContacts(t *testing.T, n *service.Notifier, raw string) {
	t.Helper()
	var in []model.ContactInput
	require.NoError(t, json.Unmarshal([]byte(raw), &in))
	_, err := n.ImportContacts(context.Background(), in)
	require.NoError(t, err)
}

type failingCache struct{ calls int }

func (c *failingCache) StoreStatus(ctx context.Context, rec model.MessageRecord) error {
	c.calls++
	return errors.New("cache down")
}

func TestNotifier_SendEventQueuesPerEligiblePair(t *testing.T) {
	ctx := context.Background()
	f := newNotifier(t, nil)
	importContacts(t, f.notifier, `[
		{"id":"A","school":"Lincoln","phone":"555-0001","email":"a@x.com","telephoneConsent":true},
		{"id":"B","school":"Lincoln","email":"b@x.com"},
		{"id":"C","school":"Roosevelt","email":"c@x.com"}
	]`)

	ev, err := f.notifier.CreateEvent(ctx, registry.CreateInput{
		TemplateID: "snow-day",
		Audience:   model.AudienceFilter{School: "Lincoln"},
	})
	require.NoError(t, err)

	queued, err := f.notifier.SendEvent(ctx, ev.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, queued)

	_, sum, err := f.notifier.Report(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, sum.Total)
	assert.Equal(t, 4, sum.ByStatus[model.Queued])
}

func TestNotifier_SendEventUnknown(t *testing.T) {
	f := newNotifier(t, nil)

	_, err := f.notifier.SendEvent(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, errs.ErrEventNotFound)
}

func TestNotifier_ApplyCallbackWritesStatusCache(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := newNotifier(t, cache.NewRedisCache(rdb, time.Hour))
	importContacts(t, f.notifier, `[{"id":"A","phone":"555-0001","telephoneConsent":true}]`)
	ev, err := f.notifier.CreateEvent(ctx, registry.CreateInput{TemplateID: "snow-day"})
	require.NoError(t, err)
	_, err = f.notifier.SendEvent(ctx, ev.ID, []model.Channel{model.Voice})
	require.NoError(t, err)

	recs, err := f.ledger.ListByRecipient(ctx, "A")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	id := recs[0].ProviderMessageID

	rec, err := f.notifier.ApplyCallback(ctx, "voice", id, model.StatusUpdate{
		Status:   model.Some(model.Answered),
		Answered: model.Some(true),
	})
	require.NoError(t, err)
	assert.Equal(t, model.Answered, rec.Status)

	raw, err := mr.Get("msg:" + id)
	require.NoError(t, err)
	assert.Contains(t, raw, `"status":"answered"`)
	assert.Contains(t, raw, `"answered":true`)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Callbacks.WithLabelValues("voice", "ok")))
}

func TestNotifier_ApplyCallbackUnknownID(t *testing.T) {
	sc := &failingCache{}
	f := newNotifier(t, sc)

	_, err := f.notifier.ApplyCallback(context.Background(), "email", "email-nope", model.StatusUpdate{Status: model.Some(model.Delivered)})
	assert.ErrorIs(t, err, errs.ErrLogNotFound)
	assert.Zero(t, sc.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Callbacks.WithLabelValues("email", "not_found")))
}

func TestNotifier_CacheFailureDoesNotFailCallback(t *testing.T) {
	ctx := context.Background()
	sc := &failingCache{}
	f := newNotifier(t, sc)
	importContacts(t, f.notifier, `[{"id":"B","email":"b@x.com"}]`)
	ev, err := f.notifier.CreateEvent(ctx, registry.CreateInput{TemplateID: "late-start"})
	require.NoError(t, err)
	_, err = f.notifier.SendEvent(ctx, ev.ID, nil)
	require.NoError(t, err)

	recs, err := f.ledger.ListByRecipient(ctx, "B")
	require.NoError(t, err)
	require.Len(t, recs, 1)

	_, err = f.notifier.ApplyCallback(ctx, "email", recs[0].ProviderMessageID, model.StatusUpdate{Status: model.Some(model.Delivered)})
	require.NoError(t, err)
	assert.Equal(t, 1, sc.calls)
}

func TestNotifier_TransmissionHooks(t *testing.T) {
	sc := &failingCache{}
	f := newNotifier(t, sc)
	rec := model.MessageRecord{ProviderMessageID: "sms-1", Channel: model.SMS, Status: model.Sent}

	f.notifier.OnSent(context.Background(), rec)
	rec.Status = model.Failed
	f.notifier.OnFailed(context.Background(), rec, "boom")

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Transmissions.WithLabelValues("sms", "sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Transmissions.WithLabelValues("sms", "failed")))
	assert.Equal(t, 2, sc.calls)
}
