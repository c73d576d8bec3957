package repo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/LeventeLantos/schoolwire/internal/errs"
	"github.com/LeventeLantos/schoolwire/internal/model"
)

// ledgerEntry guards one record. Status and answered are always written
// together under mu.
type ledgerEntry struct {
	mu  sync.Mutex
	rec model.MessageRecord
}

func (e *ledgerEntry) snapshot() model.MessageRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rec
}

type MemoryLedger struct {
	now func() time.Time

	mu          sync.RWMutex
	entries     []*ledgerEntry
	byProvider  map[string]*ledgerEntry
	byEvent     map[string][]*ledgerEntry
	byRecipient map[string][]*ledgerEntry
}

var _ Ledger = (*MemoryLedger)(nil)

func NewMemoryLedger(now func() time.Time) *MemoryLedger {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &MemoryLedger{
		now:         now,
		byProvider:  map[string]*ledgerEntry{},
		byEvent:     map[string][]*ledgerEntry{},
		byRecipient: map[string][]*ledgerEntry{},
	}
}

func (l *MemoryLedger) Append(ctx context.Context, rec model.MessageRecord) error {
	e := &ledgerEntry{rec: rec}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, e)
	l.byProvider[rec.ProviderMessageID] = e
	l.byEvent[rec.EventID] = append(l.byEvent[rec.EventID], e)
	l.byRecipient[rec.RecipientID] = append(l.byRecipient[rec.RecipientID], e)
	return nil
}

func (l *MemoryLedger) lookup(providerMessageID string) (*ledgerEntry, error) {
	l.mu.RLock()
	e, ok := l.byProvider[providerMessageID]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("provider message %q: %w", providerMessageID, errs.ErrLogNotFound)
	}
	return e, nil
}

func (l *MemoryLedger) FindByProviderID(ctx context.Context, providerMessageID string) (model.MessageRecord, error) {
	e, err := l.lookup(providerMessageID)
	if err != nil {
		return model.MessageRecord{}, err
	}
	return e.snapshot(), nil
}

func (l *MemoryLedger) UpdateStatus(ctx context.Context, providerMessageID string, upd model.StatusUpdate) (model.MessageRecord, error) {
	e, err := l.lookup(providerMessageID)
	if err != nil {
		return model.MessageRecord{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	upd.Apply(&e.rec, l.now())
	return e.rec, nil
}

func (l *MemoryLedger) MarkTransmitted(ctx context.Context, providerMessageID string, status model.Status) (model.MessageRecord, bool, error) {
	e, err := l.lookup(providerMessageID)
	if err != nil {
		return model.MessageRecord{}, false, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rec.Status != model.Queued {
		return e.rec, false, nil
	}
	e.rec.Status = status
	e.rec.UpdatedAt = l.now()
	return e.rec, true, nil
}

func (l *MemoryLedger) ListByEvent(ctx context.Context, eventID string) ([]model.MessageRecord, error) {
	l.mu.RLock()
	entries := l.byEvent[eventID]
	l.mu.RUnlock()
	return snapshots(entries), nil
}

func (l *MemoryLedger) ListByRecipient(ctx context.Context, recipientID string) ([]model.MessageRecord, error) {
	l.mu.RLock()
	entries := l.byRecipient[recipientID]
	l.mu.RUnlock()
	return snapshots(entries), nil
}

func (l *MemoryLedger) Summarize(ctx context.Context, eventID string) (model.Summary, error) {
	recs, err := l.ListByEvent(ctx, eventID)
	if err != nil {
		return model.Summary{}, err
	}
	return model.Summarize(recs), nil
}

func (l *MemoryLedger) ListQueued(ctx context.Context, channels []model.Channel, limit int) ([]model.MessageRecord, error) {
	if limit <= 0 || len(channels) == 0 {
		return nil, nil
	}
	want := make(map[model.Channel]struct{}, len(channels))
	for _, c := range channels {
		want[c] = struct{}{}
	}

	l.mu.RLock()
	entries := l.entries
	l.mu.RUnlock()

	var out []model.MessageRecord
	for _, e := range entries {
		rec := e.snapshot()
		if rec.Status != model.Queued {
			continue
		}
		if _, ok := want[rec.Channel]; !ok {
			continue
		}
		out = append(out, rec)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// snapshots copies records out of entries. The slice header was read under the
// ledger lock; appends never mutate the prefix it covers.
func snapshots(entries []*ledgerEntry) []model.MessageRecord {
	out := make([]model.MessageRecord, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.snapshot())
	}
	return out
}
