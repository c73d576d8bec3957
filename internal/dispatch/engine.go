package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/LeventeLantos/schoolwire/internal/content"
	"github.com/LeventeLantos/schoolwire/internal/model"
)

type Appender interface {
	Append(ctx context.Context, rec model.MessageRecord) error
}

type Request struct {
	EventID    string
	Recipients []model.Contact
	Channels   []model.Channel
	Template   model.Template
	Overrides  model.Overrides
}

// Engine turns an event's recipients and channels into queued message records.
type Engine struct {
	ledger  Appender
	workers int
	now     func() time.Time
	newID   func() string

	onQueued  func(ch model.Channel)
	onSkipped func(ch model.Channel)
}

func NewEngine(ledger Appender, workers int) *Engine {
	if workers <= 0 {
		workers = 1
	}
	return &Engine{
		ledger:  ledger,
		workers: workers,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
}

func (e *Engine) WithHooks(onQueued, onSkipped func(ch model.Channel)) *Engine {
	e.onQueued = onQueued
	e.onSkipped = onSkipped
	return e
}

func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// ProviderMessageID builds the correlation key handed to channel senders.
func ProviderMessageID(ch model.Channel, token string) string {
	return fmt.Sprintf("%s-%s", ch, token)
}

// Dispatch appends one queued record per eligible (recipient, channel) pair and
// returns how many it created. Ineligible pairs are skipped without error.
// Recipients are processed in parallel; a failed append stops the remaining
// work and the records already appended stay in the ledger.
func (e *Engine) Dispatch(ctx context.Context, req Request) (int, error) {
	if req.EventID == "" {
		return 0, errors.New("event id must not be empty")
	}
	channels := uniqueChannels(req.Channels)
	at := e.now()

	var created atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for _, recipient := range req.Recipients {
		g.Go(func() error {
			for _, ch := range channels {
				if !Eligible(recipient, ch) {
					if e.onSkipped != nil {
						e.onSkipped(ch)
					}
					continue
				}
				if err := gctx.Err(); err != nil {
					return err
				}

				rec := model.MessageRecord{
					ID:                e.newID(),
					EventID:           req.EventID,
					RecipientID:       recipient.ID,
					Channel:           ch,
					ProviderMessageID: ProviderMessageID(ch, e.newID()),
					Status:            model.Queued,
					CreatedAt:         at,
					UpdatedAt:         at,
					Content:           content.Resolve(req.Template, req.Overrides, ch),
				}
				if err := e.ledger.Append(gctx, rec); err != nil {
					return fmt.Errorf("append %s record for %s: %w", ch, recipient.ID, err)
				}
				created.Add(1)
				if e.onQueued != nil {
					e.onQueued(ch)
				}
			}
			return nil
		})
	}

	err := g.Wait()
	return int(created.Load()), err
}

func uniqueChannels(in []model.Channel) []model.Channel {
	seen := make(map[model.Channel]struct{}, len(in))
	out := make([]model.Channel, 0, len(in))
	for _, ch := range in {
		if _, ok := seen[ch]; ok {
			continue
		}
		seen[ch] = struct{}{}
		out = append(out, ch)
	}
	return out
}
