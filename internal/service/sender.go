package service

import (
	"context"
	"fmt"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/LeventeLantos/schoolwire/internal/client"
	"github.com/LeventeLantos/schoolwire/internal/dispatch"
	"github.com/LeventeLantos/schoolwire/internal/model"
	"github.com/LeventeLantos/schoolwire/internal/repo"
)

// ChannelSender hands a message to a provider and returns the id the provider
// acknowledged.
type ChannelSender interface {
	Send(ctx context.Context, d client.Delivery) (string, error)
}

type ContactGetter interface {
	Get(ctx context.Context, id string) (model.Contact, error)
}

// Sender transmits queued ledger records through the configured channel senders.
type Sender struct {
	ledger     repo.Ledger
	contacts   ContactGetter
	senders    map[model.Channel]ChannelSender
	channels   []model.Channel
	contentMax int
	batchSize  int
	limiter    *rate.Limiter
	log        zerolog.Logger

	onSent   func(ctx context.Context, rec model.MessageRecord)
	onFailed func(ctx context.Context, rec model.MessageRecord, reason string)
}

// markTimeout bounds the ledger write that follows a provider acceptance when
// the batch context is already gone.
const markTimeout = 5 * time.Second

type SenderConfig struct {
	ContentMax int
	BatchSize  int
	RatePerSec int
}

func NewSender(
	ledger repo.Ledger,
	contacts ContactGetter,
	senders map[model.Channel]ChannelSender,
	cfg SenderConfig,
	log zerolog.Logger,
) *Sender {
	channels := make([]model.Channel, 0, len(senders))
	for ch := range senders {
		channels = append(channels, ch)
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i] < channels[j] })

	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 10
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 50
	}

	return &Sender{
		ledger:     ledger,
		contacts:   contacts,
		senders:    senders,
		channels:   channels,
		contentMax: cfg.ContentMax,
		batchSize:  batch,
		limiter:    rate.NewLimiter(rate.Limit(rps), rps),
		log:        log.With().Str("component", "sender").Logger(),
	}
}

func (s *Sender) WithHooks(
	onSent func(ctx context.Context, rec model.MessageRecord),
	onFailed func(ctx context.Context, rec model.MessageRecord, reason string),
) *Sender {
	s.onSent = onSent
	s.onFailed = onFailed
	return s
}

// Channels lists the channels that have a sender configured.
func (s *Sender) Channels() []model.Channel {
	return append([]model.Channel(nil), s.channels...)
}

// ProcessBatch submits up to one batch of queued records. Records move to
// "sent" once the provider accepts them and to "failed" otherwise.
func (s *Sender) ProcessBatch(ctx context.Context) (sent int, failed int) {
	if len(s.channels) == 0 {
		return 0, 0
	}

	recs, err := s.ledger.ListQueued(ctx, s.channels, s.batchSize)
	if err != nil {
		s.log.Error().Err(err).Msg("list queued records")
		return 0, 0
	}

	for _, rec := range recs {
		err := s.transmit(ctx, rec)
		if err == nil {
			sent++
			s.recordAccepted(ctx, rec)
		} else if ctx.Err() == nil {
			failed++
			s.fail(ctx, rec, err.Error())
		}
		if ctx.Err() != nil {
			return sent, failed
		}
	}

	if len(recs) > 0 {
		s.log.Info().Int("sent", sent).Int("failed", failed).Msg("batch processed")
	}
	return sent, failed
}

func (s *Sender) transmit(ctx context.Context, rec model.MessageRecord) error {
	contact, err := s.contacts.Get(ctx, rec.RecipientID)
	if err != nil {
		return err
	}
	if !dispatch.Eligible(contact, rec.Channel) {
		return fmt.Errorf("recipient %s no longer eligible for %s", rec.RecipientID, rec.Channel)
	}
	if rec.Channel == model.SMS && s.contentMax > 0 && utf8.RuneCountInString(rec.Content.Text) > s.contentMax {
		return fmt.Errorf("content exceeds %d chars", s.contentMax)
	}

	to := contact.Phone
	if rec.Channel == model.Email {
		to = contact.Email
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	ackID, err := s.senders[rec.Channel].Send(ctx, client.Delivery{
		ProviderMessageID: rec.ProviderMessageID,
		Channel:           rec.Channel,
		To:                to,
		Content:           rec.Content,
	})
	if err != nil {
		return err
	}
	if ackID != rec.ProviderMessageID {
		s.log.Warn().
			Str("provider_message_id", rec.ProviderMessageID).
			Str("ack_id", ackID).
			Msg("provider acknowledged a different message id")
	}
	return nil
}

func (s *Sender) fail(ctx context.Context, rec model.MessageRecord, reason string) {
	s.log.Warn().
		Str("provider_message_id", rec.ProviderMessageID).
		Str("channel", string(rec.Channel)).
		Str("reason", reason).
		Msg("transmission failed")

	s.mark(ctx, rec, model.Failed, func(updated model.MessageRecord) {
		if s.onFailed != nil {
			s.onFailed(ctx, updated, reason)
		}
	})
}

// recordAccepted marks rec sent once the provider has taken it. The write
// outlives cancellation of ctx so an accepted message is never left queued.
func (s *Sender) recordAccepted(ctx context.Context, rec model.MessageRecord) {
	mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), markTimeout)
	defer cancel()

	s.mark(mctx, rec, model.Sent, func(updated model.MessageRecord) {
		if s.onSent != nil {
			s.onSent(mctx, updated)
		}
	})
}

// mark moves a queued record to status. A record a provider callback already
// moved on is left alone and then is skipped.
func (s *Sender) mark(ctx context.Context, rec model.MessageRecord, status model.Status, then func(model.MessageRecord)) {
	updated, applied, err := s.ledger.MarkTransmitted(ctx, rec.ProviderMessageID, status)
	if err != nil {
		s.log.Error().Err(err).Str("provider_message_id", rec.ProviderMessageID).Msg("update status")
		return
	}
	if !applied {
		s.log.Debug().
			Str("provider_message_id", rec.ProviderMessageID).
			Str("status", string(updated.Status)).
			Msg("provider already reported a status")
		return
	}
	then(updated)
}
