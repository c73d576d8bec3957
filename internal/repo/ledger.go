package repo

import (
	"context"

	"github.com/LeventeLantos/schoolwire/internal/model"
)

// Ledger stores message records keyed by provider message id.
//
// UpdateStatus returns errs.ErrLogNotFound when no record carries the id.
// MarkTransmitted writes status only while the record is still queued and
// reports whether it did, so a provider callback that arrived first is kept.
// List results are unordered snapshots.
type Ledger interface {
	Append(ctx context.Context, rec model.MessageRecord) error
	FindByProviderID(ctx context.Context, providerMessageID string) (model.MessageRecord, error)
	UpdateStatus(ctx context.Context, providerMessageID string, upd model.StatusUpdate) (model.MessageRecord, error)
	MarkTransmitted(ctx context.Context, providerMessageID string, status model.Status) (model.MessageRecord, bool, error)
	ListByEvent(ctx context.Context, eventID string) ([]model.MessageRecord, error)
	ListByRecipient(ctx context.Context, recipientID string) ([]model.MessageRecord, error)
	Summarize(ctx context.Context, eventID string) (model.Summary, error)
	ListQueued(ctx context.Context, channels []model.Channel, limit int) ([]model.MessageRecord, error)
}
