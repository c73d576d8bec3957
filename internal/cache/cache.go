package cache

import (
	"context"

	"github.com/LeventeLantos/schoolwire/internal/model"
)

// StatusCache mirrors the latest delivery status of a message for fast lookups
// outside the ledger.
type StatusCache interface {
	StoreStatus(ctx context.Context, rec model.MessageRecord) error
}
