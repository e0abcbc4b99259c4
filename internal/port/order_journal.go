package port

import (
	"context"
	"errors"

	"github.com/rl1809/procurematch/internal/core/domain"
)

var ErrDuplicateAcceptance = errors.New("acceptance already journaled")

type OrderJournal interface {
	// RecordAcceptance persists the orders of one accepted plan in a single transaction,
	// returns ErrDuplicateAcceptance when the item was journaled before
	RecordAcceptance(ctx context.Context, event domain.OrderEvent) error

	// RecordStatus stores the latest status of an order already journaled
	RecordStatus(ctx context.Context, order domain.Order) error
}
