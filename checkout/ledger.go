package checkout

import (
	"context"

	"shop-svc/models"
)

// Ledger is the transactional store the finalizer runs against. Transact
// must provide isolation equivalent to per-row locking for the duration of
// fn: two finalizations touching the same product or tx_ref must not both
// observe the pre-commit state.
type Ledger interface {
	Transact(ctx context.Context, fn func(tx LedgerTx) error) error
}

// LedgerTx is the unit-of-work surface used inside a finalization. Lookups
// return (nil, nil) when the record does not exist; ForUpdate variants hold
// a write lock on the row until commit or abort.
type LedgerTx interface {
	PurchaseForUpdate(ctx context.Context, txRef string) (*models.PendingPurchase, error)
	SettlePurchase(ctx context.Context, txRef, gatewayRef, orderID string) error
	UserByID(ctx context.Context, id int64) (*models.User, error)
	ProductForUpdate(ctx context.Context, id int64) (*models.Product, error)
	DecrementStock(ctx context.Context, productID int64, quantity int) error
	InsertOrder(ctx context.Context, order *models.Order) error
}
