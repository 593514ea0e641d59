package checkout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"shop-svc/models"
)

// maxOrderIDAttempts bounds transaction retries on an order-id collision.
const maxOrderIDAttempts = 3

// Notifier receives the post-commit confirmation event. Failures are logged
// by the finalizer and never surfaced to the caller.
type Notifier interface {
	PublishOrderFinalized(ctx context.Context, event models.OrderFinalizedEvent) error
}

// Invalidator drops cached product entries whose stock changed.
type Invalidator interface {
	InvalidateProducts(ctx context.Context, productIDs []int64)
}

// Result is the outcome of a finalization. AlreadyProcessed marks the
// idempotent no-op case: the tx_ref was settled earlier and OrderID carries
// the order created by that earlier call.
type Result struct {
	Order            *models.Order
	OrderID          string
	AlreadyProcessed bool
}

// Finalizer converts a validated purchase intent into a persisted order
// while reserving stock. It is the single consumer both the redirect
// completion path and the webhook converge on; correctness under their race
// rests on the row-locked idempotency check inside the transaction.
type Finalizer struct {
	ledger Ledger
	notify Notifier
	cache  Invalidator
	logger *zap.Logger
}

func NewFinalizer(ledger Ledger, notify Notifier, cache Invalidator, logger *zap.Logger) *Finalizer {
	return &Finalizer{
		ledger: ledger,
		notify: notify,
		cache:  cache,
		logger: logger,
	}
}

// Finalize atomically checks and decrements stock, prices the order at
// current product prices, persists it with status pending, and settles the
// pending purchase when txRef is supplied. Either every effect commits or
// none do. txRef is empty for direct (non-card) checkouts.
func (f *Finalizer) Finalize(ctx context.Context, data OrderData, payment PaymentData, txRef string) (*Result, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < maxOrderIDAttempts; attempt++ {
		orderID := GenerateOrderID()

		var res *Result
		err := f.ledger.Transact(ctx, func(tx LedgerTx) error {
			// Idempotency guard: only one of the racing completion/webhook
			// calls can observe the purchase as pending. The row lock holds
			// the loser until the winner commits.
			if txRef != "" {
				purchase, err := tx.PurchaseForUpdate(ctx, txRef)
				if err != nil {
					return err
				}
				if purchase == nil {
					return &NotFoundError{Resource: "pending purchase", Ref: txRef}
				}
				if purchase.Status == models.PurchaseStatusSuccessful {
					settled := ""
					if purchase.OrderID != nil {
						settled = *purchase.OrderID
					}
					res = &Result{AlreadyProcessed: true, OrderID: settled}
					return nil
				}
			}

			address, err := f.resolveAddress(ctx, tx, data)
			if err != nil {
				return err
			}

			items, subTotal, err := f.reserveStock(ctx, tx, data.Items)
			if err != nil {
				return err
			}

			order := &models.Order{
				OrderID:         orderID,
				UserID:          data.UserID,
				Status:          models.OrderStatusPending,
				SubTotal:        subTotal,
				ShippingFee:     data.ShippingFee,
				TotalAmount:     subTotal + data.ShippingFee,
				ShippingAddress: *address,
				Payment: models.Payment{
					Method:        payment.Method,
					TransactionID: payment.TransactionID,
					Paid:          payment.Paid,
				},
				Items: items,
			}
			if err := tx.InsertOrder(ctx, order); err != nil {
				return err
			}

			if txRef != "" {
				if err := tx.SettlePurchase(ctx, txRef, payment.TransactionID, orderID); err != nil {
					return err
				}
			}

			res = &Result{Order: order, OrderID: orderID}
			return nil
		})

		if errors.Is(err, ErrDuplicateOrderID) {
			lastErr = err
			f.logger.Warn("Order id collision, retrying with a fresh id",
				zap.String("order_id", orderID), zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return nil, err
		}

		if res.Order != nil {
			f.afterCommit(res.Order)
		}
		return res, nil
	}

	return nil, fmt.Errorf("failed to allocate a unique order id after %d attempts: %w",
		maxOrderIDAttempts, lastErr)
}

// resolveAddress prefers an explicit address and falls back to a complete
// saved user profile, exactly once, at finalization time.
func (f *Finalizer) resolveAddress(ctx context.Context, tx LedgerTx, data OrderData) (*models.ShippingAddress, error) {
	if data.ShippingAddress != nil {
		return data.ShippingAddress, nil
	}
	if data.UserID != nil {
		user, err := tx.UserByID(ctx, *data.UserID)
		if err != nil {
			return nil, err
		}
		if user != nil && user.HasCompleteProfile() {
			return &models.ShippingAddress{
				FullName: user.Name,
				Email:    user.Email,
				Phone:    user.Phone,
				Address:  user.Address,
				State:    user.State,
				Country:  user.Country,
			}, nil
		}
	}
	return nil, &ValidationError{Reason: "shipping address is required"}
}

// reserveStock locks every referenced product, validates availability for
// all lines, and only then decrements. Locks are taken in ascending product
// id order so two multi-line orders cannot deadlock.
func (f *Finalizer) reserveStock(ctx context.Context, tx LedgerTx, lines []LineInput) ([]models.OrderItem, float64, error) {
	required := make(map[int64]int, len(lines))
	for _, line := range lines {
		required[line.ProductID] += line.Quantity
	}

	ids := make([]int64, 0, len(required))
	for id := range required {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	products := make(map[int64]*models.Product, len(ids))
	for _, id := range ids {
		product, err := tx.ProductForUpdate(ctx, id)
		if err != nil {
			return nil, 0, err
		}
		if product == nil {
			return nil, 0, &NotFoundError{Resource: "product", Ref: strconv.FormatInt(id, 10)}
		}
		if product.Stock < required[id] {
			return nil, 0, &InsufficientStockError{
				ProductID:   product.ID,
				ProductName: product.Name,
				Requested:   required[id],
				Available:   product.Stock,
			}
		}
		products[id] = product
	}

	for _, id := range ids {
		if err := tx.DecrementStock(ctx, id, required[id]); err != nil {
			return nil, 0, err
		}
	}

	items := make([]models.OrderItem, 0, len(lines))
	var subTotal float64
	for _, line := range lines {
		product := products[line.ProductID]
		items = append(items, models.OrderItem{
			ProductID:       product.ID,
			ProductName:     product.Name,
			Quantity:        line.Quantity,
			PriceAtPurchase: product.Price,
			Variation:       line.Variation,
		})
		subTotal += float64(line.Quantity) * product.Price
	}
	return items, subTotal, nil
}

// afterCommit runs the fire-and-forget effects: the confirmation event and
// product cache invalidation. Nothing here can fail the finalization.
func (f *Finalizer) afterCommit(order *models.Order) {
	ids := make([]int64, 0, len(order.Items))
	for _, item := range order.Items {
		ids = append(ids, item.ProductID)
	}

	event := models.OrderFinalizedEvent{
		OrderID:     order.OrderID,
		FullName:    order.ShippingAddress.FullName,
		Email:       order.ShippingAddress.Email,
		TotalAmount: order.TotalAmount,
		Paid:        order.Payment.Paid,
		EventType:   "order_finalized",
	}

	go func() {
		ctx := context.Background()
		if f.cache != nil {
			f.cache.InvalidateProducts(ctx, ids)
		}
		if f.notify != nil {
			if err := f.notify.PublishOrderFinalized(ctx, event); err != nil {
				f.logger.Error("Failed to publish order_finalized event",
					zap.String("order_id", order.OrderID), zap.Error(err))
			}
		}
	}()
}
