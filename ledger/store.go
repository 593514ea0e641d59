package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"shop-svc/checkout"
	"shop-svc/models"
)

// uniqueViolation is the Postgres error code for a unique constraint hit.
const uniqueViolation = "23505"

// Store is the persistent ledger: products, orders, pending purchases. One
// Store wraps the process-wide database handle and is shared by every
// request.
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewStore(db *sqlx.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Transact runs fn inside a single database transaction and rolls back on
// error or panic. Row locks taken via the ForUpdate queries are held until
// commit, which gives the finalizer its isolation guarantee.
func (s *Store) Transact(ctx context.Context, fn func(tx checkout.LedgerTx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(&ledgerTx{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// CreatePendingPurchase stages a card checkout before the customer is
// redirected to the gateway. The quoted total is recorded so settlement
// can compare it against the gateway's reported charge. No stock is
// touched here.
func (s *Store) CreatePendingPurchase(ctx context.Context, txRef string, orderData json.RawMessage, amount float64) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO pending_purchases (tx_ref, order_data, amount, status) VALUES ($1, $2, $3, $4)",
		txRef, orderData, amount, models.PurchaseStatusPending,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("tx_ref already exists: %s", txRef)
		}
		return fmt.Errorf("failed to create pending purchase: %w", err)
	}
	return nil
}

// PurchaseByRef fetches a pending purchase outside any transaction. Expired
// pending rows are treated as gone: an abandoned checkout is not claimable
// after the TTL even if the sweeper has not run yet.
func (s *Store) PurchaseByRef(ctx context.Context, txRef string) (*models.PendingPurchase, error) {
	var purchase models.PendingPurchase
	err := s.db.GetContext(ctx, &purchase,
		"SELECT * FROM pending_purchases WHERE tx_ref = $1", txRef)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending purchase: %w", err)
	}
	if purchase.Status == models.PurchaseStatusPending &&
		time.Since(purchase.CreatedAt) > models.PurchaseTTL {
		return nil, nil
	}
	return &purchase, nil
}

// DeleteExpiredPurchases removes abandoned checkouts past the TTL. Called
// periodically by the sweeper goroutine in main.
func (s *Store) DeleteExpiredPurchases(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM pending_purchases WHERE status = $1 AND created_at < $2",
		models.PurchaseStatusPending, time.Now().Add(-models.PurchaseTTL),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired purchases: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ledgerTx implements checkout.LedgerTx over one sqlx transaction.
type ledgerTx struct {
	tx *sqlx.Tx
}

func (t *ledgerTx) PurchaseForUpdate(ctx context.Context, txRef string) (*models.PendingPurchase, error) {
	var purchase models.PendingPurchase
	err := t.tx.GetContext(ctx, &purchase,
		"SELECT * FROM pending_purchases WHERE tx_ref = $1 FOR UPDATE", txRef)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock pending purchase: %w", err)
	}
	return &purchase, nil
}

func (t *ledgerTx) SettlePurchase(ctx context.Context, txRef, gatewayRef, orderID string) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE pending_purchases SET status = $1, gateway_ref = $2, order_id = $3 WHERE tx_ref = $4",
		models.PurchaseStatusSuccessful, gatewayRef, orderID, txRef,
	)
	if err != nil {
		return fmt.Errorf("failed to settle purchase: %w", err)
	}
	return nil
}

func (t *ledgerTx) UserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := t.tx.GetContext(ctx, &user, "SELECT * FROM users WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	return &user, nil
}

func (t *ledgerTx) ProductForUpdate(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := t.tx.GetContext(ctx, &product,
		"SELECT * FROM products WHERE id = $1 FOR UPDATE", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock product: %w", err)
	}
	return &product, nil
}

func (t *ledgerTx) DecrementStock(ctx context.Context, productID int64, quantity int) error {
	// The row is already locked and validated; the stock >= 0 check
	// constraint is a second line of defense.
	_, err := t.tx.ExecContext(ctx,
		"UPDATE products SET stock = stock - $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2",
		quantity, productID,
	)
	if err != nil {
		return fmt.Errorf("failed to decrement stock: %w", err)
	}
	return nil
}

func (t *ledgerTx) InsertOrder(ctx context.Context, order *models.Order) error {
	err := t.tx.QueryRowxContext(ctx,
		`INSERT INTO orders (order_id, user_id, status, sub_total, shipping_fee, total_amount,
			full_name, email, phone, address, state, country,
			payment_method, payment_transaction_id, paid)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at, updated_at`,
		order.OrderID, order.UserID, order.Status,
		order.SubTotal, order.ShippingFee, order.TotalAmount,
		order.ShippingAddress.FullName, order.ShippingAddress.Email, order.ShippingAddress.Phone,
		order.ShippingAddress.Address, order.ShippingAddress.State, order.ShippingAddress.Country,
		order.Payment.Method, nullableString(order.Payment.TransactionID), order.Payment.Paid,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return checkout.ErrDuplicateOrderID
		}
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		err := t.tx.QueryRowxContext(ctx,
			`INSERT INTO order_items (order_id, product_id, product_name, quantity, price_at_purchase, variation)
			VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
			item.OrderID, item.ProductID, item.ProductName,
			item.Quantity, item.PriceAtPurchase, item.Variation,
		).Scan(&item.ID)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
