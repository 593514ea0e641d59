package models

import "time"

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

type PaymentMethod string

const (
	PaymentMethodCard           PaymentMethod = "card"
	PaymentMethodBankTransfer   PaymentMethod = "bank_transfer"
	PaymentMethodCashOnDelivery PaymentMethod = "cash_on_delivery"
)

// ShippingAddress is snapshotted onto the order at finalization time.
// Later edits to the user profile never change a placed order.
type ShippingAddress struct {
	FullName string `db:"full_name" json:"full_name" binding:"required"`
	Email    string `db:"email" json:"email" binding:"required,email"`
	Phone    string `db:"phone" json:"phone" binding:"required"`
	Address  string `db:"address" json:"address" binding:"required"`
	State    string `db:"state" json:"state" binding:"required"`
	Country  string `db:"country" json:"country" binding:"required"`
}

type Payment struct {
	Method        PaymentMethod `db:"payment_method" json:"method"`
	TransactionID string        `db:"payment_transaction_id" json:"transaction_id,omitempty"`
	Paid          bool          `db:"paid" json:"paid"`
}

type OrderItem struct {
	ID              int64   `db:"id" json:"id"`
	OrderID         int64   `db:"order_id" json:"-"`
	ProductID       int64   `db:"product_id" json:"product_id"`
	ProductName     string  `db:"product_name" json:"product_name"`
	Quantity        int     `db:"quantity" json:"quantity"`
	PriceAtPurchase float64 `db:"price_at_purchase" json:"price_at_purchase"`
	Variation       *string `db:"variation" json:"variation,omitempty"`
}

type Order struct {
	ID              int64           `db:"id" json:"id"`
	OrderID         string          `db:"order_id" json:"order_id"`
	UserID          *int64          `db:"user_id" json:"user_id,omitempty"`
	Status          OrderStatus     `db:"status" json:"status"`
	SubTotal        float64         `db:"sub_total" json:"sub_total"`
	ShippingFee     float64         `db:"shipping_fee" json:"shipping_fee"`
	TotalAmount     float64         `db:"total_amount" json:"total_amount"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	Payment         Payment         `json:"payment"`
	Items           []OrderItem     `db:"-" json:"items"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

type UpdateOrderStatusRequest struct {
	Status OrderStatus `json:"status" binding:"required"`
}

// OrderFinalizedEvent is published to Kafka once a finalization commits.
// The notification consumer turns it into a confirmation email.
type OrderFinalizedEvent struct {
	OrderID     string  `json:"order_id"`
	FullName    string  `json:"full_name"`
	Email       string  `json:"email"`
	TotalAmount float64 `json:"total_amount"`
	Paid        bool    `json:"paid"`
	EventType   string  `json:"event_type"` // order_finalized
}
