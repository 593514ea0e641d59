package models

import (
	"encoding/json"
	"time"
)

type PurchaseStatus string

const (
	PurchaseStatusPending    PurchaseStatus = "pending"
	PurchaseStatusSuccessful PurchaseStatus = "successful"
	PurchaseStatusFailed     PurchaseStatus = "failed"
)

// PendingPurchase stages a card checkout between payment initiation and
// finalization. The order payload and the quoted total are captured
// verbatim at initiation time; the gateway's reported charge is checked
// against Amount before the purchase may settle. Unresolved rows expire
// after PurchaseTTL.
type PendingPurchase struct {
	ID         int64           `db:"id" json:"id"`
	TxRef      string          `db:"tx_ref" json:"tx_ref"`
	OrderData  json.RawMessage `db:"order_data" json:"order_data"`
	Amount     float64         `db:"amount" json:"amount"`
	Status     PurchaseStatus  `db:"status" json:"status"`
	GatewayRef *string         `db:"gateway_ref" json:"gateway_ref,omitempty"`
	OrderID    *string         `db:"order_id" json:"order_id,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// PurchaseTTL bounds how long an abandoned card checkout stays claimable.
const PurchaseTTL = time.Hour
