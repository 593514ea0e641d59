package checkout

import (
	"shop-svc/models"
)

// LineInput is one requested order line as submitted at checkout.
type LineInput struct {
	ProductID int64   `json:"product_id" binding:"required"`
	Quantity  int     `json:"quantity" binding:"required,gte=1"`
	Variation *string `json:"variation,omitempty"`
}

// OrderData is the full purchase intent. For card flows it is serialized
// into the pending purchase at initiation and replayed at finalization.
type OrderData struct {
	UserID          *int64                  `json:"user_id,omitempty"`
	Items           []LineInput             `json:"items"`
	ShippingAddress *models.ShippingAddress `json:"shipping_address,omitempty"`
	ShippingFee     float64                 `json:"shipping_fee"`
}

// PaymentData describes how the purchase was (or will be) paid.
type PaymentData struct {
	Method        models.PaymentMethod `json:"method"`
	TransactionID string               `json:"transaction_id,omitempty"`
	Paid          bool                 `json:"paid"`
}

// Validate runs the structural checks shared by every entry point. Address
// presence is checked later, after profile resolution.
func (d *OrderData) Validate() error {
	if len(d.Items) == 0 {
		return &ValidationError{Reason: "no products provided"}
	}
	for _, line := range d.Items {
		if line.Quantity < 1 {
			return &ValidationError{Reason: "invalid quantity"}
		}
	}
	if d.ShippingFee < 0 {
		return &ValidationError{Reason: "shipping fee cannot be negative"}
	}
	if d.ShippingAddress != nil {
		if err := validateAddress(d.ShippingAddress); err != nil {
			return err
		}
	}
	return nil
}

func validateAddress(a *models.ShippingAddress) error {
	if a.FullName == "" || a.Email == "" || a.Phone == "" ||
		a.Address == "" || a.State == "" || a.Country == "" {
		return &ValidationError{Reason: "incomplete shipping address"}
	}
	return nil
}
