package models

import "time"

// StoreSettings is the storefront profile. There is exactly one row; writes
// upsert it and reads return 404 until an admin has configured the store.
type StoreSettings struct {
	ID               int64     `db:"id" json:"-"`
	Name             string    `db:"name" json:"name"`
	Description      string    `db:"description" json:"description"`
	Banner           string    `db:"banner" json:"banner"`
	Logo             string    `db:"logo" json:"logo"`
	Facebook         string    `db:"facebook" json:"facebook,omitempty"`
	Twitter          string    `db:"twitter" json:"twitter,omitempty"`
	Instagram        string    `db:"instagram" json:"instagram,omitempty"`
	Linkedin         string    `db:"linkedin" json:"linkedin,omitempty"`
	Whatsapp         string    `db:"whatsapp" json:"whatsapp,omitempty"`
	ShippingStandard float64   `db:"shipping_standard" json:"shipping_standard"`
	ShippingExpress  float64   `db:"shipping_express" json:"shipping_express"`
	Address          string    `db:"address" json:"address"`
	City             string    `db:"city" json:"city"`
	State            string    `db:"state" json:"state"`
	Country          string    `db:"country" json:"country"`
	ZipCode          string    `db:"zip_code" json:"zip_code"`
	Phone            string    `db:"phone" json:"phone"`
	Email            string    `db:"email" json:"email"`
	BusinessID       string    `db:"business_id" json:"business_id,omitempty"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

type UpdateStoreSettingsRequest struct {
	Name             string  `json:"name" binding:"required"`
	Description      string  `json:"description"`
	Banner           string  `json:"banner"`
	Logo             string  `json:"logo"`
	Facebook         string  `json:"facebook"`
	Twitter          string  `json:"twitter"`
	Instagram        string  `json:"instagram"`
	Linkedin         string  `json:"linkedin"`
	Whatsapp         string  `json:"whatsapp"`
	ShippingStandard float64 `json:"shipping_standard" binding:"gte=0"`
	ShippingExpress  float64 `json:"shipping_express" binding:"gte=0"`
	Address          string  `json:"address"`
	City             string  `json:"city"`
	State            string  `json:"state"`
	Country          string  `json:"country"`
	ZipCode          string  `json:"zip_code"`
	Phone            string  `json:"phone"`
	Email            string  `json:"email" binding:"required,email"`
	BusinessID       string  `json:"business_id"`
}
