package models

import (
	"time"

	"github.com/lib/pq"
)

type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"
	ProductStatusInactive ProductStatus = "inactive"
	ProductStatusArchived ProductStatus = "archived"
)

type Product struct {
	ID               int64          `db:"id" json:"id"`
	Name             string         `db:"name" json:"name"`
	ShortDescription string         `db:"short_description" json:"short_description,omitempty"`
	Description      string         `db:"description" json:"description,omitempty"`
	Price            float64        `db:"price" json:"price"`
	Stock            int            `db:"stock" json:"stock"`
	Unit             string         `db:"unit" json:"unit"`
	Variations       pq.StringArray `db:"variations" json:"variations"`
	Status           ProductStatus  `db:"status" json:"status"`
	CategoryID       *int64         `db:"category_id" json:"category_id,omitempty"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}

type CreateProductRequest struct {
	Name             string   `json:"name" binding:"required"`
	ShortDescription string   `json:"short_description"`
	Description      string   `json:"description"`
	Price            float64  `json:"price" binding:"required,gte=0"`
	Stock            int      `json:"stock" binding:"gte=0"`
	Unit             string   `json:"unit"`
	Variations       []string `json:"variations"`
	CategoryID       *int64   `json:"category_id"`
}

type UpdateProductRequest struct {
	Name             *string        `json:"name"`
	ShortDescription *string        `json:"short_description"`
	Description      *string        `json:"description"`
	Price            *float64       `json:"price"`
	Stock            *int           `json:"stock"`
	Unit             *string        `json:"unit"`
	Status           *ProductStatus `json:"status"`
	CategoryID       *int64         `json:"category_id"`
}
