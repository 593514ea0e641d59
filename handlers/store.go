package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"shop-svc/models"
)

const storeSettingsColumns = `id, name, description, banner, logo,
	facebook, twitter, instagram, linkedin, whatsapp,
	shipping_standard, shipping_express,
	address, city, state, country, zip_code, phone, email, business_id, updated_at`

// StoreHandler serves the storefront profile. The settings live in a single
// row; there is no create vs update distinction for callers.
type StoreHandler struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewStoreHandler(db *sqlx.DB, logger *zap.Logger) *StoreHandler {
	return &StoreHandler{db: db, logger: logger}
}

func (h *StoreHandler) GetStoreSettings(c *gin.Context) {
	ctx, span := otel.Tracer("shop-svc").Start(c.Request.Context(), "GetStoreSettings")
	defer span.End()

	var settings models.StoreSettings
	err := h.db.GetContext(ctx, &settings,
		"SELECT "+storeSettingsColumns+" FROM store_settings WHERE id = 1")
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Store is not configured"})
		return
	}
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to fetch store settings", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, settings)
}

// UpdateStoreSettings upserts the singleton row. The full profile is
// replaced on every write; partial edits are the client's concern.
func (h *StoreHandler) UpdateStoreSettings(c *gin.Context) {
	ctx, span := otel.Tracer("shop-svc").Start(c.Request.Context(), "UpdateStoreSettings")
	defer span.End()

	var req models.UpdateStoreSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var settings models.StoreSettings
	err := h.db.QueryRowxContext(ctx,
		`INSERT INTO store_settings (id, name, description, banner, logo,
			facebook, twitter, instagram, linkedin, whatsapp,
			shipping_standard, shipping_express,
			address, city, state, country, zip_code, phone, email, business_id, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			banner = EXCLUDED.banner,
			logo = EXCLUDED.logo,
			facebook = EXCLUDED.facebook,
			twitter = EXCLUDED.twitter,
			instagram = EXCLUDED.instagram,
			linkedin = EXCLUDED.linkedin,
			whatsapp = EXCLUDED.whatsapp,
			shipping_standard = EXCLUDED.shipping_standard,
			shipping_express = EXCLUDED.shipping_express,
			address = EXCLUDED.address,
			city = EXCLUDED.city,
			state = EXCLUDED.state,
			country = EXCLUDED.country,
			zip_code = EXCLUDED.zip_code,
			phone = EXCLUDED.phone,
			email = EXCLUDED.email,
			business_id = EXCLUDED.business_id,
			updated_at = CURRENT_TIMESTAMP
		RETURNING `+storeSettingsColumns,
		req.Name, req.Description, req.Banner, req.Logo,
		req.Facebook, req.Twitter, req.Instagram, req.Linkedin, req.Whatsapp,
		req.ShippingStandard, req.ShippingExpress,
		req.Address, req.City, req.State, req.Country, req.ZipCode, req.Phone, req.Email, req.BusinessID,
	).StructScan(&settings)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to update store settings", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	h.logger.Info("Store settings updated", zap.String("name", settings.Name))
	c.JSON(http.StatusOK, settings)
}
