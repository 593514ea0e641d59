package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"shop-svc/cache"
	"shop-svc/models"
)

const productColumns = `id, name, short_description, description, price, stock, unit,
	variations, status, category_id, created_at, updated_at`

type ProductHandler struct {
	db     *sqlx.DB
	cache  *cache.ProductCache
	logger *zap.Logger
}

func NewProductHandler(db *sqlx.DB, productCache *cache.ProductCache, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		db:     db,
		cache:  productCache,
		logger: logger,
	}
}

func (h *ProductHandler) GetProducts(c *gin.Context) {
	ctx, span := otel.Tracer("shop-svc").Start(c.Request.Context(), "GetProducts")
	defer span.End()

	products := []models.Product{}
	err := h.db.SelectContext(ctx, &products,
		"SELECT "+productColumns+" FROM products ORDER BY id")
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to fetch products", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	span.SetAttributes(attribute.Int("products.count", len(products)))
	c.JSON(http.StatusOK, products)
}

func (h *ProductHandler) GetProduct(c *gin.Context) {
	ctx, span := otel.Tracer("shop-svc").Start(c.Request.Context(), "GetProduct")
	defer span.End()

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}
	span.SetAttributes(attribute.Int64("product.id", id))

	if h.cache != nil {
		var product models.Product
		if h.cache.Get(ctx, id, &product) {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			c.JSON(http.StatusOK, product)
			return
		}
		span.SetAttributes(attribute.Bool("cache.hit", false))
	}

	var product models.Product
	err = h.db.GetContext(ctx, &product,
		"SELECT "+productColumns+" FROM products WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		span.RecordError(err)
		h.logger.Error("Failed to get product", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if h.cache != nil {
		h.cache.Set(ctx, id, product)
	}
	c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) CreateProduct(c *gin.Context) {
	ctx, span := otel.Tracer("shop-svc").Start(c.Request.Context(), "CreateProduct")
	defer span.End()

	var req models.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	unit := req.Unit
	if unit == "" {
		unit = "pcs"
	}

	var product models.Product
	err := h.db.QueryRowxContext(ctx,
		`INSERT INTO products (name, short_description, description, price, stock, unit, variations, category_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+productColumns,
		req.Name, req.ShortDescription, req.Description, req.Price, req.Stock,
		unit, pq.StringArray(req.Variations), req.CategoryID,
	).StructScan(&product)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to create product", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	span.SetAttributes(attribute.Int64("product.id", product.ID))
	h.logger.Info("Product created", zap.Int64("product_id", product.ID), zap.String("name", product.Name))
	c.JSON(http.StatusCreated, gin.H{
		"message":    "Product created successfully",
		"product_id": product.ID,
	})
}

func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	ctx, span := otel.Tracer("shop-svc").Start(c.Request.Context(), "UpdateProduct")
	defer span.End()

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	var req models.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var product models.Product
	err = h.db.QueryRowxContext(ctx,
		`UPDATE products SET
			name = COALESCE($1, name),
			short_description = COALESCE($2, short_description),
			description = COALESCE($3, description),
			price = COALESCE($4, price),
			stock = COALESCE($5, stock),
			unit = COALESCE($6, unit),
			status = COALESCE($7, status),
			category_id = COALESCE($8, category_id),
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $9
		RETURNING `+productColumns,
		req.Name, req.ShortDescription, req.Description, req.Price, req.Stock,
		req.Unit, req.Status, req.CategoryID, id,
	).StructScan(&product)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		span.RecordError(err)
		h.logger.Error("Failed to update product", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if h.cache != nil {
		h.cache.InvalidateProducts(ctx, []int64{id})
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Product updated successfully",
		"product": product,
	})
}

func (h *ProductHandler) DeleteProduct(c *gin.Context) {
	ctx, span := otel.Tracer("shop-svc").Start(c.Request.Context(), "DeleteProduct")
	defer span.End()

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	res, err := h.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to delete product", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}

	if h.cache != nil {
		h.cache.InvalidateProducts(ctx, []int64{id})
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product deleted successfully"})
}
