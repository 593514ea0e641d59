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
	"go.uber.org/zap"

	"shop-svc/models"
)

type CategoryHandler struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewCategoryHandler(db *sqlx.DB, logger *zap.Logger) *CategoryHandler {
	return &CategoryHandler{db: db, logger: logger}
}

func (h *CategoryHandler) GetCategories(c *gin.Context) {
	ctx, span := otel.Tracer("shop-svc").Start(c.Request.Context(), "GetCategories")
	defer span.End()

	categories := []models.Category{}
	err := h.db.SelectContext(ctx, &categories,
		"SELECT id, name, description, created_at FROM categories ORDER BY name")
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to fetch categories", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, categories)
}

func (h *CategoryHandler) CreateCategory(c *gin.Context) {
	ctx, span := otel.Tracer("shop-svc").Start(c.Request.Context(), "CreateCategory")
	defer span.End()

	var req models.CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var category models.Category
	err := h.db.QueryRowxContext(ctx,
		`INSERT INTO categories (name, description) VALUES ($1, $2)
		RETURNING id, name, description, created_at`,
		req.Name, req.Description,
	).StructScan(&category)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			c.JSON(http.StatusConflict, gin.H{"error": "Category already exists"})
			return
		}
		span.RecordError(err)
		h.logger.Error("Failed to create category", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusCreated, category)
}

// GetCategoryProducts lists the products filed under one category.
func (h *CategoryHandler) GetCategoryProducts(c *gin.Context) {
	ctx, span := otel.Tracer("shop-svc").Start(c.Request.Context(), "GetCategoryProducts")
	defer span.End()

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category ID"})
		return
	}

	var exists bool
	err = h.db.GetContext(ctx, &exists, "SELECT EXISTS (SELECT 1 FROM categories WHERE id = $1)", id)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to check category", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "Category not found"})
		return
	}

	products := []models.Product{}
	err = h.db.SelectContext(ctx, &products,
		"SELECT "+productColumns+" FROM products WHERE category_id = $1 ORDER BY id", id)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to fetch category products", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, products)
}

func (h *CategoryHandler) DeleteCategory(c *gin.Context) {
	ctx, span := otel.Tracer("shop-svc").Start(c.Request.Context(), "DeleteCategory")
	defer span.End()

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category ID"})
		return
	}

	res, err := h.db.ExecContext(ctx, "DELETE FROM categories WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Category not found"})
			return
		}
		span.RecordError(err)
		h.logger.Error("Failed to delete category", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Category not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Category deleted successfully"})
}
