package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/01moynul/inventory-tracker/internal/models"
	"github.com/01moynul/inventory-tracker/internal/pricing"
	"github.com/gin-gonic/gin"
)

//
// --- Inventory Item Handlers (Team Login Required) ---
//

// CreateItemInput defines the JSON for creating an inventory item.
// Pointers let binding tell "missing" apart from a legitimate zero.
type CreateItemInput struct {
	Name         string   `json:"name" binding:"required"`
	SKU          string   `json:"sku" binding:"required"`
	Category     string   `json:"category"`
	CostPrice    *float64 `json:"costPrice" binding:"required,gte=0"`
	SellingPrice *float64 `json:"sellingPrice" binding:"required,gte=0"`
	Quantity     *int     `json:"quantity" binding:"omitempty,gte=0"`
}

// UpdateItemInput is a full replace of the editable fields.
type UpdateItemInput struct {
	Name         string   `json:"name" binding:"required"`
	Category     string   `json:"category"`
	CostPrice    *float64 `json:"costPrice" binding:"required,gte=0"`
	SellingPrice *float64 `json:"sellingPrice" binding:"required,gte=0"`
	Quantity     *int     `json:"quantity" binding:"required,gte=0"`
}

// AdjustQuantityInput carries a signed stock delta.
type AdjustQuantityInput struct {
	Delta *int `json:"delta" binding:"required"`
}

func parseItemID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid item ID"})
		return 0, false
	}
	return id, true
}

// CreateItem is the handler for POST /v1/items
func (h *Handlers) CreateItem(c *gin.Context) {
	// 1. --- Bind & Validate JSON ---
	var input CreateItemInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// 2. --- Create Model ---
	item := models.NewItem{
		Name:         input.Name,
		SKU:          input.SKU,
		Category:     input.Category,
		CostPrice:    *input.CostPrice,
		SellingPrice: *input.SellingPrice,
	}
	if input.Quantity != nil {
		item.Quantity = *input.Quantity
	}

	// 3. --- Save to Database ---
	ctx := c.Request.Context()
	id, err := h.Items.Add(ctx, item)
	if err != nil {
		h.respondError(c, "create item", err)
		return
	}

	created, err := h.Items.GetByID(ctx, id)
	if err != nil || created == nil {
		h.respondError(c, "reload item", err)
		return
	}

	// 4. --- Send Response ---
	c.JSON(http.StatusCreated, gin.H{
		"message": "Inventory item created successfully",
		"item":    h.Decorator.View(*created),
	})
}

// ListItems is the handler for GET /v1/items?q=&category=
func (h *Handlers) ListItems(c *gin.Context) {
	filter := models.ListFilter{
		Keyword:  c.Query("q"),
		Category: c.Query("category"),
	}

	items, err := h.Items.List(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, "list items", err)
		return
	}

	views := h.Decorator.Decorate(items)
	c.JSON(http.StatusOK, gin.H{
		"items": views,
		"count": len(views),
	})
}

// GetItem is the handler for GET /v1/items/:id
func (h *Handlers) GetItem(c *gin.Context) {
	id, ok := parseItemID(c)
	if !ok {
		return
	}

	item, err := h.Items.GetByID(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "get item", err)
		return
	}
	if item == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Item not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": h.Decorator.View(*item)})
}

// GetItemBySKU is the handler for GET /v1/items/sku/:sku
func (h *Handlers) GetItemBySKU(c *gin.Context) {
	item, err := h.Items.GetBySKU(c.Request.Context(), c.Param("sku"))
	if err != nil {
		h.respondError(c, "get item by sku", err)
		return
	}
	if item == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Item not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": h.Decorator.View(*item)})
}

// UpdateItem is the handler for PUT /v1/items/:id
func (h *Handlers) UpdateItem(c *gin.Context) {
	// 1. --- Get ID ---
	id, ok := parseItemID(c)
	if !ok {
		return
	}

	// 2. --- Bind & Validate JSON ---
	var input UpdateItemInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// 3. --- Execute Update ---
	// A missing row is a 404, never a silent success.
	ctx := c.Request.Context()
	err := h.Items.Update(ctx, models.ByID(id), models.ItemUpdate{
		Name:         input.Name,
		Category:     input.Category,
		CostPrice:    *input.CostPrice,
		SellingPrice: *input.SellingPrice,
		Quantity:     *input.Quantity,
	})
	if err != nil {
		h.respondError(c, "update item", err)
		return
	}

	updated, err := h.Items.GetByID(ctx, id)
	if err != nil || updated == nil {
		h.respondError(c, "reload item", err)
		return
	}

	// 4. --- Send Response ---
	c.JSON(http.StatusOK, gin.H{
		"message": "Inventory item updated successfully",
		"item":    h.Decorator.View(*updated),
	})
}

// DeleteItem is the handler for DELETE /v1/items/:id
func (h *Handlers) DeleteItem(c *gin.Context) {
	id, ok := parseItemID(c)
	if !ok {
		return
	}

	if err := h.Items.Delete(c.Request.Context(), models.ByID(id)); err != nil {
		h.respondError(c, "delete item", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Inventory item deleted successfully"})
}

// DeleteAllItems is the handler for DELETE /v1/items?confirm=true
func (h *Handlers) DeleteAllItems(c *gin.Context) {
	if c.Query("confirm") != "true" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Deleting every item requires confirm=true"})
		return
	}

	if err := h.Items.DeleteAll(c.Request.Context()); err != nil {
		h.respondError(c, "delete all items", err)
		return
	}
	h.Logger.Warn("all items deleted", "user", currentUser(c))
	c.JSON(http.StatusOK, gin.H{"message": "All inventory items deleted"})
}

// AdjustQuantity is the handler for POST /v1/items/sku/:sku/adjust
func (h *Handlers) AdjustQuantity(c *gin.Context) {
	sku := c.Param("sku")

	var input AdjustQuantityInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if err := h.Items.IncrementQuantity(ctx, sku, *input.Delta); err != nil {
		h.respondError(c, "adjust quantity", err)
		return
	}

	item, err := h.Items.GetBySKU(ctx, sku)
	if err != nil || item == nil {
		h.respondError(c, "reload item", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": h.Decorator.View(*item)})
}

// LowStockItems is the handler for GET /v1/items/low-stock?threshold=
func (h *Handlers) LowStockItems(c *gin.Context) {
	threshold, err := intQuery(c, "threshold", h.Decorator.LowStockThreshold)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "threshold must be an integer"})
		return
	}

	items, err := h.Items.LowStock(c.Request.Context(), threshold)
	if err != nil {
		h.respondError(c, "low stock", err)
		return
	}

	d := h.Decorator
	d.LowStockThreshold = threshold
	c.JSON(http.StatusOK, gin.H{
		"threshold": threshold,
		"items":     d.Decorate(items),
	})
}

// RecentItems is the handler for GET /v1/items/recent?limit=
func (h *Handlers) RecentItems(c *gin.Context) {
	limit, err := intQuery(c, "limit", 5)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
		return
	}

	items, err := h.Items.Recent(c.Request.Context(), limit)
	if err != nil {
		h.respondError(c, "recent items", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": h.Decorator.Decorate(items)})
}

// RecommendedItems is the handler for GET /v1/items/recommended?threshold=
// It lists every item whose margin meets the recommendation threshold.
func (h *Handlers) RecommendedItems(c *gin.Context) {
	d := h.Decorator
	if raw := strings.TrimSpace(c.Query("threshold")); raw != "" {
		threshold, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "threshold must be a number"})
			return
		}
		d.RecommendThreshold = threshold
	}

	items, err := h.Items.List(c.Request.Context(), models.ListFilter{})
	if err != nil {
		h.respondError(c, "recommended items", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"threshold": d.RecommendThreshold,
		"items":     pricing.FilterRecommended(d.Decorate(items)),
	})
}

// GetCategories is the handler for GET /v1/categories
func (h *Handlers) GetCategories(c *gin.Context) {
	categories, err := h.Items.DistinctCategories(c.Request.Context())
	if err != nil {
		h.respondError(c, "categories", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}
