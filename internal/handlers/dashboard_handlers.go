package handlers

import (
	"net/http"

	"github.com/01moynul/inventory-tracker/internal/models"
	"github.com/01moynul/inventory-tracker/internal/pricing"
	"github.com/gin-gonic/gin"
)

//
// --- Inventory Dashboard Stats ---
//

// GetDashboardStats returns KPI data for the inventory dashboard
// GET /v1/dashboard-stats
func (h *Handlers) GetDashboardStats(c *gin.Context) {
	ctx := c.Request.Context()

	// 1. Counts and valuation (Sum of Price * Quantity)
	stats, err := h.Items.Summary(ctx, h.Decorator.LowStockThreshold)
	if err != nil {
		h.respondError(c, "dashboard summary", err)
		return
	}
	stats.CostValuation = pricing.RoundMoney(stats.CostValuation)
	stats.RetailValue = pricing.RoundMoney(stats.RetailValue)

	// 2. Recommended count
	// Margins are derived, never stored, so this one is computed from the rows.
	items, err := h.Items.List(ctx, models.ListFilter{})
	if err != nil {
		h.respondError(c, "dashboard recommended", err)
		return
	}
	stats.Recommended = len(pricing.FilterRecommended(h.Decorator.Decorate(items)))

	c.JSON(http.StatusOK, stats)
}
