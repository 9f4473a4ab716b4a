package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/01moynul/inventory-tracker/internal/auth"
	"github.com/01moynul/inventory-tracker/internal/metrics"
	"github.com/01moynul/inventory-tracker/internal/pricing"
	"github.com/01moynul/inventory-tracker/internal/repository"
	"github.com/gin-gonic/gin"
)

// Handlers struct holds all dependencies for our handlers.
type Handlers struct {
	Items     *repository.ItemRepository
	Gate      *auth.Gate
	Tokens    *auth.TokenIssuer
	Sessions  auth.SessionStore
	Decorator pricing.Decorator // carries the low-stock and recommendation thresholds
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	Now       func() time.Time
}

func (h *Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// respondError maps a repository or auth error onto an HTTP status.
// Storage failures are logged with the operation and answered with a generic message.
func (h *Handlers) respondError(c *gin.Context, op string, err error) {
	if err == nil {
		// a row that vanished between write and reload
		err = repository.ErrNotFound
	}

	var ve *repository.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error(), "field": ve.Field})
	case errors.Is(err, repository.ErrDuplicateSKU):
		c.JSON(http.StatusConflict, gin.H{"error": "An item with this SKU already exists"})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Item not found"})
	case errors.Is(err, auth.ErrAuthDenied):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
	case errors.Is(err, context.DeadlineExceeded):
		h.Logger.Warn("request timed out", slog.String("op", op))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database busy, please retry"})
	default:
		h.Logger.Error("request failed", slog.String("op", op), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
	}
}

// intQuery reads an optional integer query parameter.
func intQuery(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

// Health reports store reachability and the number of items.
// GET /v1/health
func (h *Handlers) Health(c *gin.Context) {
	count, err := h.Items.Count(c.Request.Context())
	if err != nil {
		h.Logger.Error("health check failed", slog.String("error", err.Error()))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "items": count})
}
