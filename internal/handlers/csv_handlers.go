package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/01moynul/inventory-tracker/internal/csvexchange"
	"github.com/01moynul/inventory-tracker/internal/models"
	"github.com/01moynul/inventory-tracker/internal/repository"
	"github.com/gin-gonic/gin"
)

// RejectedRow is one CSV line that was not imported.
type RejectedRow struct {
	Row    int    `json:"row"`
	Column string `json:"column,omitempty"`
	Error  string `json:"error"`
}

// ExportItems is the handler for GET /v1/items/export?q=&category=&metrics=
// It streams the filtered items as a CSV download.
func (h *Handlers) ExportItems(c *gin.Context) {
	// 1. Parse options
	includeMetrics := false
	if raw := c.Query("metrics"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "metrics must be true or false"})
			return
		}
		includeMetrics = v
	}
	filter := models.ListFilter{Keyword: c.Query("q"), Category: c.Query("category")}

	// 2. Load and decorate
	items, err := h.Items.List(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, "export items", err)
		return
	}

	// 3. Encode
	data, err := csvexchange.ExportBytes(h.Decorator.Decorate(items), csvexchange.ExportOptions{IncludeMetrics: includeMetrics})
	if err != nil {
		h.Logger.Error("csv export failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build CSV"})
		return
	}

	// 4. Send as attachment
	filename := csvexchange.ExportFilename(h.now(), filter.Category)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
}

// ImportItems handles POST /v1/items/import
// The uploaded "file" is parsed; bad rows are reported and the good rows are
// inserted in one transaction, so either all of them land or none do.
func (h *Handlers) ImportItems(c *gin.Context) {
	// 1. Get the file from the request
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}

	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read uploaded file"})
		return
	}
	defer f.Close()

	// 2. Parse
	result, err := csvexchange.Import(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rejected := make([]RejectedRow, 0, len(result.Errors))
	for _, re := range result.Errors {
		rejected = append(rejected, RejectedRow{Row: re.Row, Column: re.Column, Error: re.Err.Error()})
	}

	// 3. Insert the valid rows as one batch
	ids := []int64{}
	if len(result.Items) > 0 {
		ids, err = h.Items.AddBatch(c.Request.Context(), result.Items)
		if err != nil {
			h.Metrics.ImportRows(0, len(result.Items)+len(result.Errors))
			h.respondBatchError(c, result, err)
			return
		}
	}

	h.Metrics.ImportRows(len(ids), len(rejected))
	h.Logger.Info("csv import finished",
		slog.String("file", file.Filename),
		slog.Int("imported", len(ids)),
		slog.Int("rejected", len(rejected)))

	// 4. Report
	c.JSON(http.StatusOK, gin.H{
		"imported": len(ids),
		"ids":      ids,
		"rejected": rejected,
	})
}

// respondBatchError reports which file line aborted the transaction.
func (h *Handlers) respondBatchError(c *gin.Context, result *csvexchange.ImportResult, err error) {
	var be *repository.BatchError
	if !errors.As(err, &be) || be.Row < 0 || be.Row >= len(result.Lines) {
		h.respondError(c, "import items", err)
		return
	}

	line := result.Lines[be.Row]
	status := http.StatusInternalServerError
	message := "Database error"
	switch {
	case errors.Is(err, repository.ErrDuplicateSKU):
		status = http.StatusConflict
		message = fmt.Sprintf("SKU %q already exists", result.Items[be.Row].SKU)
	case repository.IsValidation(err):
		status = http.StatusBadRequest
		message = be.Err.Error()
	default:
		h.Logger.Error("csv import failed", slog.Int("row", line), slog.String("error", err.Error()))
	}

	c.JSON(status, gin.H{
		"error":    message,
		"row":      line,
		"imported": 0,
	})
}
