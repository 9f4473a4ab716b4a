package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/01moynul/inventory-tracker/internal/database"
	"github.com/01moynul/inventory-tracker/internal/models"
)

const itemColumns = `id, name, sku, category, cost_price, selling_price, quantity, created_at, updated_at`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

// ItemRepository performs all reads and writes against the items table.
// It shares the process-wide database handle; it never opens connections.
type ItemRepository struct {
	db  *database.DB
	now func() time.Time
}

func NewItemRepository(db *database.DB) *ItemRepository {
	return &ItemRepository{db: db, now: time.Now}
}

// WithClock replaces the timestamp source. Used by tests.
func (r *ItemRepository) WithClock(now func() time.Time) *ItemRepository {
	r.now = now
	return r
}

func (r *ItemRepository) stamp() string {
	return r.now().UTC().Format(models.TimestampLayout)
}

// Add inserts one item and returns its generated id.
func (r *ItemRepository) Add(ctx context.Context, item models.NewItem) (int64, error) {
	item = normalizeNewItem(item)
	if err := validateNewItem(item); err != nil {
		return 0, err
	}

	var id int64
	err := r.db.WithRetry(ctx, func() error {
		var err error
		id, err = insertItem(ctx, r.db, item, r.stamp())
		return err
	})
	if err != nil {
		return 0, r.classify("add", err)
	}
	return id, nil
}

// AddBatch inserts every item inside one transaction. Either all rows are
// committed or none are; the returned *BatchError names the failing row.
func (r *ItemRepository) AddBatch(ctx context.Context, items []models.NewItem) ([]int64, error) {
	if len(items) == 0 {
		return []int64{}, nil
	}

	normalized := make([]models.NewItem, len(items))
	for i, item := range items {
		normalized[i] = normalizeNewItem(item)
		if err := validateNewItem(normalized[i]); err != nil {
			return nil, &BatchError{Row: i, Err: err}
		}
	}

	var ids []int64
	err := r.db.WithRetry(ctx, func() error {
		ids = make([]int64, 0, len(normalized))

		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback()

		ts := r.stamp()
		for i, item := range normalized {
			id, err := insertItem(ctx, tx, item, ts)
			if err != nil {
				return &BatchError{Row: i, Err: err}
			}
			ids = append(ids, id)
		}
		return tx.Commit()
	})
	if err != nil {
		var be *BatchError
		if errors.As(err, &be) {
			return nil, &BatchError{Row: be.Row, Err: r.classify("add batch", be.Err)}
		}
		return nil, r.classify("add batch", err)
	}
	return ids, nil
}

func insertItem(ctx context.Context, ex execer, item models.NewItem, ts string) (int64, error) {
	result, err := ex.ExecContext(ctx, `
		INSERT INTO items (name, sku, category, cost_price, selling_price, quantity, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		item.Name, item.SKU, nullString(item.Category),
		item.CostPrice, item.SellingPrice, item.Quantity, ts, ts,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// List returns every item matching the filter, ordered by id.
func (r *ItemRepository) List(ctx context.Context, filter models.ListFilter) ([]models.Item, error) {
	var (
		where []string
		args  []any
	)
	if filter.Keyword != "" {
		// INSTR is case-sensitive on both engines, unlike LIKE.
		where = append(where, "(INSTR(name, ?) > 0 OR INSTR(sku, ?) > 0)")
		args = append(args, filter.Keyword, filter.Keyword)
	}
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, filter.Category)
	}

	query := `SELECT ` + itemColumns + ` FROM items`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY id`

	return r.queryItems(ctx, "list", query, args...)
}

// GetByID returns the item with the given id, or nil when there is none.
func (r *ItemRepository) GetByID(ctx context.Context, id int64) (*models.Item, error) {
	return r.queryOne(ctx, "get by id", `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
}

// GetBySKU returns the first item with the given SKU, or nil when there is none.
func (r *ItemRepository) GetBySKU(ctx context.Context, sku string) (*models.Item, error) {
	return r.queryOne(ctx, "get by sku", `SELECT `+itemColumns+` FROM items WHERE sku = ? ORDER BY id LIMIT 1`, sku)
}

// Update replaces the mutable fields of the addressed item.
func (r *ItemRepository) Update(ctx context.Context, key models.ItemKey, upd models.ItemUpdate) error {
	upd.Name = strings.TrimSpace(upd.Name)
	upd.Category = strings.TrimSpace(upd.Category)
	if err := validateUpdate(upd); err != nil {
		return err
	}
	clause, arg, err := keyClause(key)
	if err != nil {
		return err
	}

	var affected int64
	err = r.db.WithRetry(ctx, func() error {
		result, err := r.db.ExecContext(ctx, `
			UPDATE items
			SET name = ?, category = ?, cost_price = ?, selling_price = ?, quantity = ?, updated_at = ?
			WHERE `+clause,
			upd.Name, nullString(upd.Category), upd.CostPrice, upd.SellingPrice, upd.Quantity,
			r.stamp(), arg,
		)
		if err != nil {
			return err
		}
		affected, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return r.classify("update", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementQuantity adds delta (which may be negative) to the stock of the
// item with the given SKU. An adjustment that would leave the quantity below
// zero or above models.MaxQuantity is rejected.
func (r *ItemRepository) IncrementQuantity(ctx context.Context, sku string, delta int) error {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return &ValidationError{Field: "sku", Message: "is required"}
	}
	// Bounding delta keeps quantity + delta inside int64 on every engine.
	if delta > models.MaxQuantity || delta < -models.MaxQuantity {
		return &ValidationError{
			Field:   "delta",
			Message: fmt.Sprintf("must be between %d and %d", -models.MaxQuantity, models.MaxQuantity),
		}
	}

	var affected int64
	err := r.db.WithRetry(ctx, func() error {
		result, err := r.db.ExecContext(ctx, `
			UPDATE items
			SET quantity = quantity + ?, updated_at = ?
			WHERE sku = ? AND quantity + ? BETWEEN 0 AND ?`,
			delta, r.stamp(), sku, delta, models.MaxQuantity,
		)
		if err != nil {
			return err
		}
		affected, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return r.classify("increment quantity", err)
	}
	if affected > 0 {
		return nil
	}

	existing, err := r.GetBySKU(ctx, sku)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrNotFound
	}
	if delta > 0 {
		return &ValidationError{
			Field:   "quantity",
			Message: fmt.Sprintf("adjusting %d by %d would exceed %d", existing.Quantity, delta, models.MaxQuantity),
		}
	}
	return &ValidationError{
		Field:   "quantity",
		Message: fmt.Sprintf("adjusting %d by %d would go below zero", existing.Quantity, delta),
	}
}

// Delete removes the addressed item.
func (r *ItemRepository) Delete(ctx context.Context, key models.ItemKey) error {
	clause, arg, err := keyClause(key)
	if err != nil {
		return err
	}

	var affected int64
	err = r.db.WithRetry(ctx, func() error {
		result, err := r.db.ExecContext(ctx, `DELETE FROM items WHERE `+clause, arg)
		if err != nil {
			return err
		}
		affected, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return r.classify("delete", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAll purges the table and resets the id counter so the next insert
// gets id 1.
func (r *ItemRepository) DeleteAll(ctx context.Context) error {
	err := r.db.WithRetry(ctx, func() error {
		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback()

		for _, stmt := range r.db.Dialect.ResetStatements() {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return r.classify("delete all", err)
	}
	return nil
}

// LowStock returns items whose quantity is strictly below threshold.
func (r *ItemRepository) LowStock(ctx context.Context, threshold int) ([]models.Item, error) {
	return r.queryItems(ctx, "low stock",
		`SELECT `+itemColumns+` FROM items WHERE quantity < ? ORDER BY quantity, id`, threshold)
}

// DistinctCategories returns the sorted set of non-null categories.
func (r *ItemRepository) DistinctCategories(ctx context.Context) ([]string, error) {
	categories := []string{}
	err := r.db.WithRetry(ctx, func() error {
		categories = categories[:0]
		rows, err := r.db.QueryContext(ctx,
			`SELECT DISTINCT category FROM items WHERE category IS NOT NULL ORDER BY category`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var c string
			if err := rows.Scan(&c); err != nil {
				return err
			}
			categories = append(categories, c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, r.classify("distinct categories", err)
	}
	return categories, nil
}

// Recent returns up to limit items, most recently updated first.
func (r *ItemRepository) Recent(ctx context.Context, limit int) ([]models.Item, error) {
	if limit <= 0 {
		return []models.Item{}, nil
	}
	return r.queryItems(ctx, "recent",
		`SELECT `+itemColumns+` FROM items ORDER BY updated_at DESC, id DESC LIMIT ?`, limit)
}

// Count returns the number of stored items.
func (r *ItemRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.WithRetry(ctx, func() error {
		return r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&n)
	})
	if err != nil {
		return 0, r.classify("count", err)
	}
	return n, nil
}

// Summary aggregates counts and stock valuation in one query. Valuations sum
// price * quantity; Recommended is left for the caller to fill in.
func (r *ItemRepository) Summary(ctx context.Context, lowStockThreshold int) (models.InventorySummary, error) {
	sum := models.InventorySummary{LowStockBelow: lowStockThreshold}
	err := r.db.WithRetry(ctx, func() error {
		return r.db.QueryRowContext(ctx, `
			SELECT COUNT(*),
			       COALESCE(SUM(quantity), 0),
			       COALESCE(SUM(cost_price * quantity), 0),
			       COALESCE(SUM(selling_price * quantity), 0),
			       COALESCE(SUM(CASE WHEN quantity < ? THEN 1 ELSE 0 END), 0),
			       COUNT(DISTINCT category)
			FROM items`, lowStockThreshold).Scan(
			&sum.TotalItems,
			&sum.TotalUnits,
			&sum.CostValuation,
			&sum.RetailValue,
			&sum.LowStockCount,
			&sum.CategoryCount,
		)
	})
	if err != nil {
		return models.InventorySummary{}, r.classify("summary", err)
	}
	return sum, nil
}

func (r *ItemRepository) queryItems(ctx context.Context, op, query string, args ...any) ([]models.Item, error) {
	items := []models.Item{}
	err := r.db.WithRetry(ctx, func() error {
		items = items[:0]
		rows, err := r.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			item, err := scanItem(rows)
			if err != nil {
				return err
			}
			items = append(items, item)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, r.classify(op, err)
	}
	return items, nil
}

func (r *ItemRepository) queryOne(ctx context.Context, op, query string, args ...any) (*models.Item, error) {
	var (
		item  models.Item
		found bool
	)
	err := r.db.WithRetry(ctx, func() error {
		var err error
		item, err = scanItem(r.db.QueryRowContext(ctx, query, args...))
		if errors.Is(err, sql.ErrNoRows) {
			found = false
			return nil
		}
		found = err == nil
		return err
	})
	if err != nil {
		return nil, r.classify(op, err)
	}
	if !found {
		return nil, nil
	}
	return &item, nil
}

func scanItem(s rowScanner) (models.Item, error) {
	var (
		item             models.Item
		created, updated string
	)
	if err := s.Scan(
		&item.ID, &item.Name, &item.SKU, &item.Category,
		&item.CostPrice, &item.SellingPrice, &item.Quantity,
		&created, &updated,
	); err != nil {
		return models.Item{}, err
	}

	var err error
	if item.CreatedAt, err = time.Parse(models.TimestampLayout, created); err != nil {
		return models.Item{}, fmt.Errorf("parse created_at: %w", err)
	}
	if item.UpdatedAt, err = time.Parse(models.TimestampLayout, updated); err != nil {
		return models.Item{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return item, nil
}

func (r *ItemRepository) classify(op string, err error) error {
	if r.db.Dialect.IsDuplicate(err) {
		return ErrDuplicateSKU
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

func keyClause(key models.ItemKey) (string, any, error) {
	if key.IsSKU() {
		return "sku = ?", key.SKU, nil
	}
	if key.ID > 0 {
		return "id = ?", key.ID, nil
	}
	return "", nil, &ValidationError{Field: "key", Message: "an id or sku is required"}
}

func normalizeNewItem(item models.NewItem) models.NewItem {
	item.Name = strings.TrimSpace(item.Name)
	item.SKU = strings.TrimSpace(item.SKU)
	item.Category = strings.TrimSpace(item.Category)
	return item
}

func validateNewItem(item models.NewItem) error {
	if item.Name == "" {
		return &ValidationError{Field: "name", Message: "is required"}
	}
	if item.SKU == "" {
		return &ValidationError{Field: "sku", Message: "is required"}
	}
	return validateNumbers(item.CostPrice, item.SellingPrice, item.Quantity)
}

func validateUpdate(upd models.ItemUpdate) error {
	if upd.Name == "" {
		return &ValidationError{Field: "name", Message: "is required"}
	}
	return validateNumbers(upd.CostPrice, upd.SellingPrice, upd.Quantity)
}

func validateNumbers(cost, selling float64, quantity int) error {
	switch {
	case math.IsNaN(cost) || math.IsInf(cost, 0):
		return &ValidationError{Field: "costPrice", Message: "must be a finite number"}
	case math.IsNaN(selling) || math.IsInf(selling, 0):
		return &ValidationError{Field: "sellingPrice", Message: "must be a finite number"}
	case cost < 0:
		return &ValidationError{Field: "costPrice", Message: "must not be negative"}
	case selling < 0:
		return &ValidationError{Field: "sellingPrice", Message: "must not be negative"}
	case quantity < 0:
		return &ValidationError{Field: "quantity", Message: "must not be negative"}
	case quantity > models.MaxQuantity:
		return &ValidationError{Field: "quantity", Message: fmt.Sprintf("must not exceed %d", models.MaxQuantity)}
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
