package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"campus-events/internal/models"
)

// DecrementStock removes qty units of an item in one conditional update and
// reports false when fewer than qty units remain. Stock never goes negative.
func (s *Store) DecrementStock(ctx context.Context, itemID string, qty int) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE merchandise_items SET stock_quantity = stock_quantity - ?
		WHERE id = ? AND stock_quantity >= ?`), qty, itemID, qty)
	if err != nil {
		return false, fmt.Errorf("failed to decrement stock: %w", err)
	}
	return affected(res)
}

// RestoreStock returns qty units taken by DecrementStock
func (s *Store) RestoreStock(ctx context.Context, itemID string, qty int) error {
	_, err := s.db.ExecContext(ctx,
		s.q("UPDATE merchandise_items SET stock_quantity = stock_quantity + ? WHERE id = ?"), qty, itemID)
	if err != nil {
		return fmt.Errorf("failed to restore stock: %w", err)
	}
	return nil
}

// StockLevel returns the remaining units of an item
func (s *Store) StockLevel(ctx context.Context, itemID string) (int, error) {
	var qty int
	err := s.db.GetContext(ctx, &qty, s.q("SELECT stock_quantity FROM merchandise_items WHERE id = ?"), itemID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, models.Fail(models.ErrNotFound, "merchandise item %s not found", itemID)
	}
	return qty, err
}
