package storage

import (
	"context"
	"fmt"

	"listquote/internal"
)

// Cart is a persisted shopping cart. Adding a product already in the cart
// increases its quantity.
type Cart struct {
	db *DB
	id string
}

func (d *DB) Cart(cartID string) *Cart {
	return &Cart{db: d, id: cartID}
}

func (c *Cart) ID() string {
	return c.id
}

func (c *Cart) Add(ctx context.Context, items []internal.CartAddition) error {
	if len(items) == 0 {
		return nil
	}
	for _, item := range items {
		if item.Quantity <= 0 {
			return fmt.Errorf("cart %s: product %s has non-positive quantity %d", c.id, item.ProductID, item.Quantity)
		}
	}
	tx, err := c.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, item := range items {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO cart_items (cartId, productId, quantity) VALUES (?, ?, ?)
ON CONFLICT(cartId, productId) DO UPDATE SET
  quantity = cart_items.quantity + excluded.quantity,
  updatedAt = CURRENT_TIMESTAMP
`, c.id, item.ProductID, item.Quantity); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (c *Cart) Items(ctx context.Context) ([]internal.CartAddition, error) {
	rows, err := c.db.conn.QueryContext(ctx,
		`SELECT productId, quantity FROM cart_items WHERE cartId = ? ORDER BY addedAt, rowid`, c.id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.CartAddition
	for rows.Next() {
		var item internal.CartAddition
		if err := rows.Scan(&item.ProductID, &item.Quantity); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (c *Cart) Clear(ctx context.Context) error {
	_, err := c.db.conn.ExecContext(ctx, `DELETE FROM cart_items WHERE cartId = ?`, c.id)
	return err
}
