package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/marcelolino/servicos-conecte-sub000/internal/core"
	"github.com/marcelolino/servicos-conecte-sub000/internal/database"
	"github.com/marcelolino/servicos-conecte-sub000/internal/models"
)

var cartTxOptions = database.TxOptions{
	IsolationLevel: sql.LevelSerializable,
	MaxRetries:     3,
}

type AddItemInput struct {
	Ref      models.ServiceRef
	Quantity int
	Notes    string
}

type UpdateItemInput struct {
	Quantity  *int
	UnitPrice *decimal.Decimal
	Notes     *string
}

// withCartTx runs fn under the cart tx options. When two callers race to
// create the same client's cart, the loser hits the one-cart-per-client
// unique index; one extra pass then finds the winner's row.
func withCartTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	err := database.WithRetry(ctx, db, cartTxOptions, fn)
	if database.IsUniqueViolation(err, "uq_orders_client_cart") {
		err = database.WithRetry(ctx, db, cartTxOptions, fn)
	}
	return err
}

// GetOrCreateCart returns the client's single open cart, creating an empty
// one when absent. A partial unique index on (client_id) WHERE status='cart'
// keeps concurrent callers from creating two.
func GetOrCreateCart(ctx context.Context, db *sql.DB, clientID int64) (*models.Order, error) {
	var cart *models.Order

	err := withCartTx(ctx, db, func(tx *sql.Tx) error {
		var err error
		cart, err = getOrCreateCartTx(ctx, tx, clientID)
		if err != nil {
			return err
		}
		cart.Items, err = loadOrderItems(ctx, tx, cart.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return cart, nil
}

// GetCart returns the client's open cart with items, or NotFound.
func GetCart(ctx context.Context, db *sql.DB, clientID int64) (*models.Order, error) {
	cart, err := scanOrder(db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE client_id = $1 AND status = $2`, clientID, models.StatusCart))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, core.NotFound("cart")
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}

	cart.Items, err = loadOrderItems(ctx, db, cart.ID)
	if err != nil {
		return nil, err
	}

	return cart, nil
}

// AddCartItem puts a service into the client's cart. Adding a reference the
// cart already holds bumps that line's quantity instead of inserting a
// duplicate row. Unit price and charging type come from the listing, never
// from the caller. Totals are recomputed before the transaction commits.
func AddCartItem(ctx context.Context, db *sql.DB, clientID int64, input AddItemInput) (*models.Order, error) {
	if input.Ref.IsZero() {
		return nil, core.Invalid("item must reference a provider service or a catalog service")
	}
	if input.Quantity < 1 {
		return nil, core.Invalid("quantity must be at least 1, got %d", input.Quantity)
	}

	var cart *models.Order

	err := withCartTx(ctx, db, func(tx *sql.Tx) error {
		c, err := getOrCreateCartTx(ctx, tx, clientID)
		if err != nil {
			return err
		}

		unitPrice, chargingType, err := resolveListing(ctx, tx, input.Ref)
		if err != nil {
			return err
		}

		providerServiceID, catalogServiceID := input.Ref.Columns()

		var existingID int64
		var existingQty int
		err = tx.QueryRowContext(ctx, `
			SELECT id, quantity
			FROM order_items
			WHERE order_id = $1
			  AND provider_service_id IS NOT DISTINCT FROM $2
			  AND catalog_service_id IS NOT DISTINCT FROM $3`,
			c.ID, providerServiceID, catalogServiceID).Scan(&existingID, &existingQty)
		switch {
		case err == sql.ErrNoRows:
			_, err = tx.ExecContext(ctx, `
				INSERT INTO order_items (order_id, provider_service_id, catalog_service_id,
					quantity, unit_price, total_price, charging_type, notes, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())`,
				c.ID, providerServiceID, catalogServiceID,
				input.Quantity, unitPrice, LineTotal(input.Quantity, unitPrice),
				chargingType, input.Notes)
			if err != nil {
				return fmt.Errorf("insert cart item: %w", err)
			}
		case err != nil:
			return fmt.Errorf("find existing cart item: %w", err)
		default:
			// Re-adding a reference re-anchors the whole line to the current
			// listing price, even if the line's price was edited meanwhile.
			newQty := existingQty + input.Quantity
			_, err = tx.ExecContext(ctx, `
				UPDATE order_items
				SET quantity = $1, unit_price = $2, total_price = $3
				WHERE id = $4`,
				newQty, unitPrice, LineTotal(newQty, unitPrice), existingID)
			if err != nil {
				return fmt.Errorf("merge cart item: %w", err)
			}
		}

		cart, err = recomputeCartTotalsTx(ctx, tx, c.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return cart, nil
}

// UpdateCartItem changes quantity and/or unit price on a line and recomputes
// its total and the cart totals. A non-positive quantity is not rejected
// here; callers route removal through RemoveCartItem.
func UpdateCartItem(ctx context.Context, db *sql.DB, clientID, itemID int64, input UpdateItemInput) (*models.Order, error) {
	if input.UnitPrice != nil && !input.UnitPrice.IsPositive() {
		return nil, core.Invalid("unit price must be positive, got %s", *input.UnitPrice)
	}

	var cart *models.Order

	err := database.WithRetry(ctx, db, cartTxOptions, func(tx *sql.Tx) error {
		c, err := getCartForUpdateTx(ctx, tx, clientID)
		if err != nil {
			return err
		}

		item, err := getCartItemTx(ctx, tx, c.ID, itemID)
		if err != nil {
			return err
		}

		quantity := item.Quantity
		unitPrice := item.UnitPrice
		notes := item.Notes
		if input.Quantity != nil {
			quantity = *input.Quantity
		}
		if input.UnitPrice != nil {
			unitPrice = *input.UnitPrice
		}
		if input.Notes != nil {
			notes = *input.Notes
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE order_items
			SET quantity = $1, unit_price = $2, total_price = $3, notes = $4
			WHERE id = $5`,
			quantity, unitPrice, LineTotal(quantity, unitPrice), notes, itemID)
		if err != nil {
			return fmt.Errorf("update cart item: %w", err)
		}

		cart, err = recomputeCartTotalsTx(ctx, tx, c.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return cart, nil
}

func RemoveCartItem(ctx context.Context, db *sql.DB, clientID, itemID int64) (*models.Order, error) {
	var cart *models.Order

	err := database.WithRetry(ctx, db, cartTxOptions, func(tx *sql.Tx) error {
		c, err := getCartForUpdateTx(ctx, tx, clientID)
		if err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx,
			`DELETE FROM order_items WHERE id = $1 AND order_id = $2`, itemID, c.ID)
		if err != nil {
			return fmt.Errorf("remove cart item: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if affected == 0 {
			return core.NotFound("cart item")
		}

		cart, err = recomputeCartTotalsTx(ctx, tx, c.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return cart, nil
}

// ClearCart deletes the cart's items and the cart row itself. Clearing an
// absent cart is a no-op.
func ClearCart(ctx context.Context, db *sql.DB, clientID int64) error {
	return database.WithRetry(ctx, db, cartTxOptions, func(tx *sql.Tx) error {
		c, err := getCartForUpdateTx(ctx, tx, clientID)
		if err != nil {
			if core.IsNotFound(err) {
				return nil
			}
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, c.ID); err != nil {
			return fmt.Errorf("clear cart items: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, c.ID); err != nil {
			return fmt.Errorf("delete cart: %w", err)
		}
		return nil
	})
}

func getOrCreateCartTx(ctx context.Context, tx *sql.Tx, clientID int64) (*models.Order, error) {
	cart, err := getCartForUpdateTx(ctx, tx, clientID)
	if err == nil {
		return cart, nil
	}
	if !core.IsNotFound(err) {
		return nil, err
	}

	cart, err = scanOrder(tx.QueryRowContext(ctx, `
		INSERT INTO orders (client_id, status, subtotal, discount_amount, service_amount, total_amount, created_at, updated_at)
		VALUES ($1, $2, 0, 0, 0, 0, NOW(), NOW())
		RETURNING `+orderColumns,
		clientID, models.StatusCart))
	if err != nil {
		return nil, fmt.Errorf("create cart: %w", err)
	}
	return cart, nil
}

func getCartForUpdateTx(ctx context.Context, tx *sql.Tx, clientID int64) (*models.Order, error) {
	cart, err := scanOrder(tx.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE client_id = $1 AND status = $2
		FOR UPDATE`, clientID, models.StatusCart))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, core.NotFound("cart")
		}
		return nil, fmt.Errorf("lock cart: %w", err)
	}
	return cart, nil
}

func getCartItemTx(ctx context.Context, tx *sql.Tx, orderID, itemID int64) (*models.OrderItem, error) {
	item, err := scanOrderItem(tx.QueryRowContext(ctx, `
		SELECT `+orderItemColumns+`
		FROM order_items
		WHERE id = $1 AND order_id = $2`, itemID, orderID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, core.NotFound("cart item")
		}
		return nil, fmt.Errorf("get cart item: %w", err)
	}
	return item, nil
}

// resolveListing maps a service ref to the unit price and charging type the
// line will carry. Prices come from the listing row, not the request.
func resolveListing(ctx context.Context, tx *sql.Tx, ref models.ServiceRef) (decimal.Decimal, string, error) {
	switch ref.Kind {
	case models.RefProviderService:
		service, err := GetProviderService(ctx, tx, ref.ID)
		if err != nil {
			return decimal.Decimal{}, "", err
		}
		if !service.Active {
			return decimal.Decimal{}, "", core.Invalid("provider service %d is not available", ref.ID)
		}
		return service.Price, service.ChargingType, nil
	case models.RefCatalogService:
		service, err := GetCatalogService(ctx, tx, ref.ID)
		if err != nil {
			return decimal.Decimal{}, "", err
		}
		if !service.Active {
			return decimal.Decimal{}, "", core.Invalid("catalog service %d is not available", ref.ID)
		}
		return service.BasePrice, service.ChargingType, nil
	default:
		return decimal.Decimal{}, "", core.Invalid("unknown service ref kind %q", ref.Kind)
	}
}

// recomputeCartTotalsTx re-derives the cart's money from its items and
// persists it, returning the refreshed cart. It runs inside every mutating
// cart transaction so concurrent mutations cannot leave stale totals.
func recomputeCartTotalsTx(ctx context.Context, tx *sql.Tx, orderID int64) (*models.Order, error) {
	items, err := loadOrderItems(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	var discount decimal.Decimal
	err = tx.QueryRowContext(ctx,
		`SELECT discount_amount FROM orders WHERE id = $1`, orderID).Scan(&discount)
	if err != nil {
		return nil, fmt.Errorf("read cart discount: %w", err)
	}

	totals := CalculateTotals(items, discount)

	cart, err := scanOrder(tx.QueryRowContext(ctx, `
		UPDATE orders
		SET subtotal = $1, service_amount = $2, total_amount = $3, updated_at = NOW()
		WHERE id = $4
		RETURNING `+orderColumns,
		totals.Subtotal, totals.ServiceAmount, totals.TotalAmount, orderID))
	if err != nil {
		return nil, fmt.Errorf("update cart totals: %w", err)
	}

	cart.Items = items
	return cart, nil
}
