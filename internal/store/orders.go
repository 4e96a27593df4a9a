package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/marcelolino/servicos-conecte-sub000/internal/core"
	"github.com/marcelolino/servicos-conecte-sub000/internal/models"
)

const orderColumns = `id, client_id, provider_id, status, subtotal, discount_amount,
	service_amount, total_amount, coupon_code, payment_method,
	street, city, postal_code, scheduled_at, notes, created_at, updated_at`

const orderItemColumns = `id, order_id, provider_service_id, catalog_service_id,
	quantity, unit_price, total_price, charging_type, notes, created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	order := &models.Order{}
	err := row.Scan(
		&order.ID,
		&order.ClientID,
		&order.ProviderID,
		&order.Status,
		&order.Subtotal,
		&order.DiscountAmount,
		&order.ServiceAmount,
		&order.TotalAmount,
		&order.CouponCode,
		&order.PaymentMethod,
		&order.Street,
		&order.City,
		&order.PostalCode,
		&order.ScheduledAt,
		&order.Notes,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return order, nil
}

func scanOrderItem(row rowScanner) (*models.OrderItem, error) {
	item := &models.OrderItem{}
	var providerServiceID, catalogServiceID sql.NullInt64

	err := row.Scan(
		&item.ID,
		&item.OrderID,
		&providerServiceID,
		&catalogServiceID,
		&item.Quantity,
		&item.UnitPrice,
		&item.TotalPrice,
		&item.ChargingType,
		&item.Notes,
		&item.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.Ref, err = models.RefFromColumns(providerServiceID, catalogServiceID)
	if err != nil {
		return nil, fmt.Errorf("order item %d: %w", item.ID, err)
	}
	return item, nil
}

func loadOrderItems(ctx context.Context, q Querier, orderID int64) ([]models.OrderItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+orderItemColumns+`
		FROM order_items
		WHERE order_id = $1
		ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		item, err := scanOrderItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

func GetOrderWithItems(ctx context.Context, db *sql.DB, id int64) (*models.Order, error) {
	order, err := scanOrder(db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, core.NotFound("order")
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	order.Items, err = loadOrderItems(ctx, db, id)
	if err != nil {
		return nil, err
	}

	return order, nil
}

// ListClientOrders pages through a client's placed orders newest-first,
// excluding the live cart.
func ListClientOrders(ctx context.Context, db *sql.DB, clientID int64, cursor string, limit int) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE client_id = $1
		  AND status <> $2
		  AND (created_at, id) < ($3, $4)
		ORDER BY created_at DESC, id DESC
		LIMIT $5`,
		clientID, models.StatusCart, cursorData.CreatedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		last := orders[len(orders)-1]
		nextCursor = EncodeCursor(OrderCursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}

	return &CursorPage{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}
