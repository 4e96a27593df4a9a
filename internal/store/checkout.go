package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/marcelolino/servicos-conecte-sub000/internal/core"
	"github.com/marcelolino/servicos-conecte-sub000/internal/database"
	"github.com/marcelolino/servicos-conecte-sub000/internal/models"
)

type CheckoutData struct {
	PaymentMethod  string
	CouponCode     string
	DiscountAmount decimal.Decimal
	Street         string
	City           string
	PostalCode     string
	ScheduledAt    *time.Time
	Notes          string
}

type OrderData struct {
	ClientID       int64
	PaymentMethod  string
	CouponCode     string
	DiscountAmount decimal.Decimal
	Street         string
	City           string
	PostalCode     string
	ScheduledAt    *time.Time
	Notes          string
}

type OrderItemData struct {
	Ref       models.ServiceRef
	Quantity  int
	UnitPrice decimal.Decimal
	Notes     string
}

// ConvertCartToOrder turns the client's cart into a placed order in place:
// the same row flips from cart to pending, with the provider resolved from
// the items and totals recomputed with the checkout discount. Every order
// awaits provider acceptance; the payment method never auto-confirms.
// On any failure the transaction rolls back and the cart is untouched.
func ConvertCartToOrder(ctx context.Context, db *sql.DB, clientID int64, data CheckoutData) (*models.Order, error) {
	if data.DiscountAmount.IsNegative() {
		return nil, core.Invalid("discount amount cannot be negative")
	}

	var order *models.Order

	err := database.WithRetry(ctx, db, cartTxOptions, func(tx *sql.Tx) error {
		cart, err := getCartForUpdateTx(ctx, tx, clientID)
		if err != nil {
			return err
		}

		items, err := loadOrderItems(ctx, tx, cart.ID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return core.Invalid("cannot check out an empty cart")
		}

		providerID, err := resolveCartProviderTx(ctx, tx, items)
		if err != nil {
			return err
		}

		totals := CalculateTotals(items, data.DiscountAmount)

		order, err = scanOrder(tx.QueryRowContext(ctx, `
			UPDATE orders
			SET status = $1, provider_id = $2,
			    subtotal = $3, discount_amount = $4, service_amount = $5, total_amount = $6,
			    coupon_code = $7, payment_method = $8,
			    street = $9, city = $10, postal_code = $11,
			    scheduled_at = $12, notes = $13, updated_at = NOW()
			WHERE id = $14
			RETURNING `+orderColumns,
			models.StatusPending, providerID,
			totals.Subtotal, totals.DiscountAmount, totals.ServiceAmount, totals.TotalAmount,
			data.CouponCode, data.PaymentMethod,
			data.Street, data.City, data.PostalCode,
			data.ScheduledAt, data.Notes, cart.ID))
		if err != nil {
			return fmt.Errorf("convert cart to order: %w", err)
		}

		order.Items = items
		return nil
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

// CreateOrderFromData places an order directly, with no prior cart. It is
// the path used after an external payment confirmation. All money is
// recomputed server-side from the item quantities and unit prices; client
// supplied totals are never trusted.
func CreateOrderFromData(ctx context.Context, db *sql.DB, data OrderData, items []OrderItemData) (*models.Order, error) {
	if len(items) == 0 {
		return nil, core.Invalid("order must have at least one item")
	}
	if data.DiscountAmount.IsNegative() {
		return nil, core.Invalid("discount amount cannot be negative")
	}
	for _, item := range items {
		if item.Ref.IsZero() {
			return nil, core.Invalid("item must reference a provider service or a catalog service")
		}
		if item.Quantity < 1 {
			return nil, core.Invalid("quantity must be at least 1, got %d", item.Quantity)
		}
		if !item.UnitPrice.IsPositive() {
			return nil, core.Invalid("unit price must be positive, got %s", item.UnitPrice)
		}
	}

	var order *models.Order

	err := database.WithRetry(ctx, db, cartTxOptions, func(tx *sql.Tx) error {
		orderItems := make([]models.OrderItem, 0, len(items))
		for _, item := range items {
			_, chargingType, err := resolveListing(ctx, tx, item.Ref)
			if err != nil {
				return err
			}
			orderItems = append(orderItems, models.OrderItem{
				Ref:          item.Ref,
				Quantity:     item.Quantity,
				UnitPrice:    item.UnitPrice,
				TotalPrice:   LineTotal(item.Quantity, item.UnitPrice),
				ChargingType: chargingType,
				Notes:        item.Notes,
			})
		}

		providerID, err := resolveCartProviderTx(ctx, tx, orderItems)
		if err != nil {
			return err
		}

		totals := CalculateTotals(orderItems, data.DiscountAmount)

		order, err = scanOrder(tx.QueryRowContext(ctx, `
			INSERT INTO orders (client_id, provider_id, status,
				subtotal, discount_amount, service_amount, total_amount,
				coupon_code, payment_method, street, city, postal_code,
				scheduled_at, notes, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW(), NOW())
			RETURNING `+orderColumns,
			data.ClientID, providerID, models.StatusPending,
			totals.Subtotal, totals.DiscountAmount, totals.ServiceAmount, totals.TotalAmount,
			data.CouponCode, data.PaymentMethod, data.Street, data.City, data.PostalCode,
			data.ScheduledAt, data.Notes))
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		for i := range orderItems {
			item := &orderItems[i]
			providerServiceID, catalogServiceID := item.Ref.Columns()
			err = tx.QueryRowContext(ctx, `
				INSERT INTO order_items (order_id, provider_service_id, catalog_service_id,
					quantity, unit_price, total_price, charging_type, notes, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
				RETURNING id, created_at`,
				order.ID, providerServiceID, catalogServiceID,
				item.Quantity, item.UnitPrice, item.TotalPrice,
				item.ChargingType, item.Notes).Scan(&item.ID, &item.CreatedAt)
			if err != nil {
				return fmt.Errorf("create order item: %w", err)
			}
			item.OrderID = order.ID
		}

		order.Items = orderItems
		return nil
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

// resolveCartProviderTx decides which provider fulfills the order. Items
// referencing provider services pin their owner; catalog items are
// fulfillable by anyone and add no constraint. Zero distinct providers
// leaves the order unassigned for later matching; more than one is a hard
// failure, since a single order can never span providers.
func resolveCartProviderTx(ctx context.Context, tx *sql.Tx, items []models.OrderItem) (*int64, error) {
	providers := make(map[int64]bool)
	for _, item := range items {
		if item.Ref.Kind != models.RefProviderService {
			continue
		}
		service, err := GetProviderService(ctx, tx, item.Ref.ID)
		if err != nil {
			return nil, err
		}
		providers[service.ProviderID] = true
	}

	switch len(providers) {
	case 0:
		return nil, nil
	case 1:
		for id := range providers {
			return &id, nil
		}
		panic("unreachable")
	default:
		return nil, core.Invalid(
			"cart contains services from %d different providers; split it into one order per provider",
			len(providers))
	}
}
