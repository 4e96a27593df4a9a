package store

import (
	"github.com/shopspring/decimal"

	"github.com/marcelolino/servicos-conecte-sub000/internal/models"
)

// serviceFeeRate is the flat platform fee applied to every order subtotal.
// It is a policy constant, independent of the configurable commission rate
// used by the earnings ledger.
var serviceFeeRate = decimal.NewFromFloat(0.10)

type OrderTotals struct {
	Subtotal       decimal.Decimal
	ServiceAmount  decimal.Decimal
	DiscountAmount decimal.Decimal
	TotalAmount    decimal.Decimal
}

// CalculateTotals derives order money from its line items:
// subtotal is the sum of line totals, the service amount is the flat
// platform fee over the subtotal, and the total is
// subtotal + serviceAmount - discount.
func CalculateTotals(items []models.OrderItem, discount decimal.Decimal) OrderTotals {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.TotalPrice)
	}

	serviceAmount := subtotal.Mul(serviceFeeRate).Round(2)

	return OrderTotals{
		Subtotal:       subtotal,
		ServiceAmount:  serviceAmount,
		DiscountAmount: discount,
		TotalAmount:    subtotal.Add(serviceAmount).Sub(discount),
	}
}

// LineTotal recomputes an item's total from quantity and unit price.
func LineTotal(quantity int, unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}
