package integration

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/marcelolino/servicos-conecte-sub000/internal/core"
	"github.com/marcelolino/servicos-conecte-sub000/internal/models"
	"github.com/marcelolino/servicos-conecte-sub000/internal/store"
)

func TestGetOrCreateCartIdempotent(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	client := createClient(t, db)

	first, err := store.GetOrCreateCart(ctx, db, client.ID)
	if err != nil {
		t.Fatalf("Create cart: %v", err)
	}
	if first.Status != models.StatusCart {
		t.Errorf("Expected status cart, got %s", first.Status)
	}

	second, err := store.GetOrCreateCart(ctx, db, client.ID)
	if err != nil {
		t.Fatalf("Get cart again: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("Expected same cart %d, got %d", first.ID, second.ID)
	}
}

func TestAddCartItemMergesSameReference(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	client := createClient(t, db)
	_, provider := createProvider(t, db, models.ApprovalApproved)
	service := createProviderService(t, db, provider.ID, 40)

	ref := models.ProviderServiceRef(service.ID)

	cart, err := store.AddCartItem(ctx, db, client.ID, store.AddItemInput{Ref: ref, Quantity: 2})
	if err != nil {
		t.Fatalf("Add item: %v", err)
	}
	if len(cart.Items) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(cart.Items))
	}

	cart, err = store.AddCartItem(ctx, db, client.ID, store.AddItemInput{Ref: ref, Quantity: 3})
	if err != nil {
		t.Fatalf("Add same item again: %v", err)
	}

	if len(cart.Items) != 1 {
		t.Fatalf("Expected merged single line, got %d lines", len(cart.Items))
	}
	item := cart.Items[0]
	if item.Quantity != 5 {
		t.Errorf("Expected quantity 5, got %d", item.Quantity)
	}
	if !item.TotalPrice.Equal(decimal.NewFromInt(200)) {
		t.Errorf("Expected line total 200, got %s", item.TotalPrice)
	}
	if !cart.Subtotal.Equal(decimal.NewFromInt(200)) {
		t.Errorf("Expected subtotal 200, got %s", cart.Subtotal)
	}
	// 10% service fee on 200
	if !cart.TotalAmount.Equal(decimal.NewFromInt(220)) {
		t.Errorf("Expected total 220, got %s", cart.TotalAmount)
	}
}

func TestAddCartItemUsesListingPrice(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	client := createClient(t, db)
	category := createCategory(t, db)
	service := createCatalogService(t, db, category.ID, 75)

	cart, err := store.AddCartItem(ctx, db, client.ID, store.AddItemInput{
		Ref:      models.CatalogServiceRef(service.ID),
		Quantity: 1,
	})
	if err != nil {
		t.Fatalf("Add item: %v", err)
	}

	if !cart.Items[0].UnitPrice.Equal(decimal.NewFromInt(75)) {
		t.Errorf("Expected unit price 75 from the listing, got %s", cart.Items[0].UnitPrice)
	}
	if cart.Items[0].ChargingType != models.ChargingFixed {
		t.Errorf("Expected charging type from listing, got %s", cart.Items[0].ChargingType)
	}
}

func TestAddCartItemMergeReanchorsToListingPrice(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	client := createClient(t, db)
	category := createCategory(t, db)
	service := createCatalogService(t, db, category.ID, 10)

	ref := models.CatalogServiceRef(service.ID)

	cart, err := store.AddCartItem(ctx, db, client.ID, store.AddItemInput{Ref: ref, Quantity: 2})
	if err != nil {
		t.Fatalf("Add item: %v", err)
	}

	// Edit the line's price away from the listing, then add the same
	// reference again. The merge must restore the listing price so the
	// line total stays quantity times unit price.
	edited := decimal.NewFromInt(8)
	if _, err := store.UpdateCartItem(ctx, db, client.ID, cart.Items[0].ID, store.UpdateItemInput{
		UnitPrice: &edited,
	}); err != nil {
		t.Fatalf("Edit price: %v", err)
	}

	cart, err = store.AddCartItem(ctx, db, client.ID, store.AddItemInput{Ref: ref, Quantity: 3})
	if err != nil {
		t.Fatalf("Add same item again: %v", err)
	}

	if len(cart.Items) != 1 {
		t.Fatalf("Expected merged single line, got %d lines", len(cart.Items))
	}
	item := cart.Items[0]
	if item.Quantity != 5 {
		t.Errorf("Expected quantity 5, got %d", item.Quantity)
	}
	if !item.UnitPrice.Equal(decimal.NewFromInt(10)) {
		t.Errorf("Expected unit price reset to listing 10, got %s", item.UnitPrice)
	}
	if !item.TotalPrice.Equal(decimal.NewFromInt(50)) {
		t.Errorf("Expected line total 50, got %s", item.TotalPrice)
	}
	expected := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
	if !item.TotalPrice.Equal(expected) {
		t.Errorf("Line total %s does not equal quantity x unit price %s", item.TotalPrice, expected)
	}
}

func TestUpdateCartItemRejectsNonPositivePrice(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	client := createClient(t, db)
	category := createCategory(t, db)
	service := createCatalogService(t, db, category.ID, 50)

	cart, err := store.AddCartItem(ctx, db, client.ID, store.AddItemInput{
		Ref:      models.CatalogServiceRef(service.ID),
		Quantity: 1,
	})
	if err != nil {
		t.Fatalf("Add item: %v", err)
	}

	zero := decimal.Zero
	_, err = store.UpdateCartItem(ctx, db, client.ID, cart.Items[0].ID, store.UpdateItemInput{
		UnitPrice: &zero,
	})
	if !core.IsValidation(err) {
		t.Errorf("Expected validation error for zero price, got %v", err)
	}

	negative := decimal.NewFromInt(-5)
	_, err = store.UpdateCartItem(ctx, db, client.ID, cart.Items[0].ID, store.UpdateItemInput{
		UnitPrice: &negative,
	})
	if !core.IsValidation(err) {
		t.Errorf("Expected validation error for negative price, got %v", err)
	}

	// The line is untouched after the rejected edits.
	reloaded, err := store.GetCart(ctx, db, client.ID)
	if err != nil {
		t.Fatalf("Get cart: %v", err)
	}
	if !reloaded.Items[0].UnitPrice.Equal(decimal.NewFromInt(50)) {
		t.Errorf("Expected unit price still 50, got %s", reloaded.Items[0].UnitPrice)
	}
}

func TestAddCartItemRejectsBadInput(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	client := createClient(t, db)
	category := createCategory(t, db)
	service := createCatalogService(t, db, category.ID, 30)

	_, err := store.AddCartItem(ctx, db, client.ID, store.AddItemInput{
		Ref:      models.CatalogServiceRef(service.ID),
		Quantity: 0,
	})
	if !core.IsValidation(err) {
		t.Errorf("Expected validation error for zero quantity, got %v", err)
	}

	_, err = store.AddCartItem(ctx, db, client.ID, store.AddItemInput{Quantity: 1})
	if !core.IsValidation(err) {
		t.Errorf("Expected validation error for missing ref, got %v", err)
	}

	_, err = store.AddCartItem(ctx, db, client.ID, store.AddItemInput{
		Ref:      models.CatalogServiceRef(999999),
		Quantity: 1,
	})
	if !core.IsNotFound(err) {
		t.Errorf("Expected not found for unknown service, got %v", err)
	}
}

func TestUpdateCartItemRecomputesTotals(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	client := createClient(t, db)
	category := createCategory(t, db)
	service := createCatalogService(t, db, category.ID, 50)

	cart, err := store.AddCartItem(ctx, db, client.ID, store.AddItemInput{
		Ref:      models.CatalogServiceRef(service.ID),
		Quantity: 1,
	})
	if err != nil {
		t.Fatalf("Add item: %v", err)
	}

	quantity := 4
	cart, err = store.UpdateCartItem(ctx, db, client.ID, cart.Items[0].ID, store.UpdateItemInput{
		Quantity: &quantity,
	})
	if err != nil {
		t.Fatalf("Update item: %v", err)
	}

	if cart.Items[0].Quantity != 4 {
		t.Errorf("Expected quantity 4, got %d", cart.Items[0].Quantity)
	}
	if !cart.Items[0].TotalPrice.Equal(decimal.NewFromInt(200)) {
		t.Errorf("Expected line total 200, got %s", cart.Items[0].TotalPrice)
	}

	expected := cart.Subtotal.Add(cart.ServiceAmount).Sub(cart.DiscountAmount)
	if !cart.TotalAmount.Equal(expected) {
		t.Errorf("Cart total %s does not reconcile: subtotal %s + fee %s - discount %s",
			cart.TotalAmount, cart.Subtotal, cart.ServiceAmount, cart.DiscountAmount)
	}
}

func TestRemoveCartItem(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	client := createClient(t, db)
	category := createCategory(t, db)
	first := createCatalogService(t, db, category.ID, 30)
	second := createCatalogService(t, db, category.ID, 20)

	if _, err := store.AddCartItem(ctx, db, client.ID, store.AddItemInput{
		Ref: models.CatalogServiceRef(first.ID), Quantity: 1,
	}); err != nil {
		t.Fatalf("Add first item: %v", err)
	}
	cart, err := store.AddCartItem(ctx, db, client.ID, store.AddItemInput{
		Ref: models.CatalogServiceRef(second.ID), Quantity: 1,
	})
	if err != nil {
		t.Fatalf("Add second item: %v", err)
	}

	cart, err = store.RemoveCartItem(ctx, db, client.ID, cart.Items[0].ID)
	if err != nil {
		t.Fatalf("Remove item: %v", err)
	}
	if len(cart.Items) != 1 {
		t.Errorf("Expected 1 remaining item, got %d", len(cart.Items))
	}

	_, err = store.RemoveCartItem(ctx, db, client.ID, 999999)
	if !core.IsNotFound(err) {
		t.Errorf("Expected not found for unknown item, got %v", err)
	}
}

func TestClearCart(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	client := createClient(t, db)

	// Clearing with no cart is a no-op.
	if err := store.ClearCart(ctx, db, client.ID); err != nil {
		t.Fatalf("Clear absent cart: %v", err)
	}

	category := createCategory(t, db)
	service := createCatalogService(t, db, category.ID, 10)
	if _, err := store.AddCartItem(ctx, db, client.ID, store.AddItemInput{
		Ref: models.CatalogServiceRef(service.ID), Quantity: 1,
	}); err != nil {
		t.Fatalf("Add item: %v", err)
	}

	if err := store.ClearCart(ctx, db, client.ID); err != nil {
		t.Fatalf("Clear cart: %v", err)
	}

	if _, err := store.GetCart(ctx, db, client.ID); !core.IsNotFound(err) {
		t.Errorf("Expected cart gone after clear, got %v", err)
	}
}
