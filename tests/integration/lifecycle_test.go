package integration

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/marcelolino/servicos-conecte-sub000/internal/core"
	"github.com/marcelolino/servicos-conecte-sub000/internal/models"
	"github.com/marcelolino/servicos-conecte-sub000/internal/store"
)

func TestServiceRequestLifecycle(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	client := createClient(t, db)
	providerUser, provider := createProvider(t, db, models.ApprovalApproved)
	category := createCategory(t, db)

	req, err := store.CreateServiceRequest(ctx, db, client.ID, store.ServiceRequestInput{
		CategoryID:  category.ID,
		Title:       "Pintura de sala",
		TotalAmount: decimal.NewFromInt(300),
	})
	if err != nil {
		t.Fatalf("Create request: %v", err)
	}
	if req.Status != models.StatusPending || req.ProviderID != nil {
		t.Fatalf("Expected pending unassigned request, got status=%s provider=%v", req.Status, req.ProviderID)
	}

	providerActor := models.Actor{UserID: providerUser.ID, Role: models.RoleProvider}
	clientActor := models.Actor{UserID: client.ID, Role: models.RoleClient}

	// An approved provider claims the open request.
	req, err = store.UpdateServiceRequestStatus(ctx, db, providerActor, req.ID, models.StatusAccepted)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if req.Status != models.StatusAccepted {
		t.Errorf("Expected accepted, got %s", req.Status)
	}
	if req.ProviderID == nil || *req.ProviderID != provider.ID {
		t.Errorf("Expected claim to assign provider %d, got %v", provider.ID, req.ProviderID)
	}

	req, err = store.UpdateServiceRequestStatus(ctx, db, clientActor, req.ID, models.StatusInProgress)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	req, err = store.UpdateServiceRequestStatus(ctx, db, clientActor, req.ID, models.StatusCompleted)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if req.CompletedAt == nil {
		t.Error("Expected completed_at to be set")
	}

	// Completion must have written the earning in the same transaction.
	balance, err := store.AvailableBalance(ctx, db, provider.ID)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if balance.IsZero() {
		t.Error("Expected earning created on completion, balance is zero")
	}
}

func TestClaimRequiresApprovedProvider(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	client := createClient(t, db)
	providerUser, _ := createProvider(t, db, models.ApprovalPending)
	category := createCategory(t, db)

	req, err := store.CreateServiceRequest(ctx, db, client.ID, store.ServiceRequestInput{
		CategoryID:  category.ID,
		Title:       "Limpeza",
		TotalAmount: decimal.NewFromInt(100),
	})
	if err != nil {
		t.Fatalf("Create request: %v", err)
	}

	actor := models.Actor{UserID: providerUser.ID, Role: models.RoleProvider}
	_, err = store.UpdateServiceRequestStatus(ctx, db, actor, req.ID, models.StatusAccepted)
	if !core.IsPermissionDenied(err) {
		t.Fatalf("Expected permission denied for unapproved provider, got %v", err)
	}
	if !strings.Contains(err.Error(), models.ApprovalPending) {
		t.Errorf("Expected error to name the approval status, got %q", err.Error())
	}
}

func TestAcceptedLegacyAlias(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	client := createClient(t, db)
	providerUser, provider := createProvider(t, db, models.ApprovalApproved)
	category := createCategory(t, db)

	req, err := store.CreateServiceRequest(ctx, db, client.ID, store.ServiceRequestInput{
		CategoryID:  category.ID,
		Title:       "Jardinagem",
		TotalAmount: decimal.NewFromInt(80),
	})
	if err != nil {
		t.Fatalf("Create request: %v", err)
	}

	// "confirmed" is the legacy spelling of accepted.
	actor := models.Actor{UserID: providerUser.ID, Role: models.RoleProvider}
	req, err = store.UpdateServiceRequestStatus(ctx, db, actor, req.ID, "confirmed")
	if err != nil {
		t.Fatalf("Accept via legacy alias: %v", err)
	}
	if req.Status != models.StatusAccepted {
		t.Errorf("Expected accepted, got %s", req.Status)
	}
	if req.ProviderID == nil || *req.ProviderID != provider.ID {
		t.Errorf("Expected provider assigned, got %v", req.ProviderID)
	}
}

func TestStartRequiresClient(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	client := createClient(t, db)
	providerUser, _ := createProvider(t, db, models.ApprovalApproved)
	category := createCategory(t, db)

	req, err := store.CreateServiceRequest(ctx, db, client.ID, store.ServiceRequestInput{
		CategoryID:  category.ID,
		Title:       "Encanamento",
		TotalAmount: decimal.NewFromInt(150),
	})
	if err != nil {
		t.Fatalf("Create request: %v", err)
	}

	providerActor := models.Actor{UserID: providerUser.ID, Role: models.RoleProvider}
	if _, err := store.UpdateServiceRequestStatus(ctx, db, providerActor, req.ID, models.StatusAccepted); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	// The assigned provider may touch the request, but only the client
	// starts the work.
	_, err = store.UpdateServiceRequestStatus(ctx, db, providerActor, req.ID, models.StatusInProgress)
	if !core.IsPermissionDenied(err) {
		t.Errorf("Expected permission denied for provider starting, got %v", err)
	}
}

func TestCompleteRequiresInProgress(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	client := createClient(t, db)
	_, provider := createProvider(t, db, models.ApprovalApproved)
	category := createCategory(t, db)

	req, err := store.CreateServiceRequest(ctx, db, client.ID, store.ServiceRequestInput{
		CategoryID:  category.ID,
		Title:       "Montagem",
		TotalAmount: decimal.NewFromInt(90),
	})
	if err != nil {
		t.Fatalf("Create request: %v", err)
	}

	clientActor := models.Actor{UserID: client.ID, Role: models.RoleClient}
	_, err = store.UpdateServiceRequestStatus(ctx, db, clientActor, req.ID, models.StatusCompleted)
	if !core.IsInvalidState(err) {
		t.Fatalf("Expected invalid state for pending → completed, got %v", err)
	}

	// The failed completion must not have written an earning.
	balance, err := store.AvailableBalance(ctx, db, provider.ID)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if !balance.IsZero() {
		t.Errorf("Expected no earning after failed completion, got balance %s", balance)
	}
}

func TestCompleteTwiceFails(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	client := createClient(t, db)
	providerUser, _ := createProvider(t, db, models.ApprovalApproved)
	category := createCategory(t, db)

	req := createCompletedRequest(t, db, client, providerUser, category.ID, 200)

	clientActor := models.Actor{UserID: client.ID, Role: models.RoleClient}
	_, err := store.UpdateServiceRequestStatus(ctx, db, clientActor, req.ID, models.StatusCompleted)
	if !core.IsInvalidState(err) {
		t.Fatalf("Expected invalid state, got %v", err)
	}
	if !strings.Contains(err.Error(), "already completed") {
		t.Errorf("Expected already-completed message, got %q", err.Error())
	}
}

func TestCancelIsAdminOnly(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	client := createClient(t, db)
	admin := createAdmin(t, db)
	category := createCategory(t, db)

	req, err := store.CreateServiceRequest(ctx, db, client.ID, store.ServiceRequestInput{
		CategoryID:  category.ID,
		Title:       "Reparo",
		TotalAmount: decimal.NewFromInt(120),
	})
	if err != nil {
		t.Fatalf("Create request: %v", err)
	}

	clientActor := models.Actor{UserID: client.ID, Role: models.RoleClient}
	_, err = store.UpdateServiceRequestStatus(ctx, db, clientActor, req.ID, models.StatusCancelled)
	if !core.IsPermissionDenied(err) {
		t.Errorf("Expected permission denied for client cancel, got %v", err)
	}

	adminActor := models.Actor{UserID: admin.ID, Role: models.RoleAdmin}
	req, err = store.UpdateServiceRequestStatus(ctx, db, adminActor, req.ID, models.StatusCancelled)
	if err != nil {
		t.Fatalf("Admin cancel: %v", err)
	}
	if req.Status != models.StatusCancelled {
		t.Errorf("Expected cancelled, got %s", req.Status)
	}

	// Terminal states stay terminal.
	_, err = store.UpdateServiceRequestStatus(ctx, db, adminActor, req.ID, models.StatusCancelled)
	if !core.IsInvalidState(err) {
		t.Errorf("Expected invalid state cancelling twice, got %v", err)
	}
}

func TestOrderLifecycleMirrorsRequests(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	client := createClient(t, db)
	providerUser, provider := createProvider(t, db, models.ApprovalApproved)
	category := createCategory(t, db)
	service := createCatalogService(t, db, category.ID, 60)

	if _, err := store.AddCartItem(ctx, db, client.ID, store.AddItemInput{
		Ref: models.CatalogServiceRef(service.ID), Quantity: 1,
	}); err != nil {
		t.Fatalf("Add item: %v", err)
	}
	order, err := store.ConvertCartToOrder(ctx, db, client.ID, store.CheckoutData{PaymentMethod: "pix"})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	// A provider-less order is claimable like an open request.
	providerActor := models.Actor{UserID: providerUser.ID, Role: models.RoleProvider}
	order, err = store.UpdateOrderStatus(ctx, db, providerActor, order.ID, models.StatusAccepted)
	if err != nil {
		t.Fatalf("Claim order: %v", err)
	}
	if order.ProviderID == nil || *order.ProviderID != provider.ID {
		t.Errorf("Expected claim to assign provider %d, got %v", provider.ID, order.ProviderID)
	}

	clientActor := models.Actor{UserID: client.ID, Role: models.RoleClient}
	if _, err := store.UpdateOrderStatus(ctx, db, clientActor, order.ID, models.StatusInProgress); err != nil {
		t.Fatalf("Start order: %v", err)
	}
	order, err = store.UpdateOrderStatus(ctx, db, clientActor, order.ID, models.StatusCompleted)
	if err != nil {
		t.Fatalf("Complete order: %v", err)
	}
	if order.Status != models.StatusCompleted {
		t.Errorf("Expected completed, got %s", order.Status)
	}

	// Order completion does not feed the earnings ledger.
	balance, err := store.AvailableBalance(ctx, db, provider.ID)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if !balance.IsZero() {
		t.Errorf("Expected no earning from order completion, got %s", balance)
	}
}

func TestOrderStatusRejectsCart(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	client := createClient(t, db)

	cart, err := store.GetOrCreateCart(ctx, db, client.ID)
	if err != nil {
		t.Fatalf("Create cart: %v", err)
	}

	clientActor := models.Actor{UserID: client.ID, Role: models.RoleClient}
	_, err = store.UpdateOrderStatus(ctx, db, clientActor, cart.ID, models.StatusPending)
	if !core.IsInvalidState(err) {
		t.Errorf("Expected invalid state driving a cart, got %v", err)
	}
}

func TestUpdateServiceRequestValidatesInput(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	client := createClient(t, db)
	category := createCategory(t, db)

	req, err := store.CreateServiceRequest(ctx, db, client.ID, store.ServiceRequestInput{
		CategoryID:  category.ID,
		Title:       "Instalação",
		TotalAmount: decimal.NewFromInt(50),
	})
	if err != nil {
		t.Fatalf("Create request: %v", err)
	}

	clientActor := models.Actor{UserID: client.ID, Role: models.RoleClient}

	badAmount := "abc"
	_, err = store.UpdateServiceRequest(ctx, db, clientActor, req.ID, store.ServiceRequestEdit{
		TotalAmount: &badAmount,
	})
	if !core.IsValidation(err) {
		t.Errorf("Expected validation error for bad amount, got %v", err)
	}

	badDate := "tomorrow"
	_, err = store.UpdateServiceRequest(ctx, db, clientActor, req.ID, store.ServiceRequestEdit{
		ScheduledAt: &badDate,
	})
	if !core.IsValidation(err) {
		t.Errorf("Expected validation error for bad date, got %v", err)
	}

	newTitle := "Instalação elétrica"
	newAmount := "75.50"
	updated, err := store.UpdateServiceRequest(ctx, db, clientActor, req.ID, store.ServiceRequestEdit{
		Title:       &newTitle,
		TotalAmount: &newAmount,
	})
	if err != nil {
		t.Fatalf("Update request: %v", err)
	}
	if updated.Title != newTitle {
		t.Errorf("Expected title updated, got %q", updated.Title)
	}
	if !updated.TotalAmount.Equal(decimal.RequireFromString("75.50")) {
		t.Errorf("Expected amount 75.50, got %s", updated.TotalAmount)
	}
}
