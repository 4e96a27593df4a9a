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

const serviceRequestColumns = `id, client_id, provider_id, category_id, title, description,
	status, total_amount, payment_method, street, city,
	scheduled_at, completed_at, created_at, updated_at`

var lifecycleTxOptions = database.TxOptions{
	IsolationLevel: sql.LevelSerializable,
	MaxRetries:     3,
}

type ServiceRequestInput struct {
	CategoryID    int64
	Title         string
	Description   string
	TotalAmount   decimal.Decimal
	PaymentMethod string
	Street        string
	City          string
	ScheduledAt   *time.Time
}

// ServiceRequestEdit is the general edit path, independent of status.
// Money and date fields arrive as strings and must parse before any write.
type ServiceRequestEdit struct {
	Title         *string `json:"title"`
	Description   *string `json:"description"`
	TotalAmount   *string `json:"total_amount"`
	PaymentMethod *string `json:"payment_method"`
	Street        *string `json:"street"`
	City          *string `json:"city"`
	ScheduledAt   *string `json:"scheduled_at"`
}

func scanServiceRequest(row rowScanner) (*models.ServiceRequest, error) {
	req := &models.ServiceRequest{}
	err := row.Scan(
		&req.ID,
		&req.ClientID,
		&req.ProviderID,
		&req.CategoryID,
		&req.Title,
		&req.Description,
		&req.Status,
		&req.TotalAmount,
		&req.PaymentMethod,
		&req.Street,
		&req.City,
		&req.ScheduledAt,
		&req.CompletedAt,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return req, nil
}

// CreateServiceRequest posts an open-market need: no provider yet, status
// pending until one claims it.
func CreateServiceRequest(ctx context.Context, db *sql.DB, clientID int64, input ServiceRequestInput) (*models.ServiceRequest, error) {
	if input.Title == "" {
		return nil, core.Invalid("title is required")
	}
	if !input.TotalAmount.IsPositive() {
		return nil, core.Invalid("total amount must be positive, got %s", input.TotalAmount)
	}

	req, err := scanServiceRequest(db.QueryRowContext(ctx, `
		INSERT INTO service_requests (client_id, category_id, title, description,
			status, total_amount, payment_method, street, city, scheduled_at,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING `+serviceRequestColumns,
		clientID, input.CategoryID, input.Title, input.Description,
		models.StatusPending, input.TotalAmount, input.PaymentMethod,
		input.Street, input.City, input.ScheduledAt))
	if err != nil {
		return nil, fmt.Errorf("create service request: %w", err)
	}

	return req, nil
}

func GetServiceRequest(ctx context.Context, db *sql.DB, id int64) (*models.ServiceRequest, error) {
	req, err := scanServiceRequest(db.QueryRowContext(ctx, `
		SELECT `+serviceRequestColumns+`
		FROM service_requests
		WHERE id = $1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, core.NotFound("service request")
		}
		return nil, fmt.Errorf("get service request: %w", err)
	}
	return req, nil
}

// UpdateServiceRequestStatus drives the request through
// pending → accepted → in_progress → completed, with cancellation from any
// non-terminal state. Completion creates the provider earning in the same
// transaction; if that fails, the completion fails with it.
func UpdateServiceRequestStatus(ctx context.Context, db *sql.DB, actor models.Actor, id int64, status string) (*models.ServiceRequest, error) {
	newStatus, ok := models.NormalizeStatus(status)
	if !ok {
		return nil, core.Invalid("unknown status %q", status)
	}

	var updated *models.ServiceRequest

	err := database.WithRetry(ctx, db, lifecycleTxOptions, func(tx *sql.Tx) error {
		req, err := getServiceRequestForUpdateTx(ctx, tx, id)
		if err != nil {
			return err
		}

		claimProviderID, err := checkStatusPermission(ctx, tx, actor, req, newStatus)
		if err != nil {
			return err
		}

		providerID := req.ProviderID
		if claimProviderID != nil {
			providerID = claimProviderID
		}
		completedAt := req.CompletedAt

		switch newStatus {
		case models.StatusAccepted:
			if req.Status != models.StatusPending {
				return core.InvalidState(req.Status, "request can only be accepted from pending")
			}
			if providerID == nil {
				return core.Invalid("cannot accept a request without an assigned provider")
			}

		case models.StatusInProgress:
			if !actor.IsAdmin() && actor.UserID != req.ClientID {
				return core.PermissionDenied("only the requesting client can start the service")
			}
			if req.Status != models.StatusAccepted {
				return core.InvalidState(req.Status, "request can only be started once accepted")
			}

		case models.StatusCompleted:
			if !actor.IsAdmin() && actor.UserID != req.ClientID {
				return core.PermissionDenied("only the requesting client can complete the service")
			}
			if req.Status == models.StatusCompleted {
				return core.InvalidState(req.Status, "request is already completed")
			}
			if req.Status != models.StatusInProgress {
				return core.InvalidState(req.Status, "request can only be completed while in progress")
			}
			now := time.Now()
			completedAt = &now

		case models.StatusCancelled:
			if !actor.IsAdmin() {
				return core.PermissionDenied("only an administrator can cancel a request")
			}
			if req.Status == models.StatusCancelled {
				return core.InvalidState(req.Status, "request is already cancelled")
			}
			if models.IsTerminalStatus(req.Status) {
				return core.InvalidState(req.Status, "cannot cancel a finished request")
			}

		default:
			return core.InvalidState(req.Status, "unsupported transition to %q", newStatus)
		}

		updated, err = scanServiceRequest(tx.QueryRowContext(ctx, `
			UPDATE service_requests
			SET status = $1, provider_id = $2, completed_at = $3, updated_at = NOW()
			WHERE id = $4
			RETURNING `+serviceRequestColumns,
			newStatus, providerID, completedAt, id))
		if err != nil {
			return fmt.Errorf("update request status: %w", err)
		}

		if newStatus == models.StatusCompleted {
			if _, err := createProviderEarningTx(ctx, tx, updated); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// checkStatusPermission decides whether the actor may touch the request at
// all. Owning client and admins always may; the assigned provider may; an
// unassigned provider may only claim a pending request into accepted, and
// only with an approved profile. Returns the claiming provider's id when
// the claim path applies.
func checkStatusPermission(ctx context.Context, tx *sql.Tx, actor models.Actor, req *models.ServiceRequest, newStatus string) (*int64, error) {
	if actor.IsAdmin() || actor.UserID == req.ClientID {
		return nil, nil
	}

	provider, err := GetProviderByUserID(ctx, tx, actor.UserID)
	if err != nil {
		if core.IsNotFound(err) {
			return nil, core.PermissionDenied("not allowed to update this request")
		}
		return nil, err
	}

	if req.ProviderID != nil && *req.ProviderID == provider.ID {
		return nil, nil
	}

	if req.ProviderID == nil && newStatus == models.StatusAccepted {
		if provider.ApprovalStatus != models.ApprovalApproved {
			return nil, core.PermissionDenied(
				"provider profile is %s; only approved providers can accept requests",
				provider.ApprovalStatus)
		}
		return &provider.ID, nil
	}

	return nil, core.PermissionDenied("not allowed to update this request")
}

// UpdateServiceRequest is the general edit path for booking details,
// independent of status. Malformed money or date input is rejected before
// any write.
func UpdateServiceRequest(ctx context.Context, db *sql.DB, actor models.Actor, id int64, edit ServiceRequestEdit) (*models.ServiceRequest, error) {
	var totalAmount *decimal.Decimal
	if edit.TotalAmount != nil {
		amount, err := decimal.NewFromString(*edit.TotalAmount)
		if err != nil || !amount.IsPositive() {
			return nil, core.Invalid("total amount must be a positive number, got %q", *edit.TotalAmount)
		}
		totalAmount = &amount
	}

	var scheduledAt *time.Time
	if edit.ScheduledAt != nil {
		t, err := time.Parse(time.RFC3339, *edit.ScheduledAt)
		if err != nil {
			return nil, core.Invalid("scheduled_at must be a valid timestamp, got %q", *edit.ScheduledAt)
		}
		scheduledAt = &t
	}

	var updated *models.ServiceRequest

	err := database.WithRetry(ctx, db, lifecycleTxOptions, func(tx *sql.Tx) error {
		req, err := getServiceRequestForUpdateTx(ctx, tx, id)
		if err != nil {
			return err
		}

		if err := checkEditPermission(ctx, tx, actor, req); err != nil {
			return err
		}

		title := req.Title
		description := req.Description
		paymentMethod := req.PaymentMethod
		street := req.Street
		city := req.City
		amount := req.TotalAmount
		scheduled := req.ScheduledAt

		if edit.Title != nil {
			title = *edit.Title
		}
		if edit.Description != nil {
			description = *edit.Description
		}
		if edit.PaymentMethod != nil {
			paymentMethod = *edit.PaymentMethod
		}
		if edit.Street != nil {
			street = *edit.Street
		}
		if edit.City != nil {
			city = *edit.City
		}
		if totalAmount != nil {
			amount = *totalAmount
		}
		if scheduledAt != nil {
			scheduled = scheduledAt
		}

		updated, err = scanServiceRequest(tx.QueryRowContext(ctx, `
			UPDATE service_requests
			SET title = $1, description = $2, payment_method = $3,
			    street = $4, city = $5, total_amount = $6, scheduled_at = $7,
			    updated_at = NOW()
			WHERE id = $8
			RETURNING `+serviceRequestColumns,
			title, description, paymentMethod, street, city, amount, scheduled, id))
		if err != nil {
			return fmt.Errorf("update service request: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func checkEditPermission(ctx context.Context, tx *sql.Tx, actor models.Actor, req *models.ServiceRequest) error {
	if actor.IsAdmin() || actor.UserID == req.ClientID {
		return nil
	}
	if req.ProviderID != nil {
		provider, err := GetProviderByUserID(ctx, tx, actor.UserID)
		if err == nil && provider.ID == *req.ProviderID {
			return nil
		}
		if err != nil && !core.IsNotFound(err) {
			return err
		}
	}
	return core.PermissionDenied("not allowed to update this request")
}

func getServiceRequestForUpdateTx(ctx context.Context, tx *sql.Tx, id int64) (*models.ServiceRequest, error) {
	req, err := scanServiceRequest(tx.QueryRowContext(ctx, `
		SELECT `+serviceRequestColumns+`
		FROM service_requests
		WHERE id = $1
		FOR UPDATE`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, core.NotFound("service request")
		}
		return nil, fmt.Errorf("lock service request: %w", err)
	}
	return req, nil
}

// UpdateOrderStatus applies the same state machine to placed orders. A
// provider-less order (pure catalog checkout) is claimed exactly like an
// open service request. Order completion does not write the earnings
// ledger; that trigger belongs to service requests.
func UpdateOrderStatus(ctx context.Context, db *sql.DB, actor models.Actor, id int64, status string) (*models.Order, error) {
	newStatus, ok := models.NormalizeStatus(status)
	if !ok {
		return nil, core.Invalid("unknown status %q", status)
	}

	var updated *models.Order

	err := database.WithRetry(ctx, db, lifecycleTxOptions, func(tx *sql.Tx) error {
		order, err := scanOrder(tx.QueryRowContext(ctx, `
			SELECT `+orderColumns+`
			FROM orders
			WHERE id = $1
			FOR UPDATE`, id))
		if err != nil {
			if err == sql.ErrNoRows {
				return core.NotFound("order")
			}
			return fmt.Errorf("lock order: %w", err)
		}
		if order.Status == models.StatusCart {
			return core.InvalidState(order.Status, "a cart has no lifecycle; check it out first")
		}

		claimProviderID, err := checkOrderPermission(ctx, tx, actor, order, newStatus)
		if err != nil {
			return err
		}

		providerID := order.ProviderID
		if claimProviderID != nil {
			providerID = claimProviderID
		}

		switch newStatus {
		case models.StatusAccepted:
			if order.Status != models.StatusPending {
				return core.InvalidState(order.Status, "order can only be accepted from pending")
			}
			if providerID == nil {
				return core.Invalid("cannot accept an order without an assigned provider")
			}
		case models.StatusInProgress:
			if !actor.IsAdmin() && actor.UserID != order.ClientID {
				return core.PermissionDenied("only the ordering client can start the service")
			}
			if order.Status != models.StatusAccepted {
				return core.InvalidState(order.Status, "order can only be started once accepted")
			}
		case models.StatusCompleted:
			if !actor.IsAdmin() && actor.UserID != order.ClientID {
				return core.PermissionDenied("only the ordering client can complete the service")
			}
			if order.Status == models.StatusCompleted {
				return core.InvalidState(order.Status, "order is already completed")
			}
			if order.Status != models.StatusInProgress {
				return core.InvalidState(order.Status, "order can only be completed while in progress")
			}
		case models.StatusCancelled:
			if !actor.IsAdmin() {
				return core.PermissionDenied("only an administrator can cancel an order")
			}
			if order.Status == models.StatusCancelled {
				return core.InvalidState(order.Status, "order is already cancelled")
			}
			if models.IsTerminalStatus(order.Status) {
				return core.InvalidState(order.Status, "cannot cancel a finished order")
			}
		default:
			return core.InvalidState(order.Status, "unsupported transition to %q", newStatus)
		}

		updated, err = scanOrder(tx.QueryRowContext(ctx, `
			UPDATE orders
			SET status = $1, provider_id = $2, updated_at = NOW()
			WHERE id = $3
			RETURNING `+orderColumns,
			newStatus, providerID, id))
		if err != nil {
			return fmt.Errorf("update order status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func checkOrderPermission(ctx context.Context, tx *sql.Tx, actor models.Actor, order *models.Order, newStatus string) (*int64, error) {
	if actor.IsAdmin() || actor.UserID == order.ClientID {
		return nil, nil
	}

	provider, err := GetProviderByUserID(ctx, tx, actor.UserID)
	if err != nil {
		if core.IsNotFound(err) {
			return nil, core.PermissionDenied("not allowed to update this order")
		}
		return nil, err
	}

	if order.ProviderID != nil && *order.ProviderID == provider.ID {
		return nil, nil
	}

	if order.ProviderID == nil && newStatus == models.StatusAccepted {
		if provider.ApprovalStatus != models.ApprovalApproved {
			return nil, core.PermissionDenied(
				"provider profile is %s; only approved providers can accept orders",
				provider.ApprovalStatus)
		}
		return &provider.ID, nil
	}

	return nil, core.PermissionDenied("not allowed to update this order")
}

type ServiceRequestFilter struct {
	ClientID       *int64
	ProviderID     *int64
	Status         string
	OnlyUnassigned bool
}

func ListServiceRequests(ctx context.Context, db *sql.DB, filter ServiceRequestFilter, page, pageSize int) (*OffsetPage, error) {
	where := "WHERE 1=1"
	args := []interface{}{}

	if filter.ClientID != nil {
		args = append(args, *filter.ClientID)
		where += fmt.Sprintf(" AND client_id = $%d", len(args))
	}
	if filter.ProviderID != nil {
		args = append(args, *filter.ProviderID)
		where += fmt.Sprintf(" AND provider_id = $%d", len(args))
	}
	if filter.Status != "" {
		status, ok := models.NormalizeStatus(filter.Status)
		if !ok {
			return nil, core.Invalid("unknown status %q", filter.Status)
		}
		args = append(args, status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.OnlyUnassigned {
		where += " AND provider_id IS NULL"
	}

	var total int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM service_requests `+where, args...).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count service requests: %w", err)
	}

	args = append(args, pageSize, (page-1)*pageSize)
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`
		SELECT `+serviceRequestColumns+`
		FROM service_requests
		%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, fmt.Errorf("list service requests: %w", err)
	}
	defer rows.Close()

	var requests []models.ServiceRequest
	for rows.Next() {
		req, err := scanServiceRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan service request: %w", err)
		}
		requests = append(requests, *req)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return &OffsetPage{
		Items:      requests,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages(total, pageSize),
	}, nil
}
