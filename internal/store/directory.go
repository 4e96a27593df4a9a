package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/marcelolino/servicos-conecte-sub000/internal/core"
	"github.com/marcelolino/servicos-conecte-sub000/internal/models"
)

func CreateUser(ctx context.Context, db *sql.DB, email, name, role string) (*models.User, error) {
	switch role {
	case models.RoleClient, models.RoleProvider, models.RoleAdmin:
	default:
		return nil, core.Invalid("invalid role %q", role)
	}

	user := &models.User{}

	query := `
		INSERT INTO users (email, name, role, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING id, email, name, role, created_at, updated_at`

	err := db.QueryRowContext(ctx, query, email, name, role).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

func GetUser(ctx context.Context, q Querier, id int64) (*models.User, error) {
	user := &models.User{}

	query := `
		SELECT id, email, name, role, created_at, updated_at
		FROM users
		WHERE id = $1`

	err := q.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, core.NotFound("user")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return user, nil
}

func CreateProvider(ctx context.Context, db *sql.DB, userID int64, businessName string) (*models.Provider, error) {
	provider := &models.Provider{}

	query := `
		INSERT INTO providers (user_id, business_name, approval_status, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING id, user_id, business_name, approval_status, created_at, updated_at`

	err := db.QueryRowContext(ctx, query, userID, businessName, models.ApprovalPending).Scan(
		&provider.ID,
		&provider.UserID,
		&provider.BusinessName,
		&provider.ApprovalStatus,
		&provider.CreatedAt,
		&provider.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create provider: %w", err)
	}

	return provider, nil
}

func GetProvider(ctx context.Context, q Querier, id int64) (*models.Provider, error) {
	return scanProvider(q.QueryRowContext(ctx, `
		SELECT id, user_id, business_name, approval_status, created_at, updated_at
		FROM providers
		WHERE id = $1`, id))
}

// GetProviderByUserID resolves the provider profile behind an acting user.
// The claim transition uses it to check approval status.
func GetProviderByUserID(ctx context.Context, q Querier, userID int64) (*models.Provider, error) {
	return scanProvider(q.QueryRowContext(ctx, `
		SELECT id, user_id, business_name, approval_status, created_at, updated_at
		FROM providers
		WHERE user_id = $1`, userID))
}

func scanProvider(row *sql.Row) (*models.Provider, error) {
	provider := &models.Provider{}
	err := row.Scan(
		&provider.ID,
		&provider.UserID,
		&provider.BusinessName,
		&provider.ApprovalStatus,
		&provider.CreatedAt,
		&provider.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, core.NotFound("provider")
		}
		return nil, fmt.Errorf("get provider: %w", err)
	}
	return provider, nil
}

func SetProviderApproval(ctx context.Context, db *sql.DB, providerID int64, status string) (*models.Provider, error) {
	switch status {
	case models.ApprovalPending, models.ApprovalApproved, models.ApprovalRejected, models.ApprovalSuspended:
	default:
		return nil, core.Invalid("invalid approval status %q", status)
	}

	provider := &models.Provider{}

	query := `
		UPDATE providers
		SET approval_status = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING id, user_id, business_name, approval_status, created_at, updated_at`

	err := db.QueryRowContext(ctx, query, status, providerID).Scan(
		&provider.ID,
		&provider.UserID,
		&provider.BusinessName,
		&provider.ApprovalStatus,
		&provider.CreatedAt,
		&provider.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, core.NotFound("provider")
		}
		return nil, fmt.Errorf("set provider approval: %w", err)
	}

	return provider, nil
}
