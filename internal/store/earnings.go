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

const earningColumns = `id, provider_id, service_request_id, total_amount,
	commission_rate, commission_amount, provider_amount,
	is_withdrawn, withdrawn_at, created_at`

func scanEarning(row rowScanner) (*models.ProviderEarning, error) {
	earning := &models.ProviderEarning{}
	err := row.Scan(
		&earning.ID,
		&earning.ProviderID,
		&earning.ServiceRequestID,
		&earning.TotalAmount,
		&earning.CommissionRate,
		&earning.CommissionAmount,
		&earning.ProviderAmount,
		&earning.IsWithdrawn,
		&earning.WithdrawnAt,
		&earning.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return earning, nil
}

// CreateProviderEarning records the commission split for a completed
// request. Calling it twice for the same request yields the one existing
// row; the unique constraint on service_request_id makes that hold even
// under concurrent completion attempts.
func CreateProviderEarning(ctx context.Context, db *sql.DB, req *models.ServiceRequest) (*models.ProviderEarning, error) {
	var earning *models.ProviderEarning

	err := database.WithRetry(ctx, db, lifecycleTxOptions, func(tx *sql.Tx) error {
		var err error
		earning, err = createProviderEarningTx(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	return earning, nil
}

func createProviderEarningTx(ctx context.Context, tx *sql.Tx, req *models.ServiceRequest) (*models.ProviderEarning, error) {
	// A completed, paid request must carry both; absence means an upstream
	// invariant broke, and silently skipping would lose money.
	if req.ProviderID == nil {
		return nil, core.Invalid("service request %d has no provider; cannot create earning", req.ID)
	}
	if !req.TotalAmount.IsPositive() {
		return nil, core.Invalid("service request %d has no positive total; cannot create earning", req.ID)
	}

	existing, err := getEarningByRequestTx(ctx, tx, req.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	rate, err := CommissionRate(ctx, tx)
	if err != nil {
		return nil, err
	}

	commission := req.TotalAmount.Mul(rate).Div(decimal.NewFromInt(100)).Round(2)
	providerAmount := req.TotalAmount.Sub(commission)

	// ON CONFLICT DO NOTHING makes the unique constraint, not the pre-check,
	// the real duplicate guard: losing a concurrent race yields no row
	// without aborting the transaction, and the winner's row is re-read.
	earning, err := scanEarning(tx.QueryRowContext(ctx, `
		INSERT INTO provider_earnings (provider_id, service_request_id, total_amount,
			commission_rate, commission_amount, provider_amount, is_withdrawn, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, NOW())
		ON CONFLICT (service_request_id) DO NOTHING
		RETURNING `+earningColumns,
		*req.ProviderID, req.ID, req.TotalAmount, rate, commission, providerAmount))
	if err != nil {
		if err == sql.ErrNoRows {
			existing, selErr := getEarningByRequestTx(ctx, tx, req.ID)
			if selErr != nil {
				return nil, selErr
			}
			if existing != nil {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("create provider earning: %w", err)
	}

	return earning, nil
}

func getEarningByRequestTx(ctx context.Context, tx *sql.Tx, serviceRequestID int64) (*models.ProviderEarning, error) {
	earning, err := scanEarning(tx.QueryRowContext(ctx, `
		SELECT `+earningColumns+`
		FROM provider_earnings
		WHERE service_request_id = $1`, serviceRequestID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get earning by request: %w", err)
	}
	return earning, nil
}

// AvailableBalance sums the provider's earnings not yet withdrawn.
func AvailableBalance(ctx context.Context, q Querier, providerID int64) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(provider_amount), 0)
		FROM provider_earnings
		WHERE provider_id = $1 AND NOT is_withdrawn`, providerID).Scan(&balance)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("available balance: %w", err)
	}
	return balance, nil
}

type EarningsSummary struct {
	TotalEarned decimal.Decimal `json:"total_earned"`
	Available   decimal.Decimal `json:"available"`
	Withdrawn   decimal.Decimal `json:"withdrawn"`
}

func GetEarningsSummary(ctx context.Context, db *sql.DB, providerID int64) (*EarningsSummary, error) {
	summary := &EarningsSummary{}
	err := db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(provider_amount), 0),
		       COALESCE(SUM(provider_amount) FILTER (WHERE NOT is_withdrawn), 0),
		       COALESCE(SUM(provider_amount) FILTER (WHERE is_withdrawn), 0)
		FROM provider_earnings
		WHERE provider_id = $1`, providerID).Scan(
		&summary.TotalEarned,
		&summary.Available,
		&summary.Withdrawn,
	)
	if err != nil {
		return nil, fmt.Errorf("earnings summary: %w", err)
	}
	return summary, nil
}

func ListProviderEarnings(ctx context.Context, db *sql.DB, providerID int64, page, pageSize int) (*OffsetPage, error) {
	var total int64
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM provider_earnings WHERE provider_id = $1`, providerID).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count earnings: %w", err)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT `+earningColumns+`
		FROM provider_earnings
		WHERE provider_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`, providerID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("list earnings: %w", err)
	}
	defer rows.Close()

	var earnings []models.ProviderEarning
	for rows.Next() {
		earning, err := scanEarning(rows)
		if err != nil {
			return nil, fmt.Errorf("scan earning: %w", err)
		}
		earnings = append(earnings, *earning)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return &OffsetPage{
		Items:      earnings,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages(total, pageSize),
	}, nil
}
