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

const withdrawalColumns = `id, provider_id, amount, status,
	processed_by, processed_at, admin_notes, created_at`

func scanWithdrawal(row rowScanner) (*models.WithdrawalRequest, error) {
	withdrawal := &models.WithdrawalRequest{}
	err := row.Scan(
		&withdrawal.ID,
		&withdrawal.ProviderID,
		&withdrawal.Amount,
		&withdrawal.Status,
		&withdrawal.ProcessedBy,
		&withdrawal.ProcessedAt,
		&withdrawal.AdminNotes,
		&withdrawal.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return withdrawal, nil
}

// CreateWithdrawalRequest opens a pending payout request, capped at the
// provider's available (unwithdrawn) balance.
func CreateWithdrawalRequest(ctx context.Context, db *sql.DB, providerID int64, amount decimal.Decimal) (*models.WithdrawalRequest, error) {
	if !amount.IsPositive() {
		return nil, core.Invalid("withdrawal amount must be positive, got %s", amount)
	}

	var withdrawal *models.WithdrawalRequest

	err := database.WithRetry(ctx, db, lifecycleTxOptions, func(tx *sql.Tx) error {
		if _, err := GetProvider(ctx, tx, providerID); err != nil {
			return err
		}

		balance, err := AvailableBalance(ctx, tx, providerID)
		if err != nil {
			return err
		}
		if amount.GreaterThan(balance) {
			return core.Conflict("insufficient balance: requested %s, available %s", amount, balance)
		}

		withdrawal, err = scanWithdrawal(tx.QueryRowContext(ctx, `
			INSERT INTO withdrawal_requests (provider_id, amount, status, created_at)
			VALUES ($1, $2, $3, NOW())
			RETURNING `+withdrawalColumns,
			providerID, amount, models.WithdrawalPending))
		if err != nil {
			return fmt.Errorf("create withdrawal request: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return withdrawal, nil
}

// ProcessWithdrawalRequest settles a pending request. Rejection touches only
// the audit fields. Approval walks the provider's unwithdrawn earnings
// oldest-first with the rows locked, marking each earning withdrawn while
// its full amount fits in what remains of the request. Earnings are never
// split, so the settled sum may come up short of the requested amount when
// they don't divide evenly; the caller gets the actually-settled figure.
func ProcessWithdrawalRequest(ctx context.Context, db *sql.DB, id int64, status string, adminID int64, notes string) (*models.WithdrawalRequest, decimal.Decimal, error) {
	if status != models.WithdrawalApproved && status != models.WithdrawalRejected {
		return nil, decimal.Decimal{}, core.Invalid("status must be %q or %q, got %q",
			models.WithdrawalApproved, models.WithdrawalRejected, status)
	}

	var withdrawal *models.WithdrawalRequest
	var settled decimal.Decimal

	err := database.WithRetry(ctx, db, lifecycleTxOptions, func(tx *sql.Tx) error {
		settled = decimal.Zero

		current, err := scanWithdrawal(tx.QueryRowContext(ctx, `
			SELECT `+withdrawalColumns+`
			FROM withdrawal_requests
			WHERE id = $1
			FOR UPDATE`, id))
		if err != nil {
			if err == sql.ErrNoRows {
				return core.NotFound("withdrawal request")
			}
			return fmt.Errorf("lock withdrawal request: %w", err)
		}

		if current.Status != models.WithdrawalPending {
			return core.InvalidState(current.Status, "withdrawal request is already processed")
		}

		if status == models.WithdrawalApproved {
			settled, err = settleEarningsFIFO(ctx, tx, current.ProviderID, current.Amount)
			if err != nil {
				return err
			}
		}

		withdrawal, err = scanWithdrawal(tx.QueryRowContext(ctx, `
			UPDATE withdrawal_requests
			SET status = $1, processed_by = $2, processed_at = NOW(), admin_notes = $3
			WHERE id = $4
			RETURNING `+withdrawalColumns,
			status, adminID, notes, id))
		if err != nil {
			return fmt.Errorf("process withdrawal request: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, decimal.Decimal{}, err
	}

	return withdrawal, settled, nil
}

// settleEarningsFIFO locks the provider's unwithdrawn earnings oldest-first
// and marks them withdrawn until the requested amount is covered. The lock
// keeps a concurrent approval from spending the same earning twice.
func settleEarningsFIFO(ctx context.Context, tx *sql.Tx, providerID int64, requested decimal.Decimal) (decimal.Decimal, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT `+earningColumns+`
		FROM provider_earnings
		WHERE provider_id = $1 AND NOT is_withdrawn
		ORDER BY created_at, id
		FOR UPDATE`, providerID)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("lock earnings: %w", err)
	}
	defer rows.Close()

	var earnings []models.ProviderEarning
	for rows.Next() {
		earning, err := scanEarning(rows)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("scan earning: %w", err)
		}
		earnings = append(earnings, *earning)
	}
	if err := rows.Err(); err != nil {
		return decimal.Decimal{}, fmt.Errorf("rows error: %w", err)
	}

	settled := decimal.Zero
	remaining := requested
	for _, earning := range earnings {
		// Earnings are consumed whole or not at all. The first one that
		// doesn't fit ends the walk, even if a later smaller one would.
		if earning.ProviderAmount.GreaterThan(remaining) {
			break
		}

		_, err := tx.ExecContext(ctx, `
			UPDATE provider_earnings
			SET is_withdrawn = TRUE, withdrawn_at = NOW()
			WHERE id = $1`, earning.ID)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("mark earning withdrawn: %w", err)
		}

		settled = settled.Add(earning.ProviderAmount)
		remaining = remaining.Sub(earning.ProviderAmount)
		if remaining.IsZero() {
			break
		}
	}

	return settled, nil
}

func ListWithdrawalRequests(ctx context.Context, db *sql.DB, status string, page, pageSize int) (*OffsetPage, error) {
	where := ""
	args := []interface{}{}
	if status != "" {
		args = append(args, status)
		where = "WHERE status = $1"
	}

	var total int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM withdrawal_requests `+where, args...).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count withdrawal requests: %w", err)
	}

	args = append(args, pageSize, (page-1)*pageSize)
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`
		SELECT `+withdrawalColumns+`
		FROM withdrawal_requests
		%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, fmt.Errorf("list withdrawal requests: %w", err)
	}
	defer rows.Close()

	var withdrawals []models.WithdrawalRequest
	for rows.Next() {
		withdrawal, err := scanWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan withdrawal request: %w", err)
		}
		withdrawals = append(withdrawals, *withdrawal)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return &OffsetPage{
		Items:      withdrawals,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages(total, pageSize),
	}, nil
}
