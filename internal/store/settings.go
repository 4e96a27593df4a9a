package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
)

// Querier is the subset of *sql.DB and *sql.Tx the read paths go through,
// so lookups can run standalone or inside a caller's transaction.
type Querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

const defaultCommissionRate = 4

// GetSystemSetting returns the string value for key, or "" when unset.
func GetSystemSetting(ctx context.Context, q Querier, key string) (string, error) {
	var value string
	err := q.QueryRowContext(ctx,
		`SELECT value FROM system_settings WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, nil
}

func SetSystemSetting(ctx context.Context, q Querier, key, value string) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO system_settings (key, value, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = NOW()`,
		key, value)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// CommissionRate reads the platform commission percentage from settings,
// falling back to the default when unset or unparseable.
func CommissionRate(ctx context.Context, q Querier) (decimal.Decimal, error) {
	value, err := GetSystemSetting(ctx, q, "commission_rate")
	if err != nil {
		return decimal.Decimal{}, err
	}
	if value == "" {
		return decimal.NewFromInt(defaultCommissionRate), nil
	}

	rate, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.NewFromInt(defaultCommissionRate), nil
	}
	return rate, nil
}
