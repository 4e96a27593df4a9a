package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/marcelolino/servicos-conecte-sub000/internal/core"
	"github.com/marcelolino/servicos-conecte-sub000/internal/models"
)

func CreateServiceCategory(ctx context.Context, db *sql.DB, name string) (*models.ServiceCategory, error) {
	category := &models.ServiceCategory{}

	query := `
		INSERT INTO service_categories (name, active, created_at)
		VALUES ($1, TRUE, NOW())
		RETURNING id, name, active, created_at`

	err := db.QueryRowContext(ctx, query, name).Scan(
		&category.ID,
		&category.Name,
		&category.Active,
		&category.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}

	return category, nil
}

func ListServiceCategories(ctx context.Context, db *sql.DB) ([]models.ServiceCategory, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, active, created_at
		FROM service_categories
		WHERE active
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []models.ServiceCategory
	for rows.Next() {
		var category models.ServiceCategory
		err := rows.Scan(&category.ID, &category.Name, &category.Active, &category.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, category)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return categories, nil
}

func CreateCatalogService(ctx context.Context, db *sql.DB, categoryID int64, name, description string, basePrice decimal.Decimal, chargingType string) (*models.CatalogService, error) {
	if err := validateChargingType(chargingType); err != nil {
		return nil, err
	}

	service := &models.CatalogService{}

	query := `
		INSERT INTO catalog_services (category_id, name, description, base_price, charging_type, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, TRUE, NOW(), NOW())
		RETURNING id, category_id, name, description, base_price, charging_type, active, created_at, updated_at`

	err := db.QueryRowContext(ctx, query, categoryID, name, description, basePrice, chargingType).Scan(
		&service.ID,
		&service.CategoryID,
		&service.Name,
		&service.Description,
		&service.BasePrice,
		&service.ChargingType,
		&service.Active,
		&service.CreatedAt,
		&service.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create catalog service: %w", err)
	}

	return service, nil
}

func GetCatalogService(ctx context.Context, q Querier, id int64) (*models.CatalogService, error) {
	service := &models.CatalogService{}

	query := `
		SELECT id, category_id, name, description, base_price, charging_type, active, created_at, updated_at
		FROM catalog_services
		WHERE id = $1`

	err := q.QueryRowContext(ctx, query, id).Scan(
		&service.ID,
		&service.CategoryID,
		&service.Name,
		&service.Description,
		&service.BasePrice,
		&service.ChargingType,
		&service.Active,
		&service.CreatedAt,
		&service.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, core.NotFound("catalog service")
		}
		return nil, fmt.Errorf("get catalog service: %w", err)
	}

	return service, nil
}

func ListCatalogServices(ctx context.Context, db *sql.DB, page, pageSize int) (*OffsetPage, error) {
	var total int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM catalog_services WHERE active`).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count catalog services: %w", err)
	}

	offset := (page - 1) * pageSize
	rows, err := db.QueryContext(ctx, `
		SELECT id, category_id, name, description, base_price, charging_type, active, created_at, updated_at
		FROM catalog_services
		WHERE active
		ORDER BY name
		LIMIT $1 OFFSET $2`, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list catalog services: %w", err)
	}
	defer rows.Close()

	var services []models.CatalogService
	for rows.Next() {
		var service models.CatalogService
		err := rows.Scan(
			&service.ID,
			&service.CategoryID,
			&service.Name,
			&service.Description,
			&service.BasePrice,
			&service.ChargingType,
			&service.Active,
			&service.CreatedAt,
			&service.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan catalog service: %w", err)
		}
		services = append(services, service)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return &OffsetPage{
		Items:      services,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages(total, pageSize),
	}, nil
}

func CreateProviderService(ctx context.Context, db *sql.DB, providerID int64, catalogServiceID *int64, name, description string, price decimal.Decimal, chargingType string) (*models.ProviderService, error) {
	if err := validateChargingType(chargingType); err != nil {
		return nil, err
	}
	if !price.IsPositive() {
		return nil, core.Invalid("price must be positive, got %s", price)
	}

	service := &models.ProviderService{}

	query := `
		INSERT INTO provider_services (provider_id, catalog_service_id, name, description, price, charging_type, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE, NOW(), NOW())
		RETURNING id, provider_id, catalog_service_id, name, description, price, charging_type, active, created_at, updated_at`

	err := db.QueryRowContext(ctx, query, providerID, catalogServiceID, name, description, price, chargingType).Scan(
		&service.ID,
		&service.ProviderID,
		&service.CatalogServiceID,
		&service.Name,
		&service.Description,
		&service.Price,
		&service.ChargingType,
		&service.Active,
		&service.CreatedAt,
		&service.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create provider service: %w", err)
	}

	return service, nil
}

// GetProviderService resolves a provider's listing, including the owning
// provider id the checkout resolution depends on.
func GetProviderService(ctx context.Context, q Querier, id int64) (*models.ProviderService, error) {
	service := &models.ProviderService{}

	query := `
		SELECT id, provider_id, catalog_service_id, name, description, price, charging_type, active, created_at, updated_at
		FROM provider_services
		WHERE id = $1`

	err := q.QueryRowContext(ctx, query, id).Scan(
		&service.ID,
		&service.ProviderID,
		&service.CatalogServiceID,
		&service.Name,
		&service.Description,
		&service.Price,
		&service.ChargingType,
		&service.Active,
		&service.CreatedAt,
		&service.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, core.NotFound("provider service")
		}
		return nil, fmt.Errorf("get provider service: %w", err)
	}

	return service, nil
}

func ListProviderServices(ctx context.Context, db *sql.DB, providerID int64) ([]models.ProviderService, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, provider_id, catalog_service_id, name, description, price, charging_type, active, created_at, updated_at
		FROM provider_services
		WHERE provider_id = $1 AND active
		ORDER BY name`, providerID)
	if err != nil {
		return nil, fmt.Errorf("list provider services: %w", err)
	}
	defer rows.Close()

	var services []models.ProviderService
	for rows.Next() {
		var service models.ProviderService
		err := rows.Scan(
			&service.ID,
			&service.ProviderID,
			&service.CatalogServiceID,
			&service.Name,
			&service.Description,
			&service.Price,
			&service.ChargingType,
			&service.Active,
			&service.CreatedAt,
			&service.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan provider service: %w", err)
		}
		services = append(services, service)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return services, nil
}

func validateChargingType(chargingType string) error {
	switch chargingType {
	case models.ChargingFixed, models.ChargingHourly, models.ChargingDaily:
		return nil
	default:
		return core.Invalid("invalid charging type %q", chargingType)
	}
}
