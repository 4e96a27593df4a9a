package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	RoleClient   = "client"
	RoleProvider = "provider"
	RoleAdmin    = "admin"
)

// Actor is the already-authenticated caller of a store operation. The HTTP
// layer resolves it; the store only checks ownership and role.
type Actor struct {
	UserID int64
	Role   string
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

type Provider struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"user_id"`
	BusinessName   string    `json:"business_name"`
	ApprovalStatus string    `json:"approval_status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

const (
	ApprovalPending   = "pending"
	ApprovalApproved  = "approved"
	ApprovalRejected  = "rejected"
	ApprovalSuspended = "suspended"
)

type ServiceCategory struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	ChargingFixed  = "fixed"
	ChargingHourly = "hourly"
	ChargingDaily  = "daily"
)

// CatalogService is a platform-curated listing any approved provider can be
// matched against; it carries no provider of its own.
type CatalogService struct {
	ID           int64           `json:"id"`
	CategoryID   int64           `json:"category_id"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	BasePrice    decimal.Decimal `json:"base_price"`
	ChargingType string          `json:"charging_type"`
	Active       bool            `json:"active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// ProviderService is a specific provider's own listing and price.
type ProviderService struct {
	ID               int64           `json:"id"`
	ProviderID       int64           `json:"provider_id"`
	CatalogServiceID *int64          `json:"catalog_service_id,omitempty"`
	Name             string          `json:"name"`
	Description      string          `json:"description,omitempty"`
	Price            decimal.Decimal `json:"price"`
	ChargingType     string          `json:"charging_type"`
	Active           bool            `json:"active"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

type Order struct {
	ID             int64           `json:"id"`
	ClientID       int64           `json:"client_id"`
	ProviderID     *int64          `json:"provider_id,omitempty"`
	Status         string          `json:"status"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	ServiceAmount  decimal.Decimal `json:"service_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	CouponCode     string          `json:"coupon_code,omitempty"`
	PaymentMethod  string          `json:"payment_method,omitempty"`
	Street         string          `json:"street,omitempty"`
	City           string          `json:"city,omitempty"`
	PostalCode     string          `json:"postal_code,omitempty"`
	ScheduledAt    *time.Time      `json:"scheduled_at,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Items          []OrderItem     `json:"items,omitempty"`
}

type OrderItem struct {
	ID           int64           `json:"id"`
	OrderID      int64           `json:"order_id"`
	Ref          ServiceRef      `json:"ref"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	TotalPrice   decimal.Decimal `json:"total_price"`
	ChargingType string          `json:"charging_type"`
	Notes        string          `json:"notes,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ServiceRequest is the open-market booking entity: a client posts a need
// and any qualified provider may claim it. It shares the order status
// vocabulary and the earnings trigger.
type ServiceRequest struct {
	ID            int64           `json:"id"`
	ClientID      int64           `json:"client_id"`
	ProviderID    *int64          `json:"provider_id,omitempty"`
	CategoryID    int64           `json:"category_id"`
	Title         string          `json:"title"`
	Description   string          `json:"description,omitempty"`
	Status        string          `json:"status"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	Street        string          `json:"street,omitempty"`
	City          string          `json:"city,omitempty"`
	ScheduledAt   *time.Time      `json:"scheduled_at,omitempty"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type ProviderEarning struct {
	ID               int64           `json:"id"`
	ProviderID       int64           `json:"provider_id"`
	ServiceRequestID int64           `json:"service_request_id"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	CommissionRate   decimal.Decimal `json:"commission_rate"`
	CommissionAmount decimal.Decimal `json:"commission_amount"`
	ProviderAmount   decimal.Decimal `json:"provider_amount"`
	IsWithdrawn      bool            `json:"is_withdrawn"`
	WithdrawnAt      *time.Time      `json:"withdrawn_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

type WithdrawalRequest struct {
	ID          int64           `json:"id"`
	ProviderID  int64           `json:"provider_id"`
	Amount      decimal.Decimal `json:"amount"`
	Status      string          `json:"status"`
	ProcessedBy *int64          `json:"processed_by,omitempty"`
	ProcessedAt *time.Time      `json:"processed_at,omitempty"`
	AdminNotes  string          `json:"admin_notes,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

const (
	WithdrawalPending  = "pending"
	WithdrawalApproved = "approved"
	WithdrawalRejected = "rejected"
)
