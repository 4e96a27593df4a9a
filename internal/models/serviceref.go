package models

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

type RefKind string

const (
	RefProviderService RefKind = "provider_service"
	RefCatalogService  RefKind = "catalog_service"
)

// ServiceRef identifies what an order line sells: either a specific
// provider's own listing or a platform catalog listing. It is stored as two
// nullable columns with a CHECK that exactly one is set; in Go the tagged
// form makes the either/or impossible to get wrong.
type ServiceRef struct {
	Kind RefKind `json:"kind"`
	ID   int64   `json:"id"`
}

func ProviderServiceRef(id int64) ServiceRef {
	return ServiceRef{Kind: RefProviderService, ID: id}
}

func CatalogServiceRef(id int64) ServiceRef {
	return ServiceRef{Kind: RefCatalogService, ID: id}
}

func (r ServiceRef) IsZero() bool { return r.Kind == "" }

func (r ServiceRef) String() string {
	return fmt.Sprintf("%s/%d", r.Kind, r.ID)
}

// Columns splits the ref into the (provider_service_id, catalog_service_id)
// pair the schema stores.
func (r ServiceRef) Columns() (providerServiceID, catalogServiceID sql.NullInt64) {
	switch r.Kind {
	case RefProviderService:
		providerServiceID = sql.NullInt64{Int64: r.ID, Valid: true}
	case RefCatalogService:
		catalogServiceID = sql.NullInt64{Int64: r.ID, Valid: true}
	}
	return
}

// RefFromColumns rebuilds a ServiceRef from the stored column pair and
// rejects rows that violate the exactly-one invariant.
func RefFromColumns(providerServiceID, catalogServiceID sql.NullInt64) (ServiceRef, error) {
	switch {
	case providerServiceID.Valid && catalogServiceID.Valid:
		return ServiceRef{}, fmt.Errorf("order item references both a provider service and a catalog service")
	case providerServiceID.Valid:
		return ProviderServiceRef(providerServiceID.Int64), nil
	case catalogServiceID.Valid:
		return CatalogServiceRef(catalogServiceID.Int64), nil
	default:
		return ServiceRef{}, fmt.Errorf("order item references no service")
	}
}

func (r ServiceRef) MarshalJSON() ([]byte, error) {
	type alias ServiceRef
	return json.Marshal(alias(r))
}

func (r *ServiceRef) UnmarshalJSON(data []byte) error {
	type alias ServiceRef
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	switch a.Kind {
	case RefProviderService, RefCatalogService:
	default:
		return fmt.Errorf("unknown service ref kind %q", a.Kind)
	}
	*r = ServiceRef(a)
	return nil
}
