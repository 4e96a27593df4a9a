package main

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/marcelolino/servicos-conecte-sub000/internal/core"
	"github.com/marcelolino/servicos-conecte-sub000/internal/models"
	"github.com/marcelolino/servicos-conecte-sub000/internal/notify"
	"github.com/marcelolino/servicos-conecte-sub000/internal/store"
)

type server struct {
	db       *sql.DB
	notifier notify.Notifier
	log      zerolog.Logger
}

type actorKey struct{}

// withActor resolves the acting user from the X-User-ID header. Real
// authentication lives in front of this service; the core only needs an
// identified actor with a role.
func (s *server) withActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := strconv.ParseInt(r.Header.Get("X-User-ID"), 10, 64)
		if err != nil {
			s.respondError(w, r, core.PermissionDenied("missing or invalid X-User-ID header"))
			return
		}

		user, err := store.GetUser(r.Context(), s.db, userID)
		if err != nil {
			s.respondError(w, r, err)
			return
		}

		actor := models.Actor{UserID: user.ID, Role: user.Role}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, actor)))
	})
}

func actorFrom(r *http.Request) models.Actor {
	actor, _ := r.Context().Value(actorKey{}).(models.Actor)
	return actor
}

func (s *server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case core.IsNotFound(err):
		status = http.StatusNotFound
	case core.IsPermissionDenied(err):
		status = http.StatusForbidden
	case core.IsValidation(err):
		status = http.StatusUnprocessableEntity
	case core.IsInvalidState(err), core.IsConflict(err):
		status = http.StatusConflict
	default:
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("internal error")
	}

	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": err.Error()})
}

func (s *server) respond(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	render.Status(r, status)
	render.JSON(w, r, data)
}

func urlID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, core.Invalid("invalid id %q", chi.URLParam(r, "id"))
	}
	return id, nil
}

func pageParams(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

func parseMoney(field, value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, nil
	}
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, core.Invalid("%s must be a number, got %q", field, value)
	}
	return amount, nil
}

func parseTime(field, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, core.Invalid("%s must be an RFC3339 timestamp, got %q", field, value)
	}
	return &t, nil
}

// --- users & providers ---

func (s *server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Name  string `json:"name"`
		Role  string `json:"role"`
	}
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		s.respondError(w, r, core.Invalid("invalid request body"))
		return
	}

	user, err := store.CreateUser(r.Context(), s.db, req.Email, req.Name, req.Role)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusCreated, user)
}

func (s *server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	user, err := store.GetUser(r.Context(), s.db, id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, user)
}

func (s *server) handleCreateProvider(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID       int64  `json:"user_id"`
		BusinessName string `json:"business_name"`
	}
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		s.respondError(w, r, core.Invalid("invalid request body"))
		return
	}

	provider, err := store.CreateProvider(r.Context(), s.db, req.UserID, req.BusinessName)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusCreated, provider)
}

func (s *server) handleGetProvider(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	provider, err := store.GetProvider(r.Context(), s.db, id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, provider)
}

func (s *server) handleSetProviderApproval(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		s.respondError(w, r, core.Invalid("invalid request body"))
		return
	}

	provider, err := store.SetProviderApproval(r.Context(), s.db, id, req.Status)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, provider)
}

// --- catalog ---

func (s *server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		s.respondError(w, r, core.Invalid("invalid request body"))
		return
	}

	category, err := store.CreateServiceCategory(r.Context(), s.db, req.Name)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusCreated, category)
}

func (s *server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := store.ListServiceCategories(r.Context(), s.db)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, categories)
}

func (s *server) handleCreateCatalogService(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CategoryID   int64  `json:"category_id"`
		Name         string `json:"name"`
		Description  string `json:"description"`
		BasePrice    string `json:"base_price"`
		ChargingType string `json:"charging_type"`
	}
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		s.respondError(w, r, core.Invalid("invalid request body"))
		return
	}

	basePrice, err := parseMoney("base_price", req.BasePrice)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	service, err := store.CreateCatalogService(r.Context(), s.db, req.CategoryID, req.Name, req.Description, basePrice, req.ChargingType)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusCreated, service)
}

func (s *server) handleListCatalogServices(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)
	result, err := store.ListCatalogServices(r.Context(), s.db, page, pageSize)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, result)
}

func (s *server) handleGetCatalogService(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	service, err := store.GetCatalogService(r.Context(), s.db, id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, service)
}

func (s *server) handleCreateProviderService(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProviderID       int64  `json:"provider_id"`
		CatalogServiceID *int64 `json:"catalog_service_id"`
		Name             string `json:"name"`
		Description      string `json:"description"`
		Price            string `json:"price"`
		ChargingType     string `json:"charging_type"`
	}
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		s.respondError(w, r, core.Invalid("invalid request body"))
		return
	}

	price, err := parseMoney("price", req.Price)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	service, err := store.CreateProviderService(r.Context(), s.db, req.ProviderID, req.CatalogServiceID, req.Name, req.Description, price, req.ChargingType)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusCreated, service)
}

func (s *server) handleListProviderServices(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	services, err := store.ListProviderServices(r.Context(), s.db, id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, services)
}

// --- cart ---

type cartItemRequest struct {
	ProviderServiceID *int64 `json:"provider_service_id"`
	CatalogServiceID  *int64 `json:"catalog_service_id"`
	Quantity          int    `json:"quantity"`
	Notes             string `json:"notes"`
}

func (req cartItemRequest) ref() (models.ServiceRef, error) {
	switch {
	case req.ProviderServiceID != nil && req.CatalogServiceID != nil:
		return models.ServiceRef{}, core.Invalid("item cannot reference both a provider service and a catalog service")
	case req.ProviderServiceID != nil:
		return models.ProviderServiceRef(*req.ProviderServiceID), nil
	case req.CatalogServiceID != nil:
		return models.CatalogServiceRef(*req.CatalogServiceID), nil
	default:
		return models.ServiceRef{}, core.Invalid("item must reference a provider service or a catalog service")
	}
}

func (s *server) handleGetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := store.GetOrCreateCart(r.Context(), s.db, actorFrom(r).UserID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, cart)
}

func (s *server) handleAddCartItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		s.respondError(w, r, core.Invalid("invalid request body"))
		return
	}

	ref, err := req.ref()
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	cart, err := store.AddCartItem(r.Context(), s.db, actorFrom(r).UserID, store.AddItemInput{
		Ref:      ref,
		Quantity: req.Quantity,
		Notes:    req.Notes,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, cart)
}

func (s *server) handleUpdateCartItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := urlID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var req struct {
		Quantity  *int    `json:"quantity"`
		UnitPrice *string `json:"unit_price"`
		Notes     *string `json:"notes"`
	}
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		s.respondError(w, r, core.Invalid("invalid request body"))
		return
	}

	clientID := actorFrom(r).UserID

	// Zero or negative quantity means the line goes away.
	if req.Quantity != nil && *req.Quantity <= 0 {
		cart, err := store.RemoveCartItem(r.Context(), s.db, clientID, itemID)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		s.respond(w, r, http.StatusOK, cart)
		return
	}

	input := store.UpdateItemInput{Quantity: req.Quantity, Notes: req.Notes}
	if req.UnitPrice != nil {
		price, err := parseMoney("unit_price", *req.UnitPrice)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		input.UnitPrice = &price
	}

	cart, err := store.UpdateCartItem(r.Context(), s.db, clientID, itemID, input)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, cart)
}

func (s *server) handleRemoveCartItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := urlID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	cart, err := store.RemoveCartItem(r.Context(), s.db, actorFrom(r).UserID, itemID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, cart)
}

func (s *server) handleClearCart(w http.ResponseWriter, r *http.Request) {
	if err := store.ClearCart(r.Context(), s.db, actorFrom(r).UserID); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusNoContent, nil)
}

// --- checkout & orders ---

type checkoutRequest struct {
	PaymentMethod  string `json:"payment_method"`
	CouponCode     string `json:"coupon_code"`
	DiscountAmount string `json:"discount_amount"`
	Street         string `json:"street"`
	City           string `json:"city"`
	PostalCode     string `json:"postal_code"`
	ScheduledAt    string `json:"scheduled_at"`
	Notes          string `json:"notes"`
}

func (req checkoutRequest) checkoutData() (store.CheckoutData, error) {
	discount, err := parseMoney("discount_amount", req.DiscountAmount)
	if err != nil {
		return store.CheckoutData{}, err
	}
	scheduledAt, err := parseTime("scheduled_at", req.ScheduledAt)
	if err != nil {
		return store.CheckoutData{}, err
	}
	return store.CheckoutData{
		PaymentMethod:  req.PaymentMethod,
		CouponCode:     req.CouponCode,
		DiscountAmount: discount,
		Street:         req.Street,
		City:           req.City,
		PostalCode:     req.PostalCode,
		ScheduledAt:    scheduledAt,
		Notes:          req.Notes,
	}, nil
}

func (s *server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		s.respondError(w, r, core.Invalid("invalid request body"))
		return
	}

	data, err := req.checkoutData()
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	order, err := store.ConvertCartToOrder(r.Context(), s.db, actorFrom(r).UserID, data)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.notifyOrder(r.Context(), notify.EventOrderPlaced, order)
	s.respond(w, r, http.StatusCreated, order)
}

func (s *server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		checkoutRequest
		Items []struct {
			cartItemRequest
			UnitPrice string `json:"unit_price"`
		} `json:"items"`
	}
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		s.respondError(w, r, core.Invalid("invalid request body"))
		return
	}

	data, err := req.checkoutData()
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	items := make([]store.OrderItemData, 0, len(req.Items))
	for _, item := range req.Items {
		ref, err := item.ref()
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		unitPrice, err := parseMoney("unit_price", item.UnitPrice)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		items = append(items, store.OrderItemData{
			Ref:       ref,
			Quantity:  item.Quantity,
			UnitPrice: unitPrice,
			Notes:     item.Notes,
		})
	}

	order, err := store.CreateOrderFromData(r.Context(), s.db, store.OrderData{
		ClientID:       actorFrom(r).UserID,
		PaymentMethod:  data.PaymentMethod,
		CouponCode:     data.CouponCode,
		DiscountAmount: data.DiscountAmount,
		Street:         data.Street,
		City:           data.City,
		PostalCode:     data.PostalCode,
		ScheduledAt:    data.ScheduledAt,
		Notes:          data.Notes,
	}, items)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.notifyOrder(r.Context(), notify.EventOrderPlaced, order)
	s.respond(w, r, http.StatusCreated, order)
}

func (s *server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}
	result, err := store.ListClientOrders(r.Context(), s.db, actorFrom(r).UserID, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, result)
}

func (s *server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	order, err := store.GetOrderWithItems(r.Context(), s.db, id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, order)
}

func (s *server) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		s.respondError(w, r, core.Invalid("invalid request body"))
		return
	}

	order, err := store.UpdateOrderStatus(r.Context(), s.db, actorFrom(r), id, req.Status)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.notifyOrder(r.Context(), notify.EventOrderStatusChanged, order)
	s.respond(w, r, http.StatusOK, order)
}

// --- service requests ---

func (s *server) handleCreateServiceRequest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CategoryID    int64  `json:"category_id"`
		Title         string `json:"title"`
		Description   string `json:"description"`
		TotalAmount   string `json:"total_amount"`
		PaymentMethod string `json:"payment_method"`
		Street        string `json:"street"`
		City          string `json:"city"`
		ScheduledAt   string `json:"scheduled_at"`
	}
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		s.respondError(w, r, core.Invalid("invalid request body"))
		return
	}

	totalAmount, err := parseMoney("total_amount", req.TotalAmount)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	scheduledAt, err := parseTime("scheduled_at", req.ScheduledAt)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	request, err := store.CreateServiceRequest(r.Context(), s.db, actorFrom(r).UserID, store.ServiceRequestInput{
		CategoryID:    req.CategoryID,
		Title:         req.Title,
		Description:   req.Description,
		TotalAmount:   totalAmount,
		PaymentMethod: req.PaymentMethod,
		Street:        req.Street,
		City:          req.City,
		ScheduledAt:   scheduledAt,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusCreated, request)
}

func (s *server) handleListServiceRequests(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)

	filter := store.ServiceRequestFilter{
		Status:         r.URL.Query().Get("status"),
		OnlyUnassigned: r.URL.Query().Get("unassigned") == "true",
	}
	if v := r.URL.Query().Get("client_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			s.respondError(w, r, core.Invalid("invalid client_id %q", v))
			return
		}
		filter.ClientID = &id
	}
	if v := r.URL.Query().Get("provider_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			s.respondError(w, r, core.Invalid("invalid provider_id %q", v))
			return
		}
		filter.ProviderID = &id
	}

	result, err := store.ListServiceRequests(r.Context(), s.db, filter, page, pageSize)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, result)
}

func (s *server) handleGetServiceRequest(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	request, err := store.GetServiceRequest(r.Context(), s.db, id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, request)
}

func (s *server) handleUpdateServiceRequestStatus(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		s.respondError(w, r, core.Invalid("invalid request body"))
		return
	}

	request, err := store.UpdateServiceRequestStatus(r.Context(), s.db, actorFrom(r), id, req.Status)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	event := notify.Event{
		Type:             notify.EventRequestStatusChanged,
		ServiceRequestID: request.ID,
		ClientID:         request.ClientID,
		Status:           request.Status,
		Amount:           request.TotalAmount.String(),
	}
	if request.ProviderID != nil {
		event.ProviderID = *request.ProviderID
	}
	s.notifier.Notify(r.Context(), event)

	s.respond(w, r, http.StatusOK, request)
}

func (s *server) handleUpdateServiceRequest(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var edit store.ServiceRequestEdit
	if err := render.DecodeJSON(r.Body, &edit); err != nil {
		s.respondError(w, r, core.Invalid("invalid request body"))
		return
	}

	request, err := store.UpdateServiceRequest(r.Context(), s.db, actorFrom(r), id, edit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, request)
}

// --- earnings & withdrawals ---

func (s *server) handleListEarnings(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	page, pageSize := pageParams(r)
	result, err := store.ListProviderEarnings(r.Context(), s.db, id, page, pageSize)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, result)
}

func (s *server) handleEarningsSummary(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	summary, err := store.GetEarningsSummary(r.Context(), s.db, id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, summary)
}

func (s *server) handleCreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProviderID int64  `json:"provider_id"`
		Amount     string `json:"amount"`
	}
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		s.respondError(w, r, core.Invalid("invalid request body"))
		return
	}

	amount, err := parseMoney("amount", req.Amount)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	withdrawal, err := store.CreateWithdrawalRequest(r.Context(), s.db, req.ProviderID, amount)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusCreated, withdrawal)
}

func (s *server) handleListWithdrawals(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)
	result, err := store.ListWithdrawalRequests(r.Context(), s.db, r.URL.Query().Get("status"), page, pageSize)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, result)
}

func (s *server) handleProcessWithdrawal(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	if !actor.IsAdmin() {
		s.respondError(w, r, core.PermissionDenied("only an administrator can process withdrawals"))
		return
	}

	id, err := urlID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var req struct {
		Status string `json:"status"`
		Notes  string `json:"notes"`
	}
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		s.respondError(w, r, core.Invalid("invalid request body"))
		return
	}

	withdrawal, settled, err := store.ProcessWithdrawalRequest(r.Context(), s.db, id, req.Status, actor.UserID, req.Notes)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.notifier.Notify(r.Context(), notify.Event{
		Type:         notify.EventWithdrawalProcessed,
		WithdrawalID: withdrawal.ID,
		ProviderID:   withdrawal.ProviderID,
		Status:       withdrawal.Status,
		Amount:       settled.String(),
	})

	s.respond(w, r, http.StatusOK, map[string]interface{}{
		"withdrawal":     withdrawal,
		"settled_amount": settled,
	})
}

func (s *server) notifyOrder(ctx context.Context, eventType string, order *models.Order) {
	event := notify.Event{
		Type:     eventType,
		OrderID:  order.ID,
		ClientID: order.ClientID,
		Status:   order.Status,
		Amount:   order.TotalAmount.String(),
	}
	if order.ProviderID != nil {
		event.ProviderID = *order.ProviderID
	}
	s.notifier.Notify(ctx, event)
}
