package main

import (
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/marcelolino/servicos-conecte-sub000/internal/config"
	"github.com/marcelolino/servicos-conecte-sub000/internal/database"
	"github.com/marcelolino/servicos-conecte-sub000/internal/notify"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("connect to database")
	}
	defer db.Close()

	log.Info().Msg("connected to database")

	var notifier notify.Notifier = notify.NopNotifier{}
	if cfg.Kafka.Enabled {
		kafkaNotifier := notify.NewKafkaNotifier(cfg.Kafka, log)
		defer kafkaNotifier.Close()
		notifier = kafkaNotifier
	}

	s := &server{
		db:       db,
		notifier: notifier,
		log:      log,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/users", s.handleCreateUser)
	r.Get("/users/{id}", s.handleGetUser)

	r.Post("/providers", s.handleCreateProvider)
	r.Get("/providers/{id}", s.handleGetProvider)
	r.Put("/providers/{id}/approval", s.handleSetProviderApproval)
	r.Get("/providers/{id}/services", s.handleListProviderServices)
	r.Get("/providers/{id}/earnings", s.handleListEarnings)
	r.Get("/providers/{id}/balance", s.handleEarningsSummary)

	r.Post("/categories", s.handleCreateCategory)
	r.Get("/categories", s.handleListCategories)
	r.Post("/catalog-services", s.handleCreateCatalogService)
	r.Get("/catalog-services", s.handleListCatalogServices)
	r.Get("/catalog-services/{id}", s.handleGetCatalogService)
	r.Post("/provider-services", s.handleCreateProviderService)

	r.Group(func(r chi.Router) {
		r.Use(s.withActor)

		r.Get("/cart", s.handleGetCart)
		r.Post("/cart/items", s.handleAddCartItem)
		r.Patch("/cart/items/{id}", s.handleUpdateCartItem)
		r.Delete("/cart/items/{id}", s.handleRemoveCartItem)
		r.Delete("/cart", s.handleClearCart)
		r.Post("/cart/checkout", s.handleCheckout)

		r.Post("/orders", s.handleCreateOrder)
		r.Get("/orders", s.handleListOrders)
		r.Get("/orders/{id}", s.handleGetOrder)
		r.Put("/orders/{id}/status", s.handleUpdateOrderStatus)

		r.Post("/service-requests", s.handleCreateServiceRequest)
		r.Get("/service-requests", s.handleListServiceRequests)
		r.Get("/service-requests/{id}", s.handleGetServiceRequest)
		r.Put("/service-requests/{id}/status", s.handleUpdateServiceRequestStatus)
		r.Patch("/service-requests/{id}", s.handleUpdateServiceRequest)

		r.Post("/withdrawals", s.handleCreateWithdrawal)
		r.Get("/withdrawals", s.handleListWithdrawals)
		r.Post("/withdrawals/{id}/process", s.handleProcessWithdrawal)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	log.Info().Str("port", cfg.Server.Port).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}
