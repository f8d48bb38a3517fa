package api

import (
	"encoding/json"
	"net/http"

	"archie-core-marketplace-layer/internal/application"
	"archie-core-marketplace-layer/internal/ports"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"
)

const defaultSwaggerFile = "./docs/swagger.json"

// Services are the application services the HTTP API exposes
type Services struct {
	Accounts    ports.AccountRepository
	Adapters    ports.AdapterFactory
	Connections *application.ConnectionService
	Credentials *application.CredentialsService
	Discovery   *application.DiscoveryService
	Health      *application.HealthService

	// SwaggerFile is the OpenAPI document served at /swagger/doc.json
	SwaggerFile string
}

// NewRouter builds the HTTP API router
func NewRouter(svc Services, logger zerolog.Logger) http.Handler {
	h := &Handler{svc: svc, logger: logger.With().Str("component", "api").Logger()}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	swaggerFile := svc.SwaggerFile
	if swaggerFile == "" {
		swaggerFile = defaultSwaggerFile
	}
	r.Get("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		http.ServeFile(w, r, swaggerFile)
	})
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/marketplaces", h.ListMarketplaces)
		r.Get("/marketplaces/{name}/requirements", h.GetRequirements)

		r.Route("/accounts/{id}", func(r chi.Router) {
			r.Get("/credentials", h.CredentialStatus)
			r.Post("/test", h.TestConnection)
			r.Get("/products", h.ListProducts)
			r.Post("/products/bulk", h.BulkCreateProducts)
			r.Get("/orders", h.ListOrders)
			r.Get("/inventory/low-stock", h.LowStock)
			r.Post("/inventory/sync", h.SyncInventory)
		})

		r.Route("/discovery", func(r chi.Router) {
			r.Post("/run", h.RunDiscovery)
			r.Post("/accounts/{id}", h.DiscoverAccount)
			r.Post("/sync-outdated", h.SyncOutdated)
			r.Get("/statistics", h.Statistics)
			r.Get("/health", h.HealthOverview)
		})
	})

	return r
}
