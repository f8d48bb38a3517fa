package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"archie-core-marketplace-layer/internal/application"
	"archie-core-marketplace-layer/internal/application/operations"
	"archie-core-marketplace-layer/internal/domain"
	"archie-core-marketplace-layer/internal/ports"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/rs/zerolog"
)

// Handler serves the marketplace integration endpoints
type Handler struct {
	svc    Services
	logger zerolog.Logger
}

type errorResponse struct {
	Error          string           `json:"error"`
	Code           int              `json:"code"`
	Message        string           `json:"message,omitempty"`
	ErrorType      domain.ErrorKind `json:"error_type,omitempty"`
	Recommendation string           `json:"recommendation,omitempty"`
}

type response struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
	Meta    any  `json:"meta,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	render.Status(r, status)
	render.JSON(w, r, errorResponse{Error: code, Code: status, Message: message})
}

// writeFailure maps a marketplace failure to an HTTP response.
// Caller mistakes are 400s, upstream problems are 502s except rate limiting.
func writeFailure(w http.ResponseWriter, r *http.Request, e *domain.Error) {
	status := http.StatusBadGateway
	switch e.Kind {
	case domain.ErrConfiguration, domain.ErrValidation:
		status = http.StatusBadRequest
	case domain.ErrRateLimitExceeded:
		status = http.StatusTooManyRequests
	}
	render.Status(r, status)
	render.JSON(w, r, errorResponse{
		Error:          "marketplace_error",
		Code:           status,
		Message:        e.Message,
		ErrorType:      e.Kind,
		Recommendation: e.Recommendation,
	})
}

func writeData(w http.ResponseWriter, r *http.Request, data, meta any) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, response{Success: true, Data: data, Meta: meta})
}

// adapterFor resolves the account in the URL and builds its adapter. It writes the error response itself.
func (h *Handler) adapterFor(w http.ResponseWriter, r *http.Request) (ports.Adapter, bool) {
	id := chi.URLParam(r, "id")
	account, err := h.svc.Accounts.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error().Err(err).Str("accountId", id).Msg("Failed to load account")
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to load account")
		return nil, false
	}
	if account == nil {
		writeError(w, r, http.StatusNotFound, "not_found", "account not found")
		return nil, false
	}
	adapter, err := h.svc.Adapters.ForAccount(account)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "configuration_error", err.Error())
		return nil, false
	}
	return adapter, true
}

func pagination(r *http.Request) *operations.Pagination {
	size, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	return operations.NewPagination(size, r.URL.Query().Get("cursor"))
}

// Marketplaces

func (h *Handler) ListMarketplaces(w http.ResponseWriter, r *http.Request) {
	writeData(w, r, application.CapabilityMatrix(), nil)
}

func (h *Handler) GetRequirements(w http.ResponseWriter, r *http.Request) {
	req, err := application.RequiredCredentials(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, r, http.StatusNotFound, "not_found", err.Error())
		return
	}
	writeData(w, r, req, nil)
}

// Accounts

func (h *Handler) TestConnection(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.Connections.Test(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, application.ErrAccountNotFound) {
		writeError(w, r, http.StatusNotFound, "not_found", err.Error())
		return
	}
	var cfgErr *domain.ConfigurationError
	if errors.As(err, &cfgErr) {
		writeError(w, r, http.StatusBadRequest, "configuration_error", err.Error())
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("Connection test failed")
		writeError(w, r, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	writeData(w, r, result, nil)
}

func (h *Handler) CredentialStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.svc.Credentials.Status(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, application.ErrAccountNotFound) {
		writeError(w, r, http.StatusNotFound, "not_found", err.Error())
		return
	}
	var cfgErr *domain.ConfigurationError
	if errors.As(err, &cfgErr) {
		writeError(w, r, http.StatusBadRequest, "configuration_error", err.Error())
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to resolve credentials")
		writeError(w, r, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	writeData(w, r, status, nil)
}

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	adapter, ok := h.adapterFor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	p := pagination(r)
	res := operations.NewProductRepository(adapter).List(r.Context(), operations.ProductFilter{
		Category:  q.Get("category"),
		Status:    q.Get("status"),
		Vendor:    q.Get("vendor"),
		SKUPrefix: q.Get("sku_prefix"),
	}, p)
	if !res.Ok() {
		writeFailure(w, r, res.Err)
		return
	}
	writeData(w, r, res.Data, p)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	adapter, ok := h.adapterFor(w, r)
	if !ok {
		return
	}
	p := pagination(r)
	res := operations.NewOrderRepository(adapter).ByStatus(r.Context(), r.URL.Query().Get("status"), p)
	if !res.Ok() {
		writeFailure(w, r, res.Err)
		return
	}
	writeData(w, r, res.Data, p)
}

func (h *Handler) LowStock(w http.ResponseWriter, r *http.Request) {
	adapter, ok := h.adapterFor(w, r)
	if !ok {
		return
	}
	threshold := 5
	if v := r.URL.Query().Get("threshold"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, r, http.StatusBadRequest, "bad_request", "threshold must be a non-negative integer")
			return
		}
		threshold = n
	}
	p := pagination(r)
	res := operations.NewInventoryRepository(adapter).LowStock(r.Context(), threshold, p)
	if !res.Ok() {
		writeFailure(w, r, res.Err)
		return
	}
	writeData(w, r, res.Data, p)
}

type bulkOptions struct {
	BatchSize int  `json:"batch_size"`
	DryRun    bool `json:"dry_run"`
}

func (h *Handler) BulkCreateProducts(w http.ResponseWriter, r *http.Request) {
	var body struct {
		bulkOptions
		Products []domain.Product `json:"products"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	adapter, ok := h.adapterFor(w, r)
	if !ok {
		return
	}
	result := operations.NewProductOperation(adapter).
		WithBatchSize(body.BatchSize).
		WithDryRun(body.DryRun).
		Create(r.Context(), body.Products)
	writeData(w, r, result, nil)
}

func (h *Handler) SyncInventory(w http.ResponseWriter, r *http.Request) {
	var body struct {
		bulkOptions
		Updates []domain.InventoryUpdate `json:"updates"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	adapter, ok := h.adapterFor(w, r)
	if !ok {
		return
	}
	result := operations.NewInventoryOperation(adapter).
		WithBatchSize(body.BatchSize).
		WithDryRun(body.DryRun).
		Sync(r.Context(), body.Updates)
	writeData(w, r, result, nil)
}

// Discovery

func (h *Handler) RunDiscovery(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.Discovery.DiscoverAllChannels(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Discovery run failed")
		writeError(w, r, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	writeData(w, r, summary, nil)
}

func (h *Handler) DiscoverAccount(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.Discovery.DiscoverAccount(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, application.ErrAccountNotFound) {
		writeError(w, r, http.StatusNotFound, "not_found", err.Error())
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("Account discovery failed")
		writeError(w, r, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	writeData(w, r, result, nil)
}

func (h *Handler) SyncOutdated(w http.ResponseWriter, r *http.Request) {
	staleAfter := application.DefaultStaleAfter
	if v := r.URL.Query().Get("days"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days < 1 {
			writeError(w, r, http.StatusBadRequest, "bad_request", "days must be a positive integer")
			return
		}
		staleAfter = time.Duration(days) * 24 * time.Hour
	}
	summary, err := h.svc.Discovery.SyncOutdated(r.Context(), staleAfter)
	if err != nil {
		h.logger.Error().Err(err).Msg("Outdated sync failed")
		writeError(w, r, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	writeData(w, r, summary, nil)
}

func (h *Handler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Discovery.GetDiscoveryStatistics(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to compute discovery statistics")
		writeError(w, r, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	writeData(w, r, stats, nil)
}

func (h *Handler) HealthOverview(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Health.Overview(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to compute health report")
		writeError(w, r, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	writeData(w, r, report, nil)
}
