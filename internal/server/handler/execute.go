package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/PatrionDigital/tradewire/internal/domain"
	"github.com/PatrionDigital/tradewire/internal/normalizer"
)

// ExecutionService is the slice of the router the order endpoints need.
type ExecutionService interface {
	Execute(ctx context.Context, req domain.ExecutionRequest) domain.ExecutionResult
	Cancel(ctx context.Context, venue domain.Venue, orderID string) (bool, error)
	ExecutionStatus(ctx context.Context, executionID string) *domain.ExecutionResult
	IsPlatformAvailable(ctx context.Context, venue domain.Venue) bool
}

// ExecuteHandler serves order submission, cancellation, execution status and
// platform availability. Orders are normalized against the venue's constraint
// profile before they reach the router.
type ExecuteHandler struct {
	svc      ExecutionService
	profiles map[domain.Venue]domain.VenueProfile
	limits   domain.GlobalLimits
	logger   *slog.Logger
}

// NewExecuteHandler wires the handler.
func NewExecuteHandler(
	svc ExecutionService,
	profiles map[domain.Venue]domain.VenueProfile,
	limits domain.GlobalLimits,
	logger *slog.Logger,
) *ExecuteHandler {
	return &ExecuteHandler{
		svc:      svc,
		profiles: profiles,
		limits:   limits,
		logger:   logger.With(slog.String("component", "execute_handler")),
	}
}

// executeResponse wraps the execution result with what normalization did to
// the order on the way in.
type executeResponse struct {
	Result      domain.ExecutionResult  `json:"result"`
	Warnings    []string                `json:"warnings,omitempty"`
	Adjustments []normalizer.Adjustment `json:"adjustments,omitempty"`
	Fees        *normalizer.FeeEstimate `json:"fees,omitempty"`
}

// rejectedResponse reports an order the normalizer refused to canonicalize.
type rejectedResponse struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings,omitempty"`
}

// Execute handles POST /api/orders/execute.
func (h *ExecuteHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req domain.ExecutionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	var norm normalizer.Result
	if profile, ok := h.profiles[req.Venue]; ok {
		norm = normalizer.Normalize(req.Order, profile, h.limits)
		if len(norm.Errors) > 0 {
			writeJSON(w, http.StatusUnprocessableEntity, rejectedResponse{
				Errors:   norm.Errors,
				Warnings: norm.Warnings,
			})
			return
		}
		req.Order = *norm.Order
	}

	result := h.svc.Execute(r.Context(), req)

	writeJSON(w, statusForResult(result), executeResponse{
		Result:      result,
		Warnings:    norm.Warnings,
		Adjustments: norm.Adjustments,
		Fees:        norm.Fees,
	})
}

// Cancel handles DELETE /api/orders/{venue}/{id}.
func (h *ExecuteHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	venue := domain.Venue(r.PathValue("venue"))
	orderID := r.PathValue("id")

	cancelled, err := h.svc.Cancel(r.Context(), venue, orderID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUnknownVenue):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, domain.ErrAdapterNotResolved):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			writeError(w, http.StatusBadGateway, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"cancelled": cancelled,
		"order_id":  orderID,
		"venue":     venue,
	})
}

// Status handles GET /api/executions/{id}.
func (h *ExecuteHandler) Status(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	result := h.svc.ExecutionStatus(r.Context(), id)
	if result == nil {
		writeError(w, http.StatusNotFound, "execution not found")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Available handles GET /api/platforms/{venue}/available.
func (h *ExecuteHandler) Available(w http.ResponseWriter, r *http.Request) {
	venue := domain.Venue(r.PathValue("venue"))
	writeJSON(w, http.StatusOK, map[string]any{
		"venue":     venue,
		"available": h.svc.IsPlatformAvailable(r.Context(), venue),
	})
}

// statusForResult maps an execution outcome onto an HTTP status. Venue-side
// rejections are 422: the request was well formed, the venue said no.
func statusForResult(result domain.ExecutionResult) int {
	if result.Success {
		return http.StatusOK
	}
	switch result.ErrorCode {
	case domain.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case domain.ErrCodePlatformUnavailable:
		return http.StatusServiceUnavailable
	case domain.ErrCodeAuthFailed:
		return http.StatusBadGateway
	case domain.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case domain.ErrCodeInsufficientBalance, domain.ErrCodeMarketNotFound,
		domain.ErrCodePriceMoved, domain.ErrCodeOrderRejected:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}
