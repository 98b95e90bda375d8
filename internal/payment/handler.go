package payment

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	errors "github.com/jotpay/payment-service/internal"
	"github.com/jotpay/payment-service/internal/transport"
)

type Handler struct {
	*transport.BaseHandler
	initiator *Initiator
	service   *Service
	logger    *slog.Logger
}

func NewHandler(baseHandler *transport.BaseHandler, initiator *Initiator, service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		initiator:   initiator,
		service:     service,
		logger:      logger,
	}
}

// InitiatePayment handles POST /api/v1/payments
func (h *Handler) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	var req InitiatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("InitiatePayment: failed to parse request body", "error", err)
		h.HandleError(w, errors.NewValidationError("invalid request body", errors.ErrCodeValidationFailed))
		return
	}

	transactionID, err := h.initiator.Initiate(r.Context(), &req)
	if err != nil {
		h.HandleError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, InitiatePaymentResponse{
		TransactionID: transactionID,
		Status:        "PENDING",
	})
}

// GetPayment handles GET /api/v1/payments/{transactionID}, the status
// read path used by client polling and manual re-checks.
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	transactionID := chi.URLParam(r, "transactionID")
	if transactionID == "" {
		h.HandleError(w, errors.NewValidationError("transaction id is required", errors.ErrCodeValidationFailed))
		return
	}

	record, err := h.service.GetPayment(transactionID)
	if err != nil {
		h.HandleError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, record)
}

// ListPayments handles GET /api/v1/payments?email=...
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		h.HandleError(w, errors.NewValidationError("email query parameter is required", errors.ErrCodeValidationFailed))
		return
	}

	records, err := h.service.ListPaymentsByEmail(email)
	if err != nil {
		h.HandleError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"email":    email,
		"count":    len(records),
		"payments": records,
	})
}
