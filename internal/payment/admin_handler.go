package payment

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/shopspring/decimal"

	errors "github.com/jotpay/payment-service/internal"
	"github.com/jotpay/payment-service/internal/core/datamodel/payment"
	"github.com/jotpay/payment-service/internal/transport"
)

// BalanceReader reads the collection wallet's balance from the
// processor. Nil is allowed; the balance endpoint then returns 404.
type BalanceReader interface {
	WalletBalance(ctx context.Context, walletID string) (decimal.Decimal, error)
}

type AdminHandler struct {
	*transport.BaseHandler
	service  *Service
	balances BalanceReader
	walletID string
	logger   *slog.Logger
}

func NewAdminHandler(baseHandler *transport.BaseHandler, service *Service, balances BalanceReader, walletID string, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		BaseHandler: baseHandler,
		service:     service,
		balances:    balances,
		walletID:    walletID,
		logger:      logger,
	}
}

type AdminStatusResponse struct {
	Success       bool           `json:"success"`
	TransactionID string         `json:"transaction_id"`
	NewStatus     payment.Status `json:"new_status"`
}

// UpdateStatus handles POST /api/v1/admin/payments/{transactionID}/status.
// The override bypasses the terminal lock but is serialized through the
// same per-transaction lock as every other writer.
func (h *AdminHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	adminID := errors.AdminFromContext(r.Context())
	if adminID == "" {
		h.HandleError(w, errors.ErrNotAdmin)
		return
	}

	transactionID := chi.URLParam(r, "transactionID")
	if transactionID == "" {
		h.HandleError(w, errors.NewValidationError("transaction id is required", errors.ErrCodeValidationFailed))
		return
	}

	var req AdminStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("invalid admin status payload", "error", err)
		h.HandleError(w, errors.NewValidationError("invalid request body", errors.ErrCodeValidationFailed))
		return
	}

	if err := req.Validate(); err != nil {
		h.HandleError(w, err)
		return
	}

	h.logger.Info("admin status override requested",
		"transaction_id", transactionID,
		"new_status", req.Status,
		"admin", adminID)

	statusMessage := req.StatusMessage
	if statusMessage == "" {
		statusMessage = "Status set manually by " + adminID
	}

	result, err := h.service.ApplyStatus(r.Context(), ApplyStatusParams{
		TransactionID: transactionID,
		RawStatus:     req.Status,
		StatusMessage: statusMessage,
		Writer:        payment.WriterAdmin,
		AdminOverride: true,
		OverrideBy:    adminID,
	})
	if err != nil {
		h.HandleError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, AdminStatusResponse{
		Success:       true,
		TransactionID: transactionID,
		NewStatus:     result.FinalStatus,
	})
}

type WalletBalanceResponse struct {
	WalletID         string          `json:"wallet_id"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
}

// WalletBalance handles GET /api/v1/admin/wallet/balance. It reads the
// collection wallet's available balance straight from the processor.
func (h *AdminHandler) WalletBalance(w http.ResponseWriter, r *http.Request) {
	adminID := errors.AdminFromContext(r.Context())
	if adminID == "" {
		h.HandleError(w, errors.ErrNotAdmin)
		return
	}

	if h.balances == nil || h.walletID == "" {
		h.HandleError(w, errors.NewNotFoundError("wallet balance is not configured", errors.ErrCodePaymentNotFound))
		return
	}

	balance, err := h.balances.WalletBalance(r.Context(), h.walletID)
	if err != nil {
		h.logger.Error("wallet balance read failed", "error", err, "wallet_id", h.walletID)
		h.HandleError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, WalletBalanceResponse{
		WalletID:         h.walletID,
		AvailableBalance: balance,
	})
}
