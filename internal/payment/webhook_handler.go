package payment

import (
	"encoding/json"
	"log/slog"
	"net/http"

	errors "github.com/jotpay/payment-service/internal"
	"github.com/jotpay/payment-service/internal/core/datamodel/payment"
	"github.com/jotpay/payment-service/internal/transport"
)

type WebhookHandler struct {
	*transport.BaseHandler
	service *Service
	logger  *slog.Logger
}

func NewWebhookHandler(baseHandler *transport.BaseHandler, service *Service, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		BaseHandler: baseHandler,
		service:     service,
		logger:      logger,
	}
}

type WebhookResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	TransactionID string `json:"transaction_id,omitempty"`
}

// HandleStatusWebhook handles POST /api/v1/webhook/payment-status.
// Once the body parses, the response is 200 whether or not the update
// was accepted; a non-2xx for an already-settled id would only make
// the processor retry a report we will drop anyway.
func (h *WebhookHandler) HandleStatusWebhook(w http.ResponseWriter, r *http.Request) {
	var req WebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("invalid webhook payload", "error", err)
		h.HandleError(w, errors.NewValidationError("invalid request body", errors.ErrCodeValidationFailed))
		return
	}

	if err := req.Validate(); err != nil {
		h.logger.Error("webhook payload missing required fields", "error", err)
		h.HandleError(w, err)
		return
	}

	h.logger.Info("received processor webhook",
		"transaction_id", req.TransactionID,
		"status", req.Status)

	result, err := h.service.ApplyStatus(r.Context(), ApplyStatusParams{
		TransactionID: req.TransactionID,
		RawStatus:     req.Status,
		StatusMessage: req.StatusMessage,
		Writer:        payment.WriterWebhook,
	})
	if err != nil {
		if appErr, ok := errors.IsAppError(err); ok && appErr.Type == errors.ErrorTypeNotFound {
			h.HandleError(w, err)
			return
		}
		h.logger.Error("failed to process webhook",
			"error", err,
			"transaction_id", req.TransactionID)
		h.HandleError(w, err)
		return
	}

	if !result.Accepted {
		h.logger.Info("webhook report dropped",
			"transaction_id", req.TransactionID,
			"reported_status", req.Status,
			"current_status", result.FinalStatus)
	}

	h.WriteJSON(w, http.StatusOK, WebhookResponse{
		Success:       true,
		Message:       "webhook processed",
		TransactionID: req.TransactionID,
	})
}
