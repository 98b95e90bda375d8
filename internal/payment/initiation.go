package payment

import (
	"context"
	"log/slog"

	errors "github.com/jotpay/payment-service/internal"
	"github.com/jotpay/payment-service/internal/core/datamodel/payment"
	processortypes "github.com/jotpay/payment-service/internal/core/datamodel/processor"
)

// Processor is the outbound boundary to the external payment
// processor. Implementations must fail closed within a bounded timeout.
type Processor interface {
	Collect(ctx context.Context, req *processortypes.CollectRequest) (*processortypes.TransactionResult, error)
	BankDisburse(ctx context.Context, req *processortypes.BankDisburseRequest) (*processortypes.TransactionResult, error)
	TransactionStatus(ctx context.Context, transactionID string) (*processortypes.TransactionResult, error)
}

// Initiator submits collection/disbursement requests to the processor
// and creates the initial PENDING record keyed by the transaction id
// the processor assigns. On provider failure no record is created.
type Initiator struct {
	processor Processor
	service   *Service
	walletID  string
	currency  string
	logger    *slog.Logger
}

func NewInitiator(processor Processor, service *Service, walletID, currency string, logger *slog.Logger) *Initiator {
	return &Initiator{
		processor: processor,
		service:   service,
		walletID:  walletID,
		currency:  currency,
		logger:    logger,
	}
}

// Initiate validates the request, submits it to the processor and
// persists the PENDING record. Returns the processor-assigned
// transaction id all later status reports key on.
func (i *Initiator) Initiate(ctx context.Context, req *InitiatePaymentRequest) (string, error) {
	if err := req.Validate(); err != nil {
		i.logger.Warn("payment initiation rejected", "error", err, "channel", req.Channel)
		return "", err
	}

	currency := i.currency
	if currency == "" {
		currency = "UGX"
	}

	var result *processortypes.TransactionResult
	var err error

	switch payment.Channel(req.Channel) {
	case payment.ChannelMobileMoney:
		result, err = i.processor.Collect(ctx, &processortypes.CollectRequest{
			WalletID:  i.walletID,
			Amount:    req.Amount,
			Currency:  currency,
			Payer:     req.Phone,
			PayerNote: "Mobile money payment",
			PayeeNote: "Thank you for your payment",
		})
	case payment.ChannelBankAccount:
		result, err = i.processor.BankDisburse(ctx, &processortypes.BankDisburseRequest{
			WalletID:               i.walletID,
			Amount:                 req.Amount,
			Currency:               currency,
			AccountName:            req.AccountDetails.AccountName,
			AccountNumber:          req.AccountDetails.AccountNumber,
			BankIdentificationCode: req.AccountDetails.BankCode,
			PayeeNote:              "Bank transfer",
		})
	default:
		return "", errors.NewValidationError("invalid payment channel", errors.ErrCodeInvalidChannel)
	}

	if err != nil {
		i.logger.Error("processor rejected payment initiation",
			"error", err,
			"channel", req.Channel,
			"amount", req.Amount)
		return "", err
	}

	record := &payment.Payment{
		TransactionID: result.TransactionID,
		Amount:        req.Amount,
		Currency:      currency,
		Channel:       payment.Channel(req.Channel),
		PayerContact:  req.PayerContact(),
		Email:         req.Email,
		StatusMessage: result.StatusMessage,
	}

	if err := i.service.CreateRecord(ctx, record); err != nil {
		return "", err
	}

	i.logger.Info("payment initiated",
		"transaction_id", result.TransactionID,
		"channel", req.Channel,
		"amount", req.Amount,
		"processor_status", result.Status)

	return result.TransactionID, nil
}
