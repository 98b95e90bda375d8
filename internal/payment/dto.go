package payment

import (
	"github.com/shopspring/decimal"
	"github.com/ttacon/libphonenumber"

	errors "github.com/jotpay/payment-service/internal"
	"github.com/jotpay/payment-service/internal/core/common/validation"
	"github.com/jotpay/payment-service/internal/core/datamodel/payment"
)

// defaultPhoneRegion is the region used to parse national-format
// payer numbers like 0700000000.
const defaultPhoneRegion = "UG"

// BankAccountDetails carries the fields the processor's bank
// disbursement API requires.
type BankAccountDetails struct {
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
	BankCode      string `json:"bank_code"`
}

// InitiatePaymentRequest is the body of POST /payments.
type InitiatePaymentRequest struct {
	Amount         decimal.Decimal     `json:"amount"`
	Channel        string              `json:"channel"`
	Phone          string              `json:"phone,omitempty"`
	AccountDetails *BankAccountDetails `json:"account_details,omitempty"`
	Email          *string             `json:"email,omitempty"`
}

func (r *InitiatePaymentRequest) Validate() error {
	validator := validation.NewValidator()

	validator.Field("amount", r.Amount).Positive(errors.ErrCodeInvalidAmount)
	validator.Field("channel", r.Channel).Required().OneOf(errors.ErrCodeInvalidChannel,
		string(payment.ChannelMobileMoney), string(payment.ChannelBankAccount))

	switch payment.Channel(r.Channel) {
	case payment.ChannelMobileMoney:
		validator.Field("phone", r.Phone).Required().Func(validPhone)
	case payment.ChannelBankAccount:
		if r.AccountDetails == nil {
			validator.Field("account_details", "").Required()
		} else {
			validator.Field("account_name", r.AccountDetails.AccountName).Required()
			validator.Field("account_number", r.AccountDetails.AccountNumber).Required()
			validator.Field("bank_code", r.AccountDetails.BankCode).Required()
		}
	}

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

func validPhone(value interface{}) *errors.AppError {
	raw, ok := value.(string)
	if !ok || raw == "" {
		return nil // Required() already reports empty values
	}
	num, err := libphonenumber.Parse(raw, defaultPhoneRegion)
	if err != nil || !libphonenumber.IsValidNumber(num) {
		return errors.NewValidationFieldError("phone", "phone is not a valid mobile number", errors.ErrCodeInvalidPhone)
	}
	return nil
}

// PayerContact renders the payer identifier stored on the record.
func (r *InitiatePaymentRequest) PayerContact() string {
	if payment.Channel(r.Channel) == payment.ChannelBankAccount && r.AccountDetails != nil {
		return r.AccountDetails.AccountNumber + "/" + r.AccountDetails.BankCode
	}
	return r.Phone
}

type InitiatePaymentResponse struct {
	TransactionID string         `json:"transaction_id"`
	Status        payment.Status `json:"status"`
}

// WebhookRequest is the processor-initiated status push.
type WebhookRequest struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	StatusMessage string `json:"status_message,omitempty"`
}

func (r *WebhookRequest) Validate() error {
	validator := validation.NewValidator()

	validator.Field("transaction_id", r.TransactionID).Required()
	validator.Field("status", r.Status).Required()

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

// AdminStatusRequest is the manual override body. Unlike the webhook,
// an unrecognized status here is a caller mistake and rejected.
type AdminStatusRequest struct {
	Status        string `json:"status"`
	StatusMessage string `json:"status_message,omitempty"`
}

func (r *AdminStatusRequest) Validate() error {
	validator := validation.NewValidator()

	validator.Field("status", r.Status).Required().Func(func(value interface{}) *errors.AppError {
		raw, ok := value.(string)
		if !ok || raw == "" {
			return nil
		}
		if NormalizeStatus(raw) == payment.StatusUnknown {
			return errors.NewValidationFieldError("status",
				"status must be one of SUCCESS, FAILED, PENDING, CANCELLED", errors.ErrCodeInvalidStatus)
		}
		return nil
	})

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}
