package processor

import (
	"errors"

	"github.com/shopspring/decimal"
)

// CollectRequest is a mobile-money collection submitted to the
// processor's collections API.
type CollectRequest struct {
	WalletID   string          `json:"walletId"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	ExternalID string          `json:"externalId"`
	Payer      string          `json:"payer"`
	PayerNote  string          `json:"payerNote,omitempty"`
	PayeeNote  string          `json:"payeeNote,omitempty"`
}

func (r *CollectRequest) Validate() error {
	if r.WalletID == "" {
		return errors.New("walletId is required")
	}
	if r.Amount.Sign() <= 0 {
		return errors.New("amount must be greater than 0")
	}
	if r.Payer == "" {
		return errors.New("payer is required")
	}
	return nil
}

// BankDisburseRequest mirrors the processor's BankDisbursementRequest.
type BankDisburseRequest struct {
	WalletID               string          `json:"walletId"`
	Amount                 decimal.Decimal `json:"amount"`
	Currency               string          `json:"currency"`
	ExternalID             string          `json:"externalId"`
	AccountName            string          `json:"accountName"`
	AccountNumber          string          `json:"accountNumber"`
	BankIdentificationCode string          `json:"bankIdentificationCode"`
	PayeeNote              string          `json:"payeeNote,omitempty"`
}

func (r *BankDisburseRequest) Validate() error {
	if r.WalletID == "" {
		return errors.New("walletId is required")
	}
	if r.Amount.Sign() <= 0 {
		return errors.New("amount must be greater than 0")
	}
	if r.AccountName == "" || r.AccountNumber == "" || r.BankIdentificationCode == "" {
		return errors.New("account name, number and bank code are required")
	}
	return nil
}

// TransactionResult is what the processor reports for a submitted or
// polled transaction. StatusMessage is free text from the processor.
type TransactionResult struct {
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
	StatusMessage string `json:"statusMessage"`
}
