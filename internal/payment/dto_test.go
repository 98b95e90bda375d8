package payment_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	apperrors "github.com/jotpay/payment-service/internal"
	"github.com/jotpay/payment-service/internal/payment"
)

var _ = Describe("InitiatePaymentRequest.Validate", func() {
	valid := func() *payment.InitiatePaymentRequest {
		return &payment.InitiatePaymentRequest{
			Amount:  decimal.NewFromInt(15000),
			Channel: "MobileMoney",
			Phone:   "+256772123456",
		}
	}

	It("accepts a valid mobile money request", func() {
		Expect(valid().Validate()).To(Succeed())
	})

	It("accepts a national-format phone number", func() {
		req := valid()
		req.Phone = "0772123456"
		Expect(req.Validate()).To(Succeed())
	})

	It("rejects a non-positive amount", func() {
		req := valid()
		req.Amount = decimal.Zero
		err := req.Validate()
		Expect(err).To(HaveOccurred())

		req.Amount = decimal.NewFromInt(-5)
		Expect(req.Validate()).To(HaveOccurred())
	})

	It("rejects an unknown channel", func() {
		req := valid()
		req.Channel = "Cheque"
		Expect(req.Validate()).To(HaveOccurred())
	})

	It("rejects a malformed phone number", func() {
		req := valid()
		req.Phone = "not-a-number"
		err := req.Validate()
		Expect(err).To(HaveOccurred())

		appErr, ok := apperrors.IsAppError(err)
		Expect(ok).To(BeTrue())
		Expect(appErr.Type).To(Equal(apperrors.ErrorTypeValidation))
	})

	It("requires bank account details on the bank channel", func() {
		req := &payment.InitiatePaymentRequest{
			Amount:  decimal.NewFromInt(15000),
			Channel: "BankAccount",
		}
		Expect(req.Validate()).To(HaveOccurred())

		req.AccountDetails = &payment.BankAccountDetails{
			AccountName:   "Jane Doe",
			AccountNumber: "0102030405",
			BankCode:      "STANBIC",
		}
		Expect(req.Validate()).To(Succeed())
	})

	It("renders the payer contact per channel", func() {
		mobile := valid()
		Expect(mobile.PayerContact()).To(Equal("+256772123456"))

		bank := &payment.InitiatePaymentRequest{
			Amount:  decimal.NewFromInt(15000),
			Channel: "BankAccount",
			AccountDetails: &payment.BankAccountDetails{
				AccountName:   "Jane Doe",
				AccountNumber: "0102030405",
				BankCode:      "STANBIC",
			},
		}
		Expect(bank.PayerContact()).To(Equal("0102030405/STANBIC"))
	})
})

var _ = Describe("WebhookRequest.Validate", func() {
	It("requires transaction id and status", func() {
		Expect((&payment.WebhookRequest{}).Validate()).To(HaveOccurred())
		Expect((&payment.WebhookRequest{TransactionID: "txn-1"}).Validate()).To(HaveOccurred())
		Expect((&payment.WebhookRequest{TransactionID: "txn-1", Status: "SUCCESS"}).Validate()).To(Succeed())
	})

	It("does not reject unrecognized statuses at the edge", func() {
		// unknown vocabulary is handled by reconciliation, not validation
		req := &payment.WebhookRequest{TransactionID: "txn-1", Status: "COMPLETED"}
		Expect(req.Validate()).To(Succeed())
	})
})

var _ = Describe("AdminStatusRequest.Validate", func() {
	It("accepts the recognized status vocabulary", func() {
		for _, status := range []string{"SUCCESS", "SUCCESSFUL", "failed", "Pending", "CANCELLED"} {
			Expect((&payment.AdminStatusRequest{Status: status}).Validate()).To(Succeed())
		}
	})

	It("rejects statuses that normalize to UNKNOWN", func() {
		err := (&payment.AdminStatusRequest{Status: "COMPLETED"}).Validate()
		Expect(err).To(HaveOccurred())
	})

	It("requires a status", func() {
		Expect((&payment.AdminStatusRequest{}).Validate()).To(HaveOccurred())
	})
})
