package payment_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	corepayment "github.com/jotpay/payment-service/internal/core/datamodel/payment"
	"github.com/jotpay/payment-service/internal/core/events"
	"github.com/jotpay/payment-service/internal/payment"
	"github.com/jotpay/payment-service/internal/transport"
)

var _ = Describe("WebhookHandler", func() {
	var (
		repo    *mockRepository
		service *payment.Service
		router  *chi.Mux
	)

	postWebhook := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhook/payment-status", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	BeforeEach(func() {
		repo = newMockRepository()
		service = payment.NewService(repo, payment.NewFeed(testLogger()), events.NewEventBus(testLogger()), testLogger())

		handler := payment.NewWebhookHandler(transport.NewBaseHandler(testLogger()), service, testLogger())
		router = chi.NewRouter()
		router.Post("/webhook/payment-status", handler.HandleStatusWebhook)

		Expect(repo.Create(&corepayment.Payment{
			TransactionID: "txn-wh",
			Amount:        decimal.NewFromInt(15000),
			Currency:      "UGX",
			Channel:       corepayment.ChannelMobileMoney,
			PayerContact:  "+256772123456",
			Status:        corepayment.StatusPending,
		})).To(Succeed())
	})

	It("applies a valid report and returns 200", func() {
		rec := postWebhook(`{"transaction_id":"txn-wh","status":"SUCCESSFUL","status_message":"done"}`)
		Expect(rec.Code).To(Equal(http.StatusOK))

		var resp payment.WebhookResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Success).To(BeTrue())

		stored, _ := repo.GetByTransactionID("txn-wh")
		Expect(stored.Status).To(Equal(corepayment.StatusSuccess))
	})

	It("returns 200 even when the terminal lock drops the report", func() {
		_, err := service.ApplyStatus(context.Background(), payment.ApplyStatusParams{
			TransactionID: "txn-wh",
			RawStatus:     "SUCCESS",
			Writer:        corepayment.WriterWebhook,
		})
		Expect(err).NotTo(HaveOccurred())

		rec := postWebhook(`{"transaction_id":"txn-wh","status":"FAILED"}`)
		Expect(rec.Code).To(Equal(http.StatusOK))

		stored, _ := repo.GetByTransactionID("txn-wh")
		Expect(stored.Status).To(Equal(corepayment.StatusSuccess))
	})

	It("returns 200 for an unrecognized status without touching the record", func() {
		rec := postWebhook(`{"transaction_id":"txn-wh","status":"COMPLETED"}`)
		Expect(rec.Code).To(Equal(http.StatusOK))

		stored, _ := repo.GetByTransactionID("txn-wh")
		Expect(stored.Status).To(Equal(corepayment.StatusPending))
	})

	It("returns 400 for a malformed body", func() {
		rec := postWebhook(`{not json`)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("returns 400 when the transaction id is missing", func() {
		rec := postWebhook(`{"status":"SUCCESS"}`)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("returns 404 for an unknown transaction id", func() {
		rec := postWebhook(`{"transaction_id":"txn-missing","status":"SUCCESS"}`)
		Expect(rec.Code).To(Equal(http.StatusNotFound))
	})
})
