package payment_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	apperrors "github.com/jotpay/payment-service/internal"
	corepayment "github.com/jotpay/payment-service/internal/core/datamodel/payment"
	processortypes "github.com/jotpay/payment-service/internal/core/datamodel/processor"
	"github.com/jotpay/payment-service/internal/core/events"
	"github.com/jotpay/payment-service/internal/payment"
	"github.com/jotpay/payment-service/internal/transport"
)

var _ = Describe("Handler", func() {
	var (
		repo      *mockRepository
		processor *mockProcessor
		router    *chi.Mux
	)

	BeforeEach(func() {
		repo = newMockRepository()
		processor = &mockProcessor{
			collectResult: &processortypes.TransactionResult{
				TransactionID: "txn-proc-1",
				Status:        "Pending",
				StatusMessage: "Awaiting payer approval",
			},
		}

		service := payment.NewService(repo, payment.NewFeed(testLogger()), events.NewEventBus(testLogger()), testLogger())
		initiator := payment.NewInitiator(processor, service, "wallet-1", "UGX", testLogger())
		handler := payment.NewHandler(transport.NewBaseHandler(testLogger()), initiator, service, testLogger())

		router = chi.NewRouter()
		router.Post("/payments", handler.InitiatePayment)
		router.Get("/payments", handler.ListPayments)
		router.Get("/payments/{transactionID}", handler.GetPayment)
	})

	Describe("InitiatePayment", func() {
		It("submits to the processor and returns 201 with a PENDING record", func() {
			body := `{"amount":"15000","channel":"MobileMoney","phone":"+256772123456","email":"payer@example.com"}`
			req := httptest.NewRequest(http.MethodPost, "/payments", bytes.NewBufferString(body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusCreated))

			var resp payment.InitiatePaymentResponse
			Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.TransactionID).To(Equal("txn-proc-1"))
			Expect(resp.Status).To(Equal(corepayment.StatusPending))

			stored, err := repo.GetByTransactionID("txn-proc-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Status).To(Equal(corepayment.StatusPending))
			Expect(stored.LastWriter).To(Equal(corepayment.WriterInitiation))
			Expect(*stored.Email).To(Equal("payer@example.com"))
			Expect(processor.collectCalls).To(HaveLen(1))
			Expect(processor.collectCalls[0].WalletID).To(Equal("wallet-1"))
		})

		It("returns 400 and skips the processor on validation failure", func() {
			body := `{"amount":"0","channel":"MobileMoney","phone":"+256772123456"}`
			req := httptest.NewRequest(http.MethodPost, "/payments", bytes.NewBufferString(body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(processor.collectCalls).To(BeEmpty())
		})

		It("returns 502 and creates no record when the processor rejects", func() {
			processor.collectResult = nil
			processor.collectErr = apperrors.NewProviderError("wallet suspended", http.StatusForbidden, nil)

			body := `{"amount":"15000","channel":"MobileMoney","phone":"+256772123456"}`
			req := httptest.NewRequest(http.MethodPost, "/payments", bytes.NewBufferString(body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusBadGateway))
			_, err := repo.GetByTransactionID("txn-proc-1")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("GetPayment", func() {
		It("returns the record for a known id", func() {
			Expect(repo.Create(&corepayment.Payment{
				TransactionID: "txn-read",
				Amount:        decimal.NewFromInt(15000),
				Currency:      "UGX",
				Channel:       corepayment.ChannelMobileMoney,
				PayerContact:  "+256772123456",
				Status:        corepayment.StatusSuccess,
			})).To(Succeed())

			req := httptest.NewRequest(http.MethodGet, "/payments/txn-read", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))

			var record corepayment.Payment
			Expect(json.Unmarshal(rec.Body.Bytes(), &record)).To(Succeed())
			Expect(record.TransactionID).To(Equal("txn-read"))
			Expect(record.Status).To(Equal(corepayment.StatusSuccess))
		})

		It("returns 404 for an unknown id", func() {
			req := httptest.NewRequest(http.MethodGet, "/payments/txn-missing", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("ListPayments", func() {
		It("requires the email query parameter", func() {
			req := httptest.NewRequest(http.MethodGet, "/payments", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("returns the payer's records", func() {
			email := "payer@example.com"
			Expect(repo.Create(&corepayment.Payment{
				TransactionID: "txn-list-1",
				Amount:        decimal.NewFromInt(15000),
				Currency:      "UGX",
				Channel:       corepayment.ChannelMobileMoney,
				PayerContact:  "+256772123456",
				Email:         &email,
				Status:        corepayment.StatusSuccess,
			})).To(Succeed())

			req := httptest.NewRequest(http.MethodGet, "/payments?email=payer%40example.com", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))

			var resp struct {
				Count    int                   `json:"count"`
				Payments []corepayment.Payment `json:"payments"`
			}
			Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Count).To(Equal(1))
			Expect(resp.Payments[0].TransactionID).To(Equal("txn-list-1"))
		})
	})
})
