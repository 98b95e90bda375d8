package payment_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	corepayment "github.com/jotpay/payment-service/internal/core/datamodel/payment"
	processortypes "github.com/jotpay/payment-service/internal/core/datamodel/processor"
	"github.com/jotpay/payment-service/internal/core/events"
	"github.com/jotpay/payment-service/internal/payment"
)

var _ = Describe("Reconciler", func() {
	var (
		repo       *mockRepository
		processor  *mockProcessor
		service    *payment.Service
		reconciler *payment.Reconciler
	)

	seedStalePending := func(transactionID string) {
		Expect(repo.Create(&corepayment.Payment{
			TransactionID: transactionID,
			Amount:        decimal.NewFromInt(15000),
			Currency:      "UGX",
			Channel:       corepayment.ChannelMobileMoney,
			PayerContact:  "+256772123456",
			Status:        corepayment.StatusPending,
		})).To(Succeed())

		// age the record past the staleness cutoff
		record, err := repo.GetByTransactionID(transactionID)
		Expect(err).NotTo(HaveOccurred())
		record.UpdatedAt = time.Now().UTC().Add(-time.Hour)
		Expect(repo.Update(record)).To(Succeed())
	}

	BeforeEach(func() {
		repo = newMockRepository()
		processor = &mockProcessor{}
		service = payment.NewService(repo, payment.NewFeed(testLogger()), events.NewEventBus(testLogger()), testLogger())
		reconciler = payment.NewReconciler(service, processor, time.Minute, 10*time.Minute, 50, testLogger())
	})

	It("applies the processor's status to stale pending payments", func() {
		seedStalePending("txn-rec-1")
		processor.statusResult = &processortypes.TransactionResult{
			TransactionID: "txn-rec-1",
			Status:        "SUCCESSFUL",
			StatusMessage: "Transaction completed",
		}

		reconciler.RunOnce(context.Background())

		Expect(processor.statusCalls).To(ContainElement("txn-rec-1"))
		stored, _ := repo.GetByTransactionID("txn-rec-1")
		Expect(stored.Status).To(Equal(corepayment.StatusSuccess))
		Expect(stored.LastWriter).To(Equal(corepayment.WriterPoll))
	})

	It("skips payments that settled before the sweep", func() {
		seedStalePending("txn-rec-2")
		_, err := service.ApplyStatus(context.Background(), payment.ApplyStatusParams{
			TransactionID: "txn-rec-2",
			RawStatus:     "SUCCESS",
			Writer:        corepayment.WriterWebhook,
		})
		Expect(err).NotTo(HaveOccurred())

		reconciler.RunOnce(context.Background())

		Expect(processor.statusCalls).To(BeEmpty())
	})

	It("leaves the record pending when the processor is unreachable", func() {
		seedStalePending("txn-rec-3")
		processor.statusErr = context.DeadlineExceeded

		reconciler.RunOnce(context.Background())

		stored, _ := repo.GetByTransactionID("txn-rec-3")
		Expect(stored.Status).To(Equal(corepayment.StatusPending))
	})
})
