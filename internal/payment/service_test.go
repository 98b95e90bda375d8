package payment_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	apperrors "github.com/jotpay/payment-service/internal"
	corepayment "github.com/jotpay/payment-service/internal/core/datamodel/payment"
	"github.com/jotpay/payment-service/internal/core/events"
	"github.com/jotpay/payment-service/internal/payment"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// eventCapture collects bus events for one spec. Each spec gets its own
// instance so straggler handler goroutines from a previous spec write to
// that spec's abandoned capture instead of leaking into the current one.
type eventCapture struct {
	mu     sync.Mutex
	events []events.Event
}

var _ = Describe("Service.ApplyStatus", func() {
	var (
		repo     *mockRepository
		feed     *payment.Feed
		bus      *events.EventBus
		service  *payment.Service
		ctx      context.Context
		captured *eventCapture
	)

	seedPending := func(transactionID string) {
		err := repo.Create(&corepayment.Payment{
			TransactionID: transactionID,
			Amount:        decimal.NewFromInt(15000),
			Currency:      "UGX",
			Channel:       corepayment.ChannelMobileMoney,
			PayerContact:  "+256772123456",
			Status:        corepayment.StatusPending,
			LastWriter:    corepayment.WriterInitiation,
		})
		Expect(err).NotTo(HaveOccurred())
	}

	capturedEvents := func() []events.Event {
		captured.mu.Lock()
		defer captured.mu.Unlock()
		out := make([]events.Event, len(captured.events))
		copy(out, captured.events)
		return out
	}

	BeforeEach(func() {
		repo = newMockRepository()
		feed = payment.NewFeed(testLogger())
		bus = events.NewEventBus(testLogger())
		service = payment.NewService(repo, feed, bus, testLogger())
		ctx = context.Background()

		cap := &eventCapture{}
		captured = cap

		record := func(ctx context.Context, event events.Event) error {
			cap.mu.Lock()
			defer cap.mu.Unlock()
			cap.events = append(cap.events, event)
			return nil
		}
		bus.Subscribe(events.EventTypePaymentSucceeded, record)
		bus.Subscribe(events.EventTypePaymentFailed, record)
		bus.Subscribe(events.EventTypePaymentCancelled, record)
	})

	It("applies a webhook transition from PENDING to SUCCESS", func() {
		seedPending("txn-1")

		result, err := service.ApplyStatus(ctx, payment.ApplyStatusParams{
			TransactionID: "txn-1",
			RawStatus:     "SUCCESSFUL",
			StatusMessage: "Transaction completed",
			Writer:        corepayment.WriterWebhook,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Accepted).To(BeTrue())
		Expect(result.Transition).To(BeTrue())
		Expect(result.FinalStatus).To(Equal(corepayment.StatusSuccess))

		stored, err := repo.GetByTransactionID("txn-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.Status).To(Equal(corepayment.StatusSuccess))
		Expect(stored.StatusMessage).To(Equal("Transaction completed"))
		Expect(stored.LastWriter).To(Equal(corepayment.WriterWebhook))
	})

	It("publishes a succeeded event once per transition into SUCCESS", func() {
		seedPending("txn-2")

		_, err := service.ApplyStatus(ctx, payment.ApplyStatusParams{
			TransactionID: "txn-2",
			RawStatus:     "SUCCESS",
			Writer:        corepayment.WriterWebhook,
		})
		Expect(err).NotTo(HaveOccurred())

		Eventually(capturedEvents).Should(HaveLen(1))
		Expect(capturedEvents()[0].EventType()).To(Equal(events.EventTypePaymentSucceeded))

		// duplicate report: no second event
		_, err = service.ApplyStatus(ctx, payment.ApplyStatusParams{
			TransactionID: "txn-2",
			RawStatus:     "SUCCESS",
			Writer:        corepayment.WriterWebhook,
		})
		Expect(err).NotTo(HaveOccurred())
		Consistently(capturedEvents, 200*time.Millisecond).Should(HaveLen(1))
	})

	It("rejects non-admin writes once the record is terminal", func() {
		seedPending("txn-3")

		_, err := service.ApplyStatus(ctx, payment.ApplyStatusParams{
			TransactionID: "txn-3",
			RawStatus:     "SUCCESS",
			Writer:        corepayment.WriterWebhook,
		})
		Expect(err).NotTo(HaveOccurred())

		result, err := service.ApplyStatus(ctx, payment.ApplyStatusParams{
			TransactionID: "txn-3",
			RawStatus:     "FAILED",
			StatusMessage: "stale report",
			Writer:        corepayment.WriterPoll,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Accepted).To(BeFalse())
		Expect(result.FinalStatus).To(Equal(corepayment.StatusSuccess))

		stored, _ := repo.GetByTransactionID("txn-3")
		Expect(stored.Status).To(Equal(corepayment.StatusSuccess))
		Expect(stored.StatusMessage).NotTo(Equal("stale report"))
	})

	It("lets an admin override flip a terminal record", func() {
		seedPending("txn-4")

		_, err := service.ApplyStatus(ctx, payment.ApplyStatusParams{
			TransactionID: "txn-4",
			RawStatus:     "FAILED",
			Writer:        corepayment.WriterWebhook,
		})
		Expect(err).NotTo(HaveOccurred())

		result, err := service.ApplyStatus(ctx, payment.ApplyStatusParams{
			TransactionID: "txn-4",
			RawStatus:     "SUCCESS",
			StatusMessage: "Confirmed against processor statement",
			Writer:        corepayment.WriterAdmin,
			AdminOverride: true,
			OverrideBy:    "ops@jotpay.io",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Accepted).To(BeTrue())
		Expect(result.Transition).To(BeTrue())

		stored, _ := repo.GetByTransactionID("txn-4")
		Expect(stored.Status).To(Equal(corepayment.StatusSuccess))
		Expect(stored.LastWriter).To(Equal(corepayment.WriterAdmin))
		Expect(stored.ManualOverrideBy).NotTo(BeNil())
		Expect(*stored.ManualOverrideBy).To(Equal("ops@jotpay.io"))
	})

	It("leaves the record untouched on an unrecognized status", func() {
		seedPending("txn-5")
		before, _ := repo.GetByTransactionID("txn-5")

		result, err := service.ApplyStatus(ctx, payment.ApplyStatusParams{
			TransactionID: "txn-5",
			RawStatus:     "COMPLETED",
			Writer:        corepayment.WriterWebhook,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Accepted).To(BeFalse())
		Expect(result.FinalStatus).To(Equal(corepayment.StatusPending))

		after, _ := repo.GetByTransactionID("txn-5")
		Expect(after.Status).To(Equal(before.Status))
		Expect(after.LastWriter).To(Equal(before.LastWriter))
		Expect(after.UpdatedAt).To(Equal(before.UpdatedAt))
	})

	It("refreshes audit fields on an identical duplicate without a transition", func() {
		seedPending("txn-6")

		first, err := service.ApplyStatus(ctx, payment.ApplyStatusParams{
			TransactionID: "txn-6",
			RawStatus:     "PENDING",
			StatusMessage: "processor queued",
			Writer:        corepayment.WriterPoll,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(first.Transition).To(BeFalse())

		afterFirst, _ := repo.GetByTransactionID("txn-6")

		time.Sleep(5 * time.Millisecond)
		second, err := service.ApplyStatus(ctx, payment.ApplyStatusParams{
			TransactionID: "txn-6",
			RawStatus:     "PENDING",
			StatusMessage: "processor queued",
			Writer:        corepayment.WriterWebhook,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(second.Accepted).To(BeTrue())
		Expect(second.Transition).To(BeFalse())

		afterSecond, _ := repo.GetByTransactionID("txn-6")
		Expect(afterSecond.UpdatedAt.After(afterFirst.UpdatedAt)).To(BeTrue())
		Expect(afterSecond.LastWriter).To(Equal(corepayment.WriterWebhook))
	})

	It("returns not-found for an unknown transaction id", func() {
		_, err := service.ApplyStatus(ctx, payment.ApplyStatusParams{
			TransactionID: "no-such-txn",
			RawStatus:     "SUCCESS",
			Writer:        corepayment.WriterWebhook,
		})
		Expect(err).To(HaveOccurred())

		appErr, ok := apperrors.IsAppError(err)
		Expect(ok).To(BeTrue())
		Expect(appErr.Type).To(Equal(apperrors.ErrorTypeNotFound))
	})

	It("serializes concurrent reports so exactly one transition lands", func() {
		seedPending("txn-7")

		var wg sync.WaitGroup
		results := make([]*payment.ApplyResult, 20)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer GinkgoRecover()
				defer wg.Done()
				result, err := service.ApplyStatus(ctx, payment.ApplyStatusParams{
					TransactionID: "txn-7",
					RawStatus:     "SUCCESS",
					StatusMessage: "Transaction completed",
					Writer:        corepayment.WriterWebhook,
				})
				Expect(err).NotTo(HaveOccurred())
				results[i] = result
			}(i)
		}
		wg.Wait()

		transitions := 0
		for _, result := range results {
			if result.Transition {
				transitions++
			}
		}
		Expect(transitions).To(Equal(1))

		stored, _ := repo.GetByTransactionID("txn-7")
		Expect(stored.Status).To(Equal(corepayment.StatusSuccess))
		Eventually(capturedEvents).Should(HaveLen(1))
	})

	It("announces accepted transitions on the change feed", func() {
		seedPending("txn-8")

		ch, cancel := feed.Subscribe("txn-8")
		defer cancel()

		_, err := service.ApplyStatus(ctx, payment.ApplyStatusParams{
			TransactionID: "txn-8",
			RawStatus:     "SUCCESS",
			Writer:        corepayment.WriterWebhook,
		})
		Expect(err).NotTo(HaveOccurred())

		var received *corepayment.Payment
		Eventually(ch).Should(Receive(&received))
		Expect(received.Status).To(Equal(corepayment.StatusSuccess))
	})
})

var _ = Describe("Service.CreateRecord", func() {
	It("persists a PENDING record attributed to the initiation writer", func() {
		repo := newMockRepository()
		feed := payment.NewFeed(testLogger())
		service := payment.NewService(repo, feed, events.NewEventBus(testLogger()), testLogger())

		record := &corepayment.Payment{
			TransactionID: "txn-new",
			Amount:        decimal.NewFromInt(5000),
			Currency:      "UGX",
			Channel:       corepayment.ChannelMobileMoney,
			PayerContact:  "+256772123456",
		}
		Expect(service.CreateRecord(context.Background(), record)).To(Succeed())

		stored, err := repo.GetByTransactionID("txn-new")
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.Status).To(Equal(corepayment.StatusPending))
		Expect(stored.LastWriter).To(Equal(corepayment.WriterInitiation))
	})
})
