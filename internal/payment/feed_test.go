package payment_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	corepayment "github.com/jotpay/payment-service/internal/core/datamodel/payment"
	"github.com/jotpay/payment-service/internal/payment"
)

var _ = Describe("Feed", func() {
	var feed *payment.Feed

	BeforeEach(func() {
		feed = payment.NewFeed(testLogger())
	})

	It("delivers records only to subscribers of the same transaction id", func() {
		chA, cancelA := feed.Subscribe("txn-a")
		defer cancelA()
		chB, cancelB := feed.Subscribe("txn-b")
		defer cancelB()

		feed.Publish(terminalRecord("txn-a", corepayment.StatusSuccess))

		var got *corepayment.Payment
		Eventually(chA).Should(Receive(&got))
		Expect(got.TransactionID).To(Equal("txn-a"))
		Consistently(chB).ShouldNot(Receive())
	})

	It("fans out to every subscriber of one transaction id", func() {
		ch1, cancel1 := feed.Subscribe("txn-a")
		defer cancel1()
		ch2, cancel2 := feed.Subscribe("txn-a")
		defer cancel2()

		feed.Publish(terminalRecord("txn-a", corepayment.StatusFailed))

		Eventually(ch1).Should(Receive())
		Eventually(ch2).Should(Receive())
	})

	It("cancel closes the channel, is idempotent and drops the subscription", func() {
		ch, cancel := feed.Subscribe("txn-a")
		Expect(feed.SubscriberCount("txn-a")).To(Equal(1))

		cancel()
		cancel()

		Expect(feed.SubscriberCount("txn-a")).To(Equal(0))
		Eventually(ch).Should(BeClosed())

		// publishing to a cancelled subscription is a no-op
		feed.Publish(terminalRecord("txn-a", corepayment.StatusSuccess))
	})

	It("does not block the publisher when a subscriber lags", func(ctx SpecContext) {
		_, cancel := feed.Subscribe("txn-a")
		defer cancel()

		// overflow the subscriber buffer without draining it
		for i := 0; i < 50; i++ {
			feed.Publish(pendingRecord("txn-a"))
		}
	}, SpecTimeout(time.Second))
})
