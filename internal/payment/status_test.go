package payment_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	corepayment "github.com/jotpay/payment-service/internal/core/datamodel/payment"
	"github.com/jotpay/payment-service/internal/payment"
)

var _ = Describe("NormalizeStatus", func() {
	It("maps the processor success synonyms onto SUCCESS", func() {
		Expect(payment.NormalizeStatus("SUCCESS")).To(Equal(corepayment.StatusSuccess))
		Expect(payment.NormalizeStatus("SUCCESSFUL")).To(Equal(corepayment.StatusSuccess))
	})

	It("maps the remaining known statuses", func() {
		Expect(payment.NormalizeStatus("FAILED")).To(Equal(corepayment.StatusFailed))
		Expect(payment.NormalizeStatus("PENDING")).To(Equal(corepayment.StatusPending))
		Expect(payment.NormalizeStatus("CANCELLED")).To(Equal(corepayment.StatusCancelled))
	})

	It("is case-insensitive and trims whitespace", func() {
		Expect(payment.NormalizeStatus("successful")).To(Equal(corepayment.StatusSuccess))
		Expect(payment.NormalizeStatus("  Failed ")).To(Equal(corepayment.StatusFailed))
		Expect(payment.NormalizeStatus("pending")).To(Equal(corepayment.StatusPending))
	})

	It("yields UNKNOWN for anything unrecognized", func() {
		Expect(payment.NormalizeStatus("COMPLETED")).To(Equal(corepayment.StatusUnknown))
		Expect(payment.NormalizeStatus("")).To(Equal(corepayment.StatusUnknown))
		Expect(payment.NormalizeStatus("SUCCESSS")).To(Equal(corepayment.StatusUnknown))
	})
})

var _ = Describe("Status.IsTerminal", func() {
	It("treats SUCCESS, FAILED and CANCELLED as terminal", func() {
		Expect(corepayment.StatusSuccess.IsTerminal()).To(BeTrue())
		Expect(corepayment.StatusFailed.IsTerminal()).To(BeTrue())
		Expect(corepayment.StatusCancelled.IsTerminal()).To(BeTrue())
	})

	It("treats PENDING and UNKNOWN as non-terminal", func() {
		Expect(corepayment.StatusPending.IsTerminal()).To(BeFalse())
		Expect(corepayment.StatusUnknown.IsTerminal()).To(BeFalse())
	})
})
