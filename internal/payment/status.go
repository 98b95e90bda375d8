package payment

import (
	"strings"

	"github.com/jotpay/payment-service/internal/core/datamodel/payment"
)

// statusVocabulary maps the processor's status vocabulary onto the
// internal state machine. Keys are upper-cased before lookup, so the
// mapping is case-insensitive. New processor synonyms belong here, not
// in the reconciliation logic.
var statusVocabulary = map[string]payment.Status{
	"SUCCESS":    payment.StatusSuccess,
	"SUCCESSFUL": payment.StatusSuccess,
	"FAILED":     payment.StatusFailed,
	"PENDING":    payment.StatusPending,
	"CANCELLED":  payment.StatusCancelled,
}

// NormalizeStatus converts a raw processor-reported status into the
// internal state machine. It is total: anything unrecognized yields
// StatusUnknown rather than an error.
func NormalizeStatus(raw string) payment.Status {
	if s, ok := statusVocabulary[strings.ToUpper(strings.TrimSpace(raw))]; ok {
		return s
	}
	return payment.StatusUnknown
}
