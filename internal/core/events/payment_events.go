package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/jotpay/payment-service/internal/core/datamodel/payment"
)

const (
	EventTypePaymentSucceeded = "payment.succeeded"
	EventTypePaymentFailed    = "payment.failed"
	EventTypePaymentCancelled = "payment.cancelled"
)

// PaymentSucceededEvent is published exactly once per transition into
// SUCCESS; duplicate reports of an already-successful payment do not
// republish it.
type PaymentSucceededEvent struct {
	BaseEvent
	TransactionID string           `json:"transaction_id"`
	PrevStatus    payment.Status   `json:"prev_status"`
	Writer        payment.Writer   `json:"writer"`
	Record        *payment.Payment `json:"record"`
}

func NewPaymentSucceededEvent(prev payment.Status, writer payment.Writer, record *payment.Payment) *PaymentSucceededEvent {
	return &PaymentSucceededEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentSucceeded,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"transaction_id": record.TransactionID,
				"prev_status":    string(prev),
				"writer":         string(writer),
			},
		},
		TransactionID: record.TransactionID,
		PrevStatus:    prev,
		Writer:        writer,
		Record:        record,
	}
}

// PaymentFailedEvent is published once per transition into FAILED; the
// record's StatusMessage carries the failure reason.
type PaymentFailedEvent struct {
	BaseEvent
	TransactionID string           `json:"transaction_id"`
	PrevStatus    payment.Status   `json:"prev_status"`
	Writer        payment.Writer   `json:"writer"`
	Reason        string           `json:"reason"`
	Record        *payment.Payment `json:"record"`
}

func NewPaymentFailedEvent(prev payment.Status, writer payment.Writer, record *payment.Payment) *PaymentFailedEvent {
	return &PaymentFailedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentFailed,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"transaction_id": record.TransactionID,
				"prev_status":    string(prev),
				"writer":         string(writer),
				"reason":         record.StatusMessage,
			},
		},
		TransactionID: record.TransactionID,
		PrevStatus:    prev,
		Writer:        writer,
		Reason:        record.StatusMessage,
		Record:        record,
	}
}

// PaymentCancelledEvent is published once per transition into CANCELLED.
type PaymentCancelledEvent struct {
	BaseEvent
	TransactionID string           `json:"transaction_id"`
	PrevStatus    payment.Status   `json:"prev_status"`
	Writer        payment.Writer   `json:"writer"`
	Record        *payment.Payment `json:"record"`
}

func NewPaymentCancelledEvent(prev payment.Status, writer payment.Writer, record *payment.Payment) *PaymentCancelledEvent {
	return &PaymentCancelledEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentCancelled,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"transaction_id": record.TransactionID,
				"prev_status":    string(prev),
				"writer":         string(writer),
			},
		},
		TransactionID: record.TransactionID,
		PrevStatus:    prev,
		Writer:        writer,
		Record:        record,
	}
}
