package notification

import (
	"context"
	"fmt"
	"log/slog"

	corepayment "github.com/jotpay/payment-service/internal/core/datamodel/payment"
	"github.com/jotpay/payment-service/internal/core/events"
)

// Dispatcher turns terminal payment transitions into customer emails.
// Delivery is at-least-once: a mail failure is logged and reported to
// the bus but never blocks or rolls back the status write that caused
// it.
type Dispatcher struct {
	mailer Mailer
	logger *slog.Logger
}

func NewDispatcher(mailer Mailer, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		mailer: mailer,
		logger: logger,
	}
}

func (d *Dispatcher) HandlePaymentSucceeded(ctx context.Context, event events.Event) error {
	succeeded, ok := event.(*events.PaymentSucceededEvent)
	if !ok {
		d.logger.Error("invalid event type for payment succeeded handler", "event_type", event.EventType())
		return fmt.Errorf("expected PaymentSucceededEvent, got %T", event)
	}

	record := succeeded.Record
	if record.Email == nil || *record.Email == "" {
		d.logger.Info("no notification email on record, skipping",
			"transaction_id", succeeded.TransactionID)
		return nil
	}

	subject, body := successEmail(record)
	if err := d.mailer.Send(*record.Email, subject, body); err != nil {
		d.logger.Error("failed to send success email",
			"error", err,
			"transaction_id", succeeded.TransactionID,
			"to", *record.Email)
		return err
	}

	d.logger.Info("success email sent",
		"transaction_id", succeeded.TransactionID,
		"to", *record.Email)
	return nil
}

func (d *Dispatcher) HandlePaymentFailed(ctx context.Context, event events.Event) error {
	failed, ok := event.(*events.PaymentFailedEvent)
	if !ok {
		d.logger.Error("invalid event type for payment failed handler", "event_type", event.EventType())
		return fmt.Errorf("expected PaymentFailedEvent, got %T", event)
	}

	record := failed.Record
	if record.Email == nil || *record.Email == "" {
		d.logger.Info("no notification email on record, skipping",
			"transaction_id", failed.TransactionID)
		return nil
	}

	subject, body := failureEmail(record, failed.Reason)
	if err := d.mailer.Send(*record.Email, subject, body); err != nil {
		d.logger.Error("failed to send failure email",
			"error", err,
			"transaction_id", failed.TransactionID,
			"to", *record.Email)
		return err
	}

	d.logger.Info("failure email sent",
		"transaction_id", failed.TransactionID,
		"to", *record.Email)
	return nil
}

func (d *Dispatcher) HandlePaymentCancelled(ctx context.Context, event events.Event) error {
	cancelled, ok := event.(*events.PaymentCancelledEvent)
	if !ok {
		d.logger.Error("invalid event type for payment cancelled handler", "event_type", event.EventType())
		return fmt.Errorf("expected PaymentCancelledEvent, got %T", event)
	}

	record := cancelled.Record
	if record.Email == nil || *record.Email == "" {
		return nil
	}

	subject, body := failureEmail(record, "Payment was cancelled")
	if err := d.mailer.Send(*record.Email, subject, body); err != nil {
		d.logger.Error("failed to send cancellation email",
			"error", err,
			"transaction_id", cancelled.TransactionID,
			"to", *record.Email)
		return err
	}

	return nil
}

func (d *Dispatcher) RegisterEventHandlers(eventBus *events.EventBus) {
	eventBus.Subscribe(events.EventTypePaymentSucceeded, d.HandlePaymentSucceeded)
	eventBus.Subscribe(events.EventTypePaymentFailed, d.HandlePaymentFailed)
	eventBus.Subscribe(events.EventTypePaymentCancelled, d.HandlePaymentCancelled)

	d.logger.Info("notification event handlers registered",
		"handlers", []string{
			events.EventTypePaymentSucceeded,
			events.EventTypePaymentFailed,
			events.EventTypePaymentCancelled,
		})
}

func successEmail(record *corepayment.Payment) (subject, body string) {
	subject = "Payment Successful - Entry Confirmed"
	body = fmt.Sprintf(`Hello,

Your payment has been successfully processed.

Payment Details:
  Transaction ID: %s
  Amount: %s %s
  Contact: %s
  Status: %s

Your entry is now confirmed. Thank you!
`, record.TransactionID, record.Amount.String(), record.Currency, record.PayerContact, record.Status)
	return subject, body
}

func failureEmail(record *corepayment.Payment, reason string) (subject, body string) {
	if reason == "" {
		reason = "Payment was not completed"
	}
	subject = "Payment Failed - Please Retry"
	body = fmt.Sprintf(`Hello,

Unfortunately, your payment could not be processed.

Payment Details:
  Transaction ID: %s
  Amount: %s %s
  Contact: %s
  Reason: %s

What to do next:
  - Check that your account has sufficient funds
  - Verify your contact details are correct
  - Try again in a few moments

If you continue to experience issues, please contact support.
`, record.TransactionID, record.Amount.String(), record.Currency, record.PayerContact, reason)
	return subject, body
}
