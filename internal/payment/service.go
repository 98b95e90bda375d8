package payment

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	errors "github.com/jotpay/payment-service/internal"
	"github.com/jotpay/payment-service/internal/core/datamodel/payment"
	"github.com/jotpay/payment-service/internal/core/events"
)

// Repository is the persistence boundary for payment records. Records
// are never deleted; retention is outside this service's scope.
type Repository interface {
	Create(p *payment.Payment) error
	GetByTransactionID(transactionID string) (*payment.Payment, error)
	Update(p *payment.Payment) error
	ListByEmail(email string) ([]*payment.Payment, error)
	ListPendingOlderThan(age time.Duration, limit int) ([]*payment.Payment, error)
}

// ApplyStatusParams is one status report from any writer.
type ApplyStatusParams struct {
	TransactionID string
	RawStatus     string
	StatusMessage string
	Writer        payment.Writer
	AdminOverride bool
	// OverrideBy identifies the administrator when AdminOverride is set.
	OverrideBy string
}

// ApplyResult reports what the reconciliation decided. Accepted is
// false for unknown statuses and terminal-lock rejections; both are
// expected outcomes, not errors.
type ApplyResult struct {
	Accepted    bool
	Transition  bool
	FinalStatus payment.Status
	Record      *payment.Payment
}

// Service is the single write path for payment records. Every status
// report, regardless of source, funnels through ApplyStatus under a
// per-transaction lock so concurrent webhook/poll/admin reports cannot
// interleave.
type Service struct {
	repo     Repository
	feed     *Feed
	eventBus *events.EventBus
	locks    *keyLock
	logger   *slog.Logger
}

func NewService(repo Repository, feed *Feed, eventBus *events.EventBus, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		feed:     feed,
		eventBus: eventBus,
		locks:    newKeyLock(),
		logger:   logger,
	}
}

// Feed exposes the change feed for observers.
func (s *Service) Feed() *Feed {
	return s.feed
}

// CreateRecord inserts the initial PENDING record for a freshly
// initiated payment and announces it on the change feed.
func (s *Service) CreateRecord(ctx context.Context, record *payment.Payment) error {
	record.Status = payment.StatusPending
	record.LastWriter = payment.WriterInitiation

	s.locks.Lock(record.TransactionID)
	defer s.locks.Unlock(record.TransactionID)

	if err := s.repo.Create(record); err != nil {
		s.logger.Error("failed to create payment record",
			"error", err,
			"transaction_id", record.TransactionID)
		return errors.NewInternalError("failed to create payment record", err)
	}

	s.logger.Info("payment record created",
		"transaction_id", record.TransactionID,
		"amount", record.Amount,
		"channel", record.Channel)

	s.feed.Publish(record)
	return nil
}

// ApplyStatus merges one status report into the record, enforcing the
// terminal lock, unknown-status no-op and duplicate idempotency rules.
// All read-then-write steps for a transaction id run as one atomic unit.
func (s *Service) ApplyStatus(ctx context.Context, params ApplyStatusParams) (*ApplyResult, error) {
	s.locks.Lock(params.TransactionID)
	defer s.locks.Unlock(params.TransactionID)

	record, err := s.repo.GetByTransactionID(params.TransactionID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrPaymentNotFound
		}
		return nil, errors.NewInternalError("failed to load payment record", err)
	}

	newStatus := NormalizeStatus(params.RawStatus)

	if newStatus == payment.StatusUnknown {
		rejectedWritesTotal.WithLabelValues("unknown_status").Inc()
		s.logger.Warn("unrecognized processor status, record untouched",
			"transaction_id", params.TransactionID,
			"raw_status", params.RawStatus,
			"writer", params.Writer)
		return &ApplyResult{Accepted: false, FinalStatus: record.Status, Record: record}, nil
	}

	// Terminal lock: a settled payment cannot be flipped by stale or
	// duplicate webhook/poll reports. Only an admin override passes.
	if record.Status.IsTerminal() && !params.AdminOverride {
		rejectedWritesTotal.WithLabelValues("terminal_lock").Inc()
		s.logger.Info("status write rejected by terminal lock",
			"transaction_id", params.TransactionID,
			"current_status", record.Status,
			"reported_status", newStatus,
			"writer", params.Writer)
		return &ApplyResult{Accepted: false, FinalStatus: record.Status, Record: record}, nil
	}

	prevStatus := record.Status
	transition := newStatus != prevStatus

	// Same (status, message) pair twice is idempotent: the audit fields
	// refresh but no transition is recorded and nothing fires twice.
	if !transition && record.StatusMessage == params.StatusMessage {
		record.UpdatedAt = time.Now().UTC()
		record.LastWriter = params.Writer
		if params.AdminOverride {
			record.ManualOverrideBy = &params.OverrideBy
		}
		if err := s.repo.Update(record); err != nil {
			return nil, errors.NewInternalError("failed to refresh payment record", err)
		}
		s.logger.Debug("duplicate status report, refreshed audit fields only",
			"transaction_id", params.TransactionID,
			"status", record.Status,
			"writer", params.Writer)
		return &ApplyResult{Accepted: true, Transition: false, FinalStatus: record.Status, Record: record}, nil
	}

	record.Status = newStatus
	record.StatusMessage = params.StatusMessage
	record.LastWriter = params.Writer
	record.UpdatedAt = time.Now().UTC()
	if params.AdminOverride {
		record.ManualOverrideBy = &params.OverrideBy
	}

	if err := s.repo.Update(record); err != nil {
		s.logger.Error("failed to persist status update",
			"error", err,
			"transaction_id", params.TransactionID)
		return nil, errors.NewInternalError("failed to persist status update", err)
	}

	s.logger.Info("payment status updated",
		"transaction_id", params.TransactionID,
		"old_status", prevStatus,
		"new_status", newStatus,
		"writer", params.Writer,
		"admin_override", params.AdminOverride)

	if transition {
		transitionsTotal.WithLabelValues(string(newStatus), string(params.Writer)).Inc()
		s.feed.Publish(record)
		s.publishTransitionEvent(ctx, prevStatus, params.Writer, record)
	}

	return &ApplyResult{Accepted: true, Transition: transition, FinalStatus: newStatus, Record: record}, nil
}

func (s *Service) publishTransitionEvent(ctx context.Context, prev payment.Status, writer payment.Writer, record *payment.Payment) {
	var event events.Event
	switch record.Status {
	case payment.StatusSuccess:
		event = events.NewPaymentSucceededEvent(prev, writer, record)
	case payment.StatusFailed:
		event = events.NewPaymentFailedEvent(prev, writer, record)
	case payment.StatusCancelled:
		event = events.NewPaymentCancelledEvent(prev, writer, record)
	default:
		return
	}

	if err := s.eventBus.Publish(ctx, event); err != nil {
		s.logger.Error("failed to publish transition event",
			"error", err,
			"transaction_id", record.TransactionID,
			"event_type", event.EventType())
	}
}

// GetPayment is the status read path used by polling, CheckNow and the
// HTTP read endpoint.
func (s *Service) GetPayment(transactionID string) (*payment.Payment, error) {
	record, err := s.repo.GetByTransactionID(transactionID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrPaymentNotFound
		}
		return nil, errors.NewInternalError("failed to load payment record", err)
	}
	return record, nil
}

// ListPaymentsByEmail returns a payer's history, newest first.
func (s *Service) ListPaymentsByEmail(email string) ([]*payment.Payment, error) {
	records, err := s.repo.ListByEmail(email)
	if err != nil {
		return nil, errors.NewInternalError(fmt.Sprintf("failed to list payments for %s", email), err)
	}
	return records, nil
}

// ListStalePending feeds the background reconciler.
func (s *Service) ListStalePending(age time.Duration, limit int) ([]*payment.Payment, error) {
	records, err := s.repo.ListPendingOlderThan(age, limit)
	if err != nil {
		return nil, errors.NewInternalError("failed to list pending payments", err)
	}
	return records, nil
}
