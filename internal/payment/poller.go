package payment

import (
	"context"
	"log/slog"
	"time"

	"github.com/jotpay/payment-service/internal/core/datamodel/payment"
)

// Reconciler is the server-side fallback writer: it periodically asks
// the processor about payments still PENDING after a grace period and
// feeds the answers through ApplyStatus with the poll writer tag.
// Already-settled records reject the write via the terminal lock, so
// racing a webhook is harmless.
type Reconciler struct {
	service    *Service
	processor  Processor
	interval   time.Duration
	pendingAge time.Duration
	batchSize  int
	logger     *slog.Logger
}

func NewReconciler(service *Service, processor Processor, interval, pendingAge time.Duration, batchSize int, logger *slog.Logger) *Reconciler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Reconciler{
		service:    service,
		processor:  processor,
		interval:   interval,
		pendingAge: pendingAge,
		batchSize:  batchSize,
		logger:     logger,
	}
}

// Run blocks until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("background reconciler started",
		"interval", r.interval,
		"pending_age", r.pendingAge,
		"batch_size", r.batchSize)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("background reconciler stopped")
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce processes a single batch of stale PENDING records.
func (r *Reconciler) RunOnce(ctx context.Context) {
	records, err := r.service.ListStalePending(r.pendingAge, r.batchSize)
	if err != nil {
		r.logger.Error("failed to list stale pending payments", "error", err)
		return
	}

	if len(records) == 0 {
		return
	}

	r.logger.Debug("reconciling stale pending payments", "count", len(records))

	for _, record := range records {
		if ctx.Err() != nil {
			return
		}
		r.reconcileOne(ctx, record.TransactionID)
	}
}

func (r *Reconciler) reconcileOne(ctx context.Context, transactionID string) {
	result, err := r.processor.TransactionStatus(ctx, transactionID)
	if err != nil {
		r.logger.Warn("processor status poll failed",
			"transaction_id", transactionID,
			"error", err)
		return
	}

	applied, err := r.service.ApplyStatus(ctx, ApplyStatusParams{
		TransactionID: transactionID,
		RawStatus:     result.Status,
		StatusMessage: result.StatusMessage,
		Writer:        payment.WriterPoll,
	})
	if err != nil {
		r.logger.Error("failed to apply polled status",
			"transaction_id", transactionID,
			"error", err)
		return
	}

	if applied.Transition {
		r.logger.Info("payment resolved by background poll",
			"transaction_id", transactionID,
			"status", applied.FinalStatus)
	}
}
