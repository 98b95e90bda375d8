package payment

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jotpay/payment-service/internal/core/datamodel/payment"
)

const (
	DefaultPollInterval    = 5 * time.Second
	DefaultMaxPollAttempts = 12
)

// StatusReader is the read path the fallback poller and CheckNow use.
type StatusReader interface {
	GetPayment(transactionID string) (*payment.Payment, error)
}

// Callbacks holds the status handlers an observation dispatches to.
// Any nil callback is skipped.
type Callbacks struct {
	OnSuccess func(*payment.Payment)
	OnFailed  func(*payment.Payment)
	OnPending func(*payment.Payment)
	OnTimeout func()
	OnChange  func(*payment.Payment)
}

// ObserveConfig configures one observation. The zero value gets the
// defaults: realtime subscription on, 5s poll interval, 12 attempts.
type ObserveConfig struct {
	PollInterval    time.Duration
	MaxPollAttempts int
	// DisableRealtime skips the change-feed subscription, leaving only
	// the poller.
	DisableRealtime bool

	OnSuccess func(*payment.Payment)
	OnFailed  func(*payment.Payment)
	OnPending func(*payment.Payment)
	OnTimeout func()
	OnChange  func(*payment.Payment)
}

func (c *ObserveConfig) callbacks() Callbacks {
	return Callbacks{
		OnSuccess: c.OnSuccess,
		OnFailed:  c.OnFailed,
		OnPending: c.OnPending,
		OnTimeout: c.OnTimeout,
		OnChange:  c.OnChange,
	}
}

func (c *ObserveConfig) withDefaults() ObserveConfig {
	out := *c
	if out.PollInterval <= 0 {
		out.PollInterval = DefaultPollInterval
	}
	if out.MaxPollAttempts <= 0 {
		out.MaxPollAttempts = DefaultMaxPollAttempts
	}
	return out
}

// Watcher runs the dual-channel observation protocol: a push
// subscription to the store's change feed plus a bounded fallback
// poller, merged so that the first terminal report wins regardless of
// which channel delivered it.
type Watcher struct {
	reader StatusReader
	feed   *Feed
	logger *slog.Logger
}

func NewWatcher(reader StatusReader, feed *Feed, logger *slog.Logger) *Watcher {
	return &Watcher{reader: reader, feed: feed, logger: logger}
}

// Handle controls one running observation. Stop is idempotent and safe
// to call after natural termination.
type Handle struct {
	transactionID string
	cfg           ObserveConfig
	logger        *slog.Logger

	mu            sync.Mutex
	stopped       bool
	terminalFired bool
	timeoutFired  bool
	dispatching   sync.WaitGroup

	cancelFeed   func()
	stopPollOnce sync.Once
	pollStop     chan struct{}
}

// Observe starts watching transactionID. Callbacks are invoked from
// the handle's goroutines; the terminal callback fires at most once,
// after which both channels are cancelled.
func (w *Watcher) Observe(transactionID string, cfg ObserveConfig) *Handle {
	cfg = cfg.withDefaults()

	h := &Handle{
		transactionID: transactionID,
		cfg:           cfg,
		logger:        w.logger,
		pollStop:      make(chan struct{}),
		cancelFeed:    func() {},
	}

	if !cfg.DisableRealtime {
		ch, cancel := w.feed.Subscribe(transactionID)
		h.cancelFeed = cancel
		go func() {
			for record := range ch {
				h.dispatch(record)
			}
		}()
	}

	go h.pollLoop(w.reader)

	w.logger.Debug("observation started",
		"transaction_id", transactionID,
		"poll_interval", cfg.PollInterval,
		"max_poll_attempts", cfg.MaxPollAttempts,
		"realtime", !cfg.DisableRealtime)

	return h
}

// CheckNow is a one-shot status read sharing the poller's dispatch
// logic, usable after a timeout without an active handle.
func (w *Watcher) CheckNow(transactionID string, cb Callbacks) error {
	record, err := w.reader.GetPayment(transactionID)
	if err != nil {
		return err
	}
	dispatchRecord(record, cb)
	return nil
}

func (h *Handle) pollLoop(reader StatusReader) {
	ticker := time.NewTicker(h.cfg.PollInterval)
	defer ticker.Stop()

	attempts := 0
	for {
		select {
		case <-h.pollStop:
			return
		case <-ticker.C:
			attempts++
			if attempts > h.cfg.MaxPollAttempts {
				h.fireTimeout()
				return
			}

			record, err := reader.GetPayment(h.transactionID)
			if err != nil {
				h.logger.Warn("status poll failed",
					"transaction_id", h.transactionID,
					"attempt", attempts,
					"error", err)
				continue
			}
			h.dispatch(record)
		}
	}
}

// dispatch routes one observed record. Both channels funnel through
// here; the terminalFired flag is the first-wins completion gate. The
// dispatching group is joined under the lock so Stop can drain
// callbacks already past the stopped check.
func (h *Handle) dispatch(record *payment.Payment) {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}

	terminal := record.Status.IsTerminal()
	if terminal {
		if h.terminalFired {
			h.mu.Unlock()
			return
		}
		h.terminalFired = true
		h.stopChannelsLocked()
	}
	cb := h.cfg.callbacks()
	h.dispatching.Add(1)
	h.mu.Unlock()
	defer h.dispatching.Done()

	dispatchRecord(record, cb)
}

// fireTimeout fires OnTimeout once. Only the poller self-cancels; the
// realtime subscription stays up and may still resolve the payment.
func (h *Handle) fireTimeout() {
	h.mu.Lock()
	if h.stopped || h.terminalFired || h.timeoutFired {
		h.mu.Unlock()
		return
	}
	h.timeoutFired = true
	onTimeout := h.cfg.OnTimeout
	h.dispatching.Add(1)
	h.mu.Unlock()
	defer h.dispatching.Done()

	h.logger.Info("observation poll budget exhausted",
		"transaction_id", h.transactionID,
		"max_poll_attempts", h.cfg.MaxPollAttempts)

	if onTimeout != nil {
		onTimeout()
	}
}

// Stop cancels both channels and blocks until any in-flight callback
// has returned, so no callback runs after Stop. Idempotent. Must not
// be called from inside a callback.
func (h *Handle) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	h.stopChannelsLocked()
	h.mu.Unlock()

	h.dispatching.Wait()
}

func (h *Handle) stopChannelsLocked() {
	h.cancelFeed()
	h.stopPollOnce.Do(func() { close(h.pollStop) })
}

// dispatchRecord applies the status-specific callback rules shared by
// the realtime channel, the poller and CheckNow: OnChange first, then
// the callback for the record's status. CANCELLED is reported through
// OnFailed since it ends the payment unsuccessfully.
func dispatchRecord(record *payment.Payment, cb Callbacks) {
	if cb.OnChange != nil {
		cb.OnChange(record)
	}

	switch record.Status {
	case payment.StatusSuccess:
		if cb.OnSuccess != nil {
			cb.OnSuccess(record)
		}
	case payment.StatusFailed, payment.StatusCancelled:
		if cb.OnFailed != nil {
			cb.OnFailed(record)
		}
	case payment.StatusPending:
		if cb.OnPending != nil {
			cb.OnPending(record)
		}
	}
}
