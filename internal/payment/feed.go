package payment

import (
	"log/slog"
	"sync"

	"github.com/jotpay/payment-service/internal/core/datamodel/payment"
)

// Feed is the store's change feed: a per-transaction push channel that
// emits the full record on every accepted write. Observers subscribe by
// transaction id; slow subscribers drop intermediate records rather
// than block the committing writer.
type Feed struct {
	mu     sync.RWMutex
	subs   map[string]map[int]chan *payment.Payment
	nextID int
	logger *slog.Logger
}

const feedBuffer = 8

func NewFeed(logger *slog.Logger) *Feed {
	return &Feed{
		subs:   make(map[string]map[int]chan *payment.Payment),
		logger: logger,
	}
}

// Subscribe registers for updates on one transaction id. The returned
// cancel function is idempotent and closes the channel.
func (f *Feed) Subscribe(transactionID string) (<-chan *payment.Payment, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan *payment.Payment, feedBuffer)
	if f.subs[transactionID] == nil {
		f.subs[transactionID] = make(map[int]chan *payment.Payment)
	}
	id := f.nextID
	f.nextID++
	f.subs[transactionID][id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			if chans, ok := f.subs[transactionID]; ok {
				if c, ok := chans[id]; ok {
					delete(chans, id)
					close(c)
				}
				if len(chans) == 0 {
					delete(f.subs, transactionID)
				}
			}
		})
	}

	return ch, cancel
}

// Publish fans the record out to every subscriber of its transaction
// id. Non-blocking: a full subscriber buffer loses the oldest-style
// delivery and the subscriber catches up on the next write or poll.
func (f *Feed) Publish(record *payment.Payment) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, ch := range f.subs[record.TransactionID] {
		select {
		case ch <- record:
		default:
			f.logger.Warn("change feed subscriber lagging, dropping update",
				"transaction_id", record.TransactionID,
				"status", record.Status)
		}
	}
}

// SubscriberCount is used by tests and the ops surface.
func (f *Feed) SubscriberCount(transactionID string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs[transactionID])
}
