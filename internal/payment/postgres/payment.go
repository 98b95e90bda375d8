package postgres

import (
	"time"

	"gorm.io/gorm"

	"github.com/jotpay/payment-service/internal/core/datamodel/payment"
	paymentpkg "github.com/jotpay/payment-service/internal/payment"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) paymentpkg.Repository {
	return &PaymentRepository{
		db: db,
	}
}

func (r *PaymentRepository) Create(p *payment.Payment) error {
	return r.db.Create(p).Error
}

func (r *PaymentRepository) GetByTransactionID(transactionID string) (*payment.Payment, error) {
	var p payment.Payment
	err := r.db.Where("transaction_id = ?", transactionID).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Update persists the full record. Reconciliation holds the
// per-transaction lock across read and update, so no compare-and-set
// clause is needed here.
func (r *PaymentRepository) Update(p *payment.Payment) error {
	return r.db.Model(&payment.Payment{}).
		Where("transaction_id = ?", p.TransactionID).
		Updates(map[string]interface{}{
			"status":             p.Status,
			"status_message":     p.StatusMessage,
			"last_writer":        p.LastWriter,
			"manual_override_by": p.ManualOverrideBy,
			"updated_at":         p.UpdatedAt,
		}).Error
}

func (r *PaymentRepository) ListByEmail(email string) ([]*payment.Payment, error) {
	var records []*payment.Payment
	err := r.db.Where("email = ?", email).Order("created_at DESC").Find(&records).Error
	return records, err
}

func (r *PaymentRepository) ListPendingOlderThan(age time.Duration, limit int) ([]*payment.Payment, error) {
	cutoff := time.Now().UTC().Add(-age)
	var records []*payment.Payment
	err := r.db.Where("status = ? AND updated_at < ?", payment.StatusPending, cutoff).
		Order("updated_at ASC").
		Limit(limit).
		Find(&records).Error
	return records, err
}
