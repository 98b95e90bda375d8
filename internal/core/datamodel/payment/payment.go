package payment

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Status is the internal payment state machine. PENDING is initial,
// SUCCESS/FAILED/CANCELLED are terminal. UNKNOWN classifies processor
// output we do not recognize; it is never persisted on a record.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusSuccess   Status = "SUCCESS"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
	StatusUnknown   Status = "UNKNOWN"
)

// IsTerminal reports whether s permits no further non-admin transition.
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusCancelled
}

// Channel is the collection/disbursement rail a payment runs on.
type Channel string

const (
	ChannelMobileMoney Channel = "MobileMoney"
	ChannelBankAccount Channel = "BankAccount"
)

// Writer tags which source produced the current status, for audit.
type Writer string

const (
	WriterInitiation Writer = "initiation"
	WriterWebhook    Writer = "webhook"
	WriterPoll       Writer = "poll"
	WriterAdmin      Writer = "admin"
)

// Payment is one row per processor transaction; transaction_id is the
// processor-assigned identifier and the only lookup key.
type Payment struct {
	TransactionID    string          `json:"transaction_id" gorm:"column:transaction_id;primaryKey"`
	Amount           decimal.Decimal `json:"amount" gorm:"column:amount;type:numeric(20,4);not null"`
	Currency         string          `json:"currency" gorm:"column:currency;not null"`
	Channel          Channel         `json:"channel" gorm:"column:channel;not null"`
	PayerContact     string          `json:"payer_contact" gorm:"column:payer_contact;not null"`
	Email            *string         `json:"email,omitempty" gorm:"column:email;index"`
	Status           Status          `json:"status" gorm:"column:status;default:PENDING"`
	StatusMessage    string          `json:"status_message" gorm:"column:status_message"`
	LastWriter       Writer          `json:"last_writer" gorm:"column:last_writer"`
	ManualOverrideBy *string         `json:"manual_override_by,omitempty" gorm:"column:manual_override_by"`
	CreatedAt        time.Time       `json:"created_at" gorm:"column:created_at"`
	UpdatedAt        time.Time       `json:"updated_at" gorm:"column:updated_at"`
}

func (Payment) TableName() string {
	return "payments"
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	return nil
}
