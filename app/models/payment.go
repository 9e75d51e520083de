package models

import "time"

const (
	PaymentTypeInvoice        = "INVOICE"
	PaymentTypeDeposit        = "DEPOSIT"
	PaymentTypeSubscription   = "SUBSCRIPTION"
	PaymentTypeCreditPurchase = "CREDIT_PURCHASE"
	PaymentTypeRefund         = "REFUND"

	PaymentStatusCompleted = "COMPLETED"
	PaymentStatusFailed    = "FAILED"
)

const (
	PaymentRelatedInvoice      = "invoice"
	PaymentRelatedDeposit      = "deposit"
	PaymentRelatedSubscription = "subscription"
)

// Payment is the append-only money ledger: one row per completed or failed
// payment attempt, never mutated after creation. RelatedType/RelatedID is a
// discriminated reference to at most one of Invoice, Deposit or Subscription.
type Payment struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	Type        string    `gorm:"type:varchar(20);not null;index" json:"type"`
	Amount      int64     `gorm:"not null" json:"amount"`
	Currency    string    `gorm:"type:varchar(3);not null;default:'usd'" json:"currency"`
	ProviderFee int64     `gorm:"not null;default:0" json:"provider_fee"`
	ConnectFee  int64     `gorm:"not null;default:0" json:"connect_fee"`
	PlatformFee int64     `gorm:"not null;default:0" json:"platform_fee"`
	NetAmount   int64     `gorm:"not null;default:0" json:"net_amount"`
	Status      string    `gorm:"type:varchar(20);not null;index" json:"status"`
	RelatedType string    `gorm:"type:varchar(20);default:null;index:idx_payments_related" json:"related_type,omitempty"`
	RelatedID   uint      `gorm:"default:null;index:idx_payments_related" json:"related_id,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
