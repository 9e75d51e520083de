package models

import "time"

const (
	InvoiceStatusPending = "PENDING"
	InvoiceStatusPaid    = "PAID"
	InvoiceStatusOverdue = "OVERDUE"
)

// Invoice is a client-facing invoice. Amounts are in currency minor units
// (cents). Status moves PENDING -> PAID on checkout completion and PENDING ->
// OVERDUE on a failed payment intent; OVERDUE can still become PAID on a
// later successful retry, PAID never reverts.
type Invoice struct {
	ID                      uint       `gorm:"primaryKey" json:"id"`
	UserID                  uint       `gorm:"not null;index" json:"user_id"`
	ProjectID               *uint      `gorm:"index" json:"project_id,omitempty"`
	Number                  string     `gorm:"type:varchar(50);default:null;index" json:"number"`
	Description             string     `gorm:"type:text" json:"description"`
	Amount                  int64      `gorm:"not null" json:"amount"`
	Currency                string     `gorm:"type:varchar(3);not null;default:'usd'" json:"currency"`
	Status                  string     `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	DueAt                   *time.Time `gorm:"type:timestamp;default:null" json:"due_at,omitempty"`
	PaidAt                  *time.Time `gorm:"type:timestamp;default:null" json:"paid_at,omitempty"`
	StripeCheckoutSessionID string     `gorm:"type:varchar(191);default:null;index" json:"-"`
	StripePaymentIntentID   string     `gorm:"type:varchar(191);default:null;index" json:"-"`
	CreatedAt               time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt               time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
