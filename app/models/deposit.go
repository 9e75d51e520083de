package models

import "time"

const (
	DepositStatusPending = "PENDING"
	DepositStatusPaid    = "PAID"
)

// Deposit is an upfront payment a client makes before project work starts.
// When a deposit with a project reference is paid, the project's DepositPaid
// flag is flipped as part of the same reconciliation pass.
type Deposit struct {
	ID                      uint       `gorm:"primaryKey" json:"id"`
	UserID                  uint       `gorm:"not null;index" json:"user_id"`
	ProjectID               *uint      `gorm:"index" json:"project_id,omitempty"`
	Amount                  int64      `gorm:"not null" json:"amount"`
	Currency                string     `gorm:"type:varchar(3);not null;default:'usd'" json:"currency"`
	Status                  string     `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	Purpose                 string     `gorm:"type:varchar(200)" json:"purpose"`
	PaidAt                  *time.Time `gorm:"type:timestamp;default:null" json:"paid_at,omitempty"`
	StripeCheckoutSessionID string     `gorm:"type:varchar(191);default:null;index" json:"-"`
	CreatedAt               time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt               time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
