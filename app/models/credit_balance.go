package models

import "time"

const (
	CreditTransactionPurchase  = "PURCHASE"
	CreditTransactionDeduction = "DEDUCTION"
)

// CreditBalance holds a user's prepaid credit state. CurrentBalance must never
// go negative, and every CreditTransaction stores the balance after it was
// applied so the balance can be verified by replaying the log.
type CreditBalance struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          uint      `gorm:"not null;uniqueIndex:ux_credit_balances_user" json:"user_id"`
	CurrentBalance  int64     `gorm:"not null;default:0" json:"current_balance"`
	LifetimeCredits int64     `gorm:"not null;default:0" json:"lifetime_credits"`
	LifetimeUsed    int64     `gorm:"not null;default:0" json:"lifetime_used"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// CreditTransaction is one append-only entry in the credit log.
type CreditTransaction struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"not null;index" json:"user_id"`
	Type         string    `gorm:"type:varchar(20);not null" json:"type"`
	Amount       int64     `gorm:"not null" json:"amount"`
	BalanceAfter int64     `gorm:"not null" json:"balance_after"`
	Description  string    `gorm:"type:varchar(255)" json:"description"`
	CreatedAt    time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
