package models

import "time"

const (
	ActivityInvoicePaid          = "invoice_paid"
	ActivityInvoicePaymentFailed = "invoice_payment_failed"
	ActivityDepositPaid          = "deposit_paid"
	ActivitySubscriptionCreated  = "subscription_created"
	ActivitySubscriptionUpdated  = "subscription_updated"
	ActivitySubscriptionCanceled = "subscription_canceled"
	ActivitySubscriptionRenewed  = "subscription_renewed"
	ActivitySubscriptionPastDue  = "subscription_past_due"
	ActivityPayoutCompleted      = "payout_completed"
	ActivityPayoutFailed         = "payout_failed"
	ActivityOnboardingUpdated    = "onboarding_updated"
	ActivityCreditsPurchased     = "credits_purchased"
	ActivityCreditsDeducted      = "credits_deducted"
)

// ActivityLog is the append-only audit trail. The reconciliation engine only
// ever writes it; nothing in the engine reads it back.
type ActivityLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Type      string    `gorm:"type:varchar(50);not null;index" json:"type"`
	UserID    uint      `gorm:"index" json:"user_id"`
	OldValue  string    `gorm:"type:varchar(255);default:null" json:"old_value,omitempty"`
	NewValue  string    `gorm:"type:varchar(255);default:null" json:"new_value,omitempty"`
	Metadata  string    `gorm:"type:text" json:"metadata"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
