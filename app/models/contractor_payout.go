package models

import "time"

const (
	PayoutStatusPending    = "PENDING"
	PayoutStatusProcessing = "PROCESSING"
	PayoutStatusCompleted  = "COMPLETED"
	PayoutStatusFailed     = "FAILED"
)

// ContractorPayout batches many ProjectAssignments into one Stripe transfer to
// a contractor's connected account. A failed transfer resets the linked
// assignments back to PENDING so they can be re-batched; this is a
// compensating action, the payout row itself keeps its FAILED state.
type ContractorPayout struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	ContractorID     uint       `gorm:"not null;index" json:"contractor_id"`
	BatchRef         string     `gorm:"type:varchar(64);not null;uniqueIndex:ux_contractor_payouts_batch" json:"batch_ref"`
	Amount           int64      `gorm:"not null" json:"amount"`
	Currency         string     `gorm:"type:varchar(3);not null;default:'usd'" json:"currency"`
	Status           string     `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	StripeTransferID string     `gorm:"type:varchar(191);default:null;uniqueIndex:ux_contractor_payouts_transfer" json:"-"`
	CompletedAt      *time.Time `gorm:"type:timestamp;default:null" json:"completed_at,omitempty"`
	FailureReason    string     `gorm:"type:text" json:"failure_reason"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
