package models

import "time"

const (
	AssignmentPaymentPending    = "PENDING"
	AssignmentPaymentProcessing = "PROCESSING"
	AssignmentPaymentPaid       = "PAID"
)

// ProjectAssignment links a contractor to a project with an agreed rate.
// PaymentStatus tracks the payout lifecycle: PENDING assignments are eligible
// for batching, PROCESSING ones are attached to an in-flight ContractorPayout,
// and a failed transfer resets them to PENDING for re-batching.
type ProjectAssignment struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ProjectID     uint      `gorm:"not null;index" json:"project_id"`
	ContractorID  uint      `gorm:"not null;index" json:"contractor_id"`
	Amount        int64     `gorm:"not null" json:"amount"`
	PaymentStatus string    `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"payment_status"`
	PayoutID      *uint     `gorm:"index" json:"payout_id,omitempty"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
