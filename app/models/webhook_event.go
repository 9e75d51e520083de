package models

import "time"

// WebhookEvent stores one row per provider event ID. The unique index on
// stripe_event_id is the dedupe primitive for at-most-once side effects under
// at-least-once delivery: the first delivery claims the row, later deliveries
// of a processed event short-circuit, and a failed row stays claimable for
// provider retries.
type WebhookEvent struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	StripeEventID string     `gorm:"type:varchar(191);not null;uniqueIndex:ux_webhook_events_stripe_event" json:"stripe_event_id"`
	EventType     string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	ProcessedAt   *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	FailedAt      *time.Time `gorm:"type:timestamp;default:null" json:"failed_at,omitempty"`
	ErrorMessage  string     `gorm:"type:text" json:"error_message"`
	CreatedAt     time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
