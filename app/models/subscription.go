package models

import "time"

const (
	SubscriptionStatusActive            = "ACTIVE"
	SubscriptionStatusPastDue           = "PAST_DUE"
	SubscriptionStatusCanceled          = "CANCELED"
	SubscriptionStatusIncomplete        = "INCOMPLETE"
	SubscriptionStatusIncompleteExpired = "INCOMPLETE_EXPIRED"
	SubscriptionStatusTrialing          = "TRIALING"
	SubscriptionStatusUnpaid            = "UNPAID"
)

const (
	BillingIntervalMonthly = "MONTHLY"
	BillingIntervalAnnual  = "ANNUAL"
)

// Subscription mirrors the provider's subscription state for one user. The
// unique index on user_id enforces at most one subscription per user; status
// and period fields are overwritten wholesale from provider events, the
// provider is the system of record.
type Subscription struct {
	ID                   uint       `gorm:"primaryKey" json:"id"`
	UserID               uint       `gorm:"not null;uniqueIndex:ux_subscriptions_user" json:"user_id"`
	Plan                 string     `gorm:"type:varchar(100);not null" json:"plan"`
	Amount               int64      `gorm:"not null" json:"amount"`
	Billing              string     `gorm:"type:varchar(10);not null;default:'MONTHLY'" json:"billing"`
	Status               string     `gorm:"type:varchar(30);not null;default:'INCOMPLETE';index" json:"status"`
	CurrentPeriodStart   *time.Time `gorm:"type:timestamp;default:null" json:"current_period_start,omitempty"`
	CurrentPeriodEnd     *time.Time `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	CancelAtPeriodEnd    bool       `gorm:"default:false" json:"cancel_at_period_end"`
	CanceledAt           *time.Time `gorm:"type:timestamp;default:null" json:"canceled_at,omitempty"`
	StripeSubscriptionID string     `gorm:"type:varchar(191);not null;uniqueIndex:ux_subscriptions_stripe_sub" json:"-"`
	StripePriceID        string     `gorm:"type:varchar(191);default:null" json:"-"`
	CreatedAt            time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// SubscriptionStatusFromStripe maps Stripe's subscription status values onto
// the local enum. Unknown values map to INCOMPLETE rather than failing the
// event, new provider statuses must not break reconciliation.
func SubscriptionStatusFromStripe(status string) string {
	switch status {
	case "active":
		return SubscriptionStatusActive
	case "past_due":
		return SubscriptionStatusPastDue
	case "canceled":
		return SubscriptionStatusCanceled
	case "incomplete":
		return SubscriptionStatusIncomplete
	case "incomplete_expired":
		return SubscriptionStatusIncompleteExpired
	case "trialing":
		return SubscriptionStatusTrialing
	case "unpaid":
		return SubscriptionStatusUnpaid
	default:
		return SubscriptionStatusIncomplete
	}
}
