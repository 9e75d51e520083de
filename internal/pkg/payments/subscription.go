package payments

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	stripe "github.com/stripe/stripe-go/v74"
	"gorm.io/gorm"

	"github.com/MarcusWehner/CrewDesk/app/models"
)

// handleSubscriptionCreated resolves the plan display data from the payload
// and upserts the user's single subscription row. When the provider already
// reports the subscription active at creation, the initial payment is
// recorded here so the separately delivered first invoice event does not
// produce a double-charge record.
func (e *Engine) handleSubscriptionCreated(_ context.Context, event *stripe.Event) (Outcome, error) {
	var payload subscriptionPayload
	if err := decodeEvent(event, &payload); err != nil {
		return OutcomeIgnored, err
	}

	outcome := OutcomeApplied
	err := e.repo.Transaction(func(r Repository) error {
		user, err := r.GetUserByStripeCustomerID(payload.Customer)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				log.Printf("subscription %s references unknown customer %s", payload.ID, payload.Customer)
				outcome = OutcomeSkippedMissingEntity
				return nil
			}
			return err
		}

		sub := subscriptionFromPayload(user.ID, &payload)
		if err := r.UpsertSubscription(sub); err != nil {
			return fmt.Errorf("upsert subscription for user %d: %w", user.ID, err)
		}

		if sub.Status == models.SubscriptionStatusActive {
			fees := CalculateFees(sub.Amount, PaymentMethodCard, e.cfg.PlatformFeeRate)
			if err := r.CreatePayment(&models.Payment{
				UserID:      user.ID,
				Type:        models.PaymentTypeSubscription,
				Amount:      sub.Amount,
				Currency:    "usd",
				ProviderFee: fees.ProviderFee,
				ConnectFee:  fees.ConnectFee,
				PlatformFee: fees.PlatformFee,
				NetAmount:   fees.NetAmount,
				Status:      models.PaymentStatusCompleted,
				RelatedType: models.PaymentRelatedSubscription,
				RelatedID:   sub.ID,
			}); err != nil {
				return fmt.Errorf("record initial subscription payment: %w", err)
			}
		}

		return recordActivity(r, models.ActivitySubscriptionCreated, user.ID, "", sub.Status, map[string]interface{}{
			"subscription_id": sub.ID,
			"plan":            sub.Plan,
			"billing":         sub.Billing,
			"amount":          sub.Amount,
		})
	})
	if err != nil {
		return OutcomeIgnored, err
	}
	return outcome, nil
}

// handleSubscriptionUpdated overwrites the local row wholesale with the
// event's values. The provider is authoritative; no field is merged with the
// previous local state. An update for an unknown subscription is skipped, it
// may predate this system's record.
func (e *Engine) handleSubscriptionUpdated(_ context.Context, event *stripe.Event) (Outcome, error) {
	var payload subscriptionPayload
	if err := decodeEvent(event, &payload); err != nil {
		return OutcomeIgnored, err
	}

	outcome := OutcomeApplied
	err := e.repo.Transaction(func(r Repository) error {
		sub, err := r.GetSubscriptionByStripeID(payload.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				log.Printf("update for unknown subscription %s, skipping", payload.ID)
				outcome = OutcomeSkippedMissingEntity
				return nil
			}
			return err
		}

		oldStatus := sub.Status
		applySubscriptionPayload(sub, &payload)
		if err := r.UpdateSubscription(sub); err != nil {
			return fmt.Errorf("update subscription %d: %w", sub.ID, err)
		}

		return recordActivity(r, models.ActivitySubscriptionUpdated, sub.UserID, oldStatus, sub.Status, map[string]interface{}{
			"subscription_id": sub.ID,
			"plan":            sub.Plan,
		})
	})
	if err != nil {
		return OutcomeIgnored, err
	}
	return outcome, nil
}

// handleSubscriptionDeleted forces CANCELED regardless of prior status.
func (e *Engine) handleSubscriptionDeleted(_ context.Context, event *stripe.Event) (Outcome, error) {
	var payload subscriptionPayload
	if err := decodeEvent(event, &payload); err != nil {
		return OutcomeIgnored, err
	}

	outcome := OutcomeApplied
	err := e.repo.Transaction(func(r Repository) error {
		sub, err := r.GetSubscriptionByStripeID(payload.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				log.Printf("deletion for unknown subscription %s, skipping", payload.ID)
				outcome = OutcomeSkippedMissingEntity
				return nil
			}
			return err
		}

		oldStatus := sub.Status
		canceledAt := time.Now()
		if payload.CanceledAt > 0 {
			canceledAt = time.Unix(payload.CanceledAt, 0)
		}
		sub.Status = models.SubscriptionStatusCanceled
		sub.CanceledAt = &canceledAt
		if err := r.UpdateSubscription(sub); err != nil {
			return fmt.Errorf("cancel subscription %d: %w", sub.ID, err)
		}

		return recordActivity(r, models.ActivitySubscriptionCanceled, sub.UserID, oldStatus, sub.Status, map[string]interface{}{
			"subscription_id": sub.ID,
		})
	})
	if err != nil {
		return OutcomeIgnored, err
	}
	return outcome, nil
}

// handleRecurringInvoicePaid records a successful recurring charge against
// the subscription and confirms it active.
func (e *Engine) handleRecurringInvoicePaid(_ context.Context, event *stripe.Event) (Outcome, error) {
	var payload subscriptionInvoicePayload
	if err := decodeEvent(event, &payload); err != nil {
		return OutcomeIgnored, err
	}
	if payload.Subscription == "" {
		// One-off invoices are not subscription renewals.
		log.Printf("invoice %s has no subscription reference, ignoring", payload.ID)
		return OutcomeIgnored, nil
	}

	outcome := OutcomeApplied
	err := e.repo.Transaction(func(r Repository) error {
		sub, err := r.GetSubscriptionByStripeID(payload.Subscription)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				log.Printf("renewal for unknown subscription %s, skipping", payload.Subscription)
				outcome = OutcomeSkippedMissingEntity
				return nil
			}
			return err
		}

		oldStatus := sub.Status
		sub.Status = models.SubscriptionStatusActive
		if err := r.UpdateSubscription(sub); err != nil {
			return fmt.Errorf("update subscription %d: %w", sub.ID, err)
		}

		fees := CalculateFees(payload.AmountPaid, PaymentMethodCard, e.cfg.PlatformFeeRate)
		if fees.Clamped {
			log.Printf("fee schedule produced negative net for subscription %d renewal (gross %d), clamped to zero", sub.ID, payload.AmountPaid)
		}
		if err := r.CreatePayment(&models.Payment{
			UserID:      sub.UserID,
			Type:        models.PaymentTypeSubscription,
			Amount:      payload.AmountPaid,
			Currency:    payload.Currency,
			ProviderFee: fees.ProviderFee,
			ConnectFee:  fees.ConnectFee,
			PlatformFee: fees.PlatformFee,
			NetAmount:   fees.NetAmount,
			Status:      models.PaymentStatusCompleted,
			RelatedType: models.PaymentRelatedSubscription,
			RelatedID:   sub.ID,
		}); err != nil {
			return fmt.Errorf("record subscription renewal payment: %w", err)
		}

		return recordActivity(r, models.ActivitySubscriptionRenewed, sub.UserID, oldStatus, sub.Status, map[string]interface{}{
			"subscription_id": sub.ID,
			"amount":          payload.AmountPaid,
			"stripe_invoice":  payload.ID,
		})
	})
	if err != nil {
		return OutcomeIgnored, err
	}
	return outcome, nil
}

// handleRecurringInvoiceFailed marks the subscription past due and records
// the failed attempt.
func (e *Engine) handleRecurringInvoiceFailed(_ context.Context, event *stripe.Event) (Outcome, error) {
	var payload subscriptionInvoicePayload
	if err := decodeEvent(event, &payload); err != nil {
		return OutcomeIgnored, err
	}
	if payload.Subscription == "" {
		log.Printf("invoice %s has no subscription reference, ignoring", payload.ID)
		return OutcomeIgnored, nil
	}

	outcome := OutcomeApplied
	err := e.repo.Transaction(func(r Repository) error {
		sub, err := r.GetSubscriptionByStripeID(payload.Subscription)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				log.Printf("failed renewal for unknown subscription %s, skipping", payload.Subscription)
				outcome = OutcomeSkippedMissingEntity
				return nil
			}
			return err
		}

		oldStatus := sub.Status
		sub.Status = models.SubscriptionStatusPastDue
		if err := r.UpdateSubscription(sub); err != nil {
			return fmt.Errorf("update subscription %d: %w", sub.ID, err)
		}

		if err := r.CreatePayment(&models.Payment{
			UserID:      sub.UserID,
			Type:        models.PaymentTypeSubscription,
			Amount:      payload.AmountDue,
			Currency:    payload.Currency,
			Status:      models.PaymentStatusFailed,
			RelatedType: models.PaymentRelatedSubscription,
			RelatedID:   sub.ID,
		}); err != nil {
			return fmt.Errorf("record failed subscription payment: %w", err)
		}

		return recordActivity(r, models.ActivitySubscriptionPastDue, sub.UserID, oldStatus, sub.Status, map[string]interface{}{
			"subscription_id": sub.ID,
			"amount_due":      payload.AmountDue,
			"stripe_invoice":  payload.ID,
		})
	})
	if err != nil {
		return OutcomeIgnored, err
	}
	return outcome, nil
}

// subscriptionFromPayload builds a fresh local row from a created event.
func subscriptionFromPayload(userID uint, p *subscriptionPayload) *models.Subscription {
	sub := &models.Subscription{UserID: userID}
	applySubscriptionPayload(sub, p)
	return sub
}

// applySubscriptionPayload overwrites every provider-owned field from the
// payload. Values are taken verbatim, no merging with the previous state.
func applySubscriptionPayload(sub *models.Subscription, p *subscriptionPayload) {
	sub.StripeSubscriptionID = p.ID
	sub.Status = models.SubscriptionStatusFromStripe(p.Status)
	sub.CancelAtPeriodEnd = p.CancelAtPeriodEnd

	if p.CanceledAt > 0 {
		t := time.Unix(p.CanceledAt, 0)
		sub.CanceledAt = &t
	} else {
		sub.CanceledAt = nil
	}
	if p.CurrentPeriodStart > 0 {
		t := time.Unix(p.CurrentPeriodStart, 0)
		sub.CurrentPeriodStart = &t
	} else {
		sub.CurrentPeriodStart = nil
	}
	if p.CurrentPeriodEnd > 0 {
		t := time.Unix(p.CurrentPeriodEnd, 0)
		sub.CurrentPeriodEnd = &t
	} else {
		sub.CurrentPeriodEnd = nil
	}

	if len(p.Items.Data) > 0 {
		price := p.Items.Data[0].Price
		sub.StripePriceID = price.ID
		sub.Amount = price.UnitAmount
		sub.Plan = planDisplayName(p.Metadata, price.Nickname, price.Product)
		if price.Recurring.Interval == "year" {
			sub.Billing = models.BillingIntervalAnnual
		} else {
			sub.Billing = models.BillingIntervalMonthly
		}
	}
}

// planDisplayName prefers an explicit plan name in the subscription metadata,
// then the price nickname, then the product reference.
func planDisplayName(metadata map[string]string, nickname, product string) string {
	if name := metadata["plan"]; name != "" {
		return name
	}
	if nickname != "" {
		return nickname
	}
	return product
}
