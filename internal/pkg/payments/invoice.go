package payments

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	stripe "github.com/stripe/stripe-go/v74"
	"gorm.io/gorm"

	"github.com/MarcusWehner/CrewDesk/app/models"
)

// applyInvoiceCheckout marks the referenced invoice PAID, records the payment
// ledger row with its fee breakdown and appends the audit entry. A missing
// invoice is a data-integrity warning, not a processing failure: the event is
// skipped so provider redeliveries do not loop on it.
func (e *Engine) applyInvoiceCheckout(_ context.Context, session *checkoutSessionPayload) (Outcome, error) {
	invoiceID, ok := parseMetadataID(session.Metadata, MetaKeyInvoiceID)
	if !ok {
		log.Printf("checkout session %s of type invoice carries no usable invoice_id", session.ID)
		return OutcomeSkippedMissingEntity, nil
	}

	outcome := OutcomeApplied
	err := e.repo.Transaction(func(r Repository) error {
		inv, err := r.GetInvoiceByID(invoiceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				log.Printf("checkout session %s references unknown invoice %d", session.ID, invoiceID)
				outcome = OutcomeSkippedMissingEntity
				return nil
			}
			return err
		}

		if inv.Status == models.InvoiceStatusPaid {
			// PAID is monotonic; a replayed completion changes nothing.
			outcome = OutcomeIgnored
			return nil
		}

		fees := CalculateFees(inv.Amount, PaymentMethodCard, e.cfg.PlatformFeeRate)
		if fees.Clamped {
			log.Printf("fee schedule produced negative net for invoice %d (gross %d), clamped to zero", inv.ID, inv.Amount)
		}

		oldStatus := inv.Status
		now := time.Now()
		inv.Status = models.InvoiceStatusPaid
		inv.PaidAt = &now
		inv.StripeCheckoutSessionID = session.ID
		inv.StripePaymentIntentID = session.PaymentIntent
		if err := r.UpdateInvoice(inv); err != nil {
			return fmt.Errorf("update invoice %d: %w", inv.ID, err)
		}

		if err := r.CreatePayment(&models.Payment{
			UserID:      inv.UserID,
			Type:        models.PaymentTypeInvoice,
			Amount:      inv.Amount,
			Currency:    inv.Currency,
			ProviderFee: fees.ProviderFee,
			ConnectFee:  fees.ConnectFee,
			PlatformFee: fees.PlatformFee,
			NetAmount:   fees.NetAmount,
			Status:      models.PaymentStatusCompleted,
			RelatedType: models.PaymentRelatedInvoice,
			RelatedID:   inv.ID,
		}); err != nil {
			return fmt.Errorf("record invoice payment: %w", err)
		}

		return recordActivity(r, models.ActivityInvoicePaid, inv.UserID, oldStatus, inv.Status, map[string]interface{}{
			"invoice_id":       inv.ID,
			"amount":           inv.Amount,
			"checkout_session": session.ID,
		})
	})
	if err != nil {
		return OutcomeIgnored, err
	}
	return outcome, nil
}

// handlePaymentIntentFailed moves the referenced invoice to OVERDUE and
// records the failed attempt. OVERDUE is not terminal; a later successful
// retry still moves the invoice to PAID.
func (e *Engine) handlePaymentIntentFailed(_ context.Context, event *stripe.Event) (Outcome, error) {
	var intent paymentIntentPayload
	if err := decodeEvent(event, &intent); err != nil {
		return OutcomeIgnored, err
	}

	invoiceID, ok := parseMetadataID(intent.Metadata, MetaKeyInvoiceID)
	if !ok {
		log.Printf("payment intent %s carries no invoice reference, ignoring", intent.ID)
		return OutcomeIgnored, nil
	}

	failureMsg := ""
	if intent.LastPaymentError != nil {
		failureMsg = intent.LastPaymentError.Message
	}

	outcome := OutcomeApplied
	err := e.repo.Transaction(func(r Repository) error {
		inv, err := r.GetInvoiceByID(invoiceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				log.Printf("payment intent %s references unknown invoice %d", intent.ID, invoiceID)
				outcome = OutcomeSkippedMissingEntity
				return nil
			}
			return err
		}

		if inv.Status == models.InvoiceStatusPaid {
			// A stale failure for an already-paid invoice must not revert it.
			outcome = OutcomeIgnored
			return nil
		}

		oldStatus := inv.Status
		inv.Status = models.InvoiceStatusOverdue
		inv.StripePaymentIntentID = intent.ID
		if err := r.UpdateInvoice(inv); err != nil {
			return fmt.Errorf("update invoice %d: %w", inv.ID, err)
		}

		if err := r.CreatePayment(&models.Payment{
			UserID:      inv.UserID,
			Type:        models.PaymentTypeInvoice,
			Amount:      inv.Amount,
			Currency:    inv.Currency,
			Status:      models.PaymentStatusFailed,
			RelatedType: models.PaymentRelatedInvoice,
			RelatedID:   inv.ID,
		}); err != nil {
			return fmt.Errorf("record failed invoice payment: %w", err)
		}

		return recordActivity(r, models.ActivityInvoicePaymentFailed, inv.UserID, oldStatus, inv.Status, map[string]interface{}{
			"invoice_id":     inv.ID,
			"payment_intent": intent.ID,
			"failure":        failureMsg,
		})
	})
	if err != nil {
		return OutcomeIgnored, err
	}
	return outcome, nil
}

// parseMetadataID reads a numeric entity ID out of checkout/intent metadata.
func parseMetadataID(metadata map[string]string, key string) (uint, bool) {
	raw, ok := metadata[key]
	if !ok || raw == "" {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
