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

// resolveTransfer returns the transfer state, fetching the full object from
// the provider when the webhook payload arrived thin (status fields absent).
func (e *Engine) resolveTransfer(ctx context.Context, payload *transferPayload) (*TransferState, error) {
	if payload.Status != "" {
		return &TransferState{
			ID:             payload.ID,
			Amount:         payload.Amount,
			Currency:       payload.Currency,
			Status:         payload.Status,
			FailureMessage: payload.FailureMessage,
		}, nil
	}
	full, err := e.provider.GetTransfer(ctx, payload.ID)
	if err != nil {
		return nil, fmt.Errorf("resolve thin transfer %s: %w", payload.ID, err)
	}
	return full, nil
}

// handleTransferPaid completes the contractor payout linked to the transfer.
func (e *Engine) handleTransferPaid(ctx context.Context, event *stripe.Event) (Outcome, error) {
	var payload transferPayload
	if err := decodeEvent(event, &payload); err != nil {
		return OutcomeIgnored, err
	}

	transfer, err := e.resolveTransfer(ctx, &payload)
	if err != nil {
		return OutcomeIgnored, err
	}

	outcome := OutcomeApplied
	err = e.repo.Transaction(func(r Repository) error {
		payout, err := r.GetPayoutByTransferID(transfer.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				log.Printf("transfer %s has no local payout record, skipping", transfer.ID)
				outcome = OutcomeSkippedMissingEntity
				return nil
			}
			return err
		}

		if payout.Status == models.PayoutStatusCompleted {
			outcome = OutcomeIgnored
			return nil
		}

		oldStatus := payout.Status
		now := time.Now()
		payout.Status = models.PayoutStatusCompleted
		payout.CompletedAt = &now
		if err := r.UpdatePayout(payout); err != nil {
			return fmt.Errorf("update payout %d: %w", payout.ID, err)
		}

		return recordActivity(r, models.ActivityPayoutCompleted, payout.ContractorID, oldStatus, payout.Status, map[string]interface{}{
			"payout_id": payout.ID,
			"transfer":  transfer.ID,
			"amount":    payout.Amount,
		})
	})
	if err != nil {
		return OutcomeIgnored, err
	}
	return outcome, nil
}

// handleTransferFailed fails the payout and resets every linked assignment's
// payment status back to PENDING so the batch can be retried. This is a
// compensating action: the payout row keeps its FAILED state and failure
// reason.
func (e *Engine) handleTransferFailed(ctx context.Context, event *stripe.Event) (Outcome, error) {
	var payload transferPayload
	if err := decodeEvent(event, &payload); err != nil {
		return OutcomeIgnored, err
	}

	transfer, err := e.resolveTransfer(ctx, &payload)
	if err != nil {
		return OutcomeIgnored, err
	}

	outcome := OutcomeApplied
	err = e.repo.Transaction(func(r Repository) error {
		payout, err := r.GetPayoutByTransferID(transfer.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				log.Printf("failed transfer %s has no local payout record, skipping", transfer.ID)
				outcome = OutcomeSkippedMissingEntity
				return nil
			}
			return err
		}

		oldStatus := payout.Status
		payout.Status = models.PayoutStatusFailed
		payout.FailureReason = transfer.FailureMessage
		if err := r.UpdatePayout(payout); err != nil {
			return fmt.Errorf("update payout %d: %w", payout.ID, err)
		}

		reset, err := r.ResetAssignmentsForPayout(payout.ID)
		if err != nil {
			return fmt.Errorf("reset assignments for payout %d: %w", payout.ID, err)
		}
		log.Printf("payout %d failed (%s), reset %d assignments for re-batching", payout.ID, transfer.FailureMessage, reset)

		return recordActivity(r, models.ActivityPayoutFailed, payout.ContractorID, oldStatus, payout.Status, map[string]interface{}{
			"payout_id":         payout.ID,
			"transfer":          transfer.ID,
			"failure":           transfer.FailureMessage,
			"assignments_reset": reset,
		})
	})
	if err != nil {
		return OutcomeIgnored, err
	}
	return outcome, nil
}

// handleAccountUpdated syncs the contractor's onboarding flag from the
// connected account. Onboarding is complete only when the account can both
// take charges and receive payouts.
func (e *Engine) handleAccountUpdated(ctx context.Context, event *stripe.Event) (Outcome, error) {
	var payload accountPayload
	if err := decodeEvent(event, &payload); err != nil {
		return OutcomeIgnored, err
	}

	var chargesEnabled, payoutsEnabled bool
	if payload.ChargesEnabled == nil || payload.PayoutsEnabled == nil {
		// Thin payload: fetch the full account before mutating anything.
		account, err := e.provider.GetAccount(ctx, payload.ID)
		if err != nil {
			return OutcomeIgnored, fmt.Errorf("resolve thin account %s: %w", payload.ID, err)
		}
		chargesEnabled = account.ChargesEnabled
		payoutsEnabled = account.PayoutsEnabled
	} else {
		chargesEnabled = *payload.ChargesEnabled
		payoutsEnabled = *payload.PayoutsEnabled
	}

	outcome := OutcomeApplied
	err := e.repo.Transaction(func(r Repository) error {
		user, err := r.GetUserByStripeAccountID(payload.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				log.Printf("account %s is not linked to a local user, skipping", payload.ID)
				outcome = OutcomeSkippedMissingEntity
				return nil
			}
			return err
		}

		complete := chargesEnabled && payoutsEnabled
		if user.OnboardingComplete == complete {
			outcome = OutcomeIgnored
			return nil
		}

		old := fmt.Sprintf("%t", user.OnboardingComplete)
		user.OnboardingComplete = complete
		if err := r.UpdateUser(user); err != nil {
			return fmt.Errorf("update user %d onboarding: %w", user.ID, err)
		}

		return recordActivity(r, models.ActivityOnboardingUpdated, user.ID, old, fmt.Sprintf("%t", complete), map[string]interface{}{
			"account":         payload.ID,
			"charges_enabled": chargesEnabled,
			"payouts_enabled": payoutsEnabled,
		})
	})
	if err != nil {
		return OutcomeIgnored, err
	}
	return outcome, nil
}
