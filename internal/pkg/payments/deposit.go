package payments

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/MarcusWehner/CrewDesk/app/models"
)

// applyDepositCheckout mirrors the invoice path and additionally flips the
// related project's deposit_paid flag when the deposit carries a project
// reference.
func (e *Engine) applyDepositCheckout(_ context.Context, session *checkoutSessionPayload) (Outcome, error) {
	depositID, ok := parseMetadataID(session.Metadata, MetaKeyDepositID)
	if !ok {
		log.Printf("checkout session %s of type deposit carries no usable deposit_id", session.ID)
		return OutcomeSkippedMissingEntity, nil
	}

	outcome := OutcomeApplied
	err := e.repo.Transaction(func(r Repository) error {
		dep, err := r.GetDepositByID(depositID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				log.Printf("checkout session %s references unknown deposit %d", session.ID, depositID)
				outcome = OutcomeSkippedMissingEntity
				return nil
			}
			return err
		}

		if dep.Status == models.DepositStatusPaid {
			outcome = OutcomeIgnored
			return nil
		}

		fees := CalculateFees(dep.Amount, PaymentMethodCard, e.cfg.PlatformFeeRate)
		if fees.Clamped {
			log.Printf("fee schedule produced negative net for deposit %d (gross %d), clamped to zero", dep.ID, dep.Amount)
		}

		oldStatus := dep.Status
		now := time.Now()
		dep.Status = models.DepositStatusPaid
		dep.PaidAt = &now
		dep.StripeCheckoutSessionID = session.ID
		if err := r.UpdateDeposit(dep); err != nil {
			return fmt.Errorf("update deposit %d: %w", dep.ID, err)
		}

		if dep.ProjectID != nil {
			if err := r.SetProjectDepositPaid(*dep.ProjectID); err != nil {
				return fmt.Errorf("mark project %d deposit paid: %w", *dep.ProjectID, err)
			}
		}

		if err := r.CreatePayment(&models.Payment{
			UserID:      dep.UserID,
			Type:        models.PaymentTypeDeposit,
			Amount:      dep.Amount,
			Currency:    dep.Currency,
			ProviderFee: fees.ProviderFee,
			ConnectFee:  fees.ConnectFee,
			PlatformFee: fees.PlatformFee,
			NetAmount:   fees.NetAmount,
			Status:      models.PaymentStatusCompleted,
			RelatedType: models.PaymentRelatedDeposit,
			RelatedID:   dep.ID,
		}); err != nil {
			return fmt.Errorf("record deposit payment: %w", err)
		}

		meta := map[string]interface{}{
			"deposit_id":       dep.ID,
			"amount":           dep.Amount,
			"purpose":          dep.Purpose,
			"checkout_session": session.ID,
		}
		if dep.ProjectID != nil {
			meta["project_id"] = *dep.ProjectID
		}
		return recordActivity(r, models.ActivityDepositPaid, dep.UserID, oldStatus, dep.Status, meta)
	})
	if err != nil {
		return OutcomeIgnored, err
	}
	return outcome, nil
}
