package payments

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/MarcusWehner/CrewDesk/app/models"
)

// ErrInsufficientCredits is returned by DeductCredits when the deduction
// would take the balance negative.
var ErrInsufficientCredits = errors.New("insufficient credit balance")

// applyCreditPurchase increments the buyer's balance and lifetime credits and
// appends a PURCHASE transaction whose balance_after snapshot must equal the
// stored post-increment balance (replay invariant).
func (e *Engine) applyCreditPurchase(_ context.Context, session *checkoutSessionPayload) (Outcome, error) {
	userID, ok := parseMetadataID(session.Metadata, MetaKeyUserID)
	if !ok {
		log.Printf("checkout session %s of type credit_purchase carries no usable user_id", session.ID)
		return OutcomeSkippedMissingEntity, nil
	}
	credits, ok := parseMetadataAmount(session.Metadata, MetaKeyCredits)
	if !ok {
		log.Printf("checkout session %s of type credit_purchase carries no usable credits amount", session.ID)
		return OutcomeSkippedMissingEntity, nil
	}

	err := e.repo.Transaction(func(r Repository) error {
		balance, err := r.GetOrCreateCreditBalance(userID)
		if err != nil {
			return fmt.Errorf("load credit balance for user %d: %w", userID, err)
		}

		before := balance.CurrentBalance
		balance.CurrentBalance = before + credits
		balance.LifetimeCredits += credits
		if err := r.UpdateCreditBalance(balance); err != nil {
			return fmt.Errorf("update credit balance for user %d: %w", userID, err)
		}

		if err := r.CreateCreditTransaction(&models.CreditTransaction{
			UserID:       userID,
			Type:         models.CreditTransactionPurchase,
			Amount:       credits,
			BalanceAfter: before + credits,
			Description:  fmt.Sprintf("credit purchase via checkout %s", session.ID),
		}); err != nil {
			return fmt.Errorf("record credit transaction: %w", err)
		}

		fees := CalculateFees(session.AmountTotal, PaymentMethodCard, e.cfg.PlatformFeeRate)
		if fees.Clamped {
			log.Printf("fee schedule produced negative net for credit purchase (gross %d), clamped to zero", session.AmountTotal)
		}
		if err := r.CreatePayment(&models.Payment{
			UserID:      userID,
			Type:        models.PaymentTypeCreditPurchase,
			Amount:      session.AmountTotal,
			Currency:    session.Currency,
			ProviderFee: fees.ProviderFee,
			ConnectFee:  fees.ConnectFee,
			PlatformFee: fees.PlatformFee,
			NetAmount:   fees.NetAmount,
			Status:      models.PaymentStatusCompleted,
		}); err != nil {
			return fmt.Errorf("record credit purchase payment: %w", err)
		}

		return recordActivity(r, models.ActivityCreditsPurchased, userID, "", "", map[string]interface{}{
			"credits":          credits,
			"amount_paid":      session.AmountTotal,
			"balance_after":    before + credits,
			"checkout_session": session.ID,
		})
	})
	if err != nil {
		return OutcomeIgnored, err
	}
	return OutcomeApplied, nil
}

// DeductCredits spends credits from a user's balance on behalf of the portal
// (document processing, priority support and similar metered features). The
// balance never goes negative; the deduction and its log entry commit
// together.
func (e *Engine) DeductCredits(_ context.Context, userID uint, amount int64, description string) error {
	if amount <= 0 {
		return errors.New("deduction amount must be positive")
	}

	return e.repo.Transaction(func(r Repository) error {
		balance, err := r.GetOrCreateCreditBalance(userID)
		if err != nil {
			return fmt.Errorf("load credit balance for user %d: %w", userID, err)
		}

		if balance.CurrentBalance < amount {
			return ErrInsufficientCredits
		}

		before := balance.CurrentBalance
		balance.CurrentBalance = before - amount
		balance.LifetimeUsed += amount
		if err := r.UpdateCreditBalance(balance); err != nil {
			return fmt.Errorf("update credit balance for user %d: %w", userID, err)
		}

		if err := r.CreateCreditTransaction(&models.CreditTransaction{
			UserID:       userID,
			Type:         models.CreditTransactionDeduction,
			Amount:       amount,
			BalanceAfter: before - amount,
			Description:  description,
		}); err != nil {
			return fmt.Errorf("record credit deduction: %w", err)
		}

		return recordActivity(r, models.ActivityCreditsDeducted, userID, "", "", map[string]interface{}{
			"credits":       amount,
			"balance_after": before - amount,
			"description":   description,
		})
	})
}

// parseMetadataAmount reads a positive integer amount out of metadata.
func parseMetadataAmount(metadata map[string]string, key string) (int64, bool) {
	id, ok := parseMetadataID(metadata, key)
	if !ok {
		return 0, false
	}
	return int64(id), true
}
