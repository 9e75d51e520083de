package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/MarcusWehner/CrewDesk/app/models"
)

// CreatePayoutBatch groups pending assignments of one contractor into a
// PENDING ContractorPayout and flips them to PROCESSING. The transfer itself
// is created out-of-band; AttachTransfer links it once Stripe returns an ID.
// A transfer.failed event later reverses the PROCESSING flip.
func (e *Engine) CreatePayoutBatch(_ context.Context, contractorID uint, assignmentIDs []uint) (*models.ContractorPayout, error) {
	if contractorID == 0 || len(assignmentIDs) == 0 {
		return nil, errors.New("contractor id and at least one assignment are required")
	}

	var payout *models.ContractorPayout
	err := e.repo.Transaction(func(r Repository) error {
		assignments, err := r.GetAssignmentsByIDs(assignmentIDs)
		if err != nil {
			return fmt.Errorf("load assignments: %w", err)
		}
		if len(assignments) != len(assignmentIDs) {
			return fmt.Errorf("expected %d assignments, found %d", len(assignmentIDs), len(assignments))
		}

		var total int64
		for _, a := range assignments {
			if a.ContractorID != contractorID {
				return fmt.Errorf("assignment %d does not belong to contractor %d", a.ID, contractorID)
			}
			if a.PaymentStatus != models.AssignmentPaymentPending {
				return fmt.Errorf("assignment %d is not pending payment", a.ID)
			}
			total += a.Amount
		}

		payout = &models.ContractorPayout{
			ContractorID: contractorID,
			BatchRef:     "po_" + uuid.NewString(),
			Amount:       total,
			Currency:     "usd",
			Status:       models.PayoutStatusPending,
		}
		if err := r.CreatePayout(payout); err != nil {
			return fmt.Errorf("create payout: %w", err)
		}

		return r.MarkAssignmentsProcessing(payout.ID, assignmentIDs)
	})
	if err != nil {
		return nil, err
	}
	return payout, nil
}

// AttachTransfer records the provider transfer backing a payout batch and
// moves the payout to PROCESSING. The transfer.paid / transfer.failed webhook
// events settle it from there.
func (e *Engine) AttachTransfer(_ context.Context, payoutID uint, transferID string) error {
	if payoutID == 0 || transferID == "" {
		return errors.New("payout id and transfer id are required")
	}

	return e.repo.Transaction(func(r Repository) error {
		if existing, err := r.GetPayoutByTransferID(transferID); err == nil && existing.ID != payoutID {
			return fmt.Errorf("transfer %s is already attached to payout %d", transferID, existing.ID)
		}

		payout, err := r.GetPayoutByID(payoutID)
		if err != nil {
			return fmt.Errorf("load payout %d: %w", payoutID, err)
		}
		if payout.Status != models.PayoutStatusPending {
			return fmt.Errorf("payout %d is %s, expected PENDING", payout.ID, payout.Status)
		}

		payout.StripeTransferID = transferID
		payout.Status = models.PayoutStatusProcessing
		return r.UpdatePayout(payout)
	})
}
