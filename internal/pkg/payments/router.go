package payments

import (
	"context"
	"log"

	stripe "github.com/stripe/stripe-go/v74"
)

// buildRoutes enumerates the full event-type dispatch table. Every recognized
// provider event maps to exactly one handler; anything else is acknowledged
// and ignored for forward compatibility with provider additions.
func (e *Engine) buildRoutes() map[string]handlerFunc {
	return map[string]handlerFunc{
		"transfer.created":              e.handleLogOnly,
		"transfer.paid":                 e.handleTransferPaid,
		"transfer.failed":               e.handleTransferFailed,
		"account.updated":               e.handleAccountUpdated,
		"checkout.session.completed":    e.handleCheckoutCompleted,
		"payment_intent.succeeded":      e.handleLogOnly,
		"payment_intent.payment_failed": e.handlePaymentIntentFailed,
		"customer.subscription.created": e.handleSubscriptionCreated,
		"customer.subscription.updated": e.handleSubscriptionUpdated,
		"customer.subscription.deleted": e.handleSubscriptionDeleted,
		"invoice.payment_succeeded":     e.handleRecurringInvoicePaid,
		"invoice.payment_failed":        e.handleRecurringInvoiceFailed,
	}
}

func (e *Engine) route(ctx context.Context, event *stripe.Event) (Outcome, error) {
	handler, ok := e.routes[string(event.Type)]
	if !ok {
		log.Printf("webhook %s: unhandled event type %s, ignoring", event.ID, event.Type)
		return OutcomeIgnored, nil
	}
	return handler(ctx, event)
}

func (e *Engine) handleLogOnly(_ context.Context, event *stripe.Event) (Outcome, error) {
	log.Printf("webhook %s: %s acknowledged", event.ID, event.Type)
	return OutcomeIgnored, nil
}

// handleCheckoutCompleted dispatches a completed checkout session by its
// metadata.type discriminant. Subscription checkouts are a deliberate no-op
// here: the customer.subscription.* events carry the authoritative state.
func (e *Engine) handleCheckoutCompleted(ctx context.Context, event *stripe.Event) (Outcome, error) {
	var session checkoutSessionPayload
	if err := decodeEvent(event, &session); err != nil {
		return OutcomeIgnored, err
	}

	switch session.Metadata[MetaKeyType] {
	case CheckoutTypeInvoice:
		return e.applyInvoiceCheckout(ctx, &session)
	case CheckoutTypeDeposit:
		return e.applyDepositCheckout(ctx, &session)
	case CheckoutTypeCreditPurchase:
		return e.applyCreditPurchase(ctx, &session)
	case CheckoutTypeSubscription:
		log.Printf("webhook %s: subscription checkout %s handled via subscription events", event.ID, session.ID)
		return OutcomeIgnored, nil
	default:
		log.Printf("webhook %s: checkout session %s has unknown metadata type %q", event.ID, session.ID, session.Metadata[MetaKeyType])
		return OutcomeIgnored, nil
	}
}
