package payments

import (
	"context"
	"testing"

	"github.com/MarcusWehner/CrewDesk/app/models"
)

func TestInvoiceCheckoutRecordsFeeBreakdown(t *testing.T) {
	repo := newFakeRepo()
	repo.invoices[42] = &models.Invoice{ID: 42, UserID: 7, Amount: 10000, Currency: "usd", Status: models.InvoiceStatusPending}
	engine := newTestEngine(repo, &fakeProvider{})

	body := eventBody(t, "evt_1", "checkout.session.completed", checkoutObject("cs_1", CheckoutTypeInvoice, map[string]string{MetaKeyInvoiceID: "42"}, 10000))
	if err := engine.Receive(context.Background(), body, goodSignature); err != nil {
		t.Fatalf("Receive: %v", err)
	}

	inv := repo.invoices[42]
	if inv.Status != models.InvoiceStatusPaid {
		t.Fatalf("invoice status = %s, want PAID", inv.Status)
	}
	if inv.PaidAt == nil {
		t.Fatalf("paid invoice missing PaidAt")
	}
	if inv.StripeCheckoutSessionID != "cs_1" || inv.StripePaymentIntentID != "pi_100" {
		t.Fatalf("provider references not stored: session=%q intent=%q", inv.StripeCheckoutSessionID, inv.StripePaymentIntentID)
	}

	if len(repo.payments) != 1 {
		t.Fatalf("recorded %d payments, want 1", len(repo.payments))
	}
	p := repo.payments[0]
	if p.Type != models.PaymentTypeInvoice || p.Status != models.PaymentStatusCompleted {
		t.Fatalf("payment row = %s/%s, want INVOICE/COMPLETED", p.Type, p.Status)
	}
	if p.ProviderFee != 320 || p.PlatformFee != 968 || p.NetAmount != 8712 {
		t.Fatalf("fee breakdown = provider %d platform %d net %d", p.ProviderFee, p.PlatformFee, p.NetAmount)
	}
	if p.RelatedType != models.PaymentRelatedInvoice || p.RelatedID != 42 {
		t.Fatalf("payment related ref = %s/%d, want invoice/42", p.RelatedType, p.RelatedID)
	}

	if len(repo.activity) != 1 || repo.activity[0].Type != models.ActivityInvoicePaid {
		t.Fatalf("expected one invoice_paid activity entry, got %+v", repo.activity)
	}
}

func TestPaymentIntentFailedMarksInvoiceOverdue(t *testing.T) {
	repo := newFakeRepo()
	repo.invoices[42] = &models.Invoice{ID: 42, UserID: 7, Amount: 10000, Currency: "usd", Status: models.InvoiceStatusPending}
	engine := newTestEngine(repo, &fakeProvider{})

	body := eventBody(t, "evt_pif", "payment_intent.payment_failed", map[string]interface{}{
		"id":       "pi_200",
		"amount":   10000,
		"currency": "usd",
		"metadata": map[string]string{MetaKeyInvoiceID: "42"},
		"last_payment_error": map[string]interface{}{
			"message": "card_declined",
		},
	})
	if err := engine.Receive(context.Background(), body, goodSignature); err != nil {
		t.Fatalf("Receive: %v", err)
	}

	if got := repo.invoices[42].Status; got != models.InvoiceStatusOverdue {
		t.Fatalf("invoice status = %s, want OVERDUE", got)
	}
	if len(repo.payments) != 1 || repo.payments[0].Status != models.PaymentStatusFailed {
		t.Fatalf("failed attempt not recorded in payment ledger: %+v", repo.payments)
	}
}

// A stale failure arriving after the invoice was paid must not revert it.
func TestPaymentIntentFailedDoesNotRevertPaidInvoice(t *testing.T) {
	repo := newFakeRepo()
	repo.invoices[42] = &models.Invoice{ID: 42, UserID: 7, Amount: 10000, Status: models.InvoiceStatusPaid}
	engine := newTestEngine(repo, &fakeProvider{})

	body := eventBody(t, "evt_stale", "payment_intent.payment_failed", map[string]interface{}{
		"id":       "pi_201",
		"metadata": map[string]string{MetaKeyInvoiceID: "42"},
	})
	if err := engine.Receive(context.Background(), body, goodSignature); err != nil {
		t.Fatalf("Receive: %v", err)
	}

	if got := repo.invoices[42].Status; got != models.InvoiceStatusPaid {
		t.Fatalf("stale failure reverted invoice to %s", got)
	}
	if len(repo.payments) != 0 {
		t.Fatalf("stale failure recorded %d payments, want 0", len(repo.payments))
	}
}

// OVERDUE is not terminal; a successful retry still pays the invoice.
func TestOverdueInvoiceCanStillBePaid(t *testing.T) {
	repo := newFakeRepo()
	repo.invoices[42] = &models.Invoice{ID: 42, UserID: 7, Amount: 10000, Currency: "usd", Status: models.InvoiceStatusOverdue}
	engine := newTestEngine(repo, &fakeProvider{})

	body := eventBody(t, "evt_retry_pay", "checkout.session.completed", checkoutObject("cs_2", CheckoutTypeInvoice, map[string]string{MetaKeyInvoiceID: "42"}, 10000))
	if err := engine.Receive(context.Background(), body, goodSignature); err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if got := repo.invoices[42].Status; got != models.InvoiceStatusPaid {
		t.Fatalf("invoice status = %s, want PAID", got)
	}
}
