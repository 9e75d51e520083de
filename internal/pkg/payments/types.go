package payments

// Outcome classifies what a ledger mutator did with an event. A skipped event
// (referenced entity missing locally) is still marked processed so provider
// redeliveries do not loop forever; only a genuine error marks the event
// failed.
type Outcome int

const (
	OutcomeApplied Outcome = iota
	OutcomeSkippedMissingEntity
	OutcomeIgnored
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeSkippedMissingEntity:
		return "skipped_missing_entity"
	default:
		return "ignored"
	}
}

// Checkout session metadata keys and the values of the "type" discriminant.
// The portal's checkout creation flow writes these; the reconciliation engine
// reads them back from completed sessions.
const (
	MetaKeyType      = "type"
	MetaKeyInvoiceID = "invoice_id"
	MetaKeyDepositID = "deposit_id"
	MetaKeyUserID    = "user_id"
	MetaKeyCredits   = "credits"

	CheckoutTypeInvoice        = "invoice"
	CheckoutTypeDeposit        = "deposit"
	CheckoutTypeSubscription   = "subscription"
	CheckoutTypeCreditPurchase = "credit_purchase"
)

// Per-event-type payload shapes decoded from the verified event's raw data.
// Only the fields the mutators key on are declared; everything else in the
// provider payload is ignored.

type checkoutSessionPayload struct {
	ID            string            `json:"id" validate:"required"`
	AmountTotal   int64             `json:"amount_total"`
	Currency      string            `json:"currency"`
	PaymentStatus string            `json:"payment_status"`
	PaymentIntent string            `json:"payment_intent"`
	Customer      string            `json:"customer"`
	Subscription  string            `json:"subscription"`
	Metadata      map[string]string `json:"metadata"`
}

type paymentIntentPayload struct {
	ID               string            `json:"id" validate:"required"`
	Amount           int64             `json:"amount"`
	Currency         string            `json:"currency"`
	Metadata         map[string]string `json:"metadata"`
	LastPaymentError *struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

type subscriptionPayload struct {
	ID                 string `json:"id" validate:"required"`
	Customer           string `json:"customer" validate:"required"`
	Status             string `json:"status"`
	CancelAtPeriodEnd  bool   `json:"cancel_at_period_end"`
	CanceledAt         int64  `json:"canceled_at"`
	CurrentPeriodStart int64  `json:"current_period_start"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
	Items              struct {
		Data []struct {
			Price struct {
				ID         string `json:"id"`
				Nickname   string `json:"nickname"`
				UnitAmount int64  `json:"unit_amount"`
				Product    string `json:"product"`
				Recurring  struct {
					Interval string `json:"interval"`
				} `json:"recurring"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
	Metadata map[string]string `json:"metadata"`
}

// subscriptionInvoicePayload covers invoice.payment_succeeded/_failed for
// recurring subscription charges.
type subscriptionInvoicePayload struct {
	ID           string `json:"id" validate:"required"`
	Customer     string `json:"customer"`
	Subscription string `json:"subscription"`
	AmountPaid   int64  `json:"amount_paid"`
	AmountDue    int64  `json:"amount_due"`
	Currency     string `json:"currency"`
}

// transferPayload may arrive thin: transfer events sometimes omit status and
// failure_message, in which case the full object is fetched from the API
// before the mutator runs.
type transferPayload struct {
	ID             string            `json:"id" validate:"required"`
	Amount         int64             `json:"amount"`
	Currency       string            `json:"currency"`
	Status         string            `json:"status"`
	FailureMessage string            `json:"failure_message"`
	Metadata       map[string]string `json:"metadata"`
}

// accountPayload uses pointers so a thin payload (fields absent) is
// distinguishable from an explicit false.
type accountPayload struct {
	ID             string `json:"id" validate:"required"`
	ChargesEnabled *bool  `json:"charges_enabled"`
	PayoutsEnabled *bool  `json:"payouts_enabled"`
}
