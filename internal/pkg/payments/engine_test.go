package payments

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	stripe "github.com/stripe/stripe-go/v74"
	"gorm.io/gorm"

	"github.com/MarcusWehner/CrewDesk/app/models"
)

const goodSignature = "t=1700000000,v1=good"

// fakeProvider substitutes the Stripe client: it accepts exactly one
// signature header and decodes the payload the same way ConstructEvent does.
type fakeProvider struct {
	transfer    *TransferState
	transferErr error
	account     *AccountState
	accountErr  error

	transferFetches int
	accountFetches  int
}

func (p *fakeProvider) ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	if sigHeader != goodSignature {
		return stripe.Event{}, errors.New("signature mismatch")
	}
	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return stripe.Event{}, err
	}
	return event, nil
}

func (p *fakeProvider) GetTransfer(_ context.Context, transferID string) (*TransferState, error) {
	p.transferFetches++
	if p.transferErr != nil {
		return nil, p.transferErr
	}
	if p.transfer == nil {
		return nil, errors.New("no transfer configured")
	}
	t := *p.transfer
	t.ID = transferID
	return &t, nil
}

func (p *fakeProvider) GetAccount(_ context.Context, accountID string) (*AccountState, error) {
	p.accountFetches++
	if p.accountErr != nil {
		return nil, p.accountErr
	}
	if p.account == nil {
		return nil, errors.New("no account configured")
	}
	a := *p.account
	a.ID = accountID
	return &a, nil
}

type fakeDedupe struct {
	seen map[string]bool
}

func newFakeDedupe() *fakeDedupe {
	return &fakeDedupe{seen: make(map[string]bool)}
}

func (d *fakeDedupe) SeenProcessed(_ context.Context, eventID string) bool {
	return d.seen[eventID]
}

func (d *fakeDedupe) MarkProcessed(_ context.Context, eventID string) {
	d.seen[eventID] = true
}

// fakeRepo is an in-memory Repository. Getters hand out copies so mutators
// only become visible through the corresponding update call, like rows read
// from the DB.
type fakeRepo struct {
	events      map[string]*models.WebhookEvent
	invoices    map[uint]*models.Invoice
	deposits    map[uint]*models.Deposit
	projects    map[uint]*models.Project
	users       map[uint]*models.User
	subs        map[uint]*models.Subscription
	payouts     map[uint]*models.ContractorPayout
	assignments map[uint]*models.ProjectAssignment
	payments    []models.Payment
	balances    map[uint]*models.CreditBalance
	creditLog   []models.CreditTransaction
	activity    []models.ActivityLog

	nextEventID  uint
	nextSubID    uint
	nextPayoutID uint

	writes     int
	claimCalls int

	paymentErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		events:      make(map[string]*models.WebhookEvent),
		invoices:    make(map[uint]*models.Invoice),
		deposits:    make(map[uint]*models.Deposit),
		projects:    make(map[uint]*models.Project),
		users:       make(map[uint]*models.User),
		subs:        make(map[uint]*models.Subscription),
		payouts:     make(map[uint]*models.ContractorPayout),
		assignments: make(map[uint]*models.ProjectAssignment),
		balances:    make(map[uint]*models.CreditBalance),
	}
}

func (f *fakeRepo) Transaction(fn func(Repository) error) error {
	return fn(f)
}

func (f *fakeRepo) ClaimWebhookEvent(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	f.claimCalls++
	if existing, ok := f.events[event.StripeEventID]; ok {
		stored := *existing
		return false, &stored, nil
	}
	f.writes++
	f.nextEventID++
	event.ID = f.nextEventID
	stored := *event
	f.events[event.StripeEventID] = &stored
	result := stored
	return true, &result, nil
}

func (f *fakeRepo) MarkWebhookProcessed(id uint) error {
	f.writes++
	for _, ev := range f.events {
		if ev.ID == id {
			now := time.Now()
			ev.ProcessedAt = &now
			ev.FailedAt = nil
			ev.ErrorMessage = ""
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeRepo) MarkWebhookFailed(id uint, errMsg string) error {
	f.writes++
	for _, ev := range f.events {
		if ev.ID == id {
			now := time.Now()
			ev.FailedAt = &now
			ev.ErrorMessage = errMsg
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeRepo) GetInvoiceByID(id uint) (*models.Invoice, error) {
	inv, ok := f.invoices[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copy := *inv
	return &copy, nil
}

func (f *fakeRepo) UpdateInvoice(inv *models.Invoice) error {
	f.writes++
	stored := *inv
	f.invoices[inv.ID] = &stored
	return nil
}

func (f *fakeRepo) GetDepositByID(id uint) (*models.Deposit, error) {
	dep, ok := f.deposits[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copy := *dep
	return &copy, nil
}

func (f *fakeRepo) UpdateDeposit(dep *models.Deposit) error {
	f.writes++
	stored := *dep
	f.deposits[dep.ID] = &stored
	return nil
}

func (f *fakeRepo) SetProjectDepositPaid(projectID uint) error {
	f.writes++
	project, ok := f.projects[projectID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	project.DepositPaid = true
	return nil
}

func (f *fakeRepo) GetUserByStripeCustomerID(customerID string) (*models.User, error) {
	for _, u := range f.users {
		if u.StripeCustomerID == customerID {
			copy := *u
			return &copy, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) GetUserByStripeAccountID(accountID string) (*models.User, error) {
	for _, u := range f.users {
		if u.StripeAccountID == accountID {
			copy := *u
			return &copy, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) UpdateUser(user *models.User) error {
	f.writes++
	stored := *user
	f.users[user.ID] = &stored
	return nil
}

func (f *fakeRepo) UpsertSubscription(sub *models.Subscription) error {
	f.writes++
	for _, existing := range f.subs {
		if existing.UserID == sub.UserID {
			sub.ID = existing.ID
			*existing = *sub
			return nil
		}
	}
	f.nextSubID++
	sub.ID = f.nextSubID
	stored := *sub
	f.subs[sub.ID] = &stored
	return nil
}

func (f *fakeRepo) GetSubscriptionByStripeID(subscriptionID string) (*models.Subscription, error) {
	for _, s := range f.subs {
		if s.StripeSubscriptionID == subscriptionID {
			copy := *s
			return &copy, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) UpdateSubscription(sub *models.Subscription) error {
	f.writes++
	stored := *sub
	f.subs[sub.ID] = &stored
	return nil
}

func (f *fakeRepo) GetPayoutByID(id uint) (*models.ContractorPayout, error) {
	payout, ok := f.payouts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copy := *payout
	return &copy, nil
}

func (f *fakeRepo) GetPayoutByTransferID(transferID string) (*models.ContractorPayout, error) {
	if transferID == "" {
		return nil, gorm.ErrRecordNotFound
	}
	for _, p := range f.payouts {
		if p.StripeTransferID == transferID {
			copy := *p
			return &copy, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) CreatePayout(payout *models.ContractorPayout) error {
	f.writes++
	f.nextPayoutID++
	payout.ID = f.nextPayoutID
	stored := *payout
	f.payouts[payout.ID] = &stored
	return nil
}

func (f *fakeRepo) UpdatePayout(payout *models.ContractorPayout) error {
	f.writes++
	stored := *payout
	f.payouts[payout.ID] = &stored
	return nil
}

func (f *fakeRepo) GetAssignmentsByIDs(ids []uint) ([]models.ProjectAssignment, error) {
	var out []models.ProjectAssignment
	for _, id := range ids {
		if a, ok := f.assignments[id]; ok {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeRepo) MarkAssignmentsProcessing(payoutID uint, ids []uint) error {
	f.writes++
	for _, id := range ids {
		if a, ok := f.assignments[id]; ok {
			a.PayoutID = &payoutID
			a.PaymentStatus = models.AssignmentPaymentProcessing
		}
	}
	return nil
}

func (f *fakeRepo) ResetAssignmentsForPayout(payoutID uint) (int64, error) {
	f.writes++
	var reset int64
	for _, a := range f.assignments {
		if a.PayoutID != nil && *a.PayoutID == payoutID {
			a.PaymentStatus = models.AssignmentPaymentPending
			reset++
		}
	}
	return reset, nil
}

func (f *fakeRepo) CreatePayment(payment *models.Payment) error {
	if f.paymentErr != nil {
		return f.paymentErr
	}
	f.writes++
	f.payments = append(f.payments, *payment)
	return nil
}

func (f *fakeRepo) GetOrCreateCreditBalance(userID uint) (*models.CreditBalance, error) {
	if balance, ok := f.balances[userID]; ok {
		copy := *balance
		return &copy, nil
	}
	f.writes++
	balance := &models.CreditBalance{ID: userID, UserID: userID}
	f.balances[userID] = balance
	copy := *balance
	return &copy, nil
}

func (f *fakeRepo) UpdateCreditBalance(balance *models.CreditBalance) error {
	f.writes++
	stored := *balance
	f.balances[balance.UserID] = &stored
	return nil
}

func (f *fakeRepo) CreateCreditTransaction(entry *models.CreditTransaction) error {
	f.writes++
	f.creditLog = append(f.creditLog, *entry)
	return nil
}

func (f *fakeRepo) CreateActivityLog(entry *models.ActivityLog) error {
	f.writes++
	f.activity = append(f.activity, *entry)
	return nil
}

func newTestEngine(repo Repository, provider ProviderClient) *Engine {
	return NewEngine(repo, provider, Config{PlatformFeeRate: 0.10})
}

// eventBody builds the raw webhook payload the way Stripe frames it: the
// typed object nested under data.object.
func eventBody(t *testing.T, eventID, eventType string, object map[string]interface{}) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"id":   eventID,
		"type": eventType,
		"data": map[string]interface{}{"object": object},
	})
	if err != nil {
		t.Fatalf("marshal event body: %v", err)
	}
	return body
}

func checkoutObject(sessionID, checkoutType string, extra map[string]string, amountTotal int64) map[string]interface{} {
	metadata := map[string]string{MetaKeyType: checkoutType}
	for k, v := range extra {
		metadata[k] = v
	}
	return map[string]interface{}{
		"id":             sessionID,
		"amount_total":   amountTotal,
		"currency":       "usd",
		"payment_status": "paid",
		"payment_intent": "pi_100",
		"metadata":       metadata,
	}
}

func TestReceiveRejectsInvalidSignature(t *testing.T) {
	repo := newFakeRepo()
	engine := newTestEngine(repo, &fakeProvider{})

	body := eventBody(t, "evt_sig", "checkout.session.completed", checkoutObject("cs_1", CheckoutTypeInvoice, map[string]string{MetaKeyInvoiceID: "42"}, 10000))
	err := engine.Receive(context.Background(), body, "t=1,v1=forged")
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	if repo.writes != 0 {
		t.Fatalf("rejected delivery performed %d writes, want 0", repo.writes)
	}
	if len(repo.events) != 0 {
		t.Fatalf("rejected delivery recorded %d event rows, want 0", len(repo.events))
	}
}

func TestReceiveIsIdempotentAcrossRedeliveries(t *testing.T) {
	repo := newFakeRepo()
	repo.invoices[42] = &models.Invoice{ID: 42, UserID: 7, Amount: 10000, Currency: "usd", Status: models.InvoiceStatusPending}
	engine := newTestEngine(repo, &fakeProvider{})

	body := eventBody(t, "evt_dup", "checkout.session.completed", checkoutObject("cs_1", CheckoutTypeInvoice, map[string]string{MetaKeyInvoiceID: "42"}, 10000))
	for i := 0; i < 3; i++ {
		if err := engine.Receive(context.Background(), body, goodSignature); err != nil {
			t.Fatalf("delivery %d: %v", i+1, err)
		}
	}

	if got := repo.invoices[42].Status; got != models.InvoiceStatusPaid {
		t.Fatalf("invoice status = %s, want PAID", got)
	}
	if len(repo.payments) != 1 {
		t.Fatalf("recorded %d payments after 3 deliveries, want 1", len(repo.payments))
	}
	if len(repo.activity) != 1 {
		t.Fatalf("recorded %d activity entries after 3 deliveries, want 1", len(repo.activity))
	}
}

func TestReceiveAcksConcurrentClaimLoser(t *testing.T) {
	repo := newFakeRepo()
	repo.invoices[42] = &models.Invoice{ID: 42, UserID: 7, Amount: 10000, Status: models.InvoiceStatusPending}
	// Another delivery holds the claim and is still running.
	repo.nextEventID = 1
	repo.events["evt_race"] = &models.WebhookEvent{ID: 1, StripeEventID: "evt_race", EventType: "checkout.session.completed"}
	engine := newTestEngine(repo, &fakeProvider{})

	body := eventBody(t, "evt_race", "checkout.session.completed", checkoutObject("cs_1", CheckoutTypeInvoice, map[string]string{MetaKeyInvoiceID: "42"}, 10000))
	if err := engine.Receive(context.Background(), body, goodSignature); err != nil {
		t.Fatalf("Receive: %v", err)
	}

	if got := repo.invoices[42].Status; got != models.InvoiceStatusPending {
		t.Fatalf("claim loser ran mutators, invoice status = %s", got)
	}
	if len(repo.payments) != 0 {
		t.Fatalf("claim loser recorded %d payments, want 0", len(repo.payments))
	}
}

func TestReceiveReprocessesFailedEvent(t *testing.T) {
	repo := newFakeRepo()
	repo.invoices[42] = &models.Invoice{ID: 42, UserID: 7, Amount: 10000, Status: models.InvoiceStatusPending}
	failedAt := time.Now().Add(-time.Minute)
	repo.nextEventID = 1
	repo.events["evt_retry"] = &models.WebhookEvent{ID: 1, StripeEventID: "evt_retry", EventType: "checkout.session.completed", FailedAt: &failedAt, ErrorMessage: "db timeout"}
	engine := newTestEngine(repo, &fakeProvider{})

	body := eventBody(t, "evt_retry", "checkout.session.completed", checkoutObject("cs_1", CheckoutTypeInvoice, map[string]string{MetaKeyInvoiceID: "42"}, 10000))
	if err := engine.Receive(context.Background(), body, goodSignature); err != nil {
		t.Fatalf("Receive: %v", err)
	}

	if got := repo.invoices[42].Status; got != models.InvoiceStatusPaid {
		t.Fatalf("redelivery of failed event left invoice %s, want PAID", got)
	}
	ev := repo.events["evt_retry"]
	if ev.ProcessedAt == nil {
		t.Fatalf("event not marked processed after successful retry")
	}
	if ev.FailedAt != nil || ev.ErrorMessage != "" {
		t.Fatalf("failure markers not cleared: failedAt=%v errMsg=%q", ev.FailedAt, ev.ErrorMessage)
	}
}

func TestReceiveRecordsMutatorFailureAndAcks(t *testing.T) {
	repo := newFakeRepo()
	repo.invoices[42] = &models.Invoice{ID: 42, UserID: 7, Amount: 10000, Status: models.InvoiceStatusPending}
	repo.paymentErr = errors.New("payments table unavailable")
	engine := newTestEngine(repo, &fakeProvider{})

	body := eventBody(t, "evt_fail", "checkout.session.completed", checkoutObject("cs_1", CheckoutTypeInvoice, map[string]string{MetaKeyInvoiceID: "42"}, 10000))
	if err := engine.Receive(context.Background(), body, goodSignature); err != nil {
		t.Fatalf("mutator failure must still ack the delivery, got %v", err)
	}

	ev := repo.events["evt_fail"]
	if ev.ProcessedAt != nil {
		t.Fatalf("failed event marked processed")
	}
	if ev.FailedAt == nil || ev.ErrorMessage == "" {
		t.Fatalf("failure not recorded on event row")
	}

	// The provider redelivers; the retry succeeds once the fault clears.
	repo.paymentErr = nil
	if err := engine.Receive(context.Background(), body, goodSignature); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if repo.events["evt_fail"].ProcessedAt == nil {
		t.Fatalf("event not marked processed after retry")
	}
}

func TestReceiveMarksMissingEntityProcessed(t *testing.T) {
	repo := newFakeRepo()
	engine := newTestEngine(repo, &fakeProvider{})

	body := eventBody(t, "evt_orphan", "checkout.session.completed", checkoutObject("cs_1", CheckoutTypeInvoice, map[string]string{MetaKeyInvoiceID: "999"}, 10000))
	if err := engine.Receive(context.Background(), body, goodSignature); err != nil {
		t.Fatalf("Receive: %v", err)
	}

	ev := repo.events["evt_orphan"]
	if ev == nil || ev.ProcessedAt == nil {
		t.Fatalf("event referencing a missing invoice must be marked processed")
	}
	if len(repo.payments) != 0 {
		t.Fatalf("missing entity produced %d payments, want 0", len(repo.payments))
	}
}

func TestReceiveAcknowledgesUnknownEventType(t *testing.T) {
	repo := newFakeRepo()
	engine := newTestEngine(repo, &fakeProvider{})

	body := eventBody(t, "evt_new", "charge.refund.updated", map[string]interface{}{"id": "re_1"})
	if err := engine.Receive(context.Background(), body, goodSignature); err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if ev := repo.events["evt_new"]; ev == nil || ev.ProcessedAt == nil {
		t.Fatalf("unknown event type must be recorded and marked processed")
	}
}

func TestReceiveDedupeCacheShortCircuits(t *testing.T) {
	repo := newFakeRepo()
	repo.invoices[42] = &models.Invoice{ID: 42, UserID: 7, Amount: 10000, Status: models.InvoiceStatusPending}
	dedupe := newFakeDedupe()
	engine := NewEngine(repo, &fakeProvider{}, Config{PlatformFeeRate: 0.10, Dedupe: dedupe})

	body := eventBody(t, "evt_cached", "checkout.session.completed", checkoutObject("cs_1", CheckoutTypeInvoice, map[string]string{MetaKeyInvoiceID: "42"}, 10000))
	if err := engine.Receive(context.Background(), body, goodSignature); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if !dedupe.seen["evt_cached"] {
		t.Fatalf("processed marker not written to dedupe cache")
	}

	claimsBefore := repo.claimCalls
	if err := engine.Receive(context.Background(), body, goodSignature); err != nil {
		t.Fatalf("cached duplicate: %v", err)
	}
	if repo.claimCalls != claimsBefore {
		t.Fatalf("cached duplicate still hit the DB claim path")
	}
}
