package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
	"github.com/stripe/stripe-go/v74/webhook"

	"github.com/MarcusWehner/CrewDesk/internal/pkg/env"
)

const defaultStripeAPIBaseURL = "https://api.stripe.com/v1"

// TransferState is the normalized view of a provider transfer used by the
// payout mutators. Status and FailureMessage come from the legacy transfer
// status fields that thin webhook payloads omit.
type TransferState struct {
	ID             string
	Amount         int64
	Currency       string
	Status         string
	FailureMessage string
}

// AccountState is the normalized view of a connected account.
type AccountState struct {
	ID             string
	ChargesEnabled bool
	PayoutsEnabled bool
}

// ProviderClient is the payment provider surface the engine depends on:
// signature verification over the raw request bytes and full-object retrieval
// for thin payloads. It is injected so tests can substitute a fake.
type ProviderClient interface {
	ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error)
	GetTransfer(ctx context.Context, transferID string) (*TransferState, error)
	GetAccount(ctx context.Context, accountID string) (*AccountState, error)
}

// StripeClient implements ProviderClient against the Stripe API.
type StripeClient struct {
	SecretKey     string
	WebhookSecret string
	APIBaseURL    string

	api        *client.API
	httpClient *http.Client
}

// NewStripeClientFromEnv builds a Stripe client from STRIPE_SECRET_KEY and
// STRIPE_WEBHOOK_SECRET.
func NewStripeClientFromEnv() *StripeClient {
	return NewStripeClient(
		strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY", "")),
		strings.TrimSpace(env.GetEnv("STRIPE_WEBHOOK_SECRET", "")),
	)
}

func NewStripeClient(secretKey, webhookSecret string) *StripeClient {
	api := &client.API{}
	api.Init(secretKey, nil)

	return &StripeClient{
		SecretKey:     secretKey,
		WebhookSecret: webhookSecret,
		APIBaseURL:    defaultStripeAPIBaseURL,
		api:           api,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// ConstructEvent verifies the Stripe-Signature header against the raw body
// and parses the event. Verification must see the exact bytes Stripe signed,
// so callers pass the unparsed request body.
func (c *StripeClient) ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	if strings.TrimSpace(c.WebhookSecret) == "" {
		return stripe.Event{}, errors.New("STRIPE_WEBHOOK_SECRET is not configured")
	}
	return webhook.ConstructEvent(payload, sigHeader, c.WebhookSecret)
}

// GetTransfer fetches the full transfer object. The SDK's Transfer type no
// longer carries the legacy status/failure_message fields this flow keys on,
// so the object is fetched and decoded directly.
func (c *StripeClient) GetTransfer(ctx context.Context, transferID string) (*TransferState, error) {
	if strings.TrimSpace(transferID) == "" {
		return nil, errors.New("transfer id is required")
	}

	url := fmt.Sprintf("%s/transfers/%s", strings.TrimRight(c.APIBaseURL, "/"), transferID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transfer fetch failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("transfer fetch read failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("transfer fetch returned status %d", resp.StatusCode)
	}

	var t struct {
		ID             string `json:"id"`
		Amount         int64  `json:"amount"`
		Currency       string `json:"currency"`
		Status         string `json:"status"`
		FailureMessage string `json:"failure_message"`
	}
	if err := json.Unmarshal(body, &t); err != nil {
		return nil, fmt.Errorf("transfer fetch decode failed: %w", err)
	}

	return &TransferState{
		ID:             t.ID,
		Amount:         t.Amount,
		Currency:       t.Currency,
		Status:         t.Status,
		FailureMessage: t.FailureMessage,
	}, nil
}

// GetAccount fetches the full connected-account object.
func (c *StripeClient) GetAccount(ctx context.Context, accountID string) (*AccountState, error) {
	if strings.TrimSpace(accountID) == "" {
		return nil, errors.New("account id is required")
	}

	params := &stripe.AccountParams{}
	params.Context = ctx
	acct, err := c.api.Accounts.GetByID(accountID, params)
	if err != nil {
		return nil, fmt.Errorf("account fetch failed: %w", err)
	}

	return &AccountState{
		ID:             acct.ID,
		ChargesEnabled: acct.ChargesEnabled,
		PayoutsEnabled: acct.PayoutsEnabled,
	}, nil
}
