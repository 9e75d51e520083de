package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/go-playground/validator/v10"
	stripe "github.com/stripe/stripe-go/v74"
	"gorm.io/gorm"

	"github.com/MarcusWehner/CrewDesk/app/models"
)

// ErrInvalidSignature is returned by Receive when the payload cannot be
// authenticated. It is the only condition that rejects a delivery; every
// other outcome acknowledges it.
var ErrInvalidSignature = errors.New("invalid webhook signature")

var validate = validator.New()

// Config carries the engine's tunables.
type Config struct {
	// PlatformFeeRate is the platform's cut applied to the post-provider-fee
	// amount, e.g. 0.10 for 10%.
	PlatformFeeRate float64

	// Dedupe is an optional fast-path cache of processed event IDs checked
	// before the DB. The unique constraint on webhook_events remains the
	// correctness primitive; the cache only short-circuits known duplicates.
	Dedupe DedupeCache
}

// Engine is the payment/webhook reconciliation engine: it ingests verified
// provider events exactly once and applies them to the local ledger.
type Engine struct {
	repo     Repository
	provider ProviderClient
	cfg      Config
	routes   map[string]handlerFunc
}

type handlerFunc func(ctx context.Context, event *stripe.Event) (Outcome, error)

// NewEngine creates an engine from an injected repository and provider client.
func NewEngine(repo Repository, provider ProviderClient, cfg Config) *Engine {
	e := &Engine{
		repo:     repo,
		provider: provider,
		cfg:      cfg,
	}
	e.routes = e.buildRoutes()
	return e
}

// NewEngineFromDB creates an engine from a GORM DB handle.
func NewEngineFromDB(db *gorm.DB, provider ProviderClient, cfg Config) *Engine {
	return NewEngine(NewRepository(db), provider, cfg)
}

// Receive is the event intake: verify the signature over the raw bytes, claim
// the event row, dispatch to the matching mutator, then mark the row
// processed or failed. Returns ErrInvalidSignature for unauthenticated
// payloads; a non-nil error otherwise means the event could not even be
// recorded and the provider should redeliver. Mutator failures are captured
// on the event row and acknowledged.
func (e *Engine) Receive(ctx context.Context, payload []byte, sigHeader string) error {
	event, err := e.provider.ConstructEvent(payload, sigHeader)
	if err != nil {
		log.Printf("webhook signature verification failed: %v", err)
		return ErrInvalidSignature
	}

	if e.cfg.Dedupe != nil && e.cfg.Dedupe.SeenProcessed(ctx, event.ID) {
		return nil
	}

	claimed, stored, err := e.repo.ClaimWebhookEvent(&models.WebhookEvent{
		StripeEventID: event.ID,
		EventType:     string(event.Type),
	})
	if err != nil {
		return fmt.Errorf("claim webhook event %s: %w", event.ID, err)
	}

	if !claimed {
		if stored.ProcessedAt != nil {
			// Duplicate delivery of a processed event: no-op success.
			return nil
		}
		if stored.FailedAt == nil {
			// A concurrent delivery holds the claim and is still running its
			// mutators. Ack without racing it; the provider redelivers if
			// that attempt fails.
			return nil
		}
		// Prior delivery failed; this redelivery re-enters the router.
	}

	outcome, procErr := e.route(ctx, &event)
	if procErr != nil {
		log.Printf("webhook %s (%s) failed: %v", event.ID, event.Type, procErr)
		if markErr := e.repo.MarkWebhookFailed(stored.ID, procErr.Error()); markErr != nil {
			log.Printf("failed to mark webhook %s failed: %v", event.ID, markErr)
		}
		return nil
	}

	if outcome == OutcomeSkippedMissingEntity {
		log.Printf("webhook %s (%s): referenced entity not found, skipping", event.ID, event.Type)
	}

	if err := e.repo.MarkWebhookProcessed(stored.ID); err != nil {
		return fmt.Errorf("mark webhook %s processed: %w", event.ID, err)
	}
	if e.cfg.Dedupe != nil {
		e.cfg.Dedupe.MarkProcessed(ctx, event.ID)
	}
	return nil
}

// decodeEvent narrows the raw event payload into the typed per-event shape
// and validates the fields the mutators key on.
func decodeEvent(event *stripe.Event, dst interface{}) error {
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return fmt.Errorf("event %s has no payload", event.ID)
	}
	if err := json.Unmarshal(event.Data.Raw, dst); err != nil {
		return fmt.Errorf("decode %s payload: %w", event.Type, err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("invalid %s payload: %w", event.Type, err)
	}
	return nil
}
