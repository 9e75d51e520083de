package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/MarcusWehner/CrewDesk/internal/pkg/database"
	"github.com/MarcusWehner/CrewDesk/internal/pkg/env"
	"github.com/MarcusWehner/CrewDesk/internal/pkg/metrics/counter"
	"github.com/MarcusWehner/CrewDesk/internal/pkg/payments"
)

// HandleStripeWebhook receives provider events. The raw body is handed to the
// engine untouched because the signature covers the exact bytes; only a
// signature failure rejects the delivery, every other outcome is
// acknowledged so the provider's retry policy stays in charge.
func HandleStripeWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := c.Get("Stripe-Signature")

	engine := payments.NewEngineFromDB(database.GetDB(), payments.NewStripeClientFromEnv(), payments.Config{
		PlatformFeeRate: platformFeeRate(),
		Dedupe:          payments.NewRedisDedupe(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := engine.Receive(ctx, rawBody, signature); err != nil {
		if errors.Is(err, payments.ErrInvalidSignature) {
			_ = counter.AddWebhookRejected()
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid signature"})
		}
		// The event could not even be recorded; a non-2xx response makes the
		// provider redeliver it.
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_persist_failed"})
	}

	_ = counter.AddWebhookReceived(peekEventType(rawBody))
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true})
}

// peekEventType extracts the event type for the operational counters. The
// body has already been signature-verified at this point.
func peekEventType(rawBody []byte) string {
	var probe struct {
		Type string `json:"type"`
	}
	_ = json.Unmarshal(rawBody, &probe)
	return probe.Type
}

// platformFeeRate reads the platform's fee percentage (e.g. "10" for 10%).
func platformFeeRate() float64 {
	raw := env.GetEnv("PLATFORM_FEE_PERCENT", "10")
	pct, err := strconv.ParseFloat(raw, 64)
	if err != nil || pct < 0 {
		return 0.10
	}
	return pct / 100
}
