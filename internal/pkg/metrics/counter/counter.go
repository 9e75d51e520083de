package counter

import (
	"context"
	"strconv"

	"github.com/MarcusWehner/CrewDesk/internal/pkg/cache"
)

const (
	webhookReceivedKey = "webhook:counters:received"
	webhookRejectedKey = "webhook:counters:rejected"
)

// AddWebhookReceived increments the acknowledged-delivery counter for an
// event type in Redis. Counters are operational metrics only; the DB rows
// remain the source of truth for reconciliation state.
func AddWebhookReceived(eventType string) error {
	ctx := context.Background()
	return cache.GetClient().HIncrBy(ctx, webhookReceivedKey, field(eventType), 1).Err()
}

// AddWebhookRejected increments the signature-rejection counter.
func AddWebhookRejected() error {
	ctx := context.Background()
	return cache.GetClient().HIncrBy(ctx, webhookRejectedKey, "invalid_signature", 1).Err()
}

// Snapshot returns the current counter values keyed by event type.
func Snapshot() (map[string]int64, map[string]int64, error) {
	ctx := context.Background()
	rdb := cache.GetClient()

	received, err := readHash(rdb.HGetAll(ctx, webhookReceivedKey).Result())
	if err != nil {
		return nil, nil, err
	}
	rejected, err := readHash(rdb.HGetAll(ctx, webhookRejectedKey).Result())
	if err != nil {
		return nil, nil, err
	}
	return received, rejected, nil
}

func field(eventType string) string {
	if eventType == "" {
		return "unknown"
	}
	return eventType
}

func readHash(data map[string]string, err error) (map[string]int64, error) {
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(data))
	for k, v := range data {
		if n, perr := strconv.ParseInt(v, 10, 64); perr == nil {
			out[k] = n
		}
	}
	return out, nil
}
