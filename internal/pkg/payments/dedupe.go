package payments

import (
	"context"
	"log"
	"time"

	"github.com/MarcusWehner/CrewDesk/internal/pkg/cache"
)

const processedMarkerTTL = 24 * time.Hour

// DedupeCache is a best-effort fast path for duplicate deliveries: markers
// are written only after an event is marked processed in the DB, so a cache
// miss (or an unavailable cache) just falls through to the DB check.
type DedupeCache interface {
	SeenProcessed(ctx context.Context, eventID string) bool
	MarkProcessed(ctx context.Context, eventID string)
}

type redisDedupe struct{}

// NewRedisDedupe returns a DedupeCache backed by the shared cache client.
func NewRedisDedupe() DedupeCache {
	return redisDedupe{}
}

func (redisDedupe) key(eventID string) string {
	return "webhook:processed:" + eventID
}

func (d redisDedupe) SeenProcessed(_ context.Context, eventID string) bool {
	val, err := cache.Get(d.key(eventID))
	return err == nil && val != ""
}

func (d redisDedupe) MarkProcessed(_ context.Context, eventID string) {
	if err := cache.Set(d.key(eventID), "1", processedMarkerTTL); err != nil {
		log.Printf("failed to cache processed marker for %s: %v", eventID, err)
	}
}
