package payments

import (
	"encoding/json"

	"github.com/MarcusWehner/CrewDesk/app/models"
)

// recordActivity appends one immutable audit entry. The engine writes the log
// for observability only and never reads it back.
func recordActivity(r Repository, activityType string, userID uint, oldValue, newValue string, metadata map[string]interface{}) error {
	meta := ""
	if len(metadata) > 0 {
		if b, err := json.Marshal(metadata); err == nil {
			meta = string(b)
		}
	}

	return r.CreateActivityLog(&models.ActivityLog{
		Type:     activityType,
		UserID:   userID,
		OldValue: oldValue,
		NewValue: newValue,
		Metadata: meta,
	})
}
