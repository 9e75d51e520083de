package controllers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/MarcusWehner/CrewDesk/app/models"
	"github.com/MarcusWehner/CrewDesk/internal/pkg/database"
	"github.com/MarcusWehner/CrewDesk/internal/pkg/metrics/counter"
)

const defaultPageSize = 50

// HandleAdminListWebhookEvents returns the most recent webhook events,
// including failed ones, for operator inspection. Failures live on the event
// rows, not in the activity log.
func HandleAdminListWebhookEvents(c *fiber.Ctx) error {
	db := database.GetDB()
	if db == nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Database unavailable"})
	}

	offset, limit := pagination(c)
	query := db.Model(&models.WebhookEvent{}).Order("created_at DESC")
	if c.Query("status") == "failed" {
		query = query.Where("failed_at IS NOT NULL AND processed_at IS NULL")
	}

	var events []models.WebhookEvent
	if err := query.Offset(offset).Limit(limit).Find(&events).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load webhook events"})
	}

	return c.JSON(fiber.Map{"events": events, "offset": offset, "limit": limit})
}

// HandleAdminListPayments returns the append-only payment ledger, newest
// first, optionally filtered by user.
func HandleAdminListPayments(c *fiber.Ctx) error {
	db := database.GetDB()
	if db == nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Database unavailable"})
	}

	offset, limit := pagination(c)
	query := db.Model(&models.Payment{}).Order("created_at DESC")
	if userID, err := strconv.ParseUint(c.Query("user_id"), 10, 64); err == nil && userID > 0 {
		query = query.Where("user_id = ?", uint(userID))
	}

	var payments []models.Payment
	if err := query.Offset(offset).Limit(limit).Find(&payments).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load payments"})
	}

	return c.JSON(fiber.Map{"payments": payments, "offset": offset, "limit": limit})
}

// HandleAdminListActivity returns the audit trail, newest first.
func HandleAdminListActivity(c *fiber.Ctx) error {
	db := database.GetDB()
	if db == nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Database unavailable"})
	}

	offset, limit := pagination(c)
	var entries []models.ActivityLog
	if err := db.Model(&models.ActivityLog{}).Order("created_at DESC").
		Offset(offset).Limit(limit).Find(&entries).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load activity log"})
	}

	return c.JSON(fiber.Map{"activity": entries, "offset": offset, "limit": limit})
}

// HandleAdminWebhookMetrics returns the Redis-backed delivery counters.
func HandleAdminWebhookMetrics(c *fiber.Ctx) error {
	received, rejected, err := counter.Snapshot()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load webhook counters"})
	}
	return c.JSON(fiber.Map{"received": received, "rejected": rejected})
}

func pagination(c *fiber.Ctx) (int, int) {
	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	limit, _ := strconv.Atoi(c.Query("limit", strconv.Itoa(defaultPageSize)))
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 200 {
		limit = defaultPageSize
	}
	return offset, limit
}
