package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/MarcusWehner/CrewDesk/app/controllers"
	"github.com/MarcusWehner/CrewDesk/internal/pkg/constants"
	"github.com/MarcusWehner/CrewDesk/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group(constants.APIRoute)
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// Provider webhooks are excluded from the rate limiter: Stripe bursts
	// retries and a 429 would be treated as a failed delivery.
	internal := api.Group(constants.InternalRoute)
	internal.Post(constants.StripeWebhookRoute, controllers.HandleStripeWebhook)

	// Operator-facing reconciliation views.
	admin := api.Group(constants.AdminRoute, limiter.New(), middleware.InternalAPIMiddleware())
	admin.Get("/webhook-events", controllers.HandleAdminListWebhookEvents)
	admin.Get("/payments", controllers.HandleAdminListPayments)
	admin.Get("/activity", controllers.HandleAdminListActivity)
	admin.Get("/metrics/webhooks", controllers.HandleAdminWebhookMetrics)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
