package constants

// Static route constants
const (
	APIRoute           = "/api"
	InternalRoute      = "/internal"
	AdminRoute         = "/admin"
	StripeWebhookRoute = "/webhooks/stripe"
)
