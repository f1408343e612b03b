package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/papegu/senegal-livres/internal/handler"
	"github.com/papegu/senegal-livres/internal/middleware"
	"github.com/papegu/senegal-livres/internal/model"
)

// Handlers bundles everything the API exposes.  Sandbox is nil when the
// sandbox provider is disabled, and its routes are then not registered.
type Handlers struct {
	Health       echo.HandlerFunc
	Checkout     *handler.CheckoutHandler
	Webhook      *handler.WebhookHandler
	Transactions *handler.TransactionHandler
	Purchases    *handler.PurchaseHandler
	Cart         *handler.CartHandler
	Admin        *handler.AdminHandler
	Sandbox      *handler.SandboxHandler
}

// RegisterRoutes maps every endpoint onto e.  limiter guards the
// buyer-facing checkout and cart routes; nil disables it.  Webhooks are
// never authenticated or rate limited: providers authenticate with
// signatures checked during reconciliation.
func RegisterRoutes(e *echo.Echo, h Handlers, jwtSecret string, limiter echo.MiddlewareFunc) {
	if limiter == nil {
		limiter = func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	if h.Health != nil {
		e.GET("/healthz", h.Health)
	}

	// Guests may check out, so the token is optional; a bad one still fails.
	e.POST("/v1/checkout", h.Checkout.Create, middleware.OptionalJWT(jwtSecret), limiter)

	e.POST("/v1/payments/webhooks/:provider", h.Webhook.Receive)
	e.GET("/v1/transactions/:orderId", h.Transactions.Get)

	if h.Sandbox != nil {
		sb := e.Group("/v1/payments/sandbox")
		sb.GET("/:orderId", h.Sandbox.Page)
		sb.POST("/:orderId/confirm", h.Sandbox.Confirm)
		sb.POST("/:orderId/decline", h.Sandbox.Decline)
	}

	me := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	me.GET("/me/purchases", h.Purchases.List)
	me.GET("/cart", h.Cart.Get, limiter)
	me.POST("/cart", h.Cart.Update, limiter)

	admin := e.Group("/v1/admin", middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleAdmin))
	admin.POST("/transactions/:orderId/cancel", h.Admin.CancelTransaction)
}
