// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"chomp/internal/http/handlers"
	"chomp/internal/http/middleware"
	"chomp/internal/metrics"
	"chomp/internal/modules/ads"
	"chomp/internal/modules/loyalty"
	"chomp/internal/modules/order"
	"chomp/internal/modules/payment"
	"chomp/internal/modules/rider"
)

func NewRouter(
	orderService *order.Service,
	paymentService *payment.Service,
	loyaltyService *loyalty.Service,
	adsService *ads.Service,
	riderService *rider.Service,
) http.Handler {
	r := gin.New()
	r.Use(middleware.Recovery(), middleware.Logging(), cors.Default())

	orderHandler := handlers.NewOrderHandler(orderService, paymentService)
	api := r.Group("/api")
	api.POST("/orders/quote", orderHandler.Quote)
	api.POST("/orders", orderHandler.Checkout)
	api.GET("/orders/:id", orderHandler.Get)
	api.POST("/orders/:id/cancel", orderHandler.Cancel)
	api.POST("/orders/:id/accept", orderHandler.Accept)
	api.POST("/orders/:id/ready", orderHandler.MarkReady)
	api.POST("/orders/:id/pickup", orderHandler.PickUp)
	api.POST("/orders/:id/depart", orderHandler.Depart)
	api.POST("/orders/:id/deliver", orderHandler.Deliver)
	api.GET("/customers/:id/orders", orderHandler.ListByCustomer)
	api.GET("/vendors/:id/orders", orderHandler.ListByVendor)

	paymentHandler := handlers.NewPaymentHandler(paymentService)
	api.POST("/payments/webhook", paymentHandler.Webhook)
	api.GET("/payments/callback", paymentHandler.Callback)
	api.GET("/payments/:reference", paymentHandler.Get)

	loyaltyHandler := handlers.NewLoyaltyHandler(loyaltyService)
	api.GET("/customers/:id/loyalty", loyaltyHandler.Balance)
	api.GET("/customers/:id/loyalty/history", loyaltyHandler.History)

	adsHandler := handlers.NewAdsHandler(adsService, paymentService)
	api.POST("/ads", adsHandler.Purchase)
	api.GET("/vendors/:id/ads/active", adsHandler.Active)
	api.POST("/ads/:id/impression", adsHandler.Impression)
	api.POST("/ads/:id/click", adsHandler.Click)
	api.POST("/ads/:id/conversion", adsHandler.Conversion)

	riderHandler := handlers.NewRiderHandler(riderService)
	api.PUT("/riders/:id/availability", riderHandler.SetAvailable)
	api.DELETE("/riders/:id/availability", riderHandler.SetUnavailable)
	api.GET("/riders/nearest", riderHandler.Nearest)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	return r
}
