package routes

import (
	"net/http"
	"time"

	"storefront/internal/backend"
	"storefront/internal/handlers"
	"storefront/internal/middleware"
	"storefront/internal/session"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Options struct {
	CORSOrigins []string
	// Stripe active la route webhook.
	Stripe bool
	// Hub sert /ws ; nil désactive la route.
	Hub http.Handler
}

func RegisterRoutes(r *gin.Engine, h *handlers.Handler, issuer *session.Issuer, accounts backend.Accounts, limits *middleware.RateLimits, opts Options) {
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     opts.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"X-Order-ID", "Location"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	r.Use(middleware.LoadUser(issuer, accounts))

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Catalogue & panier
	r.GET("/snapshot", h.Snapshot)
	r.GET("/cart", h.GetCart)
	r.POST("/cart/items/:productId", h.AddToCart)
	r.DELETE("/cart/items/:productId", h.RemoveFromCart)
	r.DELETE("/cart", h.ClearCart)
	r.POST("/cart/checkout", limits.CheckoutRateLimit(), h.Checkout)

	// Auth
	r.POST("/register", limits.RegisterRateLimit(), h.Register)
	r.POST("/signin", limits.LoginRateLimit(), h.Signin)
	r.POST("/logout", h.Logout)
	r.GET("/me", h.Me)

	guest := r.Group("/", middleware.RedirectIfUser())
	{
		guest.POST("/forgot-password", limits.ForgotPasswordRateLimit(), h.ForgotPassword)
		guest.POST("/reset-password", h.ResetPassword)
	}

	orders := r.Group("/orders", middleware.RequireUser())
	{
		orders.GET("", h.ListOrders)
		orders.GET("/:orderId", h.GetOrder)
	}

	if opts.Stripe {
		r.POST("/webhooks/stripe", h.StripeWebhook)
	}
	if opts.Hub != nil {
		r.GET("/ws", gin.WrapH(opts.Hub))
	}
}
