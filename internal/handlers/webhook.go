package handlers

import (
	"encoding/json"
	"net/http"

	"storefront/internal/models"
	"storefront/internal/notifier"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/webhook"
)

const maxWebhookBytes = int64(65536)

// ================== STRIPE WEBHOOK ==================

// POST /webhooks/stripe
//
// Seul checkout.session.completed est traité ; les métadonnées user_id et
// order_id désignent la commande à marquer comme payée.
func (h *Handler) StripeWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBytes)
	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unable to read body"})
		return
	}

	event, err := webhook.ConstructEvent(payload, c.GetHeader("Stripe-Signature"), h.StripeWebhookSecret)
	if err != nil {
		log.Warn().Err(err).Msg("⚠️ Signature webhook invalide")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signature"})
		return
	}

	if event.Type != stripe.EventTypeCheckoutSessionCompleted {
		c.Status(http.StatusOK)
		return
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload"})
		return
	}
	userID, orderID := sess.Metadata["user_id"], sess.Metadata["order_id"]
	if userID == "" || orderID == "" {
		log.Warn().Str("session", sess.ID).Msg("⚠️ Webhook sans métadonnées de commande")
		c.Status(http.StatusOK)
		return
	}

	ctx := c.Request.Context()
	if err := h.Orders.SetOrderStatus(ctx, orderID, models.OrderStatusCompleted); err != nil {
		log.Error().Err(err).Str("order_id", orderID).Msg("❌ Mise à jour statut commande échouée")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if err := h.Publisher.Publish(ctx, userID, notifier.CheckoutEvent(h.CheckoutRedirectBase, orderID)); err != nil {
		log.Error().Err(err).Str("order_id", orderID).Msg("❌ Publication checkout échouée")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	log.Info().Str("order_id", orderID).Msg("✅ Paiement confirmé")
	c.Status(http.StatusOK)
}
