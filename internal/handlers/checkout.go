package handlers

import (
	"errors"
	"net/http"

	"storefront/internal/middleware"
	"storefront/internal/order"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// POST /cart/checkout
//
// Succès : redirection vers /cart (X-Order-ID porte la commande), avec
// ouverture de session pour un invité. Échec de saisie : 422 et la soumission.
func (h *Handler) Checkout(c *gin.Context) {
	var sub order.Submission
	if _, ok := bindForm(c, &sub); !ok {
		return
	}

	current := middleware.CurrentUser(c)
	res, errs, err := h.Reconciler.Submit(c.Request.Context(), sub, current)
	switch {
	case err != nil:
		log.Error().Err(err).Msg("❌ Échec de la commande")
		c.JSON(http.StatusInternalServerError, gin.H{"error": checkoutFailure(err)})
		return
	case !errs.Empty():
		reject(c, sub, errs)
		return
	}

	c.Header("X-Order-ID", res.Order.ID)
	if current == nil && res.Purchaser.Token != "" {
		if err := h.Sessions.Issue(c.Writer, c.Request, res.Purchaser.Token, "/cart"); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}
	c.Redirect(http.StatusFound, "/cart")
}

func checkoutFailure(err error) string {
	switch {
	case errors.Is(err, order.ErrUnknownProduct):
		return "Product was not found"
	case errors.Is(err, order.ErrMissingEmail):
		return "Please provide a valid email"
	default:
		return "Internal server error"
	}
}
