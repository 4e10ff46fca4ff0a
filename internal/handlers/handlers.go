// Package handlers expose la boutique en HTTP (gin).
package handlers

import (
	"encoding/json"
	"net/http"

	"storefront/internal/backend"
	"storefront/internal/cache"
	"storefront/internal/cart"
	"storefront/internal/forms"
	"storefront/internal/notifier"
	"storefront/internal/order"
	"storefront/internal/pricing"
	"storefront/internal/session"
	"storefront/internal/utils"

	"github.com/gin-gonic/gin"
)

const maxBodyBytes = int64(1 << 20)

type Handler struct {
	Accounts    backend.Accounts
	Orders      backend.Orders
	Prices      *pricing.Builder
	Carts       cart.Store
	Reconciler  *order.Reconciler
	Sessions    *session.Issuer
	Visitors    *session.Visitors
	ResetTokens *cache.ResetTokens
	Mailer      utils.Mailer
	Publisher   notifier.Publisher

	FrontendURL          string
	CheckoutRedirectBase string
	StripeWebhookSecret  string
}

// bindForm décode le corps JSON. En cas d'échec la réponse 422 est déjà écrite.
func bindForm(c *gin.Context, dst interface{}) (json.RawMessage, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unable to read body"})
		return nil, false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		var initial interface{}
		if json.Valid(raw) {
			initial = json.RawMessage(raw)
		}
		reject(c, initial, forms.Field("form", "Invalid submission"))
		return nil, false
	}
	return raw, true
}

// reject renvoie la saisie et les erreurs par champ.
func reject(c *gin.Context, initial interface{}, errs forms.Errors) {
	c.JSON(http.StatusUnprocessableEntity, order.Rejected(initial, errs))
}

// validateForm valide form ; en cas d'erreur, echo est renvoyé comme saisie.
func validateForm(c *gin.Context, form, echo interface{}) bool {
	errs, err := forms.Validate(form)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return false
	}
	if !errs.Empty() {
		reject(c, echo, errs)
		return false
	}
	return true
}
