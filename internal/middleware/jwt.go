package middleware

import (
	"net/http"

	"storefront/internal/backend"
	"storefront/internal/models"
	"storefront/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	userKey  = "user"
	tokenKey = "token"
)

// LoadUser résout l'utilisateur du cookie de session. Une requête sans
// session (ou avec un token expiré) continue en anonyme.
func LoadUser(issuer *session.Issuer, accounts backend.Accounts) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := issuer.Token(c.Request)
		if token == "" {
			c.Next()
			return
		}

		user, err := accounts.Me(c.Request.Context(), token)
		if err != nil {
			log.Debug().Err(err).Msg("🔐 Session ignorée")
			c.Next()
			return
		}

		c.Set(userKey, user)
		c.Set(tokenKey, token)
		c.Next()
	}
}

// RequireUser redirige vers /signin sans utilisateur connecté.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) == nil {
			c.Redirect(http.StatusFound, "/signin")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RedirectIfUser renvoie les utilisateurs déjà connectés vers "/".
func RedirectIfUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) != nil {
			c.Redirect(http.StatusFound, "/")
			c.Abort()
			return
		}
		c.Next()
	}
}

func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

func CurrentToken(c *gin.Context) string {
	return c.GetString(tokenKey)
}
