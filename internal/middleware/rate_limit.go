package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"storefront/internal/cache"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	LoginMaxAttempts          = 5
	RegisterMaxAttempts       = 3
	ForgotPasswordMaxAttempts = 3
	CheckoutMaxAttempts       = 10

	LoginCooldown          = 15 * time.Minute
	RegisterCooldown       = 30 * time.Minute
	ForgotPasswordCooldown = 10 * time.Minute
	CheckoutCooldown       = 10 * time.Minute
)

type RateLimits struct {
	Login          *cache.Limiter
	Register       *cache.Limiter
	ForgotPassword *cache.Limiter
	Checkout       *cache.Limiter
}

func NewRateLimits(client *redis.Client) *RateLimits {
	return &RateLimits{
		Login:          cache.NewLimiter(client, "login", LoginMaxAttempts, LoginCooldown),
		Register:       cache.NewLimiter(client, "register", RegisterMaxAttempts, RegisterCooldown),
		ForgotPassword: cache.NewLimiter(client, "forgot_password", ForgotPasswordMaxAttempts, ForgotPasswordCooldown),
		Checkout:       cache.NewLimiter(client, "checkout", CheckoutMaxAttempts, CheckoutCooldown),
	}
}

// MaxPeekBytes borne la lecture du corps par peekEmail.
const MaxPeekBytes = 1 << 20

// peekEmail lit le champ email du corps JSON sans le consommer. Un corps plus
// grand que MaxPeekBytes est refusé avec 413.
func peekEmail(c *gin.Context) string {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MaxPeekBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request body too large"})
		}
		return ""
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))

	var input struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(body, &input) != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(input.Email))
}

func tooMany(c *gin.Context, wait time.Duration) {
	c.Header("Retry-After", fmt.Sprintf("%d", int(wait.Seconds())))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"error":       fmt.Sprintf("Too many attempts. Try again in %d minutes", int(wait.Minutes())+1),
		"retry_after": int(wait.Seconds()),
	})
}

// limit compte une tentative quand counted(status) est vrai et réinitialise
// le compteur quand reset(status) est vrai.
func limit(l *cache.Limiter, key func(*gin.Context) string, counted, reset func(int) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		k := key(c)
		if c.IsAborted() {
			return
		}
		if k == "" {
			c.Next()
			return
		}
		ctx := c.Request.Context()

		wait, err := l.Check(ctx, k)
		if err != nil {
			// Redis indisponible : on laisse passer
			log.Warn().Err(err).Str("limiter", l.Name).Msg("⚠️ Rate limit indisponible")
			c.Next()
			return
		}
		if wait > 0 {
			tooMany(c, wait)
			return
		}

		c.Next()

		status := c.Writer.Status()
		switch {
		case counted(status):
			remaining, err := l.Hit(ctx, k)
			if err == nil && !c.Writer.Written() {
				c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
			}
		case reset != nil && reset(status):
			_ = l.Reset(ctx, k)
		}
	}
}

func clientIP(c *gin.Context) string { return c.ClientIP() }

func failedAuth(status int) bool {
	return status == http.StatusUnprocessableEntity || status == http.StatusUnauthorized
}

func redirected(status int) bool {
	return status == http.StatusFound || status == http.StatusSeeOther
}

// LoginRateLimit limite les échecs de connexion par email.
func (r *RateLimits) LoginRateLimit() gin.HandlerFunc {
	return limit(r.Login, peekEmail, failedAuth, redirected)
}

// RegisterRateLimit limite les inscriptions réussies par IP.
func (r *RateLimits) RegisterRateLimit() gin.HandlerFunc {
	return limit(r.Register, clientIP, redirected, nil)
}

// ForgotPasswordRateLimit limite les demandes de réinitialisation par email.
func (r *RateLimits) ForgotPasswordRateLimit() gin.HandlerFunc {
	return limit(r.ForgotPassword, peekEmail, func(status int) bool { return status == http.StatusOK }, nil)
}

// CheckoutRateLimit limite les commandes passées par IP.
func (r *RateLimits) CheckoutRateLimit() gin.HandlerFunc {
	return limit(r.Checkout, clientIP, redirected, nil)
}
