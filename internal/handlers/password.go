package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"storefront/internal/backend"
	"storefront/internal/cache"
	"storefront/internal/forms"
	"storefront/internal/models"
	"storefront/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const forgotPasswordMessage = "If you have an account in our database, we have sent you an email."

type forgotPasswordForm struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordForm struct {
	Password             string `json:"password" validate:"required,min=8"`
	PasswordConfirmation string `json:"passwordConfirmation" validate:"required,min=8"`
}

// ================== FORGOT PASSWORD ==================

// POST /forgot-password
func (h *Handler) ForgotPassword(c *gin.Context) {
	var form forgotPasswordForm
	if _, ok := bindForm(c, &form); !ok || !validateForm(c, form, form) {
		return
	}

	// on ne révèle pas si l'email existe
	user, err := h.Accounts.UserByEmail(c.Request.Context(), form.Email)
	if err != nil {
		if !errors.Is(err, backend.ErrNotFound) {
			log.Error().Err(err).Msg("❌ Erreur recherche utilisateur")
		}
		c.JSON(http.StatusOK, gin.H{"message": forgotPasswordMessage})
		return
	}

	token, err := h.ResetTokens.Issue(c.Request.Context(), user.Email)
	if err != nil {
		log.Error().Err(err).Msg("❌ Erreur sauvegarde token reset")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	go h.sendPasswordResetEmail(user.Email, user.Username, token)

	c.JSON(http.StatusOK, gin.H{"message": forgotPasswordMessage})
}

func (h *Handler) sendPasswordResetEmail(email, username, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	link := h.FrontendURL + "/reset-password?code=" + token
	body, err := utils.ResetPasswordEmail(username, link)
	if err != nil {
		log.Error().Err(err).Msg("❌ Erreur rendu e-mail reset")
		return
	}
	if err := h.Mailer.Send(ctx, email, "Reset your password", body); err != nil {
		log.Error().Err(err).Str("to", email).Msg("❌ Erreur envoi email reset")
		return
	}
	log.Info().Str("to", email).Msg("✅ Email de réinitialisation envoyé")
}

// ================== RESET PASSWORD ==================

// POST /reset-password?code=...
func (h *Handler) ResetPassword(c *gin.Context) {
	var form resetPasswordForm
	if _, ok := bindForm(c, &form); !ok {
		return
	}
	echo := resetPasswordForm{}
	code := c.Query("code")
	if code == "" {
		reject(c, echo, forms.Field("code", "Required"))
		return
	}
	if !validateForm(c, form, echo) {
		return
	}
	if form.Password != form.PasswordConfirmation {
		reject(c, echo, forms.Field("password", "Passwords do not match"))
		return
	}

	ctx := c.Request.Context()
	email, err := h.ResetTokens.Consume(ctx, code)
	if errors.Is(err, cache.ErrResetTokenNotFound) {
		reject(c, echo, forms.Field("code", "Invalid or expired code"))
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("❌ Erreur lecture token reset")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	id, err := h.resetPassword(ctx, email, form.Password)
	if err != nil {
		log.Error().Err(err).Msg("❌ Erreur réinitialisation mot de passe")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	log.Info().Str("user_id", id.ID).Msg("🔑 Mot de passe réinitialisé")
	_ = h.Sessions.Issue(c.Writer, c.Request, id.Token, "/")
}

func (h *Handler) resetPassword(ctx context.Context, email, password string) (models.Identity, error) {
	user, err := h.Accounts.UserByEmail(ctx, email)
	if err != nil {
		return models.Identity{}, err
	}
	if err := h.Accounts.SetPassword(ctx, user.ID, password); err != nil {
		return models.Identity{}, err
	}
	return h.Accounts.Login(ctx, email, password)
}
