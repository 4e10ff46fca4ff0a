package handlers

import (
	"errors"
	"net/http"

	"storefront/internal/backend"
	"storefront/internal/forms"
	"storefront/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ================== AUTH LOCALE ==================

type registerForm struct {
	Username string `json:"username" validate:"required,min=3"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type signinForm struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// POST /register
func (h *Handler) Register(c *gin.Context) {
	var form registerForm
	if _, ok := bindForm(c, &form); !ok {
		return
	}
	// le mot de passe n'est jamais renvoyé
	echo := form
	echo.Password = ""
	if !validateForm(c, form, echo) {
		return
	}

	id, err := h.Accounts.Register(c.Request.Context(), backend.Registration{
		Username: form.Username,
		Email:    form.Email,
		Password: form.Password,
	})
	if errors.Is(err, backend.ErrEmailTaken) {
		reject(c, echo, forms.Field("email", "User already exists"))
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("❌ Erreur création utilisateur")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	log.Info().Str("user_id", id.ID).Msg("✅ Utilisateur créé")
	_ = h.Sessions.Issue(c.Writer, c.Request, id.Token, "/")
}

// POST /signin
func (h *Handler) Signin(c *gin.Context) {
	var form signinForm
	if _, ok := bindForm(c, &form); !ok {
		return
	}
	echo := form
	echo.Password = ""
	if !validateForm(c, form, echo) {
		return
	}

	id, err := h.Accounts.Login(c.Request.Context(), form.Email, form.Password)
	switch {
	case errors.Is(err, backend.ErrNotFound):
		reject(c, echo, forms.Field("email", "User does not exist."))
		return
	case errors.Is(err, backend.ErrInvalidCredentials):
		reject(c, echo, forms.Field("password", "Your password is not valid."))
		return
	case err != nil:
		log.Error().Err(err).Msg("❌ Erreur connexion")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	_ = h.Sessions.Issue(c.Writer, c.Request, id.Token, c.Query("redirectTo"))
}

// POST /logout
func (h *Handler) Logout(c *gin.Context) {
	redirectTo := c.PostForm("redirectTo")
	if redirectTo == "" {
		redirectTo = c.Query("redirectTo")
	}
	_ = h.Sessions.Destroy(c.Writer, c.Request, redirectTo)
}

// GET /me
func (h *Handler) Me(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusOK, gin.H{"user": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":  user,
		"token": middleware.CurrentToken(c),
	})
}
