// Package session lie un token utilisateur à un cookie signé.
package session

import (
	"net/http"
	"strings"

	"github.com/gorilla/sessions"
	"github.com/rs/zerolog/log"
)

const (
	CookieName = "__session"
	tokenKey   = "token"
	MaxAge     = 30 * 24 * 60 * 60
)

// NewCookieStore configure le store : HttpOnly, Path "/", SameSite Lax,
// Secure en production.
func NewCookieStore(secret string, secure bool) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   MaxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

type Issuer struct {
	store sessions.Store
	name  string
}

func NewIssuer(store sessions.Store) *Issuer {
	return &Issuer{store: store, name: CookieName}
}

// Token retourne le token de la requête, ou "" sans session valide.
func (i *Issuer) Token(r *http.Request) string {
	sess, err := i.store.Get(r, i.name)
	if err != nil {
		return ""
	}
	token, _ := sess.Values[tokenKey].(string)
	return token
}

// Issue enregistre token dans le cookie puis redirige vers redirectTo ("/" par défaut).
func (i *Issuer) Issue(w http.ResponseWriter, r *http.Request, token, redirectTo string) error {
	if err := i.Save(w, r, token); err != nil {
		return err
	}
	http.Redirect(w, r, SafeRedirect(redirectTo, "/"), http.StatusFound)
	return nil
}

// Save enregistre token sans rediriger.
func (i *Issuer) Save(w http.ResponseWriter, r *http.Request, token string) error {
	// un cookie illisible (secret changé) est remplacé
	sess, _ := i.store.New(r, i.name)
	sess.Values[tokenKey] = token
	if err := sess.Save(r, w); err != nil {
		log.Error().Err(err).Msg("❌ Erreur sauvegarde session")
		return err
	}
	return nil
}

// Destroy expire le cookie puis redirige vers redirectTo ("/" par défaut).
func (i *Issuer) Destroy(w http.ResponseWriter, r *http.Request, redirectTo string) error {
	sess, _ := i.store.New(r, i.name)
	sess.Values = map[interface{}]interface{}{}
	sess.Options.MaxAge = -1
	if err := sess.Save(r, w); err != nil {
		return err
	}
	http.Redirect(w, r, SafeRedirect(redirectTo, "/"), http.StatusFound)
	return nil
}

// SafeRedirect n'accepte qu'un chemin local.
func SafeRedirect(target, fallback string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return fallback
	}
	return target
}
