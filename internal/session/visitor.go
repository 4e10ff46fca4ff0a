package session

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
)

const (
	VisitorCookieName = "__cart"
	cartIDKey         = "cart_id"
)

// Visitors attribue à chaque navigateur un identifiant de panier stable,
// indépendant de la connexion.
type Visitors struct {
	store sessions.Store
}

func NewVisitors(store sessions.Store) *Visitors {
	return &Visitors{store: store}
}

// Peek retourne l'identifiant existant, ou "".
func (v *Visitors) Peek(r *http.Request) string {
	sess, err := v.store.Get(r, VisitorCookieName)
	if err != nil {
		return ""
	}
	id, _ := sess.Values[cartIDKey].(string)
	return id
}

// CartID retourne l'identifiant du visiteur, en le créant si besoin.
func (v *Visitors) CartID(w http.ResponseWriter, r *http.Request) (string, error) {
	if id := v.Peek(r); id != "" {
		return id, nil
	}
	sess, _ := v.store.New(r, VisitorCookieName)
	id := uuid.NewString()
	sess.Values[cartIDKey] = id
	if err := sess.Save(r, w); err != nil {
		return "", err
	}
	return id, nil
}
