// Package identity détermine pour qui une commande est passée : le client
// connecté, ou un invité pour lequel un compte est créé à la volée.
package identity

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/backend"
	"storefront/internal/forms"
	"storefront/internal/models"
	"storefront/internal/utils"

	"github.com/rs/zerolog/log"
)

type Status string

const (
	LoggedIn  Status = "logged-in"
	LoggedOut Status = "logged-out"
)

const (
	MsgLoginRequired = "Please log in before placing your order"
	MsgEmailTaken    = "User already exists. Please log in to order with this email."
)

var ErrNoSession = errors.New("identity: no current session")

// Selector est la déclaration du client, revérifiée côté serveur.
type Selector struct {
	Status Status
	Email  string
}

// Purchaser est l'acheteur résolu. Token n'est renseigné que pour un compte
// créé pendant la commande.
type Purchaser struct {
	UserID   string
	Email    string
	Username string
	Token    string
	Created  bool
}

type Resolver struct {
	accounts    backend.Accounts
	newPassword func() (string, error)
}

func NewResolver(accounts backend.Accounts) *Resolver {
	return &Resolver{
		accounts: accounts,
		newPassword: func() (string, error) {
			return utils.RandomToken(24)
		},
	}
}

// Check valide le sélecteur avant tout appel au catalogue. current est nil
// quand la requête n'a pas de session.
func (r *Resolver) Check(ctx context.Context, sel Selector, current *models.User) (forms.Errors, error) {
	switch sel.Status {
	case LoggedIn:
		if current == nil {
			return forms.Field("email", MsgLoginRequired), nil
		}
		return nil, nil
	case LoggedOut:
		exists, err := r.accounts.EmailExists(ctx, sel.Email)
		if err != nil {
			return nil, fmt.Errorf("identity: email lookup: %w", err)
		}
		if exists {
			return forms.Field("email", MsgEmailTaken), nil
		}
		return nil, nil
	default:
		return forms.Field("status", "Invalid value"), nil
	}
}

// Resolve retourne l'acheteur. Pour un invité, le compte est créé avec un
// mot de passe opaque ; une inscription concurrente gagnante sur le même
// email est rapportée comme erreur de champ.
func (r *Resolver) Resolve(ctx context.Context, sel Selector, current *models.User) (*Purchaser, forms.Errors, error) {
	if sel.Status == LoggedIn {
		if current == nil {
			return nil, nil, ErrNoSession
		}
		return &Purchaser{UserID: current.ID, Email: current.Email, Username: current.Username}, nil, nil
	}

	password, err := r.newPassword()
	if err != nil {
		return nil, nil, err
	}
	id, err := r.accounts.Register(ctx, backend.Registration{
		Username: sel.Email,
		Email:    sel.Email,
		Password: password,
	})
	if errors.Is(err, backend.ErrEmailTaken) {
		return nil, forms.Field("email", MsgEmailTaken), nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("identity: register guest: %w", err)
	}

	log.Info().Str("user_id", id.ID).Msg("👤 Compte invité créé")
	return &Purchaser{
		UserID:   id.ID,
		Email:    id.Email,
		Username: id.Username,
		Token:    id.Token,
		Created:  true,
	}, nil, nil
}
