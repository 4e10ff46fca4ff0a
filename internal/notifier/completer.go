package notifier

import (
	"context"
	"time"

	"storefront/internal/models"

	"github.com/rs/zerolog/log"
)

const publishTimeout = 5 * time.Second

// AutoCompleter publie le checkout dès que la commande est créée (pas de
// prestataire de paiement).
type AutoCompleter struct {
	publisher    Publisher
	redirectBase string
}

func NewAutoCompleter(publisher Publisher, redirectBase string) *AutoCompleter {
	return &AutoCompleter{publisher: publisher, redirectBase: redirectBase}
}

// OrderPlaced publie en arrière-plan et ne bloque pas la requête.
func (a *AutoCompleter) OrderPlaced(ctx context.Context, order models.Order) {
	ev := CheckoutEvent(a.redirectBase, order.ID)
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		if err := a.publisher.Publish(ctx, order.UserID, ev); err != nil {
			log.Error().Err(err).Str("order_id", order.ID).Msg("❌ Publication checkout échouée")
		}
	}()
}

func CheckoutEvent(redirectBase, orderID string) Event {
	return Event{Type: TypeCheckout, URL: redirectBase + orderID, OrderID: orderID}
}
