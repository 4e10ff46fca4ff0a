package notifier

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const ReconnectDelay = 150 * time.Millisecond

var (
	ErrAnonymous    = errors.New("notifier: no token, no channel")
	errDisconnected = errors.New("notifier: server disconnect")
)

// Clearer vide le panier local.
type Clearer interface {
	Clear(ctx context.Context) error
}

// Client maintient le canal d'un client connecté : reconnexion à délai fixe,
// sans limite de tentatives, jusqu'à l'annulation du contexte.
type Client struct {
	URL      string
	Token    string
	Cart     Clearer
	Navigate func(url string)
	OnStatus func(connected bool)

	RetryDelay time.Duration
	Dialer     *websocket.Dialer

	mu      sync.Mutex
	handled map[string]struct{}
}

// Run bloque jusqu'à l'annulation de ctx.
func (c *Client) Run(ctx context.Context) error {
	if c.Token == "" {
		return ErrAnonymous
	}
	target, err := c.endpoint()
	if err != nil {
		return err
	}
	delay := c.RetryDelay
	if delay <= 0 {
		delay = ReconnectDelay
	}

	for {
		err := c.session(ctx, target)
		if ctx.Err() != nil {
			return nil
		}
		log.Debug().Err(err).Dur("retry_in", delay).Msg("🔄 Reconnexion au canal checkout")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

func (c *Client) endpoint() (string, error) {
	u, err := url.Parse(c.URL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", c.Token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) session(ctx context.Context, target string) error {
	dialer := c.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, target, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	})
	defer stop()
	defer c.status(false)

	if err := conn.WriteJSON(Event{Type: TypeConnection}); err != nil {
		return err
	}

	for {
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			return err
		}
		switch ev.Type {
		case TypeConfirmation:
			c.status(true)
		case TypeDisconnect:
			return errDisconnected
		case TypeCheckout:
			c.checkout(ctx, ev)
		}
	}
}

// checkout vide le panier puis navigue, une seule fois par commande.
func (c *Client) checkout(ctx context.Context, ev Event) {
	key := ev.OrderID
	if key == "" {
		key = ev.URL
	}
	c.mu.Lock()
	if c.handled == nil {
		c.handled = make(map[string]struct{})
	}
	if _, seen := c.handled[key]; seen {
		c.mu.Unlock()
		return
	}
	c.handled[key] = struct{}{}
	c.mu.Unlock()

	if c.Cart != nil {
		if err := c.Cart.Clear(ctx); err != nil {
			log.Error().Err(err).Msg("❌ Vidage du panier échoué")
		}
	}
	if c.Navigate != nil {
		c.Navigate(ev.URL)
	}
}

func (c *Client) status(connected bool) {
	if c.OnStatus != nil {
		c.OnStatus(connected)
	}
}
