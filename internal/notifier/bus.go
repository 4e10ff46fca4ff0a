// Package notifier pousse l'événement de fin de checkout au navigateur (ou au
// CLI) du client via WebSocket, à travers Redis pub/sub.
package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	TypeConnection   = "connection"
	TypeConfirmation = "confirmation"
	TypeDisconnect   = "disconnect"
	TypeCheckout     = "checkout"
)

// PendingTTL borne la conservation d'un checkout non encore délivré.
const PendingTTL = 10 * time.Minute

type Event struct {
	Type    string `json:"type"`
	URL     string `json:"url,omitempty"`
	OrderID string `json:"orderId,omitempty"`
}

// Publisher publie un événement sur le canal d'un utilisateur.
type Publisher interface {
	Publish(ctx context.Context, userID string, ev Event) error
}

type RedisBus struct {
	client *redis.Client
}

func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{client: client}
}

func channel(userID string) string    { return "checkout:" + userID }
func pendingKey(userID string) string { return "checkout_pending:" + userID }

// Publish diffuse ev et, pour un checkout, le garde en attente pour un
// client qui se connecterait après coup.
func (b *RedisBus) Publish(ctx context.Context, userID string, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	pipe := b.client.TxPipeline()
	if ev.Type == TypeCheckout {
		pipe.Set(ctx, pendingKey(userID), data, PendingTTL)
	}
	pipe.Publish(ctx, channel(userID), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("notifier: publish: %w", err)
	}
	return nil
}

// TakePending retire et retourne le checkout en attente, ou nil.
func (b *RedisBus) TakePending(ctx context.Context, userID string) (*Event, error) {
	data, err := b.client.GetDel(ctx, pendingKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, nil
	}
	return &ev, nil
}

// Ack marque le checkout orderID comme délivré.
func (b *RedisBus) Ack(ctx context.Context, userID, orderID string) error {
	pending, err := b.TakePending(ctx, userID)
	if err != nil || pending == nil || pending.OrderID == orderID {
		return err
	}
	// un checkout plus récent attend toujours : on le remet
	data, err := json.Marshal(pending)
	if err != nil {
		return err
	}
	return b.client.Set(ctx, pendingKey(userID), data, PendingTTL).Err()
}

type Subscription struct {
	pubsub *redis.PubSub
	done   chan struct{}
	C      <-chan Event
}

// Subscribe retourne une fois l'abonnement confirmé par Redis.
func (b *RedisBus) Subscribe(ctx context.Context, userID string) (*Subscription, error) {
	pubsub := b.client.Subscribe(ctx, channel(userID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("notifier: subscribe: %w", err)
	}

	out := make(chan Event, 8)
	done := make(chan struct{})
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Warn().Err(err).Str("channel", msg.Channel).Msg("⚠️ Message pub/sub invalide")
				continue
			}
			select {
			case out <- ev:
			case <-done:
				return
			}
		}
	}()
	return &Subscription{pubsub: pubsub, done: done, C: out}, nil
}

func (s *Subscription) Close() error {
	close(s.done)
	return s.pubsub.Close()
}
