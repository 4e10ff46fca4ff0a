package notifier

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	PingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
)

// TokenVerifier résout l'utilisateur porteur d'un token.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// Hub sert les connexions WebSocket des clients authentifiés.
type Hub struct {
	bus      *RedisBus
	verifier TokenVerifier
	upgrader websocket.Upgrader
	ping     time.Duration

	mu      sync.Mutex
	closing chan struct{}
	closed  bool
	wg      sync.WaitGroup
}

func NewHub(bus *RedisBus, verifier TokenVerifier, allowedOrigins []string) *Hub {
	h := &Hub{
		bus:      bus,
		verifier: verifier,
		ping:     PingInterval,
		closing:  make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: originChecker(allowedOrigins)}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

func bearer(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// ServeHTTP authentifie via ?token= (ou Authorization: Bearer) puis ouvre le canal.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := bearer(r)
	if token == "" {
		http.Error(w, "Token manquant", http.StatusUnauthorized)
		return
	}
	userID, err := h.verifier.Verify(token)
	if err != nil {
		http.Error(w, "Token invalide", http.StatusUnauthorized)
		return
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		http.Error(w, "Arrêt en cours", http.StatusServiceUnavailable)
		return
	}
	h.wg.Add(1)
	h.mu.Unlock()
	defer h.wg.Done()

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	// abonnement avant l'upgrade : aucun événement perdu entre les deux
	sub, err := h.bus.Subscribe(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("❌ Abonnement Redis impossible")
		http.Error(w, "Service indisponible", http.StatusServiceUnavailable)
		return
	}
	defer sub.Close()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("❌ Erreur upgrade WebSocket")
		return
	}
	defer conn.Close()

	log.Debug().Str("user_id", userID).Msg("🔌 Client WebSocket connecté")
	h.serve(ctx, conn, sub, userID)
	log.Debug().Str("user_id", userID).Msg("🔌 Client WebSocket déconnecté")
}

func (h *Hub) serve(ctx context.Context, conn *websocket.Conn, sub *Subscription, userID string) {
	replies := make(chan Event, 4)
	readDone := make(chan struct{})

	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(2 * h.ping))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * h.ping))
	})

	go func() {
		defer close(readDone)
		for {
			var ev Event
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			if ev.Type == TypeConnection {
				select {
				case replies <- Event{Type: TypeConfirmation}:
				default:
				}
			}
		}
	}()

	write := func(ev Event) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(ev); err != nil {
			log.Debug().Err(err).Str("user_id", userID).Msg("❌ Erreur envoi WebSocket")
			return false
		}
		return true
	}

	deliver := func(ev Event) bool {
		if !write(ev) {
			return false
		}
		if ev.Type == TypeCheckout {
			if err := h.bus.Ack(ctx, userID, ev.OrderID); err != nil {
				log.Warn().Err(err).Str("user_id", userID).Msg("⚠️ Acquittement checkout échoué")
			}
		}
		return true
	}

	ticker := time.NewTicker(h.ping)
	defer ticker.Stop()

	pendingChecked := false
	for {
		select {
		case ev := <-replies:
			if !write(ev) {
				return
			}
			// un checkout publié avant la connexion est livré après la confirmation
			if !pendingChecked {
				pendingChecked = true
				pending, err := h.bus.TakePending(ctx, userID)
				if err != nil {
					log.Warn().Err(err).Str("user_id", userID).Msg("⚠️ Lecture checkout en attente échouée")
				} else if pending != nil && !write(*pending) {
					return
				}
			}
		case ev, ok := <-sub.C:
			if !ok {
				write(Event{Type: TypeDisconnect})
				return
			}
			if !deliver(ev) {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-readDone:
			return
		case <-h.closing:
			write(Event{Type: TypeDisconnect})
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"), time.Now().Add(writeWait))
			return
		}
	}
}

// Shutdown envoie "disconnect" à tous les clients et attend leur fermeture.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	if !h.closed {
		h.closed = true
		close(h.closing)
	}
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
