package cart

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"storefront/internal/models"

	"github.com/redis/go-redis/v9"
)

const CartTTL = 30 * 24 * time.Hour

// maxUpdateRetries borne les reprises quand le panier change pendant un Update.
const maxUpdateRetries = 10

var ErrConflict = errors.New("cart: concurrent update")

// RedisStore garde un panier par visiteur sous "cart:<key>" en JSON.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = CartTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func redisKey(key string) string { return "cart:" + key }

func (s *RedisStore) Load(ctx context.Context, key string) ([]models.CartLine, error) {
	return s.load(ctx, s.client, redisKey(key))
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore) load(ctx context.Context, c getter, rkey string) ([]models.CartLine, error) {
	data, err := c.Get(ctx, rkey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var lines []models.CartLine
	if err := json.Unmarshal(data, &lines); err != nil {
		// panier illisible : on repart d'un panier vide
		return nil, ErrNotFound
	}
	return lines, nil
}

// Update relit le panier sous WATCH et écrit dans un MULTI ; si une autre
// requête a modifié la clé entre-temps, on recommence.
func (s *RedisStore) Update(ctx context.Context, key string, fn Mutation) ([]models.CartLine, error) {
	rkey := redisKey(key)
	var result []models.CartLine

	txf := func(tx *redis.Tx) error {
		lines, err := s.load(ctx, tx, rkey)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		next, changed := fn(lines)
		if !changed {
			result = lines
			return nil
		}

		var data []byte
		if len(next) > 0 {
			if data, err = json.Marshal(next); err != nil {
				return err
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if len(next) == 0 {
				pipe.Del(ctx, rkey)
			} else {
				pipe.Set(ctx, rkey, data, s.ttl)
			}
			return nil
		})
		if err == nil {
			result = next
		}
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := s.client.Watch(ctx, txf, rkey)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	return nil, ErrConflict
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, redisKey(key)).Err()
}

type MemoryStore struct {
	mu    sync.RWMutex
	carts map[string][]models.CartLine
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: make(map[string][]models.CartLine)}
}

func (s *MemoryStore) Load(_ context.Context, key string) ([]models.CartLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lines, ok := s.carts[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]models.CartLine(nil), lines...), nil
}

func (s *MemoryStore) Update(_ context.Context, key string, fn Mutation) ([]models.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, changed := fn(append([]models.CartLine(nil), s.carts[key]...))
	if !changed {
		return append([]models.CartLine(nil), s.carts[key]...), nil
	}
	if len(next) == 0 {
		delete(s.carts, key)
		return nil, nil
	}
	s.carts[key] = append([]models.CartLine(nil), next...)
	return next, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, key)
	return nil
}
