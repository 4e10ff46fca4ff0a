package cache

import (
	"context"
	"errors"
	"time"

	"storefront/internal/utils"

	"github.com/redis/go-redis/v9"
)

const ResetTokenTTL = 1 * time.Hour

var ErrResetTokenNotFound = errors.New("token invalide ou expiré")

// --- Tokens de réinitialisation de mot de passe ---

type ResetTokens struct {
	client *redis.Client
	ttl    time.Duration
}

func NewResetTokens(client *redis.Client) *ResetTokens {
	return &ResetTokens{client: client, ttl: ResetTokenTTL}
}

// Issue génère un token à usage unique associé à email.
func (r *ResetTokens) Issue(ctx context.Context, email string) (string, error) {
	token, err := utils.RandomToken(32)
	if err != nil {
		return "", err
	}
	if err := r.client.Set(ctx, "reset_token:"+token, email, r.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// Consume retourne l'email associé au token et supprime celui-ci.
func (r *ResetTokens) Consume(ctx context.Context, token string) (string, error) {
	email, err := r.client.GetDel(ctx, "reset_token:"+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrResetTokenNotFound
	}
	return email, err
}

// --- Tentatives et cooldowns ---

// Limiter compte les tentatives par clé et bascule en cooldown au-delà de Max.
type Limiter struct {
	client   *redis.Client
	Name     string
	Max      int
	Cooldown time.Duration
}

func NewLimiter(client *redis.Client, name string, max int, cooldown time.Duration) *Limiter {
	return &Limiter{client: client, Name: name, Max: max, Cooldown: cooldown}
}

func (l *Limiter) attemptsKey(key string) string { return l.Name + "_attempts:" + key }
func (l *Limiter) cooldownKey(key string) string { return l.Name + "_cooldown:" + key }

// Check retourne le temps restant si la clé est bloquée, 0 sinon. Atteindre
// Max active le cooldown.
func (l *Limiter) Check(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := l.client.TTL(ctx, l.cooldownKey(key)).Result()
	if err != nil {
		return 0, err
	}
	if ttl > 0 {
		return ttl, nil
	}

	attempts, err := l.client.Get(ctx, l.attemptsKey(key)).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, err
	}
	if attempts >= l.Max {
		pipe := l.client.TxPipeline()
		pipe.Set(ctx, l.cooldownKey(key), "1", l.Cooldown)
		pipe.Del(ctx, l.attemptsKey(key))
		if _, err := pipe.Exec(ctx); err != nil {
			return 0, err
		}
		return l.Cooldown, nil
	}
	return 0, nil
}

// Hit enregistre une tentative et retourne le nombre restant.
func (l *Limiter) Hit(ctx context.Context, key string) (int, error) {
	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, l.attemptsKey(key))
	pipe.Expire(ctx, l.attemptsKey(key), l.Cooldown)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return max(l.Max-int(incr.Val()), 0), nil
}

func (l *Limiter) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx, l.attemptsKey(key), l.cooldownKey(key)).Err()
}
