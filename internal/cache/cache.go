package cache

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"storefront/internal/backend"
	"storefront/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const ProductCacheTTL = 10 * time.Minute

// fetchTimeout borne une lecture partagée du catalogue, détachée des requêtes.
const fetchTimeout = 10 * time.Second

// ProductCache est un cache Redis en lecture devant le catalogue. Il sert
// l'affichage uniquement : la commande relit toujours le backend.
type ProductCache struct {
	client *redis.Client
	source backend.Catalog
	ttl    time.Duration
	group  singleflight.Group
}

var _ backend.Catalog = (*ProductCache)(nil)

func NewProductCache(client *redis.Client, source backend.Catalog, ttl time.Duration) *ProductCache {
	if ttl <= 0 {
		ttl = ProductCacheTTL
	}
	return &ProductCache{client: client, source: source, ttl: ttl}
}

func productKey(id string) string { return "product:" + id }

func (c *ProductCache) ProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	ids = backend.DedupeIDs(ids)
	if len(ids) == 0 {
		return nil, nil
	}

	found := make(map[string]models.Product, len(ids))
	var missing []string

	// 1. Essayer le cache Redis
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = productKey(id)
	}
	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		log.Warn().Err(err).Msg("⚠️ Cache produits indisponible, lecture directe")
		missing = ids
	} else {
		for i, v := range values {
			raw, ok := v.(string)
			var p models.Product
			if !ok || json.Unmarshal([]byte(raw), &p) != nil {
				missing = append(missing, ids[i])
				continue
			}
			found[ids[i]] = p
		}
	}

	// 2. Récupérer les produits manquants (un seul appel par lot concurrent)
	if len(missing) > 0 {
		fetched, err := c.fetch(ctx, missing)
		if err != nil {
			return nil, err
		}
		for _, p := range fetched {
			found[p.ID] = p
		}
	}

	out := make([]models.Product, 0, len(found))
	for _, id := range ids {
		if p, ok := found[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// fetch partage une lecture du catalogue entre les appels concurrents. La
// lecture ne dépend d'aucune requête : chaque appelant n'attend que son propre ctx.
func (c *ProductCache) fetch(ctx context.Context, ids []string) ([]models.Product, error) {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	ch := c.group.DoChan(strings.Join(sorted, ","), func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()

		products, err := c.source.ProductsByIDs(fetchCtx, sorted)
		if err != nil {
			return nil, err
		}

		// 3. Mettre en cache
		pipe := c.client.Pipeline()
		for _, p := range products {
			data, err := json.Marshal(p)
			if err != nil {
				continue
			}
			pipe.Set(fetchCtx, productKey(p.ID), data, c.ttl)
		}
		if _, err := pipe.Exec(fetchCtx); err != nil {
			log.Warn().Err(err).Msg("⚠️ Mise en cache des produits échouée")
		}
		return products, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]models.Product), nil
	}
}
