package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"

	"github.com/redis/go-redis/v9"

	"loanops/internal/metrics"
	"loanops/internal/reqctx"
)

func cacheKey(tenant, path string, query url.Values) string {
	key := "fineract:" + tenant + ":" + path
	if len(query) > 0 {
		key += "?" + query.Encode()
	}
	return key
}

// cachedGet serves reference data from redis, falling back to the API on a
// miss or any cache error.
func (c *Client) cachedGet(ctx context.Context, scope reqctx.Scope, path string, query url.Values, out interface{}) error {
	if c.cache == nil || c.cacheTTL <= 0 {
		return c.do(ctx, scope, "GET", path, query, nil, out)
	}

	key := cacheKey(c.tenant(scope), path, query)
	raw, err := c.cache.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if jsonErr := json.Unmarshal(raw, out); jsonErr == nil {
			metrics.UpstreamCacheTotal.WithLabelValues("hit").Inc()
			return nil
		}
	case !errors.Is(err, redis.Nil):
		c.log.Warn("reference cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
	metrics.UpstreamCacheTotal.WithLabelValues("miss").Inc()

	if err := c.do(ctx, scope, "GET", path, query, nil, out); err != nil {
		return err
	}

	data, err := json.Marshal(out)
	if err == nil {
		err = c.cache.Set(ctx, key, data, c.cacheTTL).Err()
	}
	if err != nil {
		c.log.Warn("reference cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
	return nil
}

// Invalidate drops cached reference data of a tenant whose key starts with path.
func (c *Client) Invalidate(ctx context.Context, scope reqctx.Scope, path string) error {
	if c.cache == nil {
		return nil
	}
	iter := c.cache.Scan(ctx, 0, "fineract:"+c.tenant(scope)+":"+path+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.cache.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}
