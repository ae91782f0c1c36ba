// Package cache — короткоживущий read-through кэш для чтений, которые
// можно отдавать слегка устаревшими. Для дедупликации не используется.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"kakrola/internal/logs"
)

type Cache interface {
	// Get: ok == false — промах.
	Get(ctx context.Context, key string) (val []byte, ok bool, err error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

// Remember отдаёт значение из кэша или вызывает load и кладёт результат.
// Ошибки кэша не фатальны: идём в load и пишем warning.
func Remember[T any](ctx context.Context, c Cache, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var zero T
	if c == nil {
		return load(ctx)
	}
	if raw, ok, err := c.Get(ctx, key); err != nil {
		logs.WithRequest(ctx).WithError(err).WithField("key", key).Warn("cache get failed")
	} else if ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
	}

	v, err := load(ctx)
	if err != nil {
		return zero, err
	}
	if raw, err := json.Marshal(v); err == nil {
		if err := c.Set(ctx, key, raw, ttl); err != nil {
			logs.WithRequest(ctx).WithError(err).WithField("key", key).Warn("cache set failed")
		}
	}
	return v, nil
}
