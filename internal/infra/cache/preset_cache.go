// Package cache holds the Redis read-through cache for notification presets.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"hifz_attendance_notifier/internal/domain/preset"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const keyPrefix = "notification_presets"

// cachedPreset is the Redis payload. Found=false remembers an empty lookup so
// the fallback template does not cost a database query every time.
type cachedPreset struct {
	Found  bool           `json:"found"`
	Preset *preset.Preset `json:"preset,omitempty"`
}

// NewRedisClient parses a redis:// URL and checks the server is reachable.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// PresetCache wraps a preset.Repository with a Redis cache. Redis failures are
// logged and the lookup goes to the wrapped repository.
type PresetCache struct {
	next   preset.Repository
	client *redis.Client
	ttl    time.Duration
	logger *logrus.Entry
}

var _ preset.Repository = (*PresetCache)(nil)

func NewPresetCache(next preset.Repository, client *redis.Client, ttl time.Duration, logger *logrus.Entry) *PresetCache {
	return &PresetCache{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: logger.WithField("component", "preset_cache"),
	}
}

// Key returns the Redis key used for a (type, level, audience) lookup.
func Key(t preset.Type, level int, isAdult bool) string {
	audience := "parent"
	if isAdult {
		audience = "adult"
	}
	return fmt.Sprintf("%s:%s:%d:%s", keyPrefix, t, level, audience)
}

func (c *PresetCache) FindFirst(ctx context.Context, t preset.Type, level int, isAdult bool) (*preset.Preset, error) {
	key := Key(t, level, isAdult)
	logCtx := c.logger.WithField("key", key)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var entry cachedPreset
		if jsonErr := json.Unmarshal(raw, &entry); jsonErr == nil {
			if !entry.Found || entry.Preset == nil {
				return nil, preset.ErrNotFound
			}
			return entry.Preset, nil
		}
		logCtx.Warn("Discarding malformed preset cache entry")
	case errors.Is(err, redis.Nil):
	default:
		logCtx.WithError(err).Warn("Preset cache read failed")
	}

	p, err := c.next.FindFirst(ctx, t, level, isAdult)
	if err != nil && !errors.Is(err, preset.ErrNotFound) {
		return nil, err
	}

	entry := cachedPreset{Found: err == nil, Preset: p}
	if payload, mErr := json.Marshal(entry); mErr == nil {
		if setErr := c.client.Set(ctx, key, payload, c.ttl).Err(); setErr != nil {
			logCtx.WithError(setErr).Warn("Preset cache write failed")
		}
	}
	return p, err
}

// Invalidate drops every cached preset lookup, e.g. after operators edit presets.
func (c *PresetCache) Invalidate(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, keyPrefix+":*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scanning preset cache keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
