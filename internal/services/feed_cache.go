package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/social-feed/social-feed/internal/models"
	"github.com/social-feed/social-feed/pkg/cache"
	"github.com/social-feed/social-feed/pkg/logger"
)

// FeedCache keeps rendered feed pages in Redis. Every user has a version
// counter; page keys embed it, so bumping the counter orphans all cached
// pages of that user at once and TTL collects them.
type FeedCache struct {
	redis  *cache.RedisClient
	ttl    time.Duration
	logger *logger.Logger
}

func NewFeedCache(redis *cache.RedisClient, ttl time.Duration, logger *logger.Logger) *FeedCache {
	return &FeedCache{redis: redis, ttl: ttl, logger: logger}
}

func feedVersionKey(userID uint) string {
	return fmt.Sprintf("feed:version:%d", userID)
}

func feedPageKey(userID uint, version string, page, size int) string {
	return fmt.Sprintf("feed:page:%d:v%s:%d:%d", userID, version, page, size)
}

// Lookup returns the cached page if present plus the version it was read
// under; pass that version to Store.
func (c *FeedCache) Lookup(ctx context.Context, userID uint, page, size int) (*Page[*models.Post], string, bool) {
	version, err := c.redis.Get(ctx, feedVersionKey(userID))
	if err != nil {
		c.logger.WithError(err).WithField("user_id", userID).Warn("Failed to read feed version")
		return nil, "", false
	}
	if version == "" {
		version = "0"
	}

	var cached Page[*models.Post]
	if err := c.redis.GetJSON(ctx, feedPageKey(userID, version, page, size), &cached); err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.WithError(err).WithField("user_id", userID).Warn("Failed to read cached feed page")
		}
		return nil, version, false
	}
	return &cached, version, true
}

func (c *FeedCache) Store(ctx context.Context, userID uint, version string, p *Page[*models.Post]) {
	if version == "" {
		return
	}
	if err := c.redis.SetJSON(ctx, feedPageKey(userID, version, p.Page, p.Size), p, c.ttl); err != nil {
		c.logger.WithError(err).WithField("user_id", userID).Warn("Failed to cache feed page")
	}
}

// Invalidate bumps the version of every given user's feed.
func (c *FeedCache) Invalidate(ctx context.Context, userIDs ...uint) error {
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, feedVersionKey(id))
	}
	if err := c.redis.IncrMany(ctx, keys...); err != nil {
		return fmt.Errorf("failed to invalidate feed cache: %w", err)
	}
	return nil
}
