package locker

import (
	"context"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Redis implements ItemLocker on top of redislock, for deployments
// running more than one backend instance against shared storage.
type Redis struct {
	client *redislock.Client
	ttl    time.Duration
	log    *logrus.Logger
}

func NewRedis(client *redis.Client, ttl time.Duration, log *logrus.Logger) *Redis {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Redis{
		client: redislock.New(client),
		ttl:    ttl,
		log:    log,
	}
}

func (r *Redis) Acquire(ctx context.Context, ownerID string, itemID string) (func(), error) {
	key := fmt.Sprintf("growledger:itemlock:%s:%s", ownerID, itemID)
	backoff := redislock.LimitRetry(redislock.LinearBackoff(50*time.Millisecond), 40)

	lock, err := r.client.Obtain(ctx, key, r.ttl, &redislock.Options{RetryStrategy: backoff})
	if err != nil {
		return nil, fmt.Errorf("obtain item lock %s: %w", key, err)
	}

	release := func() {
		if err := lock.Release(context.Background()); err != nil {
			r.log.WithError(err).WithField("key", key).Warn("failed to release item lock")
		}
	}
	return release, nil
}
