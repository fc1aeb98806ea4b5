package locker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/vytor/drillbot/internal/logger"
)

const (
	defaultKeyPrefix = "drillbot:lock:user:"
	retryInterval    = 25 * time.Millisecond
)

// release deletes the key only if it still carries our token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a per-user lock shared by every instance using the same Redis.
// A local Memory lock is taken first so one process does not poll Redis
// against itself.
type Redis struct {
	client goredis.UniversalClient
	local  *Memory
	ttl    time.Duration
	prefix string
}

func NewRedis(client goredis.UniversalClient, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Redis{client: client, local: NewMemory(), ttl: ttl, prefix: defaultKeyPrefix}
}

// Dial connects to addr and verifies the connection.
func Dial(ctx context.Context, addr string) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (r *Redis) key(userID int64) string {
	return fmt.Sprintf("%s%d", r.prefix, userID)
}

func (r *Redis) Lock(ctx context.Context, userID int64) (func(), error) {
	log := logger.FromContext(ctx).WithPrefix("locker")

	unlockLocal, err := r.local.Lock(ctx, userID)
	if err != nil {
		return nil, err
	}

	key := r.key(userID)
	token := uuid.NewString()
	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			unlockLocal()
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			unlockLocal()
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
	log.Debug("acquired %s", key)

	var once sync.Once
	return func() {
		once.Do(func() { r.release(ctx, key, token) })
		unlockLocal()
	}, nil
}

func (r *Redis) release(ctx context.Context, key, token string) {
	log := logger.FromContext(ctx).WithPrefix("locker")
	relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	n, err := releaseScript.Run(relCtx, r.client, []string{key}, token).Int()
	switch {
	case err != nil && !errors.Is(err, goredis.Nil):
		log.Warn("failed to release %s: %v", key, err)
	case n == 0:
		log.Warn("lock %s expired before release", key)
	}
}
