package locks

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophtube/internal/common"
	"github.com/redis/go-redis/v9"
)

const (
	lockKeyPrefix = "lock:"
	pollInterval  = 25 * time.Millisecond
	unlockTimeout = 2 * time.Second
)

// releaseLua deletes the lock only if it still holds our token.
var releaseLua = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a distributed lock built on SET NX PX. The TTL bounds how long a
// crashed holder can block others.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedis(client redis.UniversalClient, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	token, err := common.MakeRandHexString(16)
	if err != nil {
		return nil, err
	}
	k := lockKeyPrefix + key

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, k, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis error: %w", err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), unlockTimeout)
		defer cancel()
		_ = releaseLua.Run(ctx, r.client, []string{k}, token).Err()
	}, nil
}
