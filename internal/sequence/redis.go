package sequence

import (
	"context"

	"github.com/redis/go-redis/v9"

	"photomemo/internal/apperr"
)

// Redis allocates values with INCR. Durability follows the server's
// persistence settings (AOF is expected in production).
type Redis struct {
	rdb    *redis.Client
	prefix string
}

func NewRedis(opts *redis.Options) *Redis {
	return &Redis{rdb: redis.NewClient(opts), prefix: "photomemo:counter:"}
}

func (r *Redis) NextValue(ctx context.Context, counterName string) (int64, error) {
	v, err := r.rdb.Incr(ctx, r.prefix+counterName).Result()
	if err != nil {
		return 0, apperr.Dependency("sequence", err)
	}
	return v, nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}
