package otpinfra

import (
	"context"
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/otp"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/user"
	"github.com/redis/go-redis/v9"
)

// RedisThrottle keeps one key per purpose and address; the key's TTL is the
// remaining cooldown.
type RedisThrottle struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewRedisThrottle(rdb redis.UniversalClient, prefix string) *RedisThrottle {
	if prefix == "" {
		prefix = "otp:throttle"
	}
	return &RedisThrottle{rdb: rdb, prefix: prefix}
}

func (t *RedisThrottle) key(purpose otp.Purpose, email string) string {
	return t.prefix + ":" + string(purpose) + ":" + user.NormalizeEmail(email)
}

func (t *RedisThrottle) Allow(ctx context.Context, purpose otp.Purpose, email string, window time.Duration) (bool, error) {
	if window <= 0 {
		return true, nil
	}
	ok, err := t.rdb.SetNX(ctx, t.key(purpose, email), 1, window).Result()
	if err != nil {
		return false, errx.Wrap(err, "failed to reserve code send slot", errx.TypeExternal)
	}
	return ok, nil
}

// Reset drops the cooldown for an address.
func (t *RedisThrottle) Reset(ctx context.Context, purpose otp.Purpose, email string) error {
	if err := t.rdb.Del(ctx, t.key(purpose, email)).Err(); err != nil {
		return errx.Wrap(err, "failed to reset code send slot", errx.TypeExternal)
	}
	return nil
}
