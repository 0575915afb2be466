package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	apperrors "placement-engine/internal/common/errors"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Deletes the key only if it still holds our token.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// Pushes the expiry out again only if the key still holds our token.
const renewScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`

const (
	pollInterval = 25 * time.Millisecond
	renewTimeout = time.Second
)

// RedisLocker grants leases with SET NX PX so several engine processes can
// share one set of stores. A held lease is renewed every ttl/3 until it is
// released, so ttl only bounds how long a crashed holder blocks the key.
type RedisLocker struct {
	client     *redis.Client
	prefix     string
	ttl        time.Duration
	wait       time.Duration
	renewEvery time.Duration
	script     *redis.Script
	renew      *redis.Script
	newToken   func() string
}

func NewRedisLocker(client *redis.Client, prefix string, ttl, wait time.Duration) *RedisLocker {
	return &RedisLocker{
		client:     client,
		prefix:     prefix,
		ttl:        ttl,
		wait:       wait,
		renewEvery: ttl / 3,
		script:     redis.NewScript(releaseScript),
		renew:      redis.NewScript(renewScript),
		newToken:   uuid.NewString,
	}
}

func (l *RedisLocker) redisKey(key string) string {
	if l.prefix == "" {
		return key
	}
	return l.prefix + ":" + key
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (Lease, error) {
	redisKey := l.redisKey(key)
	token := l.newToken()

	if l.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, apperrors.NewLockUnavailableError(key, ctxErr)
			}
			return nil, apperrors.NewLockUnavailableError(key, err)
		}
		if ok {
			lease := &redisLease{
				locker: l,
				key:    redisKey,
				token:  token,
				stop:   make(chan struct{}),
				done:   make(chan struct{}),
			}
			go lease.keepAlive()
			return lease, nil
		}

		select {
		case <-ctx.Done():
			return nil, apperrors.NewLockUnavailableError(key, ctx.Err())
		case <-ticker.C:
		}
	}
}

type redisLease struct {
	locker *RedisLocker
	key    string
	token  string

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// keepAlive extends the key's expiry until Release or until the key no
// longer holds our token.
func (l *redisLease) keepAlive() {
	defer close(l.done)
	if l.locker.renewEvery <= 0 {
		return
	}

	ticker := time.NewTicker(l.locker.renewEvery)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), renewTimeout)
		n, err := l.locker.renew.Run(ctx, l.locker.client, []string{l.key},
			l.token, l.locker.ttl.Milliseconds()).Int64()
		cancel()
		if err == nil && n == 0 {
			return
		}
	}
}

func (l *redisLease) Release(ctx context.Context) error {
	l.stopOnce.Do(func() { close(l.stop) })
	<-l.done

	n, err := l.locker.script.Run(ctx, l.locker.client, []string{l.key}, l.token).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	if n == 0 {
		return ErrLeaseLost
	}
	return nil
}
