// Package lock provides a redis lease lock. The lease auto-expires so
// a crashed holder cannot wedge a round; release is token-checked so an
// expired holder cannot delete a later holder's lock.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

type Locker struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Locker {
	return &Locker{rdb: rdb}
}

// Acquire attempts to take the named lock for the lease duration. A
// held lock is not an error: ok is false and the caller decides whether
// to retry.
func (l *Locker) Acquire(ctx context.Context, name string, lease time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, key(name), token, lease).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release frees the lock if token still holds it.
func (l *Locker) Release(ctx context.Context, name, token string) error {
	return releaseScript.Run(ctx, l.rdb, []string{key(name)}, token).Err()
}

func key(name string) string {
	return "lock:" + name
}

// RoundLock names the lock serializing every terminal transition of a
// round: claim settlement and the 75-call forced completion both take it.
func RoundLock(roundID uint) string {
	return fmt.Sprintf("round:%d", roundID)
}
