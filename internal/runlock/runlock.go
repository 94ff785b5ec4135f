// internal/runlock/runlock.go

// Package runlock serializes scoring runs per scanner. A run holds a redis
// key for its duration; a second run against the same scanner is rejected
// instead of queued. The TTL bounds how long a crashed run can wedge a
// scanner.
package runlock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrAlreadyRunning is returned when another run holds the scanner's lock.
var ErrAlreadyRunning = fmt.Errorf("RUN_IN_PROGRESS")

type Lock struct {
	client *redis.Client
	ttl    time.Duration
}

func New(client *redis.Client, ttl time.Duration) *Lock {
	return &Lock{client: client, ttl: ttl}
}

func key(scannerID string) string {
	return "scoring:run:" + scannerID
}

// Acquire takes the scanner's run lock. The stored value identifies the
// holder so a finished run only releases its own lock.
func (l *Lock) Acquire(ctx context.Context, scannerID, runID string) error {
	ok, err := l.client.SetNX(ctx, key(scannerID), runID, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}
	return nil
}

// Release drops the lock if this run still holds it. A lock that expired
// and was re-acquired by another run is left alone.
func (l *Lock) Release(ctx context.Context, scannerID, runID string) error {
	const script = `
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		end
		return 0
	`
	if err := l.client.Eval(ctx, script, []string{key(scannerID)}, runID).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("release run lock: %w", err)
	}
	return nil
}
