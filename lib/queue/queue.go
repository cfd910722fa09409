// Package queue defines the interface for the set of addresses waiting for a batched retry of their drip.
package queue

import (
	"context"
	"fmt"

	"github.com/tarancss/faucet/lib/queue/memory"
	"github.com/tarancss/faucet/lib/queue/redis"
)

// Queue types.
const (
	REDIS  string = "redis"
	MEMORY string = "memory"
)

// Queue is a set of destination addresses. Implementations must make every operation atomic with respect to the
// others, as concurrent requests add to it while a reclaim pass samples and removes entries.
type Queue interface {
	Add(ctx context.Context, addr string) error
	Remove(ctx context.Context, addrs ...string) error
	Card(ctx context.Context) (int64, error)
	// Sample returns up to n distinct random members without removing them.
	Sample(ctx context.Context, n int64) ([]string, error)
	Close() error
}

// New returns the queue for the given type.
func New(ctx context.Context, options, connection string) (Queue, error) {
	switch options {
	case REDIS:
		r, err := redis.New(ctx, connection)
		if err != nil {
			return nil, err
		}

		return r, nil
	case MEMORY:
		return memory.New(), nil
	}

	return nil, fmt.Errorf("unknown queue type: %s", options)
}
