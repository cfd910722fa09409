// Package memory implements an in-process quota store. Drips are kept until the end of the UTC day they were made on,
// so the store is only suitable for a single faucet instance.
package memory

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/raulk/clock"

	"github.com/tarancss/faucet/lib/store"
)

// Memory implements the store.DB interface with an expiring cache.
type Memory struct {
	c     *cache.Cache
	clock clock.Clock
}

// New returns an empty Memory store using the system clock.
func New() *Memory {
	return WithClock(clock.New())
}

// WithClock returns an empty Memory store that reads the current day from clk.
func WithClock(clk clock.Clock) *Memory {
	// expired drips are purged every hour
	return &Memory{c: cache.New(cache.NoExpiration, time.Hour), clock: clk}
}

func addrKey(addr string) string     { return "addr:" + addr }
func userKey(username string) string { return "user:" + username }

// HasDrippedToday reports whether the address or the username got a drip today.
func (m *Memory) HasDrippedToday(_ context.Context, k store.DripKey) (bool, error) {
	if k.Addr == "" {
		return false, store.ErrNoAddr
	}

	today := store.Day(m.clock.Now())

	if m.drippedOn(addrKey(k.Addr), today) {
		return true, nil
	}

	return k.Username != "" && m.drippedOn(userKey(k.Username), today), nil
}

func (m *Memory) drippedOn(key, day string) bool {
	v, ok := m.c.Get(key)

	return ok && v.(string) == day
}

// SaveDrip records the drip under the address and the username, if any, until the day is over.
func (m *Memory) SaveDrip(_ context.Context, k store.DripKey) error {
	if k.Addr == "" {
		return store.ErrNoAddr
	}

	now := m.clock.Now()
	day, ttl := store.Day(now), store.NextDay(now)

	m.c.Set(addrKey(k.Addr), day, ttl)

	if k.Username != "" {
		m.c.Set(userKey(k.Username), day, ttl)
	}

	return nil
}

// PurgeDrips deletes the drips made before day. Entries also expire on their own, this only frees them earlier
// when the clock is ahead of the cache's.
func (m *Memory) PurgeDrips(_ context.Context, day string) (int64, error) {
	var n int64

	for k, it := range m.c.Items() {
		if d, ok := it.Object.(string); ok && d < day {
			m.c.Delete(k)
			n++
		}
	}

	return n, nil
}

// Close drops all the drips.
func (m *Memory) Close() error {
	m.c.Flush()

	return nil
}
