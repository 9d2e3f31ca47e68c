// Package memory is the default in-process provider, backed by ttlcache.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	pr "github.com/unkn0wn-root/optcache/provider"
)

type Memory struct {
	c    *ttlcache.Cache[string, []byte]
	loop bool
	once sync.Once
}

var _ pr.Provider = (*Memory)(nil)

type Config struct {
	// Capacity bounds the number of entries; 0 = unlimited.
	Capacity uint64
	// Sweep starts ttlcache's expiry loop so expired entries release memory
	// eagerly. Expired entries are never returned either way.
	Sweep bool
}

func New(cfg Config) *Memory {
	opts := []ttlcache.Option[string, []byte]{
		ttlcache.WithDisableTouchOnHit[string, []byte](),
	}
	if cfg.Capacity > 0 {
		opts = append(opts, ttlcache.WithCapacity[string, []byte](cfg.Capacity))
	}
	m := &Memory{c: ttlcache.New[string, []byte](opts...), loop: cfg.Sweep}
	if m.loop {
		go m.c.Start()
	}
	return m
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	item := m.c.Get(key)
	if item == nil {
		return nil, false, nil
	}
	return item.Value(), true, nil
}

// Set keeps its own copy of value so later changes to the caller's buffer are
// not visible through Get.
func (m *Memory) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = ttlcache.NoTTL
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	m.c.Set(key, cp, ttl)
	return true, nil
}

func (m *Memory) Del(_ context.Context, key string) error {
	m.c.Delete(key)
	return nil
}

func (m *Memory) Close(_ context.Context) error {
	m.once.Do(func() {
		if m.loop {
			m.c.Stop()
		}
	})
	return nil
}
