// Package cache implementaciones del puerto ports.Cache.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jhoicas/Cumplimiento-api/internal/application/ports"
	"github.com/jhoicas/Cumplimiento-api/pkg/clock"
)

var _ ports.Cache = (*Memory)(nil)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// Memory caché en proceso con expiración perezosa: las entradas vencidas se borran al leerlas
// o con Purge. Cada instancia es independiente (una por colaborador).
type Memory struct {
	clock clock.Clock
	mu    sync.RWMutex
	items map[string]memoryEntry
}

// NewMemory clk nil usa la hora del sistema.
func NewMemory(clk clock.Clock) *Memory {
	if clk == nil {
		clk = clock.System{}
	}
	return &Memory{clock: clk, items: make(map[string]memoryEntry)}
}

func (c *Memory) Get(ctx context.Context, key string) (string, bool, error) {
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if !e.expiresAt.IsZero() && !c.clock.Now().Before(e.expiresAt) {
		c.mu.Lock()
		delete(c.items, key)
		c.mu.Unlock()
		return "", false, nil
	}
	return e.value, true, nil
}

// Set ttl <= 0 no expira.
func (c *Memory) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expiresAt = c.clock.Now().Add(ttl)
	}
	c.mu.Lock()
	c.items[key] = e
	c.mu.Unlock()
	return nil
}

func (c *Memory) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
	return nil
}

// Purge elimina las entradas vencidas y devuelve cuántas quedaron.
func (c *Memory) Purge() int {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.items {
		if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
			delete(c.items, k)
		}
	}
	return len(c.items)
}
