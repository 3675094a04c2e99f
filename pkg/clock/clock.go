// Package clock abstrae la hora actual para poder fijarla en tests (breaker, numeración).
package clock

import (
	"sync"
	"time"
)

// Clock fuente de tiempo inyectable.
type Clock interface {
	Now() time.Time
}

// System usa time.Now.
type System struct{}

// Now devuelve la hora del sistema.
func (System) Now() time.Time { return time.Now() }

// Fake reloj manual para tests. Seguro para uso concurrente.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake crea un reloj detenido en t (UTC).
func NewFake(t time.Time) *Fake {
	return &Fake{now: t.UTC()}
}

func (c *Fake) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance adelanta el reloj d.
func (c *Fake) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Set fija el reloj en t.
func (c *Fake) Set(t time.Time) {
	c.mu.Lock()
	c.now = t.UTC()
	c.mu.Unlock()
}
