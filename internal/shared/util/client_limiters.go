package util

import (
	"sync"
	"time"
)

// ClientLimiters keeps one Limiter per client key. Clients that stay quiet
// for longer than idle are forgotten on the next sweep, which runs lazily
// from For.
type ClientLimiters struct {
	perSecond float64
	burst     int
	idle      time.Duration
	now       func() time.Time

	mu        sync.Mutex
	clients   map[string]*clientLimiter
	lastSweep time.Time
}

type clientLimiter struct {
	*Limiter
	seen time.Time
}

func NewClientLimiters(perSecond float64, burst int, idle time.Duration) *ClientLimiters {
	return &ClientLimiters{
		perSecond: perSecond,
		burst:     burst,
		idle:      idle,
		now:       time.Now,
		clients:   make(map[string]*clientLimiter),
	}
}

// For returns the limiter of client, creating it on first use.
func (c *ClientLimiters) For(client string) *Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.idle > 0 && now.Sub(c.lastSweep) >= c.idle {
		c.sweep(now)
	}
	cl, ok := c.clients[client]
	if !ok {
		cl = &clientLimiter{Limiter: NewLimiter(c.perSecond, c.burst)}
		c.clients[client] = cl
	}
	cl.seen = now
	return cl.Limiter
}

// Len is the number of clients currently tracked.
func (c *ClientLimiters) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.clients)
}

func (c *ClientLimiters) sweep(now time.Time) {
	for client, cl := range c.clients {
		if now.Sub(cl.seen) > c.idle {
			delete(c.clients, client)
		}
	}
	c.lastSweep = now
}
