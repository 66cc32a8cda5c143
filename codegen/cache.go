package codegen

import (
	"sync"

	"github.com/loopkit-xyz/go-loopkit/schedule"
)

// Cache memoizes rendered scop bodies keyed by tree fingerprint. Exploration
// revisits schedules whenever a transformation is rolled back or a random
// walk loops, so repeated renders are common.
type Cache struct {
	mu      sync.RWMutex
	entries map[[32]byte]string
	maxSize int
	order   [][32]byte
	hits    int64
	misses  int64
}

// NewCache creates a cache evicting oldest entries past maxSize; 0 means
// unlimited.
func NewCache(maxSize int) *Cache {
	return &Cache{entries: map[[32]byte]string{}, maxSize: maxSize}
}

// Render returns the generated body for the scop's current tree, rendering
// and storing it on a miss.
func (c *Cache) Render(s *schedule.Scop) (string, error) {
	key := s.Tree().Fingerprint()

	c.mu.RLock()
	code, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
		return code, nil
	}

	code, err := Scop(s)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.misses++
	if _, dup := c.entries[key]; !dup {
		c.entries[key] = code
		c.order = append(c.order, key)
		if c.maxSize > 0 && len(c.order) > c.maxSize {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
	}
	return code, nil
}

// Stats reports hit and miss counts.
func (c *Cache) Stats() (hits, misses int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
