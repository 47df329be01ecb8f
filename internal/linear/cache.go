package linear

import (
	"sync"
	"time"

	"mobridge/internal/models"
)

// teamCache holds team metadata lookups for a bounded window. Team states
// and labels change rarely; the sync path hits them constantly.
type teamCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]teamCacheEntry
	now     func() time.Time
}

type teamCacheEntry struct {
	team      models.Team
	expiresAt time.Time
}

func newTeamCache(ttl time.Duration) *teamCache {
	return &teamCache{
		ttl:     ttl,
		entries: make(map[string]teamCacheEntry),
		now:     time.Now,
	}
}

func (c *teamCache) get(id string) (models.Team, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[id]
	if !ok || c.now().After(entry.expiresAt) {
		delete(c.entries, id)
		return models.Team{}, false
	}
	return entry.team, true
}

func (c *teamCache) put(team models.Team) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[team.ID] = teamCacheEntry{
		team:      team,
		expiresAt: c.now().Add(c.ttl),
	}
}

func (c *teamCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]teamCacheEntry)
}
