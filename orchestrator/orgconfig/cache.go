// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package orgconfig

import (
	"sync"
	"time"

	"axonflow/assistant/shared/types"
)

// cacheEntry holds a cached org config with expiration.
type cacheEntry struct {
	value      *types.OrgConfig
	expiresAt  time.Time
	lastUpdate time.Time
}

func (e *cacheEntry) expired() bool {
	return time.Now().After(e.expiresAt)
}

// Cache is a thread-safe TTL cache for resolved org configs, keyed by
// org ID. It only holds configs fetched from the Moodle authority; the
// persisted store and the sample map are cheap enough to hit directly.
type Cache struct {
	entries map[string]*cacheEntry
	ttl     time.Duration
	mu      sync.RWMutex

	hits      int64
	misses    int64
	evictions int64
}

// NewCache creates a cache with the given TTL. Non-positive TTLs fall
// back to 30 seconds.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Cache{
		entries: make(map[string]*cacheEntry),
		ttl:     ttl,
	}
}

// Get returns the cached config for orgID, or (nil, false) on miss or
// expiry.
func (c *Cache) Get(orgID string) (*types.OrgConfig, bool) {
	c.mu.RLock()
	entry, exists := c.entries[orgID]
	c.mu.RUnlock()

	if !exists || entry.expired() {
		c.mu.Lock()
		c.misses++
		c.mu.Unlock()
		return nil, false
	}

	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
	return entry.value, true
}

// Set stores cfg under orgID with the cache TTL.
func (c *Cache) Set(orgID string, cfg *types.OrgConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.entries[orgID] = &cacheEntry{
		value:      cfg,
		expiresAt:  now.Add(c.ttl),
		lastUpdate: now,
	}
}

// Invalidate drops the entry for orgID. Used after admin updates so the
// next resolve sees fresh state.
func (c *Cache) Invalidate(orgID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[orgID]; exists {
		delete(c.entries, orgID)
		c.evictions++
	}
}

// Cleanup removes expired entries and returns how many were evicted.
// Scheduled periodically by the orchestrator's cron runner.
func (c *Cache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for orgID, entry := range c.entries {
		if entry.expired() {
			delete(c.entries, orgID)
			removed++
		}
	}
	c.evictions += int64(removed)
	return removed
}

// Stats reports hit/miss/eviction counters.
func (c *Cache) Stats() (hits, misses, evictions int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses, c.evictions
}
