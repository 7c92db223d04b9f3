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

package usage

import (
	"context"
	"sync"
	"time"
)

// CounterStore holds date-bucketed action counters. Keys are opaque
// ("org:<id>" or "user:<org>:<id>"); date is a yyyy-mm-dd bucket.
type CounterStore interface {
	Count(ctx context.Context, key, date string) (int, error)
	Increment(ctx context.Context, key, date string) (int, error)
}

// memoryEntry tracks one counter bucket plus when it was last touched,
// so the sweep can evict abandoned entries.
type memoryEntry struct {
	date     string
	count    int
	lastSeen time.Time
}

// MemoryCounters is the in-process CounterStore used when Redis is not
// configured. Safe for concurrent use.
type MemoryCounters struct {
	entries map[string]*memoryEntry
	mu      sync.Mutex

	now       func() time.Time
	lastSweep time.Time
}

// NewMemoryCounters creates an empty in-memory counter store.
func NewMemoryCounters() *MemoryCounters {
	return &MemoryCounters{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

// Count returns the counter for key in the given date bucket. A stored
// entry from a different date is treated as absent.
func (m *MemoryCounters) Count(ctx context.Context, key, date string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok || entry.date != date {
		return 0, nil
	}
	return entry.count, nil
}

// Increment bumps the counter for key in the given date bucket, resetting
// it if the stored bucket is stale, and opportunistically sweeps entries
// unseen for more than 24 hours.
func (m *MemoryCounters) Increment(ctx context.Context, key, date string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	entry, ok := m.entries[key]
	if !ok || entry.date != date {
		entry = &memoryEntry{date: date}
		m.entries[key] = entry
	}
	entry.count++
	entry.lastSeen = now

	// Sweep at most once a minute; increments are on the hot path.
	if now.Sub(m.lastSweep) > time.Minute {
		m.sweepLocked(now)
		m.lastSweep = now
	}
	return entry.count, nil
}

// Sweep evicts counters unseen for more than 24 hours and returns how
// many were removed. Also run on a cron schedule as a backstop for idle
// deployments.
func (m *MemoryCounters) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweepLocked(m.now())
}

func (m *MemoryCounters) sweepLocked(now time.Time) int {
	removed := 0
	for key, entry := range m.entries {
		if now.Sub(entry.lastSeen) > 24*time.Hour {
			delete(m.entries, key)
			removed++
		}
	}
	return removed
}
