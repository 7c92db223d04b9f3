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

package agent

import (
	"context"
	"crypto/rand"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"axonflow/assistant/shared/types"
)

// HistoryEntry records one successful action run against an entity so
// the sidebar can show "what the assistant already did here".
type HistoryEntry struct {
	ID        string    `json:"id"`
	EntityKey string    `json:"entity_key"`
	ActionID  string    `json:"action_id"`
	Summary   string    `json:"summary"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryStore persists per-entity action history. Appends are
// fire-and-forget from the dispatcher's point of view.
type HistoryStore interface {
	Append(ctx context.Context, entry HistoryEntry) error
	List(ctx context.Context, entityKey string, limit int) ([]HistoryEntry, error)
}

// MemoryHistory keeps history in process memory, newest first, capped
// per entity.
type MemoryHistory struct {
	mu         sync.RWMutex
	entries    map[string][]HistoryEntry
	maxPerKey  int
}

// NewMemoryHistory creates an in-memory history store.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{
		entries:   make(map[string][]HistoryEntry),
		maxPerKey: 50,
	}
}

func (h *MemoryHistory) Append(ctx context.Context, entry HistoryEntry) error {
	if entry.EntityKey == "" {
		return fmt.Errorf("history entry requires an entity key")
	}
	if entry.ID == "" {
		entry.ID = ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	list := append(h.entries[entry.EntityKey], entry)
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	if len(list) > h.maxPerKey {
		list = list[:h.maxPerKey]
	}
	h.entries[entry.EntityKey] = list
	return nil
}

func (h *MemoryHistory) List(ctx context.Context, entityKey string, limit int) ([]HistoryEntry, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	list := h.entries[entityKey]
	if limit <= 0 || limit > len(list) {
		limit = len(list)
	}
	out := make([]HistoryEntry, limit)
	copy(out, list[:limit])
	return out, nil
}

// entityKey derives a stable identifier for the page entity the action
// ran against. Falls back to platform/pageType/URL when the payload
// carries no explicit record identifier.
func entityKey(payload *types.ContextPayload) string {
	if payload == nil {
		return ""
	}
	for _, k := range []string{"record_id", "opportunity_id", "entity_id", "id"} {
		if v := payload.Fields[k]; v != "" {
			return payload.Platform + ":" + v
		}
	}
	if payload.URL != "" {
		return payload.Platform + ":" + payload.URL
	}
	return payload.Platform + ":" + payload.PageType
}

// summarize reduces a result map to a one-line human summary for the
// history feed. It picks out common result fields and otherwise names
// the keys present.
func summarize(data map[string]any) string {
	if len(data) == 0 {
		return "completed"
	}
	if s, ok := data["summary"].(string); ok && s != "" {
		return truncate(s, 140)
	}
	if lvl, ok := data["risk_level"].(string); ok && lvl != "" {
		if score, ok := numeric(data["risk_score"]); ok {
			return fmt.Sprintf("risk %s (score %.0f)", lvl, score)
		}
		return "risk " + lvl
	}
	if fields, ok := data["fields"].(map[string]any); ok {
		return fmt.Sprintf("extracted %d fields", len(fields))
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "produced " + strings.Join(keys, ", ")
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := strings.LastIndex(s[:max], " ")
	if cut <= 0 {
		cut = max
	}
	return s[:cut] + "..."
}
