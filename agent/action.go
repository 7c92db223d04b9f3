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
	"sync"

	"axonflow/assistant/shared/types"
)

// Executable is a local stub handler for one action.
type Executable func(ctx context.Context, payload *types.ContextPayload) (map[string]any, error)

// ActionDefinition describes one registered action: where it may run
// (platforms/page types, "any" is a wildcard) and how it degrades when
// the backend cannot serve it.
type ActionDefinition struct {
	ID               string
	Label            string
	Description      string
	Platforms        []string
	PageTypes        []string
	UseBackend       bool
	FallbackStrategy types.FallbackStrategy
	Stub             Executable
}

// compatible reports whether the definition applies to the payload's
// platform and page type.
func (d *ActionDefinition) compatible(payload *types.ContextPayload) bool {
	return matchesAny(d.Platforms, payload.Platform) && matchesAny(d.PageTypes, payload.PageType)
}

func matchesAny(set []string, value string) bool {
	for _, s := range set {
		if s == "any" || s == value {
			return true
		}
	}
	return false
}

// Registry holds the loaded action definitions. The zero registry is
// "not loaded"; dispatching against it fails with a registry error
// rather than a lookup miss.
type Registry struct {
	actions map[string]*ActionDefinition
	order   []string
	mu      sync.RWMutex
}

// NewRegistry creates an empty, loaded registry.
func NewRegistry() *Registry {
	return &Registry{actions: make(map[string]*ActionDefinition)}
}

// Register installs or replaces a definition, preserving first-seen
// menu order.
func (r *Registry) Register(def *ActionDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.actions == nil {
		r.actions = make(map[string]*ActionDefinition)
	}
	if _, exists := r.actions[def.ID]; !exists {
		r.order = append(r.order, def.ID)
	}
	r.actions[def.ID] = def
}

// Get returns the definition for actionID.
func (r *Registry) Get(actionID string) (*ActionDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.actions[actionID]
	return def, ok
}

// Loaded reports whether the registry holds any definitions.
func (r *Registry) Loaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.actions) > 0
}

// Reset drops all definitions. Used by tests and by manifest reloads.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = make(map[string]*ActionDefinition)
	r.order = nil
}

// Menu lists the actions compatible with the payload, in registration
// order. Menu is pure: calling it never mutates registry state, so
// repeated calls with the same payload yield the same entries.
func (r *Registry) Menu(payload *types.ContextPayload) []types.MenuEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]types.MenuEntry, 0, len(r.order))
	if payload == nil {
		return entries
	}
	for _, id := range r.order {
		def := r.actions[id]
		if !def.compatible(payload) {
			continue
		}
		entries = append(entries, types.MenuEntry{
			ID:               def.ID,
			Label:            def.Label,
			Description:      def.Description,
			Platforms:        def.Platforms,
			PageTypes:        def.PageTypes,
			UseBackend:       def.UseBackend,
			FallbackStrategy: def.FallbackStrategy,
		})
	}
	return entries
}

// IsAvailable reports whether actionID exists and is compatible with
// the payload.
func (r *Registry) IsAvailable(actionID string, payload *types.ContextPayload) bool {
	if payload == nil {
		return false
	}
	def, ok := r.Get(actionID)
	return ok && def.compatible(payload)
}
