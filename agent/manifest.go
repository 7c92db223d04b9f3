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
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"axonflow/assistant/shared/types"
)

// manifestEntry is one action override in the YAML manifest. Only known
// action IDs may appear; the stub implementations are compiled in and a
// manifest cannot invent new ones.
type manifestEntry struct {
	ID               string   `yaml:"id"`
	Label            string   `yaml:"label"`
	Description      string   `yaml:"description"`
	Platforms        []string `yaml:"platforms"`
	PageTypes        []string `yaml:"page_types"`
	UseBackend       *bool    `yaml:"use_backend"`
	FallbackStrategy string   `yaml:"fallback_strategy"`
}

type manifest struct {
	Actions []manifestEntry `yaml:"actions"`
}

// LoadRegistry builds the action registry: the compiled-in defaults,
// optionally overridden by the manifest file at path (empty path means
// defaults only).
func LoadRegistry(path string) (*Registry, error) {
	registry := NewRegistry()
	for _, def := range defaultActions() {
		registry.Register(def)
	}
	if path == "" {
		return registry, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read action manifest: %w", err)
	}
	var m manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to parse action manifest: %w", err)
	}

	for _, entry := range m.Actions {
		def, ok := registry.Get(entry.ID)
		if !ok {
			return nil, fmt.Errorf("action manifest references unknown action %q", entry.ID)
		}
		applyManifestEntry(def, entry)
		registry.Register(def)
	}
	return registry, nil
}

func applyManifestEntry(def *ActionDefinition, entry manifestEntry) {
	if entry.Label != "" {
		def.Label = entry.Label
	}
	if entry.Description != "" {
		def.Description = entry.Description
	}
	if len(entry.Platforms) > 0 {
		def.Platforms = entry.Platforms
	}
	if len(entry.PageTypes) > 0 {
		def.PageTypes = entry.PageTypes
	}
	if entry.UseBackend != nil {
		def.UseBackend = *entry.UseBackend
	}
	if entry.FallbackStrategy != "" {
		def.FallbackStrategy = types.FallbackStrategy(entry.FallbackStrategy)
	}
}
