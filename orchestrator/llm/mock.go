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

package llm

import (
	"context"
	"sync"
	"time"

	"axonflow/assistant/shared/types"
)

// MockProvider is a deterministic provider used in development mode and
// tests. It returns a canned content string and fixed token usage, or a
// configured error.
type MockProvider struct {
	name    string
	content string
	err     error
	healthy bool

	mu    sync.Mutex
	calls []string
}

// NewMockProvider creates a healthy mock provider returning content.
func NewMockProvider(name, content string) *MockProvider {
	return &MockProvider{name: name, content: content, healthy: true}
}

// NewFailingMockProvider creates a mock provider whose Query always
// returns err.
func NewFailingMockProvider(name string, err error) *MockProvider {
	return &MockProvider{name: name, err: err, healthy: true}
}

// SetHealthy toggles the health flag.
func (p *MockProvider) SetHealthy(healthy bool) {
	p.healthy = healthy
}

// Calls returns the prompts this provider has received, in order.
func (p *MockProvider) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.calls))
	copy(out, p.calls)
	return out
}

func (p *MockProvider) Name() string {
	return p.name
}

func (p *MockProvider) IsHealthy() bool {
	return p.healthy
}

func (p *MockProvider) Query(ctx context.Context, prompt string, options QueryOptions) (*Response, error) {
	p.mu.Lock()
	p.calls = append(p.calls, prompt)
	p.mu.Unlock()

	if p.err != nil {
		return nil, p.err
	}

	model := options.Model
	if model == "" {
		model = "mock-model"
	}

	return &Response{
		Content: p.content,
		Model:   model,
		Usage: types.Usage{
			PromptTokens:     len(prompt) / 4,
			CompletionTokens: len(p.content) / 4,
			TotalTokens:      len(prompt)/4 + len(p.content)/4,
		},
		ResponseTime: time.Millisecond,
		Metadata:     map[string]any{"provider": p.name, "mock": true},
	}, nil
}
