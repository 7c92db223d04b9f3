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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainPrimarySucceeds(t *testing.T) {
	chain := NewChain()
	chain.Register(NewMockProvider("openai", `{"summary":"ok"}`))
	chain.Register(NewMockProvider("anthropic", `{"summary":"backup"}`))

	resp, attempts, err := chain.Execute(context.Background(), "prompt", "openai", []string{"anthropic"}, QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, `{"summary":"ok"}`, resp.Content)
	require.Len(t, attempts, 1)
	assert.Equal(t, "openai", attempts[0].Provider)
	assert.True(t, attempts[0].Succeeded())
}

func TestChainFallsBackOnFailure(t *testing.T) {
	chain := NewChain()
	chain.Register(NewFailingMockProvider("openai", errors.New("connection refused")))
	chain.Register(NewMockProvider("anthropic", `{"summary":"backup"}`))

	resp, attempts, err := chain.Execute(context.Background(), "prompt", "openai", []string{"anthropic"}, QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, `{"summary":"backup"}`, resp.Content)

	require.Len(t, attempts, 2)
	assert.Equal(t, "openai", attempts[0].Provider)
	assert.False(t, attempts[0].Succeeded())
	assert.Equal(t, "anthropic", attempts[1].Provider)
	assert.True(t, attempts[1].Succeeded())
}

func TestChainSkipsUnhealthyProvider(t *testing.T) {
	sick := NewMockProvider("openai", "never used")
	sick.SetHealthy(false)

	chain := NewChain()
	chain.Register(sick)
	chain.Register(NewMockProvider("ollama", "local answer"))

	resp, attempts, err := chain.Execute(context.Background(), "prompt", "openai", []string{"ollama"}, QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, "local answer", resp.Content)
	require.Len(t, attempts, 2)
	assert.Equal(t, "provider unhealthy", attempts[0].Err)
	assert.Empty(t, sick.Calls(), "unhealthy provider must not be queried")
}

func TestChainAllProvidersFail(t *testing.T) {
	chain := NewChain()
	chain.Register(NewFailingMockProvider("openai", errors.New("boom")))
	chain.Register(NewFailingMockProvider("anthropic", errors.New("also boom")))

	resp, attempts, err := chain.Execute(context.Background(), "prompt", "openai", []string{"anthropic"}, QueryOptions{})
	assert.Nil(t, resp)
	require.Len(t, attempts, 2)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Len(t, exhausted.Attempts, 2)
}

func TestChainUnregisteredProviderRecorded(t *testing.T) {
	chain := NewChain()
	chain.Register(NewMockProvider("anthropic", "answer"))

	resp, attempts, err := chain.Execute(context.Background(), "prompt", "bedrock", []string{"anthropic"}, QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, "answer", resp.Content)
	require.Len(t, attempts, 2)
	assert.Equal(t, "provider not registered", attempts[0].Err)
}

func TestChainDeduplicatesOrder(t *testing.T) {
	primary := NewFailingMockProvider("openai", errors.New("down"))
	chain := NewChain()
	chain.Register(primary)
	chain.Register(NewMockProvider("ollama", "ok"))

	_, attempts, err := chain.Execute(context.Background(), "prompt", "openai", []string{"openai", "ollama"}, QueryOptions{})
	require.NoError(t, err)
	// openai appears once despite being both primary and fallback.
	require.Len(t, attempts, 2)
	assert.Len(t, primary.Calls(), 1)
}

func TestChainNoProvidersConfigured(t *testing.T) {
	chain := NewChain()
	_, _, err := chain.Execute(context.Background(), "prompt", "", nil, QueryOptions{})
	assert.Error(t, err)
}
