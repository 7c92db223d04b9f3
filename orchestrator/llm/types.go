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
	"fmt"
	"time"

	"axonflow/assistant/shared/types"
)

// Provider is the interface implemented by all LLM backends.
// Implementations must be safe for concurrent use.
type Provider interface {
	// Name returns the stable provider identifier used for routing,
	// attribution and metrics ("openai", "anthropic", "bedrock", ...).
	Name() string

	// Query generates a completion for the given prompt.
	// The context carries the per-call timeout.
	Query(ctx context.Context, prompt string, options QueryOptions) (*Response, error)

	// IsHealthy reports whether the provider is currently usable.
	// An unhealthy provider is skipped by the chain but still recorded
	// as an attempt.
	IsHealthy() bool
}

// QueryOptions contains options for an LLM query.
type QueryOptions struct {
	MaxTokens    int     `json:"max_tokens"`
	Temperature  float64 `json:"temperature"`
	Model        string  `json:"model"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
}

// Response represents a completion from a provider.
type Response struct {
	Content      string         `json:"content"`
	Model        string         `json:"model"`
	Usage        types.Usage    `json:"usage"`
	ResponseTime time.Duration  `json:"response_time"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Attempt records a single provider try, successful or not. The chain
// emits one Attempt per provider contacted so the execution context
// builder can report primary vs final provider and flag fallback.
type Attempt struct {
	Provider string        `json:"provider"`
	Model    string        `json:"model"`
	Duration time.Duration `json:"duration"`
	Usage    types.Usage   `json:"usage"`
	Err      string        `json:"error,omitempty"`
}

// Succeeded reports whether this attempt produced a response.
func (a Attempt) Succeeded() bool {
	return a.Err == ""
}

// ProviderError represents an error from a single LLM provider.
type ProviderError struct {
	Provider   string `json:"provider"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code,omitempty"`
	Cause      error  `json:"-"`
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Provider, e.Message)
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// Common error codes.
const (
	ErrCodeAuth         = "authentication_error"
	ErrCodeRateLimit    = "rate_limit"
	ErrCodeServerError  = "server_error"
	ErrCodeTimeout      = "timeout"
	ErrCodeUnavailable  = "unavailable"
	ErrCodeBadResponse  = "bad_response"
)

// ExhaustedError is returned when every provider in a chain failed.
// It aggregates the per-provider attempts for diagnostics; the message
// intentionally avoids echoing raw provider error bodies.
type ExhaustedError struct {
	Attempts []Attempt
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all LLM providers failed (%d attempted)", len(e.Attempts))
}
